package handlers

import (
	"errors"
	"log"
	"net/http"

	"deckparty/services"

	"github.com/gin-gonic/gin"
)

// respondError maps the service error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is unexpected: logged in full, surfaced
// generically.
func respondError(c *gin.Context, err error) {
	var limited *services.RateLimitedError
	switch {
	case errors.As(err, &limited):
		c.Header("Retry-After", limited.RetryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests", "retry_after": limited.RetryAfter.Seconds()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPreconditionFailed), errors.Is(err, services.ErrDeckExhausted):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, services.ErrCodeGenerationExhausted):
		log.Printf("Game code space saturated: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to allocate a game code"})
	default:
		log.Printf("Unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
