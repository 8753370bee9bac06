package middleware

import (
	"net/http"

	"deckparty/services"

	"github.com/gin-gonic/gin"
)

const sessionCookie = "session_token"

// SessionAuth resolves the session cookie to a (player, game) binding and
// injects it into the request context. Handlers never trust IDs from the
// request body.
func SessionAuth(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No live session"})
			return
		}
		session, err := sessions.Get(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No live session"})
			return
		}
		c.Set("player_id", session.PlayerID)
		c.Set("game_id", session.GameID)
		c.Set("session_token", token)
		c.Next()
	}
}

// SessionBinding pulls the injected pair back out.
func SessionBinding(c *gin.Context) (playerID, gameID string, ok bool) {
	p, okP := c.Get("player_id")
	g, okG := c.Get("game_id")
	if !okP || !okG {
		return "", "", false
	}
	return p.(string), g.(string), true
}
