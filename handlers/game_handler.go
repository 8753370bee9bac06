package handlers

import (
	"net/http"
	"strings"

	"deckparty/middleware"
	"deckparty/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameService *services.GameService
	sessions    *services.SessionService
}

func NewGameHandler(gameService *services.GameService, sessions *services.SessionService) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		sessions:    sessions,
	}
}

// binding returns the session's (player, game) pair, refusing sessions bound
// to a different game than the one in the URL.
func (h *GameHandler) binding(c *gin.Context) (playerID, gameID string, ok bool) {
	playerID, gameID, ok = middleware.SessionBinding(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No live session"})
		return "", "", false
	}
	if code := gameCode(c); code != "" && code != gameID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session is bound to another game"})
		return "", "", false
	}
	return playerID, gameID, true
}

func gameCode(c *gin.Context) string {
	return strings.ToUpper(c.Param("code"))
}

func (h *GameHandler) setSession(c *gin.Context, playerID, gameID string) error {
	token, err := h.sessions.Create(c.Request.Context(), playerID, gameID)
	if err != nil {
		return err
	}
	c.SetCookie("session_token", token, 0, "/", "", false, true)
	return nil
}

func (h *GameHandler) CreateGame(c *gin.Context) {
	var req services.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, playerID, err := h.gameService.CreateGame(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.setSession(c, playerID, game.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"game": game, "player_id": playerID})
}

func (h *GameHandler) JoinGame(c *gin.Context) {
	var req services.JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, playerID, err := h.gameService.JoinGame(gameCode(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.setSession(c, playerID, game.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": game, "player_id": playerID})
}

// GetGame is the polling read every client loops on.
func (h *GameHandler) GetGame(c *gin.Context) {
	_, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	game, err := h.gameService.GetGame(gameID, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

// GetHistory fetches the round history on demand; it is excluded from the
// polling read because it grows without bound.
func (h *GameHandler) GetHistory(c *gin.Context) {
	_, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	history, err := h.gameService.GetHistory(gameID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round_history": history})
}

func (h *GameHandler) StartGame(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	game, err := h.gameService.StartGame(gameID, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type submitRequest struct {
	CardIDs []uint `json:"card_ids" binding:"required,min=1"`
}

func (h *GameHandler) SubmitCards(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.gameService.SubmitCards(gameID, playerID, req.CardIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cards submitted"})
}

func (h *GameHandler) ForceJudging(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	if err := h.gameService.ForceJudging(gameID, playerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Submissions closed"})
}

type pickWinnerRequest struct {
	WinnerID string `json:"winner_id" binding:"required"`
}

func (h *GameHandler) PickWinner(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	var req pickWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	game, err := h.gameService.PickWinner(gameID, playerID, req.WinnerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type pauseRequest struct {
	PlayerID string `json:"player_id"`
	Paused   *bool  `json:"paused" binding:"required"`
}

func (h *GameHandler) SetPaused(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target := req.PlayerID
	if target == "" {
		target = playerID
	}
	if err := h.gameService.SetPaused(gameID, playerID, target, *req.Paused); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pause state updated"})
}

func (h *GameHandler) VoteSkipCzar(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	if err := h.gameService.VoteSkipCzar(gameID, playerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vote recorded"})
}

type targetPlayerRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

func (h *GameHandler) RemovePlayer(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	var req targetPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.gameService.RemovePlayer(gameID, playerID, req.PlayerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Player removed"})
}

func (h *GameHandler) TransferHost(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	var req targetPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.gameService.TransferHost(gameID, playerID, req.PlayerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Host transferred"})
}

func (h *GameHandler) RefreshHand(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	if err := h.gameService.RefreshHand(gameID, playerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Hand refreshed"})
}

func (h *GameHandler) LeaveGame(c *gin.Context) {
	playerID, gameID, ok := h.binding(c)
	if !ok {
		return
	}
	if err := h.gameService.LeaveGame(gameID, playerID); err != nil {
		respondError(c, err)
		return
	}
	if token, exists := c.Get("session_token"); exists {
		h.sessions.Delete(c.Request.Context(), token.(string))
	}
	c.SetCookie("session_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Left the game"})
}
