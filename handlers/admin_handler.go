package handlers

import (
	"net/http"
	"strconv"

	"deckparty/models"
	"deckparty/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	authService    *services.AuthService
	contentService *services.ContentService
	gameStore      *services.GameStore
}

func NewAdminHandler(authService *services.AuthService, contentService *services.ContentService, gameStore *services.GameStore) *AdminHandler {
	return &AdminHandler{
		authService:    authService,
		contentService: contentService,
		gameStore:      gameStore,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AdminHandler) CreateCard(c *gin.Context) {
	var req services.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	card, err := h.contentService.CreateCard(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *AdminHandler) ListCards(c *gin.Context) {
	packID, _ := strconv.ParseUint(c.Query("pack_id"), 10, 32)
	cards, err := h.contentService.ListCards(c.Query("type"), uint(packID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *AdminHandler) UpdateCard(c *gin.Context) {
	cardID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid card ID"})
		return
	}
	var req services.UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	card, err := h.contentService.UpdateCard(uint(cardID), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *AdminHandler) DeleteCard(c *gin.Context) {
	cardID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid card ID"})
		return
	}
	if err := h.contentService.DeleteCard(uint(cardID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card deleted"})
}

type createTagRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *AdminHandler) CreateTag(c *gin.Context) {
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tag, err := h.contentService.CreateTag(req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// ListTags is public: clients need the tag list to offer content filters at
// game creation.
func (h *AdminHandler) ListTags(c *gin.Context) {
	tags, err := h.contentService.ListTags()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *AdminHandler) DeleteTag(c *gin.Context) {
	tagID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tag ID"})
		return
	}
	if err := h.contentService.DeleteTag(uint(tagID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted"})
}

type createPackRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *AdminHandler) CreatePack(c *gin.Context) {
	var req createPackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pack, err := h.contentService.CreatePack(req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pack)
}

func (h *AdminHandler) ListPacks(c *gin.Context) {
	packs, err := h.contentService.ListPacks()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, packs)
}

func (h *AdminHandler) DeletePack(c *gin.Context) {
	packID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pack ID"})
		return
	}
	if err := h.contentService.DeletePack(uint(packID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pack deleted"})
}

// ImportCards loads a tagged card CSV (as produced by the spreadsheet
// conversion tooling) into a pack.
func (h *AdminHandler) ImportCards(c *gin.Context) {
	cardType := c.Query("type")
	if cardType != models.CardTypePrompt && cardType != models.CardTypeResponse {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be prompt or response"})
		return
	}
	packID, _ := strconv.ParseUint(c.Query("pack_id"), 10, 32)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSV file required"})
		return
	}
	defer file.Close()

	imported, err := h.contentService.ImportCards(cardType, uint(packID), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

// StaleGames lists games untouched for ?days (default 30).
func (h *AdminHandler) StaleGames(c *gin.Context) {
	days := staleDays(c)
	games, err := h.gameStore.GetOlderThan(days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "games": games})
}

// PurgeStaleGames garbage-collects games untouched for ?days (default 30).
func (h *AdminHandler) PurgeStaleGames(c *gin.Context) {
	days := staleDays(c)
	deleted, err := h.gameStore.DeleteOlderThan(days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "deleted": deleted})
}

func staleDays(c *gin.Context) int {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		return 30
	}
	return days
}
