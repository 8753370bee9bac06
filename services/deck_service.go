package services

import (
	"errors"
	"fmt"

	"deckparty/models"

	"gorm.io/gorm"
)

// DeckService resolves card content for game creation and round play. Games
// only ever store card IDs; text is joined back in by clients through the
// content API.
type DeckService struct {
	db *gorm.DB
}

func NewDeckService(db *gorm.DB) *DeckService {
	return &DeckService{db: db}
}

// BuildDrawPile selects the IDs of every card that carries none of the
// excluded content tags, grouped by card type. Order is whatever the database
// returns; the caller shuffles.
func (s *DeckService) BuildDrawPile(excludeTags []uint) (models.PileMap, error) {
	pile := models.PileMap{}
	for _, cardType := range []string{models.CardTypePrompt, models.CardTypeResponse} {
		var ids []uint
		q := s.db.Model(&models.Card{}).Where("type = ?", cardType)
		if len(excludeTags) > 0 {
			tagged := s.db.Table("card_tags").Select("card_id").Where("tag_id IN ?", excludeTags)
			q = q.Where("id NOT IN (?)", tagged)
		}
		if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		pile[cardType] = ids
	}
	return pile, nil
}

// PromptBlanks returns how many response cards the given prompt calls for.
func (s *DeckService) PromptBlanks(cardID uint) (int, error) {
	var card models.Card
	if err := s.db.Select("id", "type", "blanks").First(&card, cardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: card %d", ErrNotFound, cardID)
		}
		return 0, err
	}
	if card.Type != models.CardTypePrompt {
		return 0, fmt.Errorf("%w: card %d is not a prompt", ErrPreconditionFailed, cardID)
	}
	return card.Blanks, nil
}
