package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"deckparty/models"

	"gorm.io/gorm"
)

// ContentService is the admin surface over card content. It never runs on
// the game-serving hot path; games reference cards by ID only.
type ContentService struct {
	db *gorm.DB
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{db: db}
}

type CreateCardRequest struct {
	Type   string `json:"type" binding:"required,oneof=prompt response"`
	Text   string `json:"text" binding:"required"`
	Blanks int    `json:"blanks"`
	Level  string `json:"level"`
	PackID uint   `json:"pack_id"`
	TagIDs []uint `json:"tag_ids"`
}

type UpdateCardRequest struct {
	Text   string  `json:"text"`
	Blanks int     `json:"blanks"`
	Level  string  `json:"level"`
	TagIDs *[]uint `json:"tag_ids"`
}

func (s *ContentService) CreateCard(req *CreateCardRequest) (*models.Card, error) {
	card := models.Card{
		Type:   req.Type,
		Text:   req.Text,
		Blanks: req.Blanks,
		Level:  req.Level,
		PackID: req.PackID,
	}
	if card.Blanks <= 0 {
		card.Blanks = countBlanks(card.Text)
	}
	if card.Level == "" {
		card.Level = models.LevelBasic
	}
	if len(req.TagIDs) > 0 {
		var tags []models.Tag
		if err := s.db.Find(&tags, req.TagIDs).Error; err != nil {
			return nil, err
		}
		card.Tags = tags
	}
	if err := s.db.Create(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (s *ContentService) GetCard(cardID uint) (*models.Card, error) {
	var card models.Card
	if err := s.db.Preload("Tags").First(&card, cardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: card %d", ErrNotFound, cardID)
		}
		return nil, err
	}
	return &card, nil
}

func (s *ContentService) UpdateCard(cardID uint, req *UpdateCardRequest) (*models.Card, error) {
	card, err := s.GetCard(cardID)
	if err != nil {
		return nil, err
	}
	if req.Text != "" {
		card.Text = req.Text
	}
	if req.Blanks > 0 {
		card.Blanks = req.Blanks
	}
	if req.Level != "" {
		card.Level = req.Level
	}
	if err := s.db.Save(card).Error; err != nil {
		return nil, err
	}
	if req.TagIDs != nil {
		var tags []models.Tag
		if len(*req.TagIDs) > 0 {
			if err := s.db.Find(&tags, *req.TagIDs).Error; err != nil {
				return nil, err
			}
		}
		if err := s.db.Model(card).Association("Tags").Replace(tags); err != nil {
			return nil, err
		}
	}
	return s.GetCard(cardID)
}

func (s *ContentService) DeleteCard(cardID uint) error {
	if _, err := s.GetCard(cardID); err != nil {
		return err
	}
	return s.db.Delete(&models.Card{}, cardID).Error
}

// ListCards filters by type and pack; zero values mean no filter.
func (s *ContentService) ListCards(cardType string, packID uint) ([]models.Card, error) {
	var cards []models.Card
	q := s.db.Preload("Tags").Order("id")
	if cardType != "" {
		q = q.Where("type = ?", cardType)
	}
	if packID != 0 {
		q = q.Where("pack_id = ?", packID)
	}
	err := q.Find(&cards).Error
	return cards, err
}

func (s *ContentService) CreateTag(name string) (*models.Tag, error) {
	tag := models.Tag{Name: name}
	if err := s.db.Create(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: tag %q already exists", ErrConflict, name)
		}
		return nil, err
	}
	return &tag, nil
}

func (s *ContentService) ListTags() ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.Order("name").Find(&tags).Error
	return tags, err
}

func (s *ContentService) DeleteTag(tagID uint) error {
	return s.db.Delete(&models.Tag{}, tagID).Error
}

func (s *ContentService) CreatePack(name, description string) (*models.Pack, error) {
	pack := models.Pack{Name: name, Description: description}
	if err := s.db.Create(&pack).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: pack %q already exists", ErrConflict, name)
		}
		return nil, err
	}
	return &pack, nil
}

func (s *ContentService) ListPacks() ([]models.Pack, error) {
	var packs []models.Pack
	err := s.db.Order("name").Find(&packs).Error
	return packs, err
}

func (s *ContentService) DeletePack(packID uint) error {
	return s.db.Delete(&models.Pack{}, packID).Error
}

// ImportCards loads a tagged card CSV (text, level, tag, tag, ...) into one
// pack. Tag names are created on first sight. Returns the number of cards
// imported.
func (s *ContentService) ImportCards(cardType string, packID uint, r io.Reader) (int, error) {
	if cardType != models.CardTypePrompt && cardType != models.CardTypeResponse {
		return 0, fmt.Errorf("%w: unknown card type %q", ErrPreconditionFailed, cardType)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	tagCache := map[string]models.Tag{}
	imported := 0

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for line := 0; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("csv line %d: %w", line+1, err)
		}
		if line == 0 || len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue // header or blank row
		}

		card := models.Card{
			Type:   cardType,
			Text:   strings.TrimSpace(row[0]),
			Level:  models.LevelBasic,
			PackID: packID,
		}
		card.Blanks = countBlanks(card.Text)
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			card.Level = strings.ToLower(strings.TrimSpace(row[1]))
		}
		for _, name := range row[2:] {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			tag, ok := tagCache[name]
			if !ok {
				if err := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
					tx.Rollback()
					return 0, err
				}
				tagCache[name] = tag
			}
			card.Tags = append(card.Tags, tag)
		}

		if err := tx.Create(&card).Error; err != nil {
			tx.Rollback()
			return 0, err
		}
		imported++
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return imported, nil
}

var blankRuns = regexp.MustCompile(`_+`)

// countBlanks counts the fill-in slots in a prompt's text. Prompts without an
// explicit blank ("Why can't I sleep at night?") call for one response card.
func countBlanks(text string) int {
	n := len(blankRuns.FindAllString(text, -1))
	if n == 0 {
		return 1
	}
	return n
}
