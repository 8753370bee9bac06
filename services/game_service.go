package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand"
	"sort"
	"sync"
	"time"

	"deckparty/config"
	"deckparty/models"

	"github.com/google/uuid"
)

const (
	gameCodeLength  = 4
	maxCodeAttempts = 25
	skipVoteQuorum  = 2
	refreshHandCost = 1
	randoPlayerName = "Rando"
)

// codeAlphabet leaves out 0/O/1/I/L so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GameRecords is the game-record persistence contract the engine runs on.
// GameStore implements it against Postgres; tests substitute an in-memory
// record keeper.
type GameRecords interface {
	Find(gameID string, includeHistory bool) (*models.Game, error)
	Create(game *models.Game) error
	UpdatePiles(gameID string, draw, discard models.PileMap) error
	UpdatePlayerData(gameID string, players models.PlayerMap) error
	UpdatePlayer(gameID, playerID string, state *models.PlayerState) error
	RemovePlayerEntry(gameID, playerID string) error
	AdvancePhase(gameID, fromPhase, toPhase string, round int) (bool, error)
	AdvanceRound(gameID, fromPhase string, round int, next models.StateDoc, draw, discard models.PileMap, players models.PlayerMap) (bool, error)
	SetSubmission(gameID, playerID string, cards []uint) error
	RemoveSubmission(gameID, playerID string) error
	AddSkipVote(gameID, playerID string) error
	ClearSkipVotes(gameID string) error
	AppendRoundHistory(gameID string, entry models.RoundSummary) error
	Delete(gameID string) error
}

// CardCatalog is the slice of card content the engine needs at play time.
type CardCatalog interface {
	BuildDrawPile(excludeTags []uint) (models.PileMap, error)
	PromptBlanks(cardID uint) (int, error)
}

// GameService is the round state machine. Every operation re-reads the
// current record, checks its preconditions, and either applies the full
// transition or reports a structured rejection with the record untouched.
// Phase checks are the only cross-request concurrency control; transitions
// that race are designed so the loser becomes a no-op.
type GameService struct {
	store    GameRecords
	cards    CardCatalog
	defaults models.SettingsDoc

	mu  sync.Mutex
	rng *mrand.Rand
}

func NewGameService(store GameRecords, cards CardCatalog, cfg *config.Config, rng *mrand.Rand) *GameService {
	return &GameService{
		store: store,
		cards: cards,
		defaults: models.SettingsDoc{
			MinPlayers: cfg.MinPlayers,
			MaxPlayers: cfg.MaxPlayers,
			HandSize:   cfg.HandSize,
			WinScore:   cfg.WinScore,
		},
		rng: rng,
	}
}

type CreateGameRequest struct {
	Name        string `json:"name" binding:"required"`
	ExcludeTags []uint `json:"exclude_tags"`
	MaxPlayers  int    `json:"max_players"`
	WinScore    int    `json:"win_score"`
	HandSize    int    `json:"hand_size"`
	UseRando    bool   `json:"use_rando"`
}

type JoinGameRequest struct {
	Name string `json:"name" binding:"required"`
	// For a late join the caller names the two rotation neighbours the new
	// player slots between. Ignored while the game is still waiting.
	AfterPlayer  string `json:"after_player"`
	BeforePlayer string `json:"before_player"`
}

// CreateGame builds a filtered, shuffled deck and inserts a fresh record
// under a newly generated code, retrying on collisions up to a bound.
func (s *GameService) CreateGame(req *CreateGameRequest) (*models.Game, string, error) {
	settings := s.defaults
	if req.MaxPlayers > 0 {
		settings.MaxPlayers = req.MaxPlayers
	}
	if req.WinScore > 0 {
		settings.WinScore = req.WinScore
	}
	if req.HandSize > 0 {
		settings.HandSize = req.HandSize
	}
	settings.UseRando = req.UseRando
	if settings.MaxPlayers < settings.MinPlayers {
		return nil, "", fmt.Errorf("%w: max players %d below minimum roster %d",
			ErrPreconditionFailed, settings.MaxPlayers, settings.MinPlayers)
	}

	draw, err := s.cards.BuildDrawPile(req.ExcludeTags)
	if err != nil {
		return nil, "", err
	}
	if len(draw[models.CardTypePrompt]) == 0 ||
		len(draw[models.CardTypeResponse]) < settings.MaxPlayers*settings.HandSize {
		return nil, "", fmt.Errorf("%w: not enough cards left after tag filter", ErrPreconditionFailed)
	}
	s.shuffle(draw[models.CardTypePrompt])
	s.shuffle(draw[models.CardTypeResponse])

	playerID := uuid.NewString()
	players := models.PlayerMap{
		playerID: {
			Name:      req.Name,
			Hand:      []uint{},
			IsCreator: true,
			JoinOrder: 1,
		},
	}
	if settings.UseRando {
		players[uuid.NewString()] = &models.PlayerState{
			Name:      randoPlayerName,
			Hand:      []uint{},
			IsRando:   true,
			JoinOrder: 2,
		}
	}

	game := &models.Game{
		Tags:        models.UintList(req.ExcludeTags),
		DrawPile:    draw,
		DiscardPile: models.PileMap{models.CardTypePrompt: {}, models.CardTypeResponse: {}},
		PlayerData:  players,
		State: models.StateDoc{
			Phase:       models.PhaseWaiting,
			Round:       0,
			Submissions: map[string][]uint{},
			SkipVotes:   []string{},
		},
		Settings: settings,
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		game.ID = generateGameCode()
		err := s.store.Create(game)
		if err == nil {
			return game, playerID, nil
		}
		if errors.Is(err, ErrConflict) {
			continue
		}
		return nil, "", err
	}
	return nil, "", fmt.Errorf("%w: gave up after %d collisions", ErrCodeGenerationExhausted, maxCodeAttempts)
}

// JoinGame adds a player to the roster. Joining a running game deals a hand
// immediately and slots the newcomer into czar rotation between the two
// neighbours the request names.
func (s *GameService) JoinGame(gameID string, req *JoinGameRequest) (*models.Game, string, error) {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return nil, "", err
	}
	if game.State.Phase == models.PhaseFinished {
		return nil, "", fmt.Errorf("%w: game is finished", ErrPreconditionFailed)
	}
	if len(game.PlayerData) >= game.Settings.MaxPlayers {
		return nil, "", fmt.Errorf("%w: game is full", ErrPreconditionFailed)
	}
	for _, p := range game.PlayerData {
		if p.Name == req.Name {
			return nil, "", fmt.Errorf("%w: name %q already taken", ErrConflict, req.Name)
		}
	}

	player := &models.PlayerState{Name: req.Name, Hand: []uint{}}
	dealt := false

	if game.State.Phase == models.PhaseWaiting {
		maxOrder := 0.0
		for _, p := range game.PlayerData {
			if p.JoinOrder > maxOrder {
				maxOrder = p.JoinOrder
			}
		}
		player.JoinOrder = maxOrder + 1
	} else {
		after, ok := game.PlayerData[req.AfterPlayer]
		if !ok {
			return nil, "", fmt.Errorf("%w: rotation neighbour %q", ErrNotFound, req.AfterPlayer)
		}
		before, ok := game.PlayerData[req.BeforePlayer]
		if !ok {
			return nil, "", fmt.Errorf("%w: rotation neighbour %q", ErrNotFound, req.BeforePlayer)
		}
		player.JoinOrder = (after.JoinOrder + before.JoinOrder) / 2

		hand, err := s.drawFrom(game.DrawPile, game.DiscardPile, models.CardTypeResponse, game.Settings.HandSize)
		if err != nil {
			return nil, "", err
		}
		player.Hand = hand
		dealt = true
	}

	playerID := uuid.NewString()
	if dealt {
		if err := s.store.UpdatePiles(game.ID, game.DrawPile, game.DiscardPile); err != nil {
			return nil, "", err
		}
	}
	if err := s.store.UpdatePlayer(game.ID, playerID, player); err != nil {
		return nil, "", err
	}
	game.PlayerData[playerID] = player
	return game, playerID, nil
}

func (s *GameService) GetGame(gameID string, includeHistory bool) (*models.Game, error) {
	return s.store.Find(gameID, includeHistory)
}

func (s *GameService) GetHistory(gameID string) (models.HistoryList, error) {
	game, err := s.store.Find(gameID, true)
	if err != nil {
		return nil, err
	}
	return game.RoundHistory, nil
}

// StartGame deals initial hands, seats the first czar (earliest joiner) and
// opens round 1. Creator only, roster at or above the minimum.
func (s *GameService) StartGame(gameID, playerID string) (*models.Game, error) {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return nil, err
	}
	actor, ok := game.PlayerData[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if !actor.IsCreator {
		return nil, fmt.Errorf("%w: only the creator can start the game", ErrPreconditionFailed)
	}
	if game.State.Phase != models.PhaseWaiting {
		return nil, fmt.Errorf("%w: game already started", ErrPreconditionFailed)
	}
	humans := 0
	for _, p := range game.PlayerData {
		if !p.IsRando {
			humans++
		}
	}
	if humans < game.Settings.MinPlayers {
		return nil, fmt.Errorf("%w: need %d players, have %d",
			ErrPreconditionFailed, game.Settings.MinPlayers, humans)
	}

	for _, id := range sortedByJoinOrder(game.PlayerData) {
		hand, err := s.drawFrom(game.DrawPile, game.DiscardPile, models.CardTypeResponse, game.Settings.HandSize)
		if err != nil {
			return nil, err
		}
		game.PlayerData[id].Hand = hand
	}

	czarID := nextCzarAfter(game.PlayerData, 0)
	if czarID == "" {
		return nil, fmt.Errorf("%w: no player can hold czar", ErrPreconditionFailed)
	}
	game.PlayerData[czarID].IsCzar = true

	prompt, err := s.drawFrom(game.DrawPile, game.DiscardPile, models.CardTypePrompt, 1)
	if err != nil {
		return nil, err
	}
	next := models.StateDoc{
		Phase:       models.PhaseSubmitting,
		Round:       1,
		PromptCard:  prompt[0],
		Submissions: map[string][]uint{},
		SkipVotes:   []string{},
	}
	s.autoSubmitRandos(game, &next)

	applied, err := s.store.AdvanceRound(game.ID, models.PhaseWaiting, 0, next,
		game.DrawPile, game.DiscardPile, game.PlayerData)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: game already started", ErrPreconditionFailed)
	}
	game.State = next
	return game, nil
}

// SubmitCards plays one set of response cards for the round. A repeat
// submission in the same round replaces the earlier one; the earlier cards
// go back to the hand.
func (s *GameService) SubmitCards(gameID, playerID string, cardIDs []uint) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	player, ok := game.PlayerData[playerID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if game.State.Phase != models.PhaseSubmitting {
		return fmt.Errorf("%w: round is not accepting submissions", ErrPreconditionFailed)
	}
	if player.IsCzar {
		return fmt.Errorf("%w: the czar does not submit", ErrPreconditionFailed)
	}
	if player.IsPaused {
		return fmt.Errorf("%w: paused players sit the round out", ErrPreconditionFailed)
	}

	blanks, err := s.cards.PromptBlanks(game.State.PromptCard)
	if err != nil {
		return err
	}
	if len(cardIDs) != blanks {
		return fmt.Errorf("%w: prompt needs %d cards, got %d", ErrPreconditionFailed, blanks, len(cardIDs))
	}
	seen := map[uint]bool{}
	for _, id := range cardIDs {
		if seen[id] {
			return fmt.Errorf("%w: card %d played twice", ErrPreconditionFailed, id)
		}
		seen[id] = true
	}

	// The prior submission (if any) counts as playable again: replacing it
	// returns those cards to the hand first.
	prior := game.State.Submissions[playerID]
	playable := map[uint]bool{}
	for _, id := range player.Hand {
		playable[id] = true
	}
	for _, id := range prior {
		playable[id] = true
	}
	for _, id := range cardIDs {
		if !playable[id] {
			return fmt.Errorf("%w: card %d is not in hand", ErrNotFound, id)
		}
	}

	newHand := make([]uint, 0, len(player.Hand)+len(prior))
	for _, id := range player.Hand {
		if !seen[id] {
			newHand = append(newHand, id)
		}
	}
	for _, id := range prior {
		if !seen[id] {
			newHand = append(newHand, id)
		}
	}
	player.Hand = newHand

	if err := s.store.UpdatePlayer(game.ID, playerID, player); err != nil {
		return err
	}
	if err := s.store.SetSubmission(game.ID, playerID, cardIDs); err != nil {
		return err
	}
	return s.tryAdvanceToJudging(game.ID)
}

// ForceJudging is the czar's early-review override: it closes submissions
// before every eligible player has played.
func (s *GameService) ForceJudging(gameID, playerID string) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	player, ok := game.PlayerData[playerID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if !player.IsCzar {
		return fmt.Errorf("%w: only the czar can close submissions", ErrPreconditionFailed)
	}
	if game.State.Phase != models.PhaseSubmitting {
		return fmt.Errorf("%w: round is not accepting submissions", ErrPreconditionFailed)
	}
	if len(game.State.Submissions) == 0 {
		return fmt.Errorf("%w: nothing submitted yet", ErrPreconditionFailed)
	}
	_, err = s.store.AdvancePhase(game.ID, models.PhaseSubmitting, models.PhaseJudging, game.State.Round)
	return err
}

// PickWinner completes the round: the winner scores, played cards move to
// the discard pile, the history entry is appended, submitters draw back up,
// and either the next round opens with the czar rotated or the game
// finishes. The whole transition is guarded by a compare-and-set on
// (phase, round) so an overlapping duplicate pick is rejected cleanly.
func (s *GameService) PickWinner(gameID, playerID, winnerID string) (*models.Game, error) {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return nil, err
	}
	czar, ok := game.PlayerData[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if game.State.Phase != models.PhaseJudging {
		return nil, fmt.Errorf("%w: round is not being judged", ErrPreconditionFailed)
	}
	if !czar.IsCzar {
		return nil, fmt.Errorf("%w: only the czar picks the winner", ErrPreconditionFailed)
	}
	winner, ok := game.PlayerData[winnerID]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, winnerID)
	}
	if len(game.State.Submissions[winnerID]) == 0 {
		return nil, fmt.Errorf("%w: player %s submitted nothing this round", ErrPreconditionFailed, winnerID)
	}

	round := game.State.Round
	summary := models.RoundSummary{
		Round:       round,
		Czar:        playerID,
		PromptCard:  game.State.PromptCard,
		Submissions: map[string][]uint{},
		Winner:      winnerID,
		CompletedAt: time.Now().UTC(),
	}

	// Retire every submission and the prompt, then refill the submitters.
	for pid, cards := range game.State.Submissions {
		summary.Submissions[pid] = append([]uint{}, cards...)
		game.DiscardPile[models.CardTypeResponse] = append(game.DiscardPile[models.CardTypeResponse], cards...)
	}
	game.DiscardPile[models.CardTypePrompt] = append(game.DiscardPile[models.CardTypePrompt], game.State.PromptCard)

	for pid := range game.State.Submissions {
		p, ok := game.PlayerData[pid]
		if !ok {
			continue // removed mid-round; their cards are already discarded
		}
		short := game.Settings.HandSize - len(p.Hand)
		if short <= 0 {
			continue
		}
		drawn, err := s.drawFrom(game.DrawPile, game.DiscardPile, models.CardTypeResponse, short)
		if err != nil {
			return nil, err
		}
		p.Hand = append(p.Hand, drawn...)
	}

	winner.Score++

	var next models.StateDoc
	if winner.Score >= game.Settings.WinScore {
		next = models.StateDoc{
			Phase:       models.PhaseFinished,
			Round:       round,
			Submissions: map[string][]uint{},
			SkipVotes:   []string{},
		}
	} else {
		czar.IsCzar = false
		nextCzarID := nextCzarAfter(game.PlayerData, czar.JoinOrder)
		if nextCzarID == "" {
			return nil, fmt.Errorf("%w: no player can hold czar", ErrPreconditionFailed)
		}
		game.PlayerData[nextCzarID].IsCzar = true

		prompt, err := s.drawFrom(game.DrawPile, game.DiscardPile, models.CardTypePrompt, 1)
		if err != nil {
			return nil, err
		}
		next = models.StateDoc{
			Phase:       models.PhaseSubmitting,
			Round:       round + 1,
			PromptCard:  prompt[0],
			Submissions: map[string][]uint{},
			SkipVotes:   []string{},
		}
		s.autoSubmitRandos(game, &next)
	}

	applied, err := s.store.AdvanceRound(game.ID, models.PhaseJudging, round, next,
		game.DrawPile, game.DiscardPile, game.PlayerData)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: round already completed", ErrPreconditionFailed)
	}
	if err := s.store.AppendRoundHistory(game.ID, summary); err != nil {
		return nil, err
	}
	game.State = next
	return game, nil
}

// SetPaused pauses or resumes a player. Players may pause themselves; the
// creator may pause anyone. A paused player keeps score and hand but is
// skipped by submission counting and czar rotation.
func (s *GameService) SetPaused(gameID, actorID, targetID string, paused bool) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	actor, ok := game.PlayerData[actorID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, actorID)
	}
	target, ok := game.PlayerData[targetID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, targetID)
	}
	if actorID != targetID && !actor.IsCreator {
		return fmt.Errorf("%w: only the creator can pause other players", ErrPreconditionFailed)
	}
	if target.IsRando {
		return fmt.Errorf("%w: rando never idles", ErrPreconditionFailed)
	}
	if target.IsPaused == paused {
		return nil
	}

	target.IsPaused = paused
	wasCzar := target.IsCzar
	inRound := game.State.Phase == models.PhaseSubmitting || game.State.Phase == models.PhaseJudging
	if paused && wasCzar && inRound {
		target.IsCzar = false
	}
	if err := s.store.UpdatePlayer(game.ID, targetID, target); err != nil {
		return err
	}
	if paused && wasCzar && inRound {
		if err := s.reseatCzar(game, target.JoinOrder); err != nil {
			return err
		}
	}
	if paused && game.State.Phase == models.PhaseSubmitting {
		return s.tryAdvanceToJudging(game.ID)
	}
	return nil
}

// VoteSkipCzar registers one vote against an unresponsive czar. Two distinct
// eligible voters force a reassignment without penalty.
func (s *GameService) VoteSkipCzar(gameID, playerID string) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	voter, ok := game.PlayerData[playerID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if game.State.Phase != models.PhaseSubmitting && game.State.Phase != models.PhaseJudging {
		return fmt.Errorf("%w: no round in progress", ErrPreconditionFailed)
	}
	if voter.IsCzar {
		return fmt.Errorf("%w: the czar cannot vote on itself", ErrPreconditionFailed)
	}
	if voter.IsPaused || voter.IsRando {
		return fmt.Errorf("%w: not eligible to vote", ErrPreconditionFailed)
	}
	for _, v := range game.State.SkipVotes {
		if v == playerID {
			return fmt.Errorf("%w: already voted this round", ErrConflict)
		}
	}

	if err := s.store.AddSkipVote(game.ID, playerID); err != nil {
		return err
	}
	game, err = s.store.Find(gameID, false)
	if err != nil {
		return err
	}

	distinct := map[string]bool{}
	for _, v := range game.State.SkipVotes {
		p, ok := game.PlayerData[v]
		if ok && !p.IsCzar && !p.IsPaused && !p.IsRando {
			distinct[v] = true
		}
	}
	if len(distinct) < skipVoteQuorum {
		return nil
	}

	czarID, czar := currentCzar(game.PlayerData)
	if czarID == "" {
		return nil
	}
	czar.IsCzar = false
	if err := s.store.UpdatePlayer(game.ID, czarID, czar); err != nil {
		return err
	}
	if err := s.reseatCzar(game, czar.JoinOrder); err != nil {
		return err
	}
	return s.store.ClearSkipVotes(game.ID)
}

// RemovePlayer kicks a player (creator only). Their cards return to the
// discard pile; their ID is never reused.
func (s *GameService) RemovePlayer(gameID, actorID, targetID string) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	actor, ok := game.PlayerData[actorID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, actorID)
	}
	if !actor.IsCreator {
		return fmt.Errorf("%w: only the creator can remove players", ErrPreconditionFailed)
	}
	if actorID == targetID {
		return fmt.Errorf("%w: leave the game instead of removing yourself", ErrPreconditionFailed)
	}
	if _, ok := game.PlayerData[targetID]; !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, targetID)
	}
	return s.dropPlayer(game, targetID)
}

// TransferHost moves the creator flag. Required before the creator may leave
// while other players remain.
func (s *GameService) TransferHost(gameID, actorID, targetID string) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	actor, ok := game.PlayerData[actorID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, actorID)
	}
	if !actor.IsCreator {
		return fmt.Errorf("%w: only the creator can transfer the host role", ErrPreconditionFailed)
	}
	target, ok := game.PlayerData[targetID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, targetID)
	}
	if target.IsRando {
		return fmt.Errorf("%w: rando cannot host", ErrPreconditionFailed)
	}
	if actorID == targetID {
		return nil
	}

	actor.IsCreator = false
	target.IsCreator = true
	if err := s.store.UpdatePlayer(game.ID, actorID, actor); err != nil {
		return err
	}
	return s.store.UpdatePlayer(game.ID, targetID, target)
}

// LeaveGame removes the caller. The last human out deletes the record; a
// creator with players remaining must transfer the host role first.
func (s *GameService) LeaveGame(gameID, playerID string) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	player, ok := game.PlayerData[playerID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}

	othersRemain := false
	for id, p := range game.PlayerData {
		if id != playerID && !p.IsRando {
			othersRemain = true
			break
		}
	}
	if !othersRemain {
		return s.store.Delete(game.ID)
	}
	if player.IsCreator {
		return fmt.Errorf("%w: transfer the host role before leaving", ErrPreconditionFailed)
	}
	return s.dropPlayer(game, playerID)
}

// RefreshHand discards the caller's whole hand and redraws it, at the cost
// of one point (never below zero).
func (s *GameService) RefreshHand(gameID, playerID string) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	player, ok := game.PlayerData[playerID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if game.State.Phase != models.PhaseSubmitting {
		return fmt.Errorf("%w: hands can only be refreshed while submitting", ErrPreconditionFailed)
	}
	if len(game.State.Submissions[playerID]) > 0 {
		return fmt.Errorf("%w: submission already in flight", ErrConflict)
	}

	game.DiscardPile[models.CardTypeResponse] = append(game.DiscardPile[models.CardTypeResponse], player.Hand...)
	hand, err := s.drawFrom(game.DrawPile, game.DiscardPile, models.CardTypeResponse, game.Settings.HandSize)
	if err != nil {
		return err
	}
	player.Hand = hand
	if player.Score > 0 {
		player.Score -= refreshHandCost
	}

	if err := s.store.UpdatePiles(game.ID, game.DrawPile, game.DiscardPile); err != nil {
		return err
	}
	return s.store.UpdatePlayer(game.ID, playerID, player)
}

// dropPlayer frees a player's cards back to the discard pile, deletes the
// roster entry, reseats the czar when needed and re-checks round completion.
func (s *GameService) dropPlayer(game *models.Game, targetID string) error {
	target := game.PlayerData[targetID]

	freed := append([]uint{}, target.Hand...)
	freed = append(freed, game.State.Submissions[targetID]...)
	if len(freed) > 0 {
		game.DiscardPile[models.CardTypeResponse] = append(game.DiscardPile[models.CardTypeResponse], freed...)
		if err := s.store.UpdatePiles(game.ID, game.DrawPile, game.DiscardPile); err != nil {
			return err
		}
	}
	if err := s.store.RemoveSubmission(game.ID, targetID); err != nil {
		return err
	}
	if err := s.store.RemovePlayerEntry(game.ID, targetID); err != nil {
		return err
	}
	delete(game.PlayerData, targetID)
	delete(game.State.Submissions, targetID)

	inRound := game.State.Phase == models.PhaseSubmitting || game.State.Phase == models.PhaseJudging
	if target.IsCzar && inRound {
		if err := s.reseatCzar(game, target.JoinOrder); err != nil {
			return err
		}
	}
	if game.State.Phase == models.PhaseSubmitting {
		return s.tryAdvanceToJudging(game.ID)
	}
	return nil
}

// reseatCzar hands the czar role to the next eligible player after the given
// rotation position. A new czar's pending submission goes back to its hand.
func (s *GameService) reseatCzar(game *models.Game, afterOrder float64) error {
	nextID := nextCzarAfter(game.PlayerData, afterOrder)
	if nextID == "" {
		return fmt.Errorf("%w: no player can hold czar", ErrPreconditionFailed)
	}
	next := game.PlayerData[nextID]
	next.IsCzar = true
	if pending := game.State.Submissions[nextID]; len(pending) > 0 {
		next.Hand = append(next.Hand, pending...)
		delete(game.State.Submissions, nextID)
		if err := s.store.RemoveSubmission(game.ID, nextID); err != nil {
			return err
		}
	}
	return s.store.UpdatePlayer(game.ID, nextID, next)
}

// tryAdvanceToJudging re-reads the record and flips submitting to judging
// once every eligible player has submitted. The phase write is
// compare-and-set guarded, so the duplicate trigger of a race is a no-op.
func (s *GameService) tryAdvanceToJudging(gameID string) error {
	game, err := s.store.Find(gameID, false)
	if err != nil {
		return err
	}
	if game.State.Phase != models.PhaseSubmitting || !allSubmitted(game) {
		return nil
	}
	_, err = s.store.AdvancePhase(gameID, models.PhaseSubmitting, models.PhaseJudging, game.State.Round)
	return err
}

// autoSubmitRandos plays a random legal submission for every rando seat,
// straight out of the freshly dealt hands.
func (s *GameService) autoSubmitRandos(game *models.Game, next *models.StateDoc) {
	blanks, err := s.cards.PromptBlanks(next.PromptCard)
	if err != nil {
		blanks = 1
	}
	for id, p := range game.PlayerData {
		if !p.IsRando || p.IsPaused || len(p.Hand) < blanks {
			continue
		}
		picked := s.pickRandom(p.Hand, blanks)
		chosen := map[uint]bool{}
		for _, c := range picked {
			chosen[c] = true
		}
		rest := make([]uint, 0, len(p.Hand)-blanks)
		for _, c := range p.Hand {
			if !chosen[c] {
				rest = append(rest, c)
			}
		}
		p.Hand = rest
		next.Submissions[id] = picked
	}
}

// drawFrom takes n cards off the front of the draw pile, first folding the
// shuffled discard pile back in when the draw pile runs short. Both piles
// short means DeckExhausted; the caller sees the error instead of a short
// deal.
func (s *GameService) drawFrom(draw, discard models.PileMap, cardType string, n int) ([]uint, error) {
	pile := draw[cardType]
	if len(pile) < n {
		spare := discard[cardType]
		if len(pile)+len(spare) < n {
			return nil, fmt.Errorf("%w: need %d %s cards, %d left",
				ErrDeckExhausted, n, cardType, len(pile)+len(spare))
		}
		reshuffled := append([]uint{}, spare...)
		s.shuffle(reshuffled)
		pile = append(append([]uint{}, pile...), reshuffled...)
		discard[cardType] = []uint{}
	}
	drawn := append([]uint{}, pile[:n]...)
	draw[cardType] = append([]uint{}, pile[n:]...)
	return drawn, nil
}

func (s *GameService) shuffle(ids []uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

func (s *GameService) pickRandom(ids []uint, n int) []uint {
	s.mu.Lock()
	perm := s.rng.Perm(len(ids))
	s.mu.Unlock()
	picked := make([]uint, 0, n)
	for _, idx := range perm[:n] {
		picked = append(picked, ids[idx])
	}
	return picked
}

// allSubmitted reports whether every eligible player (not czar, not paused)
// has an in-flight submission.
func allSubmitted(game *models.Game) bool {
	eligible := 0
	for id, p := range game.PlayerData {
		if p.IsCzar || p.IsPaused {
			continue
		}
		eligible++
		if len(game.State.Submissions[id]) == 0 {
			return false
		}
	}
	return eligible > 0
}

func currentCzar(players models.PlayerMap) (string, *models.PlayerState) {
	for id, p := range players {
		if p.IsCzar {
			return id, p
		}
	}
	return "", nil
}

// nextCzarAfter walks the roster in join order, wrapping around, and returns
// the first player past the given position who can hold czar (present, not
// paused, not rando).
func nextCzarAfter(players models.PlayerMap, afterOrder float64) string {
	ids := sortedByJoinOrder(players)
	eligible := func(id string) bool {
		p := players[id]
		return !p.IsPaused && !p.IsRando
	}
	for _, id := range ids {
		if players[id].JoinOrder > afterOrder && eligible(id) {
			return id
		}
	}
	for _, id := range ids {
		if eligible(id) {
			return id
		}
	}
	return ""
}

func sortedByJoinOrder(players models.PlayerMap) []string {
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := players[ids[i]], players[ids[j]]
		if a.JoinOrder != b.JoinOrder {
			return a.JoinOrder < b.JoinOrder
		}
		return ids[i] < ids[j]
	})
	return ids
}

func generateGameCode() string {
	b := make([]byte, gameCodeLength)
	rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
