package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"deckparty/config"
	"deckparty/models"
)

// memoryStore keeps game records in a map and mimics the storage semantics
// the engine relies on: clones on read, scoped sub-entry writes, and
// compare-and-set phase guards.
type memoryStore struct {
	games map[string]*models.Game
}

func newMemoryStore() *memoryStore {
	return &memoryStore{games: map[string]*models.Game{}}
}

func cloneDoc(src, dest interface{}) {
	data, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		panic(err)
	}
}

func (m *memoryStore) Find(gameID string, includeHistory bool) (*models.Game, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	var out models.Game
	cloneDoc(g, &out)
	if !includeHistory {
		out.RoundHistory = nil
	}
	return &out, nil
}

func (m *memoryStore) Create(game *models.Game) error {
	if _, ok := m.games[game.ID]; ok {
		return fmt.Errorf("%w: game code %s already exists", ErrConflict, game.ID)
	}
	var stored models.Game
	cloneDoc(game, &stored)
	m.games[game.ID] = &stored
	return nil
}

func (m *memoryStore) UpdatePiles(gameID string, draw, discard models.PileMap) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	cloneDoc(draw, &g.DrawPile)
	cloneDoc(discard, &g.DiscardPile)
	return nil
}

func (m *memoryStore) UpdatePlayerData(gameID string, players models.PlayerMap) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	cloneDoc(players, &g.PlayerData)
	return nil
}

func (m *memoryStore) UpdatePlayer(gameID, playerID string, state *models.PlayerState) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	var stored models.PlayerState
	cloneDoc(state, &stored)
	g.PlayerData[playerID] = &stored
	return nil
}

func (m *memoryStore) RemovePlayerEntry(gameID, playerID string) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	delete(g.PlayerData, playerID)
	return nil
}

func (m *memoryStore) AdvancePhase(gameID, fromPhase, toPhase string, round int) (bool, error) {
	g, ok := m.games[gameID]
	if !ok {
		return false, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	if g.State.Phase != fromPhase || g.State.Round != round {
		return false, nil
	}
	g.State.Phase = toPhase
	return true, nil
}

func (m *memoryStore) AdvanceRound(gameID, fromPhase string, round int, next models.StateDoc, draw, discard models.PileMap, players models.PlayerMap) (bool, error) {
	g, ok := m.games[gameID]
	if !ok {
		return false, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	if g.State.Phase != fromPhase || g.State.Round != round {
		return false, nil
	}
	cloneDoc(next, &g.State)
	cloneDoc(draw, &g.DrawPile)
	cloneDoc(discard, &g.DiscardPile)
	cloneDoc(players, &g.PlayerData)
	return true, nil
}

func (m *memoryStore) SetSubmission(gameID, playerID string, cards []uint) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	if g.State.Submissions == nil {
		g.State.Submissions = map[string][]uint{}
	}
	g.State.Submissions[playerID] = append([]uint{}, cards...)
	return nil
}

func (m *memoryStore) RemoveSubmission(gameID, playerID string) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	delete(g.State.Submissions, playerID)
	return nil
}

func (m *memoryStore) AddSkipVote(gameID, playerID string) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	g.State.SkipVotes = append(g.State.SkipVotes, playerID)
	return nil
}

func (m *memoryStore) ClearSkipVotes(gameID string) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	g.State.SkipVotes = []string{}
	return nil
}

func (m *memoryStore) AppendRoundHistory(gameID string, entry models.RoundSummary) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	var stored models.RoundSummary
	cloneDoc(entry, &stored)
	g.RoundHistory = append(g.RoundHistory, stored)
	return nil
}

func (m *memoryStore) Delete(gameID string) error {
	delete(m.games, gameID)
	return nil
}

// fakeCatalog serves a fixed universe of cards: prompts 1..nPrompts (one
// blank each unless overridden) and responses 101..100+nResponses.
type fakeCatalog struct {
	prompts   map[uint]int
	responses []uint
}

func newFakeCatalog(nPrompts, nResponses int) *fakeCatalog {
	c := &fakeCatalog{prompts: map[uint]int{}}
	for i := 1; i <= nPrompts; i++ {
		c.prompts[uint(i)] = 1
	}
	for i := 1; i <= nResponses; i++ {
		c.responses = append(c.responses, uint(100+i))
	}
	return c
}

func (c *fakeCatalog) BuildDrawPile(excludeTags []uint) (models.PileMap, error) {
	prompts := make([]uint, 0, len(c.prompts))
	for i := 1; i <= len(c.prompts); i++ {
		prompts = append(prompts, uint(i))
	}
	return models.PileMap{
		models.CardTypePrompt:   prompts,
		models.CardTypeResponse: append([]uint{}, c.responses...),
	}, nil
}

func (c *fakeCatalog) PromptBlanks(cardID uint) (int, error) {
	blanks, ok := c.prompts[cardID]
	if !ok {
		return 0, fmt.Errorf("%w: card %d", ErrNotFound, cardID)
	}
	return blanks, nil
}

func newTestService(catalog *fakeCatalog) (*GameService, *memoryStore) {
	store := newMemoryStore()
	cfg := &config.Config{MinPlayers: 3, MaxPlayers: 8, HandSize: 5, WinScore: 3}
	svc := NewGameService(store, catalog, cfg, rand.New(rand.NewSource(42)))
	return svc, store
}

// setupGame creates a game and joins the remaining named players. Returned
// IDs are in join order, creator first.
func setupGame(t *testing.T, svc *GameService, names ...string) (string, []string) {
	t.Helper()
	game, creatorID, err := svc.CreateGame(&CreateGameRequest{Name: names[0]})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	ids := []string{creatorID}
	for _, name := range names[1:] {
		_, playerID, err := svc.JoinGame(game.ID, &JoinGameRequest{Name: name})
		if err != nil {
			t.Fatalf("join game as %s: %v", name, err)
		}
		ids = append(ids, playerID)
	}
	return game.ID, ids
}

func mustFind(t *testing.T, store *memoryStore, gameID string) *models.Game {
	t.Helper()
	g, err := store.Find(gameID, true)
	if err != nil {
		t.Fatalf("find game: %v", err)
	}
	return g
}

func findCzar(g *models.Game) string {
	id, _ := currentCzar(g.PlayerData)
	return id
}

// checkCardConservation asserts the core invariant: every card ID lives in
// exactly one of draw pile, discard pile, a hand, or an in-flight
// submission.
func checkCardConservation(t *testing.T, store *memoryStore, gameID string, catalog *fakeCatalog) {
	t.Helper()
	g := mustFind(t, store, gameID)

	responses := map[uint]int{}
	count := func(ids []uint) {
		for _, id := range ids {
			responses[id]++
		}
	}
	count(g.DrawPile[models.CardTypeResponse])
	count(g.DiscardPile[models.CardTypeResponse])
	for _, p := range g.PlayerData {
		count(p.Hand)
	}
	for _, sub := range g.State.Submissions {
		count(sub)
	}
	if len(responses) != len(catalog.responses) {
		t.Fatalf("response cards tracked = %d, want %d", len(responses), len(catalog.responses))
	}
	for id, n := range responses {
		if n != 1 {
			t.Fatalf("response card %d appears %d times", id, n)
		}
	}

	prompts := map[uint]int{}
	for _, id := range g.DrawPile[models.CardTypePrompt] {
		prompts[id]++
	}
	for _, id := range g.DiscardPile[models.CardTypePrompt] {
		prompts[id]++
	}
	if g.State.PromptCard != 0 {
		prompts[g.State.PromptCard]++
	}
	if len(prompts) != len(catalog.prompts) {
		t.Fatalf("prompt cards tracked = %d, want %d", len(prompts), len(catalog.prompts))
	}
	for id, n := range prompts {
		if n != 1 {
			t.Fatalf("prompt card %d appears %d times", id, n)
		}
	}
}

// playRound submits one card for every eligible player and has the czar
// pick the given winner.
func playRound(t *testing.T, svc *GameService, store *memoryStore, gameID, winnerID string) {
	t.Helper()
	g := mustFind(t, store, gameID)
	for _, id := range sortedByJoinOrder(g.PlayerData) {
		p := g.PlayerData[id]
		if p.IsCzar || p.IsPaused || p.IsRando || len(g.State.Submissions[id]) > 0 {
			continue
		}
		fresh := mustFind(t, store, gameID)
		hand := fresh.PlayerData[id].Hand
		if err := svc.SubmitCards(gameID, id, hand[:1]); err != nil {
			t.Fatalf("submit for %s: %v", id, err)
		}
	}
	g = mustFind(t, store, gameID)
	if g.State.Phase != models.PhaseJudging {
		t.Fatalf("phase = %s after all submissions, want judging", g.State.Phase)
	}
	if _, err := svc.PickWinner(gameID, findCzar(g), winnerID); err != nil {
		t.Fatalf("pick winner: %v", err)
	}
}

func TestCreateGameGeneratesCode(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)

	game, playerID, err := svc.CreateGame(&CreateGameRequest{Name: "alice"})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if len(game.ID) != 4 {
		t.Fatalf("code length = %d, want 4", len(game.ID))
	}
	for _, r := range game.ID {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", game.ID, r)
		}
	}
	g := mustFind(t, store, game.ID)
	if g.State.Phase != models.PhaseWaiting {
		t.Fatalf("phase = %s, want waiting", g.State.Phase)
	}
	if !g.PlayerData[playerID].IsCreator {
		t.Fatalf("creator flag not set on creating player")
	}
	checkCardConservation(t, store, game.ID, catalog)
}

// conflictStore refuses every insert, as if every code were taken.
type conflictStore struct{ memoryStore }

func (c *conflictStore) Create(game *models.Game) error {
	return fmt.Errorf("%w: game code %s already exists", ErrConflict, game.ID)
}

func TestCreateGameCodeSpaceExhausted(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	cfg := &config.Config{MinPlayers: 3, MaxPlayers: 8, HandSize: 5, WinScore: 3}
	store := &conflictStore{memoryStore{games: map[string]*models.Game{}}}
	svc := NewGameService(store, catalog, cfg, rand.New(rand.NewSource(1)))

	_, _, err := svc.CreateGame(&CreateGameRequest{Name: "alice"})
	if !errors.Is(err, ErrCodeGenerationExhausted) {
		t.Fatalf("err = %v, want ErrCodeGenerationExhausted", err)
	}
}

func TestStartGameRequiresMinimumRoster(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob")

	if _, err := svc.StartGame(gameID, ids[0]); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("start with 2 players: err = %v, want ErrPreconditionFailed", err)
	}

	_, carolID, err := svc.JoinGame(gameID, &JoinGameRequest{Name: "carol"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := svc.StartGame(gameID, carolID); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("start by non-creator: err = %v, want ErrPreconditionFailed", err)
	}

	game, err := svc.StartGame(gameID, ids[0])
	if err != nil {
		t.Fatalf("start with 3 players: %v", err)
	}
	if game.State.Phase != models.PhaseSubmitting || game.State.Round != 1 {
		t.Fatalf("state = %s round %d, want submitting round 1", game.State.Phase, game.State.Round)
	}

	g := mustFind(t, store, gameID)
	if czar := findCzar(g); czar != ids[0] {
		t.Fatalf("first czar = %s, want earliest joiner %s", czar, ids[0])
	}
	for id, p := range g.PlayerData {
		if len(p.Hand) != 5 {
			t.Fatalf("player %s hand size = %d, want 5", id, len(p.Hand))
		}
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestSubmitReplacesPriorSubmission(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	g := mustFind(t, store, gameID)
	hand := g.PlayerData[ids[1]].Hand
	if err := svc.SubmitCards(gameID, ids[1], hand[:1]); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if err := svc.SubmitCards(gameID, ids[1], hand[1:2]); err != nil {
		t.Fatalf("replacement submission: %v", err)
	}

	g = mustFind(t, store, gameID)
	sub := g.State.Submissions[ids[1]]
	if len(sub) != 1 || sub[0] != hand[1] {
		t.Fatalf("submission = %v, want [%d]", sub, hand[1])
	}
	if len(g.PlayerData[ids[1]].Hand) != 4 {
		t.Fatalf("hand size = %d after replacement, want 4", len(g.PlayerData[ids[1]].Hand))
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestSubmitPreconditions(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol")

	if err := svc.SubmitCards(gameID, ids[1], []uint{101}); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("submit before start: err = %v, want ErrPreconditionFailed", err)
	}
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	g := mustFind(t, store, gameID)
	czar := findCzar(g)
	if err := svc.SubmitCards(gameID, czar, g.PlayerData[czar].Hand[:1]); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("czar submit: err = %v, want ErrPreconditionFailed", err)
	}

	hand := g.PlayerData[ids[1]].Hand
	if err := svc.SubmitCards(gameID, ids[1], hand[:2]); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("wrong card count: err = %v, want ErrPreconditionFailed", err)
	}
	if err := svc.SubmitCards(gameID, ids[1], []uint{9999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("card not in hand: err = %v, want ErrNotFound", err)
	}
}

func TestFullRoundScenario(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	playRound(t, svc, store, gameID, ids[1])

	g := mustFind(t, store, gameID)
	if g.PlayerData[ids[1]].Score != 1 {
		t.Fatalf("winner score = %d, want 1", g.PlayerData[ids[1]].Score)
	}
	if len(g.RoundHistory) != 1 {
		t.Fatalf("round history entries = %d, want 1", len(g.RoundHistory))
	}
	if g.RoundHistory[0].Winner != ids[1] || g.RoundHistory[0].Czar != ids[0] {
		t.Fatalf("history entry = %+v, wrong winner or czar", g.RoundHistory[0])
	}
	if g.State.Phase != models.PhaseSubmitting || g.State.Round != 2 {
		t.Fatalf("state = %s round %d, want submitting round 2", g.State.Phase, g.State.Round)
	}
	if czar := findCzar(g); czar != ids[1] {
		t.Fatalf("round 2 czar = %s, want next joiner %s", czar, ids[1])
	}
	for id, p := range g.PlayerData {
		if len(p.Hand) != 5 {
			t.Fatalf("player %s hand size = %d after refill, want 5", id, len(p.Hand))
		}
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestAdvanceToJudgingIsIdempotent(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, id := range ids[1:] {
		g := mustFind(t, store, gameID)
		if err := svc.SubmitCards(gameID, id, g.PlayerData[id].Hand[:1]); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	before := mustFind(t, store, gameID)
	if before.State.Phase != models.PhaseJudging {
		t.Fatalf("phase = %s, want judging", before.State.Phase)
	}

	// A racing duplicate trigger must be a no-op.
	if err := svc.tryAdvanceToJudging(gameID); err != nil {
		t.Fatalf("duplicate advance: %v", err)
	}
	applied, err := store.AdvancePhase(gameID, models.PhaseSubmitting, models.PhaseJudging, 1)
	if err != nil {
		t.Fatalf("direct duplicate advance: %v", err)
	}
	if applied {
		t.Fatalf("duplicate phase advance applied, want no-op")
	}

	after := mustFind(t, store, gameID)
	if after.State.Phase != models.PhaseJudging || after.State.Round != before.State.Round {
		t.Fatalf("state changed by duplicate trigger: %+v", after.State)
	}
	if len(after.RoundHistory) != len(before.RoundHistory) {
		t.Fatalf("round history grew on duplicate trigger")
	}
}

func TestDuplicatePickWinnerRejected(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}
	playRound(t, svc, store, gameID, ids[1])

	// The czar's duplicate pick arrives after the round already completed.
	if _, err := svc.PickWinner(gameID, ids[0], ids[1]); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("duplicate pick: err = %v, want ErrPreconditionFailed", err)
	}
	g := mustFind(t, store, gameID)
	if len(g.RoundHistory) != 1 {
		t.Fatalf("round history entries = %d after duplicate pick, want 1", len(g.RoundHistory))
	}
}

func TestCzarRotationSkipsPaused(t *testing.T) {
	players := models.PlayerMap{
		"p1": {JoinOrder: 1},
		"p2": {JoinOrder: 2, IsPaused: true},
		"p3": {JoinOrder: 3},
		"p4": {JoinOrder: 4},
	}
	want := []string{"p3", "p4", "p1", "p3", "p4", "p1"}
	current := players["p1"]
	got := []string{}
	for range want {
		next := nextCzarAfter(players, current.JoinOrder)
		got = append(got, next)
		current = players[next]
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
}

func TestWinThresholdFinishesGame(t *testing.T) {
	catalog := newFakeCatalog(20, 80)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol", "dave")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Czar rotates p0, p1, p2 over the first three rounds, so p3 can win
	// every one of them. Win score is 3.
	for round := 1; round <= 3; round++ {
		playRound(t, svc, store, gameID, ids[3])
	}

	g := mustFind(t, store, gameID)
	if g.State.Phase != models.PhaseFinished {
		t.Fatalf("phase = %s, want finished", g.State.Phase)
	}
	if g.PlayerData[ids[3]].Score != 3 {
		t.Fatalf("winner score = %d, want 3", g.PlayerData[ids[3]].Score)
	}
	if len(g.RoundHistory) != 3 {
		t.Fatalf("round history entries = %d, want 3", len(g.RoundHistory))
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestDrawFromReshufflesDiscard(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, _ := newTestService(catalog)

	draw := models.PileMap{models.CardTypeResponse: {1, 2}}
	discard := models.PileMap{models.CardTypeResponse: {3, 4, 5, 6}}
	drawn, err := svc.drawFrom(draw, discard, models.CardTypeResponse, 5)
	if err != nil {
		t.Fatalf("draw with reshuffle: %v", err)
	}
	if len(drawn) != 5 {
		t.Fatalf("drawn = %d cards, want 5", len(drawn))
	}
	if drawn[0] != 1 || drawn[1] != 2 {
		t.Fatalf("drawn = %v, want the old pile consumed from the front first", drawn)
	}
	if len(discard[models.CardTypeResponse]) != 0 {
		t.Fatalf("discard pile = %v after reshuffle, want empty", discard[models.CardTypeResponse])
	}
	if len(draw[models.CardTypeResponse]) != 1 {
		t.Fatalf("draw pile = %v, want 1 card left", draw[models.CardTypeResponse])
	}

	_, err = svc.drawFrom(draw, discard, models.CardTypeResponse, 2)
	if !errors.Is(err, ErrDeckExhausted) {
		t.Fatalf("err = %v, want ErrDeckExhausted", err)
	}
}

func TestRefreshHandDeckExhaustedLeavesRecordUntouched(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)

	store.games["SPNT"] = &models.Game{
		ID: "SPNT",
		DrawPile: models.PileMap{
			models.CardTypePrompt:   {1},
			models.CardTypeResponse: {101},
		},
		DiscardPile: models.PileMap{
			models.CardTypePrompt:   {},
			models.CardTypeResponse: {},
		},
		PlayerData: models.PlayerMap{
			"player": {Name: "alice", Hand: []uint{102, 103}, IsCreator: true, JoinOrder: 1},
		},
		State: models.StateDoc{
			Phase:       models.PhaseSubmitting,
			Round:       1,
			PromptCard:  2,
			Submissions: map[string][]uint{},
			SkipVotes:   []string{},
		},
		Settings: models.SettingsDoc{MinPlayers: 3, MaxPlayers: 8, HandSize: 5, WinScore: 3},
	}

	err := svc.RefreshHand("SPNT", "player")
	if !errors.Is(err, ErrDeckExhausted) {
		t.Fatalf("err = %v, want ErrDeckExhausted", err)
	}

	g := mustFind(t, store, "SPNT")
	if len(g.PlayerData["player"].Hand) != 2 {
		t.Fatalf("hand = %v, want untouched", g.PlayerData["player"].Hand)
	}
	if len(g.DrawPile[models.CardTypeResponse]) != 1 || len(g.DiscardPile[models.CardTypeResponse]) != 0 {
		t.Fatalf("piles mutated by failed refresh")
	}
}

func TestRefreshHandCostsAPoint(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	store.games[gameID].PlayerData[ids[1]].Score = 2
	before := mustFind(t, store, gameID).PlayerData[ids[1]].Hand

	if err := svc.RefreshHand(gameID, ids[1]); err != nil {
		t.Fatalf("refresh hand: %v", err)
	}
	g := mustFind(t, store, gameID)
	if g.PlayerData[ids[1]].Score != 1 {
		t.Fatalf("score = %d after refresh, want 1", g.PlayerData[ids[1]].Score)
	}
	if len(g.PlayerData[ids[1]].Hand) != 5 {
		t.Fatalf("hand size = %d after refresh, want 5", len(g.PlayerData[ids[1]].Hand))
	}
	for _, old := range before {
		found := false
		for _, id := range g.DiscardPile[models.CardTypeResponse] {
			if id == old {
				found = true
			}
		}
		for _, id := range g.DrawPile[models.CardTypeResponse] {
			if id == old {
				found = true
			}
		}
		if !found {
			t.Fatalf("old hand card %d vanished", old)
		}
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestVoteSkipCzarNeedsQuorum(t *testing.T) {
	catalog := newFakeCatalog(20, 80)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol", "dave")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.VoteSkipCzar(gameID, ids[1]); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	g := mustFind(t, store, gameID)
	if czar := findCzar(g); czar != ids[0] {
		t.Fatalf("czar moved on a single vote")
	}
	if err := svc.VoteSkipCzar(gameID, ids[1]); !errors.Is(err, ErrConflict) {
		t.Fatalf("repeat vote: err = %v, want ErrConflict", err)
	}

	if err := svc.VoteSkipCzar(gameID, ids[2]); err != nil {
		t.Fatalf("second vote: %v", err)
	}
	g = mustFind(t, store, gameID)
	if czar := findCzar(g); czar != ids[1] {
		t.Fatalf("czar = %s after quorum, want %s", czar, ids[1])
	}
	if len(g.State.SkipVotes) != 0 {
		t.Fatalf("skip votes = %v after reassignment, want cleared", g.State.SkipVotes)
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestRemovePlayerFreesCards(t *testing.T) {
	catalog := newFakeCatalog(20, 80)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol", "dave")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.RemovePlayer(gameID, ids[1], ids[2]); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("remove by non-creator: err = %v, want ErrPreconditionFailed", err)
	}

	removedHand := mustFind(t, store, gameID).PlayerData[ids[2]].Hand
	if err := svc.RemovePlayer(gameID, ids[0], ids[2]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	g := mustFind(t, store, gameID)
	if _, ok := g.PlayerData[ids[2]]; ok {
		t.Fatalf("removed player still on roster")
	}
	for _, card := range removedHand {
		found := false
		for _, id := range g.DiscardPile[models.CardTypeResponse] {
			if id == card {
				found = true
			}
		}
		if !found {
			t.Fatalf("removed player's card %d not in discard pile", card)
		}
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestRemovedCzarIsReseated(t *testing.T) {
	catalog := newFakeCatalog(20, 80)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol", "dave")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Creator transfers host to dave so alice (the czar) can be removed.
	if err := svc.TransferHost(gameID, ids[0], ids[3]); err != nil {
		t.Fatalf("transfer host: %v", err)
	}
	if err := svc.RemovePlayer(gameID, ids[3], ids[0]); err != nil {
		t.Fatalf("remove czar: %v", err)
	}
	g := mustFind(t, store, gameID)
	if czar := findCzar(g); czar != ids[1] {
		t.Fatalf("czar = %s after removal, want %s", czar, ids[1])
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestLeaveRequiresHostTransfer(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol")

	if err := svc.LeaveGame(gameID, ids[0]); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("creator leave: err = %v, want ErrPreconditionFailed", err)
	}
	if err := svc.TransferHost(gameID, ids[0], ids[1]); err != nil {
		t.Fatalf("transfer host: %v", err)
	}
	if err := svc.LeaveGame(gameID, ids[0]); err != nil {
		t.Fatalf("leave after transfer: %v", err)
	}
	g := mustFind(t, store, gameID)
	if !g.PlayerData[ids[1]].IsCreator {
		t.Fatalf("creator flag did not move to %s", ids[1])
	}

	if err := svc.LeaveGame(gameID, ids[2]); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := svc.LeaveGame(gameID, ids[1]); err != nil {
		t.Fatalf("last player leave: %v", err)
	}
	if _, err := store.Find(gameID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record still exists after last player left")
	}
}

func TestLateJoinDealsHandAndSlotsRotation(t *testing.T) {
	catalog := newFakeCatalog(20, 60)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, daveID, err := svc.JoinGame(gameID, &JoinGameRequest{
		Name:         "dave",
		AfterPlayer:  ids[0],
		BeforePlayer: ids[1],
	})
	if err != nil {
		t.Fatalf("late join: %v", err)
	}
	g := mustFind(t, store, gameID)
	dave := g.PlayerData[daveID]
	if len(dave.Hand) != 5 {
		t.Fatalf("late joiner hand size = %d, want 5", len(dave.Hand))
	}
	a, b := g.PlayerData[ids[0]].JoinOrder, g.PlayerData[ids[1]].JoinOrder
	if dave.JoinOrder <= a || dave.JoinOrder >= b {
		t.Fatalf("join order = %v, want strictly between %v and %v", dave.JoinOrder, a, b)
	}
	checkCardConservation(t, store, gameID, catalog)
}

func TestRandoAutoSubmits(t *testing.T) {
	catalog := newFakeCatalog(20, 80)
	svc, store := newTestService(catalog)

	game, creatorID, err := svc.CreateGame(&CreateGameRequest{Name: "alice", UseRando: true})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	for _, name := range []string{"bob", "carol"} {
		if _, _, err := svc.JoinGame(game.ID, &JoinGameRequest{Name: name}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	if _, err := svc.StartGame(game.ID, creatorID); err != nil {
		t.Fatalf("start: %v", err)
	}

	g := mustFind(t, store, game.ID)
	randoID := ""
	for id, p := range g.PlayerData {
		if p.IsRando {
			randoID = id
		}
	}
	if randoID == "" {
		t.Fatalf("no rando seat on roster")
	}
	if len(g.State.Submissions[randoID]) != 1 {
		t.Fatalf("rando submission = %v, want 1 card", g.State.Submissions[randoID])
	}
	if czar := findCzar(g); czar == randoID {
		t.Fatalf("rando must never hold czar")
	}
	checkCardConservation(t, store, game.ID, catalog)
}

func TestPausedPlayerSkippedInSubmissionCount(t *testing.T) {
	catalog := newFakeCatalog(20, 80)
	svc, store := newTestService(catalog)
	gameID, ids := setupGame(t, svc, "alice", "bob", "carol", "dave")
	if _, err := svc.StartGame(gameID, ids[0]); err != nil {
		t.Fatalf("start: %v", err)
	}

	// bob and carol submit, dave idles. Pausing dave completes the round.
	for _, id := range ids[1:3] {
		g := mustFind(t, store, gameID)
		if err := svc.SubmitCards(gameID, id, g.PlayerData[id].Hand[:1]); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if g := mustFind(t, store, gameID); g.State.Phase != models.PhaseSubmitting {
		t.Fatalf("phase = %s with a player outstanding, want submitting", g.State.Phase)
	}

	if err := svc.SetPaused(gameID, ids[0], ids[3], true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	g := mustFind(t, store, gameID)
	if g.State.Phase != models.PhaseJudging {
		t.Fatalf("phase = %s after pausing the holdout, want judging", g.State.Phase)
	}
	if !g.PlayerData[ids[3]].IsPaused {
		t.Fatalf("pause flag not set")
	}
	if len(g.PlayerData[ids[3]].Hand) != 5 {
		t.Fatalf("paused player lost their hand")
	}
	checkCardConservation(t, store, gameID, catalog)
}
