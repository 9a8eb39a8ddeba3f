package session

import (
	"context"
	"errors"
	"sync"

	"github.com/alexdean/worst-idea/internal/identity"
	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/store"
)

// PlayerView is the player role's full derived view state. It is recomputed
// from the latest snapshot of every subscribed document on each change, never
// patched incrementally.
type PlayerView struct {
	GameID            string
	Stage             model.Stage
	Joined            bool
	Name              string
	IsActive          bool
	Question          *model.Question
	SubmittedAnswerID *int
	ActivePlayerCount int
}

// PlayerClient is the player role: it lists joinable games, runs the two-step
// join, resumes a persisted game, submits answers, and quits.
type PlayerClient struct {
	docs      store.DocumentStore
	local     LocalStore
	principal model.Principal

	mu        sync.Mutex
	gameID    string
	game      *model.Game
	player    *model.Player
	answer    *model.PlayerAnswer
	questions map[string]model.Question
	view      PlayerView
	onChange  func(PlayerView)
	cancels   []func()
}

func NewPlayerClient(sc Context) *PlayerClient {
	return &PlayerClient{
		docs:      sc.Docs,
		local:     sc.Local,
		principal: sc.Principal,
		questions: make(map[string]model.Question),
	}
}

// OnChange registers a callback fired with the recomputed view after every
// committed snapshot.
func (c *PlayerClient) OnChange(fn func(PlayerView)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// View returns the current derived view state.
func (c *PlayerClient) View() PlayerView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// ListOpenGames lists games a player could join. Works unauthenticated; the
// lobby is public.
func (c *PlayerClient) ListOpenGames(ctx context.Context) ([]model.Game, error) {
	snaps, err := c.docs.Query(ctx, store.Games(), store.Where{Field: "current_stage", Equals: string(model.StageJoining)})
	if err != nil {
		return nil, err
	}
	games := make([]model.Game, 0, len(snaps))
	for _, snap := range snaps {
		var game model.Game
		if err := store.Decode(snap.Doc, &game); err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, nil
}

// Join is step two of the login protocol: step one (identity acquisition)
// must already have produced the principal held by this client. The player
// document write is gated by the joining-stage rule; a rejection is returned
// as-is and nothing is persisted or subscribed.
func (c *PlayerClient) Join(ctx context.Context, gameID, name string) error {
	if !c.principal.Authenticated() {
		return ErrNotSignedIn
	}

	doc := store.Document{
		"name":      name,
		"is_active": true,
	}
	ref := store.PlayerRef(gameID, c.principal.ID)
	if err := c.docs.Set(identity.WithPrincipal(ctx, c.principal), ref, doc); err != nil {
		return err
	}

	if err := c.local.Set(gameIDKey, gameID); err != nil {
		return err
	}
	return c.attach(ctx, gameID)
}

// Resume re-subscribes to a previously joined game using the persisted game
// id, skipping the join flow. Returns false when nothing was persisted. If the
// identity provider issued a new principal since the join, the old player
// document is orphaned and the resumed view simply shows no player record;
// writes against it will be rejected.
func (c *PlayerClient) Resume(ctx context.Context) (bool, error) {
	gameID, ok := c.local.Get(gameIDKey)
	if !ok {
		return false, nil
	}
	if err := c.attach(ctx, gameID); err != nil {
		return true, err
	}
	return true, nil
}

// SubmitAnswer writes this player's answer for the active question. The write
// is evaluated against the committed game stage, not this client's cached
// view, so a stale client gets a late rejection rather than a corrupted game.
// The view is never updated optimistically; it changes only when the
// committed answer document comes back through the subscription.
func (c *PlayerClient) SubmitAnswer(ctx context.Context, answerID int) error {
	if !c.principal.Authenticated() {
		return ErrNotSignedIn
	}
	c.mu.Lock()
	gameID := c.gameID
	c.mu.Unlock()
	if gameID == "" {
		return errors.New("not in a game")
	}

	ref := store.PlayerAnswerRef(gameID, c.principal.ID)
	doc := store.Document{"answer_id": answerID}
	return c.docs.Set(identity.WithPrincipal(ctx, c.principal), ref, doc)
}

// Quit signs out and forgets the persisted game. The player document is left
// behind; quitting players remain visible as having played.
func (c *PlayerClient) Quit() error {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.gameID = ""
	c.game = nil
	c.player = nil
	c.answer = nil
	c.principal = model.Principal{}
	c.view = PlayerView{}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return c.local.Delete(gameIDKey)
}

// attach loads the current snapshots and establishes the subscriptions for
// one game.
func (c *PlayerClient) attach(ctx context.Context, gameID string) error {
	c.mu.Lock()
	c.gameID = gameID
	c.mu.Unlock()

	gameDoc, err := c.docs.Get(ctx, store.GameRef(gameID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	questions, err := c.docs.Query(ctx, store.Questions(gameID))
	if err != nil {
		return err
	}

	playerDoc, err := c.docs.Get(ctx, store.PlayerRef(gameID, c.principal.ID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	answerDoc, err := c.docs.Get(ctx, store.PlayerAnswerRef(gameID, c.principal.ID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	c.mu.Lock()
	for _, snap := range questions {
		var q model.Question
		if store.Decode(snap.Doc, &q) == nil {
			c.questions[snap.Ref.DocID] = q
		}
	}
	c.mu.Unlock()

	c.applyGame(gameDoc)
	c.applyPlayer(playerDoc)
	c.applyAnswer(answerDoc)

	c.watch(store.GameRef(gameID), c.applyGame)
	c.watch(store.PlayerRef(gameID, c.principal.ID), c.applyPlayer)
	c.watch(store.PlayerAnswerRef(gameID, c.principal.ID), c.applyAnswer)
	return nil
}

// watch subscribes to one document and feeds snapshots to a reducer until the
// subscription is cancelled.
func (c *PlayerClient) watch(ref store.Ref, apply func(store.Document)) {
	ch, cancel := c.docs.Subscribe(ref)
	c.mu.Lock()
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()

	go func() {
		for doc := range ch {
			apply(doc)
		}
	}()
}

func (c *PlayerClient) applyGame(doc store.Document) {
	c.mu.Lock()
	if doc == nil {
		c.game = nil
	} else {
		var game model.Game
		if store.Decode(doc, &game) == nil {
			c.game = &game
		}
	}
	gameID := c.gameID
	var missing string
	if c.game != nil && c.game.ActiveQuestionID != "" {
		if _, ok := c.questions[c.game.ActiveQuestionID]; !ok {
			missing = c.game.ActiveQuestionID
		}
	}
	c.mu.Unlock()

	// The active question may have been seeded after we loaded the
	// questions collection.
	if missing != "" {
		if qdoc, err := c.docs.Get(context.Background(), store.QuestionRef(gameID, missing)); err == nil {
			var q model.Question
			if store.Decode(qdoc, &q) == nil {
				c.mu.Lock()
				c.questions[missing] = q
				c.mu.Unlock()
			}
		}
	}
	c.recompute()
}

func (c *PlayerClient) applyPlayer(doc store.Document) {
	c.mu.Lock()
	if doc == nil {
		c.player = nil
	} else {
		var player model.Player
		if store.Decode(doc, &player) == nil {
			c.player = &player
		}
	}
	c.mu.Unlock()
	c.recompute()
}

func (c *PlayerClient) applyAnswer(doc store.Document) {
	c.mu.Lock()
	if doc == nil {
		c.answer = nil
	} else {
		var answer model.PlayerAnswer
		if store.Decode(doc, &answer) == nil {
			c.answer = &answer
		}
	}
	c.mu.Unlock()
	c.recompute()
}

// recompute rebuilds the whole view from the latest snapshots. Each document's
// snapshot is independently authoritative; nothing here assumes any cross-
// document delivery order.
func (c *PlayerClient) recompute() {
	c.mu.Lock()
	view := PlayerView{GameID: c.gameID}
	if c.game != nil {
		view.Stage = c.game.CurrentStage
		view.ActivePlayerCount = c.game.ActivePlayerCount
		if c.game.ActiveQuestionID != "" {
			if q, ok := c.questions[c.game.ActiveQuestionID]; ok {
				view.Question = &q
			}
		}
	}
	if c.player != nil {
		view.Joined = true
		view.Name = c.player.Name
		view.IsActive = c.player.IsActive
	}
	if c.answer != nil {
		answerID := c.answer.AnswerID
		view.SubmittedAnswerID = &answerID
	}
	c.view = view
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(view)
	}
}
