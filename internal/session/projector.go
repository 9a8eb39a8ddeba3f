package session

import (
	"context"
	"errors"
	"sync"

	"github.com/alexdean/worst-idea/internal/aggregate"
	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/store"
)

// OptionView is one answer option as the projector renders it: label, live
// count, percentage of all submitted answers, and whether the leader picked it.
type OptionView struct {
	Label      string
	Count      int
	Percent    int
	LeaderPick bool
}

// ProjectorView is the projector role's full derived view state. Counts and
// percentages come from the denormalized summary on the game document; the
// projector never scans per-player answer documents.
type ProjectorView struct {
	GameID                string
	Stage                 model.Stage
	Question              *model.Question
	Options               []OptionView
	ActivePlayerCount     int
	PrevActivePlayerCount int
	LeaderName            string
}

// ProjectorClient is the shared display role. It subscribes to the game
// document, and to the leader's player and answer documents whenever a leader
// is set.
type ProjectorClient struct {
	docs  store.DocumentStore
	local LocalStore

	mu              sync.Mutex
	gameID          string
	game            *model.Game
	leader          *model.Player
	leaderAnswer    *model.PlayerAnswer
	leaderID        string
	questions       map[string]model.Question
	prevActiveCount int
	view            ProjectorView
	onChange        func(ProjectorView)
	cancels         []func()
	leaderCancels   []func()
}

func NewProjectorClient(sc Context) *ProjectorClient {
	return &ProjectorClient{
		docs:      sc.Docs,
		local:     sc.Local,
		questions: make(map[string]model.Question),
	}
}

func (c *ProjectorClient) OnChange(fn func(ProjectorView)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *ProjectorClient) View() ProjectorView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Watch attaches the projector to a game and remembers it for resumption.
func (c *ProjectorClient) Watch(ctx context.Context, gameID string) error {
	if err := c.local.Set(gameIDKey, gameID); err != nil {
		return err
	}
	return c.attach(ctx, gameID)
}

// Resume re-attaches to the persisted game, if any.
func (c *ProjectorClient) Resume(ctx context.Context) (bool, error) {
	gameID, ok := c.local.Get(gameIDKey)
	if !ok {
		return false, nil
	}
	return true, c.attach(ctx, gameID)
}

// Quit releases all subscriptions and clears the persisted game.
func (c *ProjectorClient) Quit() error {
	c.mu.Lock()
	cancels := append(c.cancels, c.leaderCancels...)
	c.cancels = nil
	c.leaderCancels = nil
	c.gameID = ""
	c.game = nil
	c.leader = nil
	c.leaderAnswer = nil
	c.leaderID = ""
	c.view = ProjectorView{}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return c.local.Delete(gameIDKey)
}

func (c *ProjectorClient) attach(ctx context.Context, gameID string) error {
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
	c.mu.Lock()
	for _, snap := range questions {
		var q model.Question
		if store.Decode(snap.Doc, &q) == nil {
			c.questions[snap.Ref.DocID] = q
		}
	}
	c.mu.Unlock()

	c.applyGame(gameDoc)

	ch, cancel := c.docs.Subscribe(store.GameRef(gameID))
	c.mu.Lock()
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()
	go func() {
		for doc := range ch {
			c.applyGame(doc)
		}
	}()
	return nil
}

func (c *ProjectorClient) applyGame(doc store.Document) {
	c.mu.Lock()
	if doc == nil {
		c.game = nil
	} else {
		var game model.Game
		if store.Decode(doc, &game) == nil {
			if c.game != nil && game.ActivePlayerCount != c.game.ActivePlayerCount {
				c.prevActiveCount = c.game.ActivePlayerCount
			}
			c.game = &game
		}
	}

	var leaderID, gameID string
	if c.game != nil {
		leaderID = c.game.LeaderPlayerID
	}
	gameID = c.gameID
	resubscribe := leaderID != c.leaderID
	c.mu.Unlock()

	if resubscribe {
		c.watchLeader(gameID, leaderID)
	}
	c.recompute()
}

// watchLeader swaps the leader player and answer subscriptions when the
// leader changes. Old subscriptions are released; the projector never holds
// dangling listeners.
func (c *ProjectorClient) watchLeader(gameID, leaderID string) {
	c.mu.Lock()
	old := c.leaderCancels
	c.leaderCancels = nil
	c.leaderID = leaderID
	c.leader = nil
	c.leaderAnswer = nil
	c.mu.Unlock()

	for _, cancel := range old {
		cancel()
	}
	if leaderID == "" {
		c.recompute()
		return
	}

	if doc, err := c.docs.Get(context.Background(), store.PlayerRef(gameID, leaderID)); err == nil {
		c.applyLeader(doc)
	}
	if doc, err := c.docs.Get(context.Background(), store.PlayerAnswerRef(gameID, leaderID)); err == nil {
		c.applyLeaderAnswer(doc)
	}

	playerCh, cancelPlayer := c.docs.Subscribe(store.PlayerRef(gameID, leaderID))
	answerCh, cancelAnswer := c.docs.Subscribe(store.PlayerAnswerRef(gameID, leaderID))
	c.mu.Lock()
	c.leaderCancels = append(c.leaderCancels, cancelPlayer, cancelAnswer)
	c.mu.Unlock()

	go func() {
		for doc := range playerCh {
			c.applyLeader(doc)
		}
	}()
	go func() {
		for doc := range answerCh {
			c.applyLeaderAnswer(doc)
		}
	}()
}

func (c *ProjectorClient) applyLeader(doc store.Document) {
	c.mu.Lock()
	if doc == nil {
		c.leader = nil
	} else {
		var player model.Player
		if store.Decode(doc, &player) == nil {
			c.leader = &player
		}
	}
	c.mu.Unlock()
	c.recompute()
}

func (c *ProjectorClient) applyLeaderAnswer(doc store.Document) {
	c.mu.Lock()
	if doc == nil {
		c.leaderAnswer = nil
	} else {
		var answer model.PlayerAnswer
		if store.Decode(doc, &answer) == nil {
			c.leaderAnswer = &answer
		}
	}
	c.mu.Unlock()
	c.recompute()
}

func (c *ProjectorClient) recompute() {
	c.mu.Lock()
	view := ProjectorView{GameID: c.gameID, PrevActivePlayerCount: c.prevActiveCount}
	if c.game != nil {
		view.Stage = c.game.CurrentStage
		view.ActivePlayerCount = c.game.ActivePlayerCount

		if c.game.ActiveQuestionID != "" {
			if q, ok := c.questions[c.game.ActiveQuestionID]; ok {
				view.Question = &q
				summary := aggregate.FromDocument(c.game.Summary)
				view.Options = make([]OptionView, len(q.Answers))
				for i, label := range q.Answers {
					view.Options[i] = OptionView{
						Label:      label,
						Count:      summary.Count(i),
						Percent:    summary.Percent(i),
						LeaderPick: c.leaderAnswer != nil && c.leaderAnswer.AnswerID == i,
					}
				}
			}
		}
	}
	if c.leader != nil {
		view.LeaderName = c.leader.Name
	}
	c.view = view
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(view)
	}
}
