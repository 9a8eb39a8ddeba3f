package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alexdean/worst-idea/internal/aggregate"
	"github.com/alexdean/worst-idea/internal/cache"
	"github.com/alexdean/worst-idea/internal/identity"
	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/store"
)

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameExists        = errors.New("game already exists")
	ErrIllegalTransition = errors.New("illegal stage transition")
)

// GameService is the trusted-operator path: it owns the game document's
// lifecycle, the stage machine, and the denormalized aggregates. All writes go
// through the guarded store under the operator principal, so even the trusted
// writer is checked by the rule engine.
type GameService struct {
	store    store.DocumentStore
	operator model.Principal
	lobby    cache.LobbyCache
}

// NewGameService creates a new game service
func NewGameService(docs store.DocumentStore, operator model.Principal) *GameService {
	return &GameService{
		store:    docs,
		operator: operator,
	}
}

// SetLobbyCache wires the Redis lobby cache; game-document mutations
// invalidate it so the public read surface never serves a stale stage for
// long.
func (s *GameService) SetLobbyCache(lobby cache.LobbyCache) {
	s.lobby = lobby
}

func (s *GameService) invalidate(ctx context.Context, gameID string) {
	if s.lobby == nil {
		return
	}
	if err := s.lobby.InvalidateGame(ctx, gameID); err != nil {
		return
	}
	_ = s.lobby.InvalidateOpenGames(ctx)
}

// asOperator tags the context with the operator identity for the rule engine.
func (s *GameService) asOperator(ctx context.Context) context.Context {
	return identity.WithPrincipal(ctx, s.operator)
}

// CreateGame creates a game in the joining stage. The title is the join code
// and the document id.
func (s *GameService) CreateGame(ctx context.Context, title string) (*model.Game, error) {
	ref := store.GameRef(title)
	if _, err := s.store.Get(ctx, ref); err == nil {
		return nil, ErrGameExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	game := &model.Game{
		Title:        title,
		CurrentStage: model.StageJoining,
		CreatedAt:    time.Now().UTC(),
	}
	doc, err := store.Encode(game)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(s.asOperator(ctx), ref, doc); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	s.invalidate(ctx, title)
	return game, nil
}

// GetGame loads one game document.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	doc, err := s.store.Get(ctx, store.GameRef(gameID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	var game model.Game
	if err := store.Decode(doc, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// ListOpenGames returns games still in the joining stage, for the lobby.
func (s *GameService) ListOpenGames(ctx context.Context) ([]*model.Game, error) {
	snaps, err := s.store.Query(ctx, store.Games(), store.Where{Field: "current_stage", Equals: string(model.StageJoining)})
	if err != nil {
		return nil, err
	}
	games := make([]*model.Game, 0, len(snaps))
	for _, snap := range snaps {
		var game model.Game
		if err := store.Decode(snap.Doc, &game); err != nil {
			return nil, err
		}
		games = append(games, &game)
	}
	return games, nil
}

// AddQuestion stores a question under the game, keyed by its sequence.
func (s *GameService) AddQuestion(ctx context.Context, gameID string, q model.Question) error {
	doc, err := store.Encode(q)
	if err != nil {
		return err
	}
	ref := store.QuestionRef(gameID, strconv.Itoa(q.Sequence))
	return s.store.Set(s.asOperator(ctx), ref, doc)
}

// GetQuestions returns the game's questions in sequence order.
func (s *GameService) GetQuestions(ctx context.Context, gameID string) ([]model.Question, error) {
	snaps, err := s.store.Query(ctx, store.Questions(gameID))
	if err != nil {
		return nil, err
	}
	questions := make([]model.Question, 0, len(snaps))
	for _, snap := range snaps {
		var q model.Question
		if err := store.Decode(snap.Doc, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Sequence < questions[j].Sequence })
	return questions, nil
}

// AdvanceStage moves the game along one legal edge of the stage machine.
// Transitions into question stages should go through OpenQuestion so the
// active-question fields stay consistent.
func (s *GameService) AdvanceStage(ctx context.Context, gameID string, next model.Stage) error {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !game.CurrentStage.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, game.CurrentStage, next)
	}

	fields := store.Document{"current_stage": string(next)}
	if next == model.StageFinished {
		// Active-question fields are meaningless once the game is over.
		fields["active_question_id"] = nil
		fields["active_question_max_answer_id"] = nil
		fields["summary"] = nil
	}
	if err := s.store.Merge(s.asOperator(ctx), store.GameRef(gameID), fields); err != nil {
		return err
	}
	s.invalidate(ctx, gameID)
	return nil
}

// OpenQuestion makes a question live: it sets the active-question fields,
// clears the summary and all prior player answers, and transitions the stage.
func (s *GameService) OpenQuestion(ctx context.Context, gameID, questionID string) error {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !game.CurrentStage.CanTransitionTo(model.StageQuestionOpen) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, game.CurrentStage, model.StageQuestionOpen)
	}

	qdoc, err := s.store.Get(ctx, store.QuestionRef(gameID, questionID))
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("question %s not found", questionID)
	}
	if err != nil {
		return err
	}
	var question model.Question
	if err := store.Decode(qdoc, &question); err != nil {
		return err
	}

	opCtx := s.asOperator(ctx)

	// Stale answers from the previous question would corrupt the new summary.
	answers, err := s.store.Query(ctx, store.PlayerAnswers(gameID))
	if err != nil {
		return err
	}
	for _, snap := range answers {
		if err := s.store.Delete(opCtx, snap.Ref); err != nil {
			return err
		}
	}

	err = s.store.Merge(opCtx, store.GameRef(gameID), store.Document{
		"current_stage":                 string(model.StageQuestionOpen),
		"active_question_id":            questionID,
		"active_question_max_answer_id": question.MaxAnswerID(),
		"summary":                       nil,
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, gameID)
	return nil
}

// CloseQuestion stops accepting answers for the active question.
func (s *GameService) CloseQuestion(ctx context.Context, gameID string) error {
	return s.AdvanceStage(ctx, gameID, model.StageQuestionClosed)
}

// ShowResults moves the game into the results display stage.
func (s *GameService) ShowResults(ctx context.Context, gameID string) error {
	return s.AdvanceStage(ctx, gameID, model.StageQuestionResults)
}

// FinishGame ends the game.
func (s *GameService) FinishGame(ctx context.Context, gameID string) error {
	return s.AdvanceStage(ctx, gameID, model.StageFinished)
}

// SetLeader marks the distinguished leader player for the round.
func (s *GameService) SetLeader(ctx context.Context, gameID, playerID string) error {
	if _, err := s.store.Get(ctx, store.PlayerRef(gameID, playerID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("player %s not found", playerID)
		}
		return err
	}
	err := s.store.Merge(s.asOperator(ctx), store.GameRef(gameID), store.Document{
		"leader_player_id": playerID,
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, gameID)
	return nil
}

// RecomputeSummary rebuilds the denormalized per-option answer counts from the
// raw player answers and stores them on the game document.
func (s *GameService) RecomputeSummary(ctx context.Context, gameID string) (aggregate.Summary, error) {
	answers, err := s.playerAnswers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	summary := aggregate.Recompute(answers)
	err = s.store.Merge(s.asOperator(ctx), store.GameRef(gameID), store.Document{
		"summary": summary.ToDocument(),
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, gameID)
	return summary, nil
}

// RecountActivePlayers refreshes the denormalized active player count.
func (s *GameService) RecountActivePlayers(ctx context.Context, gameID string) (int, error) {
	snaps, err := s.store.Query(ctx, store.Players(gameID), store.Where{Field: "is_active", Equals: true})
	if err != nil {
		return 0, err
	}
	count := len(snaps)
	err = s.store.Merge(s.asOperator(ctx), store.GameRef(gameID), store.Document{
		"active_player_count": count,
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, gameID)
	return count, nil
}

// EliminateByAnswer deactivates every active player whose committed answer is
// missing or differs from the surviving option, then refreshes the active
// player count. Returns the number of players eliminated.
func (s *GameService) EliminateByAnswer(ctx context.Context, gameID string, surviveAnswerID int) (int, error) {
	answers, err := s.store.Query(ctx, store.PlayerAnswers(gameID))
	if err != nil {
		return 0, err
	}
	answered := make(map[string]int, len(answers))
	for _, snap := range answers {
		var a model.PlayerAnswer
		if err := store.Decode(snap.Doc, &a); err != nil {
			return 0, err
		}
		answered[snap.Ref.DocID] = a.AnswerID
	}

	players, err := s.store.Query(ctx, store.Players(gameID), store.Where{Field: "is_active", Equals: true})
	if err != nil {
		return 0, err
	}

	opCtx := s.asOperator(ctx)
	eliminated := 0
	for _, snap := range players {
		answerID, ok := answered[snap.Ref.DocID]
		if ok && answerID == surviveAnswerID {
			continue
		}
		err := s.store.Merge(opCtx, store.PlayerRef(gameID, snap.Ref.DocID), store.Document{
			"is_active": false,
		})
		if err != nil {
			return eliminated, err
		}
		eliminated++
	}

	if _, err := s.RecountActivePlayers(ctx, gameID); err != nil {
		return eliminated, err
	}
	return eliminated, nil
}

// EliminateByLeaderAnswer uses the leader's committed answer as the surviving
// option. Fails if no leader is set or the leader has not answered.
func (s *GameService) EliminateByLeaderAnswer(ctx context.Context, gameID string) (int, error) {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return 0, err
	}
	if game.LeaderPlayerID == "" {
		return 0, fmt.Errorf("game %s has no leader", gameID)
	}

	doc, err := s.store.Get(ctx, store.PlayerAnswerRef(gameID, game.LeaderPlayerID))
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("leader %s has not answered", game.LeaderPlayerID)
	}
	if err != nil {
		return 0, err
	}
	var answer model.PlayerAnswer
	if err := store.Decode(doc, &answer); err != nil {
		return 0, err
	}
	return s.EliminateByAnswer(ctx, gameID, answer.AnswerID)
}

func (s *GameService) playerAnswers(ctx context.Context, gameID string) ([]model.PlayerAnswer, error) {
	snaps, err := s.store.Query(ctx, store.PlayerAnswers(gameID))
	if err != nil {
		return nil, err
	}
	answers := make([]model.PlayerAnswer, 0, len(snaps))
	for _, snap := range snaps {
		var a model.PlayerAnswer
		if err := store.Decode(snap.Doc, &a); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, nil
}
