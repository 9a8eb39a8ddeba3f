package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/alexdean/worst-idea/internal/identity"
	"github.com/alexdean/worst-idea/internal/store"
)

func newGuardedFixture(t *testing.T) (*GuardedStore, context.Context, context.Context) {
	t.Helper()
	guarded := NewGuardedStore(store.NewMemoryStore())
	opCtx := identity.WithPrincipal(context.Background(), operator)
	aliceCtx := identity.WithPrincipal(context.Background(), alice)
	return guarded, opCtx, aliceCtx
}

func TestGuardedStore_JoinFlow(t *testing.T) {
	guarded, opCtx, aliceCtx := newGuardedFixture(t)

	if err := guarded.Set(opCtx, store.GameRef("g1"), joinableGame()); err != nil {
		t.Fatalf("Operator could not create the game: %v", err)
	}

	if err := guarded.Set(aliceCtx, store.PlayerRef("g1", "alice"), store.Document{"name": "Alice", "is_active": true}); err != nil {
		t.Fatalf("Join rejected: %v", err)
	}

	// Another player's record is off limits.
	err := guarded.Set(aliceCtx, store.PlayerRef("g1", "bob"), store.Document{"name": "Bob", "is_active": true})
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}

	// No identity on the context at all.
	err = guarded.Set(context.Background(), store.PlayerRef("g1", "carol"), store.Document{"name": "Carol", "is_active": true})
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for unauthenticated write, got %v", err)
	}
}

func TestGuardedStore_StaleClientCannotJoinClosedGame(t *testing.T) {
	guarded, opCtx, aliceCtx := newGuardedFixture(t)

	guarded.Set(opCtx, store.GameRef("g1"), joinableGame())

	// The operator advances the game after alice loaded her lobby view. Her
	// join arrives late and must be judged against the committed stage.
	if err := guarded.Merge(opCtx, store.GameRef("g1"), store.Document{"current_stage": "preparing"}); err != nil {
		t.Fatalf("Stage advance failed: %v", err)
	}

	err := guarded.Set(aliceCtx, store.PlayerRef("g1", "alice"), store.Document{"name": "Alice", "is_active": true})
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("Expected late join to be rejected, got %v", err)
	}
}

func TestGuardedStore_AnswerLifecycle(t *testing.T) {
	guarded, opCtx, aliceCtx := newGuardedFixture(t)

	guarded.Set(opCtx, store.GameRef("g1"), joinableGame())
	guarded.Set(aliceCtx, store.PlayerRef("g1", "alice"), store.Document{"name": "Alice", "is_active": true})

	// Answering before any question is open fails.
	err := guarded.Set(aliceCtx, store.PlayerAnswerRef("g1", "alice"), store.Document{"answer_id": 0})
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Fatalf("Expected rejection before question-open, got %v", err)
	}

	guarded.Merge(opCtx, store.GameRef("g1"), store.Document{
		"current_stage":                 "question-open",
		"active_question_id":            "1",
		"active_question_max_answer_id": 2,
	})

	if err := guarded.Set(aliceCtx, store.PlayerAnswerRef("g1", "alice"), store.Document{"answer_id": 0}); err != nil {
		t.Fatalf("Answer rejected: %v", err)
	}

	// Changing your mind overwrites the same document. Only one answer per
	// player ever exists.
	if err := guarded.Set(aliceCtx, store.PlayerAnswerRef("g1", "alice"), store.Document{"answer_id": 2}); err != nil {
		t.Fatalf("Answer change rejected: %v", err)
	}
	doc, err := guarded.Get(aliceCtx, store.PlayerAnswerRef("g1", "alice"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got, _ := doc["answer_id"].(int); got != 2 {
		t.Errorf("Expected the last answer to win, got %v", doc["answer_id"])
	}

	// Out-of-range late submission.
	err = guarded.Set(aliceCtx, store.PlayerAnswerRef("g1", "alice"), store.Document{"answer_id": 7})
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("Expected out-of-range answer to be rejected, got %v", err)
	}

	// The operator closes the question; a stale client's submission bounces.
	guarded.Merge(opCtx, store.GameRef("g1"), store.Document{"current_stage": "question-closed"})
	err = guarded.Set(aliceCtx, store.PlayerAnswerRef("g1", "alice"), store.Document{"answer_id": 1})
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("Expected rejection after close, got %v", err)
	}
}

func TestGuardedStore_EliminatedPlayerCannotAnswer(t *testing.T) {
	guarded, opCtx, aliceCtx := newGuardedFixture(t)

	guarded.Set(opCtx, store.GameRef("g1"), joinableGame())
	guarded.Set(aliceCtx, store.PlayerRef("g1", "alice"), store.Document{"name": "Alice", "is_active": true})
	guarded.Merge(opCtx, store.GameRef("g1"), store.Document{
		"current_stage":                 "question-open",
		"active_question_id":            "1",
		"active_question_max_answer_id": 2,
	})
	guarded.Merge(opCtx, store.PlayerRef("g1", "alice"), store.Document{"is_active": false})

	err := guarded.Set(aliceCtx, store.PlayerAnswerRef("g1", "alice"), store.Document{"answer_id": 1})
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("Expected eliminated player's answer to be rejected, got %v", err)
	}

	// Nor can she flip herself back on.
	err = guarded.Merge(aliceCtx, store.PlayerRef("g1", "alice"), store.Document{"is_active": true})
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("Expected self-reactivation to be rejected, got %v", err)
	}
}

func TestGuardedStore_MergeEvaluatesResultingState(t *testing.T) {
	guarded, opCtx, aliceCtx := newGuardedFixture(t)

	guarded.Set(opCtx, store.GameRef("g1"), joinableGame())
	guarded.Set(aliceCtx, store.PlayerRef("g1", "alice"), store.Document{"name": "Alice", "is_active": true})

	// A patch that never touches is_active still passes: the merged state
	// keeps the prior value.
	if err := guarded.Merge(aliceCtx, store.PlayerRef("g1", "alice"), store.Document{"name": "Alice B"}); err != nil {
		t.Fatalf("Merge rejected: %v", err)
	}

	doc, _ := guarded.Get(aliceCtx, store.PlayerRef("g1", "alice"))
	if doc["name"] != "Alice B" {
		t.Errorf("Expected renamed player, got %v", doc["name"])
	}
	if doc["is_active"] != true {
		t.Errorf("Expected is_active preserved, got %v", doc["is_active"])
	}
}

func TestGuardedStore_DeleteIsOperatorOnly(t *testing.T) {
	guarded, opCtx, aliceCtx := newGuardedFixture(t)

	guarded.Set(opCtx, store.GameRef("g1"), openQuestionGame())

	err := guarded.Delete(aliceCtx, store.PlayerAnswerRef("g1", "alice"))
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("Expected player delete to be rejected, got %v", err)
	}
	if err := guarded.Delete(opCtx, store.PlayerAnswerRef("g1", "alice")); err != nil {
		t.Errorf("Operator delete failed: %v", err)
	}
}
