package rules

import (
	"strings"
	"testing"

	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/store"
)

var (
	alice    = model.Principal{ID: "alice"}
	bob      = model.Principal{ID: "bob"}
	operator = model.Principal{ID: "op_1", Operator: true}
	nobody   = model.Principal{}
)

func joinableGame() store.Document {
	return store.Document{"title": "joinable", "current_stage": "joining"}
}

func openQuestionGame() store.Document {
	return store.Document{
		"title":                         "running",
		"current_stage":                 "question-open",
		"active_question_id":            "1",
		"active_question_max_answer_id": 2,
	}
}

func activePlayer() store.Document {
	return store.Document{"name": "Alice", "is_active": true}
}

func TestEvaluateWrite_Players(t *testing.T) {
	engine := Engine{}

	tests := []struct {
		name    string
		req     WriteRequest
		allowed bool
	}{
		{
			name: "player can join a joinable game",
			req: WriteRequest{
				Ref:      store.PlayerRef("g1", "alice"),
				Proposed: store.Document{"name": "Alice", "is_active": true},
				Caller:   alice,
				Game:     joinableGame(),
			},
			allowed: true,
		},
		{
			name: "join is closed once the game leaves the joining stage",
			req: WriteRequest{
				Ref:      store.PlayerRef("g1", "alice"),
				Proposed: store.Document{"name": "Alice", "is_active": true},
				Caller:   alice,
				Game:     store.Document{"current_stage": "preparing"},
			},
			allowed: false,
		},
		{
			name: "player cannot write another player's record",
			req: WriteRequest{
				Ref:      store.PlayerRef("g1", "bob"),
				Proposed: store.Document{"name": "Not Bob", "is_active": true},
				Caller:   alice,
				Game:     joinableGame(),
			},
			allowed: false,
		},
		{
			name: "unauthenticated callers cannot join",
			req: WriteRequest{
				Ref:      store.PlayerRef("g1", "alice"),
				Proposed: store.Document{"name": "Alice", "is_active": true},
				Caller:   nobody,
				Game:     joinableGame(),
			},
			allowed: false,
		},
		{
			name: "player may update their own existing record",
			req: WriteRequest{
				Ref:      store.PlayerRef("g1", "alice"),
				Prior:    activePlayer(),
				Proposed: store.Document{"name": "Alice B", "is_active": true},
				Caller:   alice,
				Game:     openQuestionGame(),
			},
			allowed: true,
		},
		{
			name: "eliminated player cannot reactivate themselves",
			req: WriteRequest{
				Ref:      store.PlayerRef("g1", "bob"),
				Prior:    store.Document{"name": "Bob", "is_active": false},
				Proposed: store.Document{"name": "Bob", "is_active": true},
				Caller:   bob,
				Game:     openQuestionGame(),
			},
			allowed: false,
		},
		{
			name: "name must be a string",
			req: WriteRequest{
				Ref:      store.PlayerRef("g1", "alice"),
				Proposed: store.Document{"name": 42, "is_active": true},
				Caller:   alice,
				Game:     joinableGame(),
			},
			allowed: false,
		},
		{
			name: "overlong name is rejected",
			req: WriteRequest{
				Ref: store.PlayerRef("g1", "alice"),
				Proposed: store.Document{
					"name":      strings.Repeat("x", model.MaxNameLength+1),
					"is_active": true,
				},
				Caller: alice,
				Game:   joinableGame(),
			},
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.EvaluateWrite(tt.req)
			if got.Allowed != tt.allowed {
				t.Errorf("Expected allowed=%v, got %v (reason: %q)", tt.allowed, got.Allowed, got.Reason)
			}
		})
	}
}

func TestEvaluateWrite_Answers(t *testing.T) {
	engine := Engine{}

	answer := func(caller model.Principal, game store.Document, player store.Document, answerID any) WriteRequest {
		return WriteRequest{
			Ref:          store.PlayerAnswerRef("g1", caller.ID),
			Proposed:     store.Document{"answer_id": answerID},
			Caller:       caller,
			Game:         game,
			TargetPlayer: player,
		}
	}

	tests := []struct {
		name    string
		req     WriteRequest
		allowed bool
	}{
		{
			name:    "active player answers the open question",
			req:     answer(alice, openQuestionGame(), activePlayer(), 2),
			allowed: true,
		},
		{
			name:    "answer above the question's range",
			req:     answer(alice, openQuestionGame(), activePlayer(), 5),
			allowed: false,
		},
		{
			name:    "negative answer",
			req:     answer(alice, openQuestionGame(), activePlayer(), -1),
			allowed: false,
		},
		{
			name:    "non-integer answer",
			req:     answer(alice, openQuestionGame(), activePlayer(), "NaN"),
			allowed: false,
		},
		{
			name:    "fractional answer",
			req:     answer(alice, openQuestionGame(), activePlayer(), 1.5),
			allowed: false,
		},
		{
			name:    "json-decoded whole float is accepted",
			req:     answer(alice, openQuestionGame(), activePlayer(), float64(1)),
			allowed: true,
		},
		{
			name:    "eliminated player cannot answer",
			req:     answer(bob, openQuestionGame(), store.Document{"name": "Bob", "is_active": false}, 1),
			allowed: false,
		},
		{
			name:    "no answers while the question is closed",
			req:     answer(alice, store.Document{"current_stage": "question-closed", "active_question_max_answer_id": 2}, activePlayer(), 1),
			allowed: false,
		},
		{
			name:    "no answers in a finished game",
			req:     answer(alice, store.Document{"current_stage": "finished"}, activePlayer(), 1),
			allowed: false,
		},
		{
			name: "cannot answer for another player",
			req: WriteRequest{
				Ref:          store.PlayerAnswerRef("g1", "bob"),
				Proposed:     store.Document{"answer_id": 1},
				Caller:       alice,
				Game:         openQuestionGame(),
				TargetPlayer: store.Document{"name": "Bob", "is_active": true},
			},
			allowed: false,
		},
		{
			name:    "unauthenticated callers cannot answer",
			req:     answer(nobody, openQuestionGame(), activePlayer(), 1),
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.EvaluateWrite(tt.req)
			if got.Allowed != tt.allowed {
				t.Errorf("Expected allowed=%v, got %v (reason: %q)", tt.allowed, got.Allowed, got.Reason)
			}
		})
	}
}

func TestEvaluateWrite_GamesAndQuestions(t *testing.T) {
	engine := Engine{}

	playerWrite := engine.EvaluateWrite(WriteRequest{
		Ref:      store.GameRef("g1"),
		Proposed: store.Document{"current_stage": "finished"},
		Caller:   alice,
	})
	if playerWrite.Allowed {
		t.Error("Players must not write game documents")
	}

	questionWrite := engine.EvaluateWrite(WriteRequest{
		Ref:      store.QuestionRef("g1", "1"),
		Proposed: store.Document{"question": "edited"},
		Caller:   alice,
	})
	if questionWrite.Allowed {
		t.Error("Players must not write question documents")
	}

	opWrite := engine.EvaluateWrite(WriteRequest{
		Ref:      store.GameRef("g1"),
		Proposed: store.Document{"current_stage": "question-open"},
		Caller:   operator,
	})
	if !opWrite.Allowed {
		t.Errorf("Operator game write rejected: %q", opWrite.Reason)
	}

	badStage := engine.EvaluateWrite(WriteRequest{
		Ref:      store.GameRef("g1"),
		Proposed: store.Document{"current_stage": "warming-up"},
		Caller:   operator,
	})
	if badStage.Allowed {
		t.Error("Unknown stage value must be rejected even from the operator")
	}
}

func TestEvaluateDelete(t *testing.T) {
	engine := Engine{}

	if got := engine.EvaluateDelete(WriteRequest{Ref: store.PlayerAnswerRef("g1", "alice"), Caller: operator}); !got.Allowed {
		t.Errorf("Operator delete rejected: %q", got.Reason)
	}
	if got := engine.EvaluateDelete(WriteRequest{Ref: store.PlayerAnswerRef("g1", "alice"), Caller: alice}); got.Allowed {
		t.Error("Player deletes must be rejected")
	}
}
