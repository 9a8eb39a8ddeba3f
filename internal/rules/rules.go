// Package rules is the write-time authorization layer. Every write against the
// document store is reduced to a pure decision over (prior state, proposed
// state, caller identity, ancestor documents), so the invariants hold no matter
// how stale the writing client's view is.
package rules

import (
	"fmt"

	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/store"
)

// Decision is the outcome of evaluating one write.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// WriteRequest carries everything the engine needs to evaluate one write.
// Prior is nil when the document does not exist yet. Game and TargetPlayer are
// the ancestor documents loaded at authorization time; they reflect committed
// state, never a client-observed cache.
type WriteRequest struct {
	Ref          store.Ref
	Prior        store.Document
	Proposed     store.Document
	Caller       model.Principal
	Game         store.Document
	TargetPlayer store.Document
}

// Engine evaluates write requests. Reads are public across all collections
// (the lobby must be listable by unauthenticated callers, and the projector
// reads other players' documents), so only writes are gated.
type Engine struct{}

// EvaluateWrite returns accept or reject for a single proposed write.
func (Engine) EvaluateWrite(req WriteRequest) Decision {
	if req.Caller.Operator {
		return evaluateOperatorWrite(req)
	}

	switch req.Ref.Kind {
	case store.KindGame:
		return deny("games are writable only by the operator")
	case store.KindQuestion:
		return deny("questions are read-only")
	case store.KindPlayer:
		return evaluatePlayerWrite(req)
	case store.KindPlayerAnswer:
		return evaluateAnswerWrite(req)
	}
	return deny(fmt.Sprintf("unknown collection %q", req.Ref.Kind))
}

// EvaluateDelete gates document deletion, which only the operator performs
// (e.g. clearing player answers between questions).
func (Engine) EvaluateDelete(req WriteRequest) Decision {
	if req.Caller.Operator {
		return allow()
	}
	return deny("deletes are operator-only")
}

// evaluateOperatorWrite still sanity-checks operator writes to the game doc so
// a buggy trusted writer cannot put a session into an unknown stage.
func evaluateOperatorWrite(req WriteRequest) Decision {
	if req.Ref.Kind != store.KindGame {
		return allow()
	}
	if raw, ok := req.Proposed["current_stage"]; ok {
		stage, isString := raw.(string)
		if !isString || !model.Stage(stage).Valid() {
			return deny(fmt.Sprintf("%v is not a valid stage", raw))
		}
	}
	return allow()
}

func evaluatePlayerWrite(req WriteRequest) Decision {
	if !req.Caller.Authenticated() {
		return deny("authentication required")
	}
	if req.Caller.ID != req.Ref.DocID {
		return deny("players may only write their own record")
	}

	if req.Prior == nil {
		// Creation is the join path and is only open during the joining stage.
		if stageOf(req.Game) != model.StageJoining {
			return deny("game is not accepting players")
		}
	} else if priorActive, ok := boolField(req.Prior, "is_active"); ok && !priorActive {
		if nowActive, ok := boolField(req.Proposed, "is_active"); ok && nowActive {
			return deny("eliminated players cannot reactivate themselves")
		}
	}

	if name, ok := req.Proposed["name"]; ok {
		s, isString := name.(string)
		if !isString {
			return deny("name must be a string")
		}
		if len(s) > model.MaxNameLength {
			return deny("name is too long")
		}
	}

	return allow()
}

func evaluateAnswerWrite(req WriteRequest) Decision {
	if !req.Caller.Authenticated() {
		return deny("authentication required")
	}
	if req.Caller.ID != req.Ref.DocID {
		return deny("answers may only be written by their owner")
	}
	if stageOf(req.Game) != model.StageQuestionOpen {
		return deny("the question is not open")
	}
	if active, ok := boolField(req.TargetPlayer, "is_active"); !ok || !active {
		return deny("player is not active in this game")
	}

	answerID, ok := intField(req.Proposed, "answer_id")
	if !ok {
		return deny("answer_id must be an integer")
	}
	maxAnswerID, ok := intField(req.Game, "active_question_max_answer_id")
	if !ok {
		return deny("no question is active")
	}
	if answerID < 0 || answerID > maxAnswerID {
		return deny(fmt.Sprintf("answer_id %d is out of range", answerID))
	}

	return allow()
}

func stageOf(game store.Document) model.Stage {
	if game == nil {
		return ""
	}
	stage, _ := game["current_stage"].(string)
	return model.Stage(stage)
}

func boolField(doc store.Document, field string) (bool, bool) {
	if doc == nil {
		return false, false
	}
	v, ok := doc[field].(bool)
	return v, ok
}

// intField accepts the numeric types a document can carry, rejecting anything
// non-numeric or fractional.
func intField(doc store.Document, field string) (int, bool) {
	if doc == nil {
		return 0, false
	}
	switch v := doc[field].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}
