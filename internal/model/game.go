package model

import "time"

// Stage is the game session's current phase in its lifecycle.
type Stage string

const (
	StageJoining         Stage = "joining"
	StagePreparing       Stage = "preparing"
	StageQuestionOpen    Stage = "question-open"
	StageQuestionClosed  Stage = "question-closed"
	StageQuestionResults Stage = "question-results"
	StageFinished        Stage = "finished"
)

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageJoining, StagePreparing, StageQuestionOpen, StageQuestionClosed, StageQuestionResults, StageFinished:
		return true
	}
	return false
}

// CanTransitionTo checks if a transition from the current stage to the target stage is legal
func (s Stage) CanTransitionTo(target Stage) bool {
	validTransitions := map[Stage][]Stage{
		StageJoining:         {StagePreparing},
		StagePreparing:       {StageQuestionOpen},
		StageQuestionOpen:    {StageQuestionClosed},
		StageQuestionClosed:  {StageQuestionResults},
		StageQuestionResults: {StageQuestionOpen, StageFinished}, // next question or game over
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, stage := range allowed {
		if stage == target {
			return true
		}
	}
	return false
}

// Game is the session document for one run of the trivia game. The title doubles
// as the join code, and the document id is the title. Summary and the active
// question fields are denormalized by the operator so that readers never have to
// scan per-player documents.
type Game struct {
	Title                     string         `json:"title" bson:"title"`
	CurrentStage              Stage          `json:"current_stage" bson:"current_stage"`
	LeaderPlayerID            string         `json:"leader_player_id,omitempty" bson:"leader_player_id,omitempty"`
	ActiveQuestionID          string         `json:"active_question_id,omitempty" bson:"active_question_id,omitempty"`
	ActiveQuestionMaxAnswerID int            `json:"active_question_max_answer_id" bson:"active_question_max_answer_id"`
	ActivePlayerCount         int            `json:"active_player_count" bson:"active_player_count"`
	Summary                   map[string]int `json:"summary,omitempty" bson:"summary,omitempty"`
	CreatedAt                 time.Time      `json:"created_at" bson:"created_at"`
}
