package model

// MaxNameLength bounds the display name chosen at join time.
const MaxNameLength = 40

// Player is a participant in a game. The document id is the player's principal
// id, which is what makes self-only writes enforceable at the storage layer.
type Player struct {
	Name      string `json:"name" bson:"name"`
	IsActive  bool   `json:"is_active" bson:"is_active"`
	ShortCode string `json:"short_code,omitempty" bson:"short_code,omitempty"`
}

// PlayerAnswer is a player's submission for the active question. One document
// per player, keyed by principal id, so resubmission overwrites in place.
type PlayerAnswer struct {
	AnswerID int `json:"answer_id" bson:"answer_id"`
}
