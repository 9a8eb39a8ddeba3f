package model

// Question is an immutable child of a game. Answer option indices run 0..len(Answers)-1.
type Question struct {
	Sequence int      `json:"sequence" bson:"sequence"`
	Question string   `json:"question" bson:"question"`
	Answers  []string `json:"answers" bson:"answers"`
}

// MaxAnswerID is the inclusive upper bound of valid answer option indices.
func (q Question) MaxAnswerID() int {
	return len(q.Answers) - 1
}
