package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// Document is a raw document snapshot. Values use JSON-ish types: string, bool,
// float64 or int, map[string]any, []any.
type Document = map[string]any

// Kind names a document collection under a game.
type Kind string

const (
	KindGame         Kind = "games"
	KindQuestion     Kind = "questions"
	KindPlayer       Kind = "players"
	KindPlayerAnswer Kind = "player_answers"
)

// Ref addresses a single document. For a game document DocID equals GameID.
type Ref struct {
	GameID string
	Kind   Kind
	DocID  string
}

func GameRef(gameID string) Ref {
	return Ref{GameID: gameID, Kind: KindGame, DocID: gameID}
}

func QuestionRef(gameID, questionID string) Ref {
	return Ref{GameID: gameID, Kind: KindQuestion, DocID: questionID}
}

func PlayerRef(gameID, principalID string) Ref {
	return Ref{GameID: gameID, Kind: KindPlayer, DocID: principalID}
}

func PlayerAnswerRef(gameID, principalID string) Ref {
	return Ref{GameID: gameID, Kind: KindPlayerAnswer, DocID: principalID}
}

// String renders the ref as a path, e.g. "games/g1/players/alice".
func (r Ref) String() string {
	if r.Kind == KindGame {
		return "games/" + r.DocID
	}
	return "games/" + r.GameID + "/" + string(r.Kind) + "/" + r.DocID
}

// Collection addresses all documents of one kind under a game. GameID is empty
// for the top-level games collection.
type Collection struct {
	GameID string
	Kind   Kind
}

func Games() Collection                      { return Collection{Kind: KindGame} }
func Questions(gameID string) Collection     { return Collection{GameID: gameID, Kind: KindQuestion} }
func Players(gameID string) Collection       { return Collection{GameID: gameID, Kind: KindPlayer} }
func PlayerAnswers(gameID string) Collection { return Collection{GameID: gameID, Kind: KindPlayerAnswer} }

// Where filters a Query by field equality.
type Where struct {
	Field  string
	Equals any
}

// Snapshot pairs a ref with a committed document state.
type Snapshot struct {
	Ref Ref
	Doc Document
}

// DocumentStore is the shared document store: per-document get, full and
// partial writes, collection queries, and per-document subscriptions.
// Subscribers receive committed snapshots in write order for that document;
// there is no ordering guarantee across documents. A nil document on the
// subscription channel means the document was deleted.
type DocumentStore interface {
	Get(ctx context.Context, ref Ref) (Document, error)
	Set(ctx context.Context, ref Ref, doc Document) error
	Merge(ctx context.Context, ref Ref, fields Document) error
	Delete(ctx context.Context, ref Ref) error
	Query(ctx context.Context, c Collection, filters ...Where) ([]Snapshot, error)
	Subscribe(ref Ref) (<-chan Document, func())
}

// Encode converts a tagged struct into a raw Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode converts a raw Document back into a tagged struct.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
