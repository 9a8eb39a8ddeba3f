package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists documents to MongoDB, one collection per document kind.
// Change fan-out to subscribers is in-process: the write lock serializes
// commit+publish so subscribers see each document's writes in order.
type MongoStore struct {
	db     *mongo.Database
	broker *broker
	mu     sync.Mutex
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:     db,
		broker: newBroker(),
	}
}

func (s *MongoStore) collection(kind Kind) *mongo.Collection {
	return s.db.Collection(string(kind))
}

func (s *MongoStore) filter(ref Ref) bson.M {
	if ref.Kind == KindGame {
		return bson.M{"_id": ref.DocID}
	}
	return bson.M{"_id": ref.DocID, "game_id": ref.GameID}
}

func (s *MongoStore) Get(ctx context.Context, ref Ref) (Document, error) {
	var raw bson.M
	err := s.collection(ref.Kind).FindOne(ctx, s.filter(ref)).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromMongo(raw), nil
}

func (s *MongoStore) Set(ctx context.Context, ref Ref, doc Document) error {
	record := toMongo(ref, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection(ref.Kind).ReplaceOne(ctx, s.filter(ref), record, opts); err != nil {
		return fmt.Errorf("replace %s: %w", ref, err)
	}
	s.broker.publish(ref.String(), cloneDoc(doc))
	return nil
}

func (s *MongoStore) Merge(ctx context.Context, ref Ref, fields Document) error {
	set := bson.M{}
	var unset bson.M
	for k, v := range fields {
		if v == nil {
			if unset == nil {
				unset = bson.M{}
			}
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	update := bson.M{"$set": set}
	if unset != nil {
		update["$unset"] = unset
	}
	if ref.Kind != KindGame {
		set["game_id"] = ref.GameID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	opts := options.Update().SetUpsert(true)
	if _, err := s.collection(ref.Kind).UpdateOne(ctx, s.filter(ref), update, opts); err != nil {
		return fmt.Errorf("merge %s: %w", ref, err)
	}

	// Re-read so subscribers get the full committed snapshot, not the patch.
	var raw bson.M
	if err := s.collection(ref.Kind).FindOne(ctx, s.filter(ref)).Decode(&raw); err != nil {
		return fmt.Errorf("read back %s: %w", ref, err)
	}
	s.broker.publish(ref.String(), fromMongo(raw))
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.collection(ref.Kind).DeleteOne(ctx, s.filter(ref)); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	s.broker.publish(ref.String(), nil)
	return nil
}

func (s *MongoStore) Query(ctx context.Context, c Collection, filters ...Where) ([]Snapshot, error) {
	query := bson.M{}
	if c.Kind != KindGame {
		query["game_id"] = c.GameID
	}
	for _, f := range filters {
		query[f.Field] = f.Equals
	}

	cursor, err := s.collection(c.Kind).Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Snapshot
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		docID, _ := raw["_id"].(string)
		ref := Ref{GameID: c.GameID, Kind: c.Kind, DocID: docID}
		if c.Kind == KindGame {
			ref.GameID = docID
		}
		out = append(out, Snapshot{Ref: ref, Doc: fromMongo(raw)})
	}
	return out, cursor.Err()
}

func (s *MongoStore) Subscribe(ref Ref) (<-chan Document, func()) {
	return s.broker.subscribe(ref.String())
}

// toMongo prepares a document for storage, adding the id fields.
func toMongo(ref Ref, doc Document) bson.M {
	record := bson.M{}
	for k, v := range doc {
		record[k] = v
	}
	record["_id"] = ref.DocID
	if ref.Kind != KindGame {
		record["game_id"] = ref.GameID
	}
	return record
}

// fromMongo strips the id fields and normalizes BSON types back to the plain
// JSON-ish types Document promises.
func fromMongo(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" || k == "game_id" {
			continue
		}
		doc[k] = normalize(v)
	}
	return doc
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(Document, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(Document, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
