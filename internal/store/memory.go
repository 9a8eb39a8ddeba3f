package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process DocumentStore. Writes fan out to subscribers
// while the write lock is held, which preserves per-document write order.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]Document
	broker *broker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]Document),
		broker: newBroker(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, ref Ref) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[ref.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *MemoryStore) Set(ctx context.Context, ref Ref, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneDoc(doc)
	s.docs[ref.String()] = stored
	s.broker.publish(ref.String(), cloneDoc(stored))
	return nil
}

func (s *MemoryStore) Merge(ctx context.Context, ref Ref, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := cloneDoc(s.docs[ref.String()])
	if merged == nil {
		merged = make(Document)
	}
	for k, v := range cloneDoc(fields) {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	s.docs[ref.String()] = merged
	s.broker.publish(ref.String(), cloneDoc(merged))
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, ref.String())
	s.broker.publish(ref.String(), nil)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, c Collection, filters ...Where) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Snapshot
	for path, doc := range s.docs {
		ref, ok := parsePath(path)
		if !ok || ref.Kind != c.Kind {
			continue
		}
		if c.Kind != KindGame && ref.GameID != c.GameID {
			continue
		}
		if !matches(doc, filters) {
			continue
		}
		out = append(out, Snapshot{Ref: ref, Doc: cloneDoc(doc)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.DocID < out[j].Ref.DocID })
	return out, nil
}

func (s *MemoryStore) Subscribe(ref Ref) (<-chan Document, func()) {
	return s.broker.subscribe(ref.String())
}

func matches(doc Document, filters []Where) bool {
	for _, f := range filters {
		if !valueEqual(doc[f.Field], f.Equals) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func parsePath(path string) (Ref, bool) {
	parts := splitPath(path)
	switch len(parts) {
	case 2:
		return Ref{GameID: parts[1], Kind: KindGame, DocID: parts[1]}, parts[0] == string(KindGame)
	case 4:
		return Ref{GameID: parts[1], Kind: Kind(parts[2]), DocID: parts[3]}, parts[0] == string(KindGame)
	}
	return Ref{}, false
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}

func cloneDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return cloneDoc(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
