package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexdean/worst-idea/internal/identity"
	"github.com/alexdean/worst-idea/internal/store"
)

// GuardedStore decorates a DocumentStore with the rule engine. Every Set,
// Merge, and Delete loads the ancestor documents the rules need, evaluates the
// caller's identity from the context, and either delegates or fails with
// store.ErrPermissionDenied. Rejection happens before commit, so a rejected
// write never reaches subscribers.
type GuardedStore struct {
	inner  store.DocumentStore
	engine Engine
}

func NewGuardedStore(inner store.DocumentStore) *GuardedStore {
	return &GuardedStore{inner: inner}
}

func (s *GuardedStore) Get(ctx context.Context, ref store.Ref) (store.Document, error) {
	return s.inner.Get(ctx, ref)
}

func (s *GuardedStore) Query(ctx context.Context, c store.Collection, filters ...store.Where) ([]store.Snapshot, error) {
	return s.inner.Query(ctx, c, filters...)
}

func (s *GuardedStore) Subscribe(ref store.Ref) (<-chan store.Document, func()) {
	return s.inner.Subscribe(ref)
}

func (s *GuardedStore) Set(ctx context.Context, ref store.Ref, doc store.Document) error {
	req, err := s.buildRequest(ctx, ref, doc)
	if err != nil {
		return err
	}
	if d := s.engine.EvaluateWrite(req); !d.Allowed {
		return fmt.Errorf("%w: %s", store.ErrPermissionDenied, d.Reason)
	}
	return s.inner.Set(ctx, ref, doc)
}

func (s *GuardedStore) Merge(ctx context.Context, ref store.Ref, fields store.Document) error {
	req, err := s.buildRequest(ctx, ref, fields)
	if err != nil {
		return err
	}

	// The rules see the state the merge would commit, not just the patch.
	merged := make(store.Document, len(fields))
	for k, v := range req.Prior {
		merged[k] = v
	}
	for k, v := range fields {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	req.Proposed = merged

	if d := s.engine.EvaluateWrite(req); !d.Allowed {
		return fmt.Errorf("%w: %s", store.ErrPermissionDenied, d.Reason)
	}
	return s.inner.Merge(ctx, ref, fields)
}

func (s *GuardedStore) Delete(ctx context.Context, ref store.Ref) error {
	req, err := s.buildRequest(ctx, ref, nil)
	if err != nil {
		return err
	}
	if d := s.engine.EvaluateDelete(req); !d.Allowed {
		return fmt.Errorf("%w: %s", store.ErrPermissionDenied, d.Reason)
	}
	return s.inner.Delete(ctx, ref)
}

// buildRequest loads prior state and the ancestors the engine validates
// against: the game document for stage checks, and the target player document
// for answer writes.
func (s *GuardedStore) buildRequest(ctx context.Context, ref store.Ref, proposed store.Document) (WriteRequest, error) {
	req := WriteRequest{
		Ref:      ref,
		Proposed: proposed,
		Caller:   identity.FromContext(ctx),
	}

	prior, err := s.inner.Get(ctx, ref)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return req, err
	}
	req.Prior = prior

	if ref.Kind != store.KindGame {
		game, err := s.inner.Get(ctx, store.GameRef(ref.GameID))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return req, err
		}
		req.Game = game
	} else {
		req.Game = prior
	}

	if ref.Kind == store.KindPlayerAnswer {
		player, err := s.inner.Get(ctx, store.PlayerRef(ref.GameID, ref.DocID))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return req, err
		}
		req.TargetPlayer = player
	}

	return req, nil
}
