package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := GameRef("g1")

	if _, err := s.Get(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound before write, got %v", err)
	}

	if err := s.Set(ctx, ref, Document{"title": "g1", "current_stage": "joining"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	doc, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["current_stage"] != "joining" {
		t.Errorf("Expected stage joining, got %v", doc["current_stage"])
	}

	// Mutating the returned document must not affect the stored copy.
	doc["current_stage"] = "finished"
	again, _ := s.Get(ctx, ref)
	if again["current_stage"] != "joining" {
		t.Errorf("Stored document was mutated through a returned copy")
	}
}

func TestMemoryStore_MergePatchesAndDeletesFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := GameRef("g1")

	s.Set(ctx, ref, Document{"current_stage": "question-open", "active_question_id": "1"})
	if err := s.Merge(ctx, ref, Document{"current_stage": "finished", "active_question_id": nil}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	doc, _ := s.Get(ctx, ref)
	if doc["current_stage"] != "finished" {
		t.Errorf("Expected stage finished, got %v", doc["current_stage"])
	}
	if _, ok := doc["active_question_id"]; ok {
		t.Errorf("Expected active_question_id removed, got %v", doc["active_question_id"])
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := PlayerRef("g1", "alice")

	s.Set(ctx, ref, Document{"name": "Alice"})
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_Query(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, GameRef("g1"), Document{"current_stage": "joining"})
	s.Set(ctx, GameRef("g2"), Document{"current_stage": "finished"})
	s.Set(ctx, PlayerRef("g1", "bob"), Document{"name": "Bob", "is_active": true})
	s.Set(ctx, PlayerRef("g1", "alice"), Document{"name": "Alice", "is_active": false})
	s.Set(ctx, PlayerRef("g2", "carol"), Document{"name": "Carol", "is_active": true})

	open, err := s.Query(ctx, Games(), Where{Field: "current_stage", Equals: "joining"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(open) != 1 || open[0].Ref.DocID != "g1" {
		t.Errorf("Expected [g1], got %v", open)
	}

	players, _ := s.Query(ctx, Players("g1"))
	if len(players) != 2 {
		t.Fatalf("Expected 2 players in g1, got %d", len(players))
	}
	// Results come back ordered by document id.
	if players[0].Ref.DocID != "alice" || players[1].Ref.DocID != "bob" {
		t.Errorf("Expected [alice bob], got [%s %s]", players[0].Ref.DocID, players[1].Ref.DocID)
	}

	active, _ := s.Query(ctx, Players("g1"), Where{Field: "is_active", Equals: true})
	if len(active) != 1 || active[0].Ref.DocID != "bob" {
		t.Errorf("Expected [bob], got %v", active)
	}
}

func TestMemoryStore_QueryNumericFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Decoded JSON carries float64 where Go code writes int.
	s.Set(ctx, PlayerAnswerRef("g1", "alice"), Document{"answer_id": float64(2)})
	s.Set(ctx, PlayerAnswerRef("g1", "bob"), Document{"answer_id": 1})

	got, _ := s.Query(ctx, PlayerAnswers("g1"), Where{Field: "answer_id", Equals: 2})
	if len(got) != 1 || got[0].Ref.DocID != "alice" {
		t.Errorf("Expected [alice], got %v", got)
	}
}

func TestMemoryStore_SubscribeReceivesWritesInOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := GameRef("g1")

	ch, cancel := s.Subscribe(ref)
	defer cancel()

	s.Set(ctx, ref, Document{"current_stage": "joining"})
	s.Merge(ctx, ref, Document{"current_stage": "preparing"})
	s.Delete(ctx, ref)

	want := []any{"joining", "preparing"}
	for i, stage := range want {
		doc := receive(t, ch)
		if doc["current_stage"] != stage {
			t.Errorf("Update %d: expected stage %v, got %v", i, stage, doc["current_stage"])
		}
	}
	if doc := receive(t, ch); doc != nil {
		t.Errorf("Expected nil snapshot for delete, got %v", doc)
	}
}

func TestMemoryStore_SubscribeCancelStopsDelivery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := GameRef("g1")

	ch, cancel := s.Subscribe(ref)
	cancel()

	s.Set(ctx, ref, Document{"current_stage": "joining"})

	select {
	case doc, ok := <-ch:
		if ok {
			t.Errorf("Expected no delivery after cancel, got %v", doc)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_SubscribeIsPerDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ch, cancel := s.Subscribe(PlayerRef("g1", "alice"))
	defer cancel()

	s.Set(ctx, PlayerRef("g1", "bob"), Document{"name": "Bob"})
	s.Set(ctx, PlayerRef("g1", "alice"), Document{"name": "Alice"})

	doc := receive(t, ch)
	if doc["name"] != "Alice" {
		t.Errorf("Expected alice's snapshot, got %v", doc)
	}
}

func receive(t *testing.T, ch <-chan Document) Document {
	t.Helper()
	select {
	case doc := <-ch:
		return doc
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for snapshot")
		return nil
	}
}
