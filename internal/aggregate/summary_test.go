package aggregate

import (
	"testing"

	"github.com/alexdean/worst-idea/internal/model"
)

func TestSummary_Percent(t *testing.T) {
	s := FromDocument(map[string]int{"0": 3, "1": 1})

	if s.Total() != 4 {
		t.Errorf("Expected total 4, got %d", s.Total())
	}
	if got := s.Percent(0); got != 75 {
		t.Errorf("Expected option 0 at 75%%, got %d", got)
	}
	if got := s.Percent(1); got != 25 {
		t.Errorf("Expected option 1 at 25%%, got %d", got)
	}
	// Missing key counts as zero.
	if got := s.Count(2); got != 0 {
		t.Errorf("Expected option 2 count 0, got %d", got)
	}
	if got := s.Percent(2); got != 0 {
		t.Errorf("Expected option 2 at 0%%, got %d", got)
	}
}

func TestSummary_PercentFloors(t *testing.T) {
	s := FromDocument(map[string]int{"0": 1, "1": 1, "2": 1})
	if got := s.Percent(0); got != 33 {
		t.Errorf("Expected floor(100/3) = 33, got %d", got)
	}
}

func TestSummary_Empty(t *testing.T) {
	s := FromDocument(nil)
	if s.Total() != 0 {
		t.Errorf("Expected empty summary total 0, got %d", s.Total())
	}
	if s.Percent(0) != 0 {
		t.Errorf("Expected 0%% with no answers, got %d", s.Percent(0))
	}
}

func TestSummary_IgnoresUnparseableKeys(t *testing.T) {
	s := FromDocument(map[string]int{"0": 2, "oops": 5})
	if s.Total() != 2 {
		t.Errorf("Expected unparseable key dropped, total 2, got %d", s.Total())
	}
}

func TestRecompute(t *testing.T) {
	answers := []model.PlayerAnswer{
		{AnswerID: 0},
		{AnswerID: 0},
		{AnswerID: 0},
		{AnswerID: 1},
	}
	s := Recompute(answers)

	if s.Count(0) != 3 {
		t.Errorf("Expected 3 answers for option 0, got %d", s.Count(0))
	}
	if s.Count(1) != 1 {
		t.Errorf("Expected 1 answer for option 1, got %d", s.Count(1))
	}
	if s.Total() != 4 {
		t.Errorf("Expected total 4, got %d", s.Total())
	}
}

func TestSummary_DocumentRoundTrip(t *testing.T) {
	s := Summary{0: 3, 2: 1}
	doc := s.ToDocument()
	back := FromDocument(doc)

	if back.Count(0) != 3 || back.Count(2) != 1 {
		t.Errorf("Round trip changed counts: %v", back)
	}
}
