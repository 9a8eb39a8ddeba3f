// Package aggregate handles the denormalized answer summary: the operator
// recomputes it from raw player answers, and readers consume it as-is without
// ever scanning per-player documents.
package aggregate

import (
	"strconv"

	"github.com/alexdean/worst-idea/internal/model"
)

// Summary maps answer option index to submitted-answer count.
type Summary map[int]int

// FromDocument parses the game document's summary field, whose keys are option
// indices serialized as strings. Unparseable keys are dropped. A nil input is
// an empty summary, not an error.
func FromDocument(raw map[string]int) Summary {
	s := make(Summary, len(raw))
	for key, count := range raw {
		i, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		s[i] = count
	}
	return s
}

// ToDocument serializes the summary for storage on the game document.
func (s Summary) ToDocument() map[string]int {
	out := make(map[string]int, len(s))
	for i, count := range s {
		out[strconv.Itoa(i)] = count
	}
	return out
}

// Total is the sum of all option counts.
func (s Summary) Total() int {
	total := 0
	for _, count := range s {
		total += count
	}
	return total
}

// Count returns the count for an option; a missing key counts as zero.
func (s Summary) Count(option int) int {
	return s[option]
}

// Percent returns floor(100 * count / total) for an option, or 0 when no
// answers have been submitted.
func (s Summary) Percent(option int) int {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return 100 * s.Count(option) / total
}

// Recompute rebuilds the summary from raw player answers.
func Recompute(answers []model.PlayerAnswer) Summary {
	s := make(Summary)
	for _, a := range answers {
		s[a.AnswerID]++
	}
	return s
}
