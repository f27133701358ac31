package playlist

import (
	"strings"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
)

// Strategy proposes the current item for an event. ok is false when it has no opinion.
type Strategy interface {
	Name() string
	Resolve(s *State, ev *models.ProgressEvent) (index int, ok bool)
}

// DefaultStrategies is the ranking used by [New] when no strategies are given.
var DefaultStrategies = []Strategy{
	ExplicitIndex{},
	TitleChange{},
	SameTitle{},
	TitleSearch{},
	Fallback{},
}

const explicitIndexName = "explicit-index"

// ExplicitIndex trusts an in-range index reported by the extractor.
type ExplicitIndex struct{}

func (ExplicitIndex) Name() string { return explicitIndexName }

func (ExplicitIndex) Resolve(s *State, ev *models.ProgressEvent) (int, bool) {
	idx, ok := ev.ItemIndex()
	if !ok || !s.valid(idx) {
		return 0, false
	}
	return idx, true
}

// TitleChange reads a title that differs from the last one seen as the start of the next
// item. Before any item is confirmed the first title claims index 0.
type TitleChange struct{}

func (TitleChange) Name() string { return "title-change" }

func (TitleChange) Resolve(s *State, ev *models.ProgressEvent) (int, bool) {
	if ev.Title == "" {
		return 0, false
	}
	if s.Current < 0 {
		return 0, true
	}
	if s.LastTitle == "" || ev.Title == s.LastTitle {
		return 0, false
	}
	// A title that matches what the current item is already known as is not a new item.
	if s.valid(s.Current) && sameTitle(s.Items[s.Current].Title, ev.Title) {
		return s.Current, true
	}
	return min(s.Current+1, len(s.Items)-1), true
}

// SameTitle keeps the current item for repeated progress updates.
type SameTitle struct{}

func (SameTitle) Name() string { return "same-title" }

func (SameTitle) Resolve(s *State, ev *models.ProgressEvent) (int, bool) {
	if ev.Title == "" || ev.Title != s.LastTitle || !s.valid(s.Current) {
		return 0, false
	}
	return s.Current, true
}

// TitleSearch finds the event title among stored titles: forward from the item after the
// current one, then from the start up to the current item among items not yet downloaded.
type TitleSearch struct{}

func (TitleSearch) Name() string { return "title-search" }

func (TitleSearch) Resolve(s *State, ev *models.ProgressEvent) (int, bool) {
	if ev.Title == "" {
		return 0, false
	}

	for i := s.Current + 1; i < len(s.Items); i++ {
		if sameTitle(s.Items[i].Title, ev.Title) {
			return i, true
		}
	}

	upper := min(s.Current, len(s.Items)-1)
	for i := 0; i <= upper; i++ {
		if !s.Items[i].Downloaded && sameTitle(s.Items[i].Title, ev.Title) {
			return i, true
		}
	}
	return 0, false
}

// Fallback always answers so that the pointer stays valid.
type Fallback struct{}

func (Fallback) Name() string { return "fallback" }

func (Fallback) Resolve(s *State, ev *models.ProgressEvent) (int, bool) {
	if len(s.Items) == 0 {
		return 0, false
	}
	if idx, ok := ev.ItemIndex(); ok && s.valid(idx) {
		return idx, true
	}
	if s.valid(s.Current) {
		return s.Current, true
	}
	for i, item := range s.Items {
		if !item.Downloaded {
			return i, true
		}
	}
	return 0, true
}

// sameTitle compares titles ignoring case, punctuation and the character substitutions
// the extractor applies to filenames.
func sameTitle(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if strings.EqualFold(a, b) {
		return true
	}
	ka := shared.MatchKey(a)
	return ka != "" && ka == shared.MatchKey(b)
}
