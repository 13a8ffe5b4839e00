// Package blueprint defines the story blueprint document produced by the
// model and recovered by the recovery engine: a title, synopsis, cast and an
// ordered list of chapter outlines.
package blueprint

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrChapterCount is returned when a blueprint parses cleanly but carries a
// different number of chapters than requested. It is an application-level,
// retryable condition distinct from the parse errors of the recovery engine:
// callers typically re-invoke the model rather than re-attempt parsing.
var ErrChapterCount = errors.New("blueprint chapter count does not match the requested count")

// Character is one cast member descriptor.
type Character struct {
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
	Descriptor string `json:"descriptor,omitempty"`
}

// Chapter is a single chapter outline. Chapter prose is generated separately
// and never passes through the recovery engine.
type Chapter struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Blueprint is the structured story document. Only the chapters field is
// guaranteed by the recovery engine; everything else is passed through from
// whatever the model produced and may be empty.
type Blueprint struct {
	Title    string      `json:"title"`
	Synopsis string      `json:"synopsis,omitempty"`
	Genre    string      `json:"genre,omitempty"`
	Tone     string      `json:"tone,omitempty"`
	Cast     []Character `json:"cast,omitempty"`
	Chapters []Chapter   `json:"chapters"`
}

// FromDocument converts a recovered document into a typed Blueprint. The
// document has already passed the shape invariant, so a chapters array is
// present; fields the model invented beyond the known ones are dropped.
func FromDocument(doc map[string]any) (*Blueprint, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encoding recovered document: %w", err)
	}
	var b Blueprint
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decoding blueprint: %w", err)
	}
	return &b, nil
}

// CheckChapterCount verifies the blueprint has exactly want chapters,
// returning [ErrChapterCount] otherwise. A want of zero disables the check.
func (b *Blueprint) CheckChapterCount(want int) error {
	if want <= 0 {
		return nil
	}
	if len(b.Chapters) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrChapterCount, len(b.Chapters), want)
	}
	return nil
}
