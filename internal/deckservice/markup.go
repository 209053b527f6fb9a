package deckservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/deckgraph/internal/apperr"
	"github.com/starford/deckgraph/internal/markup"
)

// Rendered is one compiled note.
type Rendered struct {
	HTML     string           `json:"html"`
	Elements []markup.Element `json:"elements"`
	// Error is set when the note has malformed link syntax; HTML then holds
	// the escaped raw text.
	Error string `json:"error,omitempty"`
}

// RenderMarkup compiles source drawing sidenote ids from counter. A nil
// counter numbers from zero. Malformed links are not an error: the result
// carries the escaped source and the parse error message.
func (s *Service) RenderMarkup(_ context.Context, source string, counter *markup.SidenoteCounter) (*Rendered, error) {
	elements, err := markup.CompileString(source, counter)
	s.metrics.ObserveCompile(err)
	if err != nil {
		var perr *markup.ParseError
		if !errors.As(err, &perr) {
			s.logger.Error("deckservice: compile markup", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
		}
		html, _ := markup.RenderNote(source, counter)
		return &Rendered{HTML: html, Elements: []markup.Element{}, Error: perr.Error()}, nil
	}
	var buf bytes.Buffer
	if err := markup.RenderHTML(&buf, elements); err != nil {
		return nil, err
	}
	if elements == nil {
		elements = []markup.Element{}
	}
	return &Rendered{HTML: buf.String(), Elements: elements}, nil
}

// RenderDeck splits a deck's body into notes and compiles each one with a
// shared counter so sidenote ids are unique across the deck.
func (s *Service) RenderDeck(ctx context.Context, p string) ([]Rendered, error) {
	d, err := s.GetDeck(ctx, p)
	if err != nil {
		return nil, err
	}
	counter := &markup.SidenoteCounter{}
	out := make([]Rendered, 0, len(d.Notes))
	for _, note := range d.Notes {
		r, err := s.RenderMarkup(ctx, note, counter)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// Split breaks content into top-level notes.
func (s *Service) Split(_ context.Context, content string) ([]string, error) {
	notes, err := markup.SplitContent(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if notes == nil {
		notes = []string{}
	}
	return notes, nil
}
