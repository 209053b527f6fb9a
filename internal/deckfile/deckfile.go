// Package deckfile reads and writes .deck files: YAML frontmatter describing
// the deck and its references, followed by a note markup body.
package deckfile

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/deckgraph/internal/graph"
	"github.com/starford/deckgraph/internal/markup"
)

// Ext is the file extension of deck files.
const Ext = ".deck"

const delim = "---"

var kindRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Ref is a reference from one deck to another, by vault path.
type Ref struct {
	To   string `yaml:"to" json:"to"`
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// Validate implements validation.Validatable.
func (r Ref) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.To, validation.Required),
		validation.Field(&r.Kind, validation.In(toAny(graph.RefKindNames())...)),
	)
}

// Header is the frontmatter of a deck file.
type Header struct {
	Name string   `yaml:"name" json:"name"`
	Kind string   `yaml:"kind" json:"kind"`
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Refs []Ref    `yaml:"refs,omitempty" json:"refs,omitempty"`
}

// Validate implements validation.Validatable.
func (h Header) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&h.Kind, validation.Required, validation.Match(kindRe)),
		validation.Field(&h.Refs),
	)
}

// File is a parsed deck file.
type File struct {
	Header Header
	Body   string
}

// Parse splits data into header and body. Content without frontmatter is
// all body with an empty header.
func Parse(data []byte) (*File, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return &File{Body: string(data)}, nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return &File{Body: string(data)}, nil
	}

	var h Header
	if err := yaml.Unmarshal(rest[:idx], &h); err != nil {
		return nil, fmt.Errorf("deckfile: frontmatter: %w", err)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return &File{Header: h, Body: body}, nil
}

// Marshal renders f in deck file form.
func Marshal(f *File) ([]byte, error) {
	fm, err := yaml.Marshal(f.Header)
	if err != nil {
		return nil, fmt.Errorf("deckfile: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(fm)
	buf.WriteString(delim + "\n")
	buf.WriteString(f.Body)
	return buf.Bytes(), nil
}

// Validate checks the header and that the body is well-formed markup.
func (f *File) Validate() error {
	if err := f.Header.Validate(); err != nil {
		return err
	}
	if _, err := markup.ParseString(f.Body); err != nil {
		return validation.Errors{"body": err}
	}
	return nil
}

// Notes splits the body into its top-level markup blocks.
func (f *File) Notes() []string {
	notes, err := markup.SplitContent(f.Body)
	if err != nil {
		return nil
	}
	return notes
}

// AllRefs returns header refs followed by inline links to other deck files,
// deduplicated by target. Inline links get the plain "ref" kind. A body with
// malformed links contributes nothing.
func (f *File) AllRefs() []Ref {
	seen := make(map[string]bool)
	var out []Ref
	add := func(r Ref) {
		r.To = strings.TrimSpace(r.To)
		if r.To == "" || seen[r.To] {
			return
		}
		seen[r.To] = true
		out = append(out, r)
	}
	for _, r := range f.Header.Refs {
		add(r)
	}
	for _, url := range inlineLinks(f.Body) {
		if strings.HasSuffix(url, Ext) && !strings.Contains(url, "://") {
			add(Ref{To: url})
		}
	}
	return out
}

// DisplayName returns the header name, or the file name without extension.
func (f *File) DisplayName(p string) string {
	if f.Header.Name != "" {
		return f.Header.Name
	}
	return strings.TrimSuffix(path.Base(p), Ext)
}

func inlineLinks(body string) []string {
	nodes, err := markup.ParseString(body)
	if err != nil {
		return nil
	}
	var out []string
	var walk func(markup.Node)
	walk = func(n markup.Node) {
		switch v := n.(type) {
		case *markup.Link:
			out = append(out, v.URL)
		case markup.Container:
			for _, c := range v.Children() {
				walk(c)
			}
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
