// Package layoutcache stores computed graph layouts keyed by a fingerprint
// of everything that determines them.
package layoutcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/starford/deckgraph/internal/checksum"
	"github.com/starford/deckgraph/internal/graph"
)

// ErrMiss is returned by Get when no layout is stored under the key.
var ErrMiss = errors.New("layoutcache: miss")

// Cache is a layout store.
type Cache interface {
	Get(ctx context.Context, key string) (*graph.Layout, error)
	Set(ctx context.Context, key string, l *graph.Layout) error
	Purge(ctx context.Context) error
}

// Params are the layout inputs other than the graph itself.
type Params struct {
	Root   int64
	Depth  int
	Kind   string
	States map[int64]graph.ExpandedState
	Toggle int64
	Ticks  int
	Forces graph.Forces
	// Label box metrics.
	CharWidth, LineHeight float64
}

// Key fingerprints the graph and params. Map iteration order does not
// affect the result.
func Key(decks []graph.Deck, adj graph.Adjacency, p Params) string {
	f := checksum.NewFingerprint()

	ds := append([]graph.Deck(nil), decks...)
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
	f.Int64(int64(len(ds)))
	for _, d := range ds {
		f.Int64(d.ID).String(d.Kind).String(d.Name)
	}

	ids := make([]int64, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	f.Int64(int64(len(ids)))
	for _, id := range ids {
		f.Int64(id).Int64(int64(len(adj[id])))
		for _, nb := range adj[id] {
			f.Int64(nb.ID).Int64(int64(nb.Kind)).Float64(nb.Strength)
		}
	}

	f.Int64(p.Root).Int64(int64(p.Depth)).String(p.Kind).Int64(p.Toggle).Int64(int64(p.Ticks))
	sids := make([]int64, 0, len(p.States))
	for id := range p.States {
		sids = append(sids, id)
	}
	sort.Slice(sids, func(i, j int) bool { return sids[i] < sids[j] })
	f.Int64(int64(len(sids)))
	for _, id := range sids {
		f.Int64(id).Int64(int64(p.States[id]))
	}

	fc := p.Forces
	for _, v := range []float64{
		fc.LinkDistance, fc.ManyBodyStrength, fc.DistanceMin, fc.CollideRadius, fc.CollideStrength,
		fc.LabelStrength, fc.CenterXStrength, fc.CenterYStrength, fc.VelocityDecay,
	} {
		f.Float64(v)
	}
	f.Float64(p.CharWidth).Float64(p.LineHeight)
	return f.Hex()
}

func encode(l *graph.Layout) ([]byte, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("layoutcache: marshal: %w", err)
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("layoutcache: creating zstd encoder: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, fmt.Errorf("layoutcache: compressing: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("layoutcache: closing encoder: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*graph.Layout, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("layoutcache: creating zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("layoutcache: decompressing: %w", err)
	}
	var l graph.Layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("layoutcache: unmarshal: %w", err)
	}
	return &l, nil
}
