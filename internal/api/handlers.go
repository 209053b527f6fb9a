package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/deckgraph/internal/deckservice"
	"github.com/starford/deckgraph/internal/index"
	"github.com/starford/deckgraph/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *deckservice.Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *deckservice.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// deckPath extracts the wildcard path. Encoded slashes are accepted.
func deckPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDecks handles GET /api/decks.
func (h *Handler) ListDecks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListDecks(r.Context(), index.ListQuery{
		Limit:  limit,
		Offset: offset,
		Kind:   q.Get("kind"),
		Tag:    q.Get("tag"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		h.writeError(w, "list decks", err)
		return
	}
	writeJSON(w, http.StatusOK, DeckListResponse{Decks: items, Total: total})
}

// GetDeck handles GET /api/decks/*.
func (h *Handler) GetDeck(w http.ResponseWriter, r *http.Request) {
	p := deckPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.svc.GetDeck(r.Context(), p)
	if err != nil {
		h.writeError(w, "get deck", err, slog.String("path", p))
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// CreateDeck handles POST /api/decks.
func (h *Handler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req CreateDeckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	d, err := h.svc.CreateDeck(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		h.writeError(w, "create deck", err, slog.String("path", req.Path))
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusCreated, d)
}

// UpdateDeck handles PUT /api/decks/*. If-Match carries the checksum the
// client last saw.
func (h *Handler) UpdateDeck(w http.ResponseWriter, r *http.Request) {
	p := deckPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateDeckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	d, err := h.svc.UpdateDeck(r.Context(), p, []byte(req.Content), ifMatch)
	if err != nil {
		h.writeError(w, "update deck", err, slog.String("path", p))
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// DeleteDeck handles DELETE /api/decks/*.
func (h *Handler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	p := deckPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteDeck(r.Context(), p); err != nil {
		h.writeError(w, "delete deck", err, slog.String("path", p))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenderDeck handles GET /api/rendered/*: every note of the deck compiled
// with one sidenote counter.
func (h *Handler) RenderDeck(w http.ResponseWriter, r *http.Request) {
	p := deckPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	notes, err := h.svc.RenderDeck(r.Context(), p)
	if err != nil {
		h.writeError(w, "render deck", err, slog.String("path", p))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": p, "notes": notes})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		h.writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph(r.Context())
	if err != nil {
		h.writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, toGraphResponse(g.Decks, g.Links))
}

// layoutQuery reads root, depth and kind from the query string.
func layoutQuery(r *http.Request) (deckservice.LayoutRequest, error) {
	q := r.URL.Query()
	var req deckservice.LayoutRequest
	if v := q.Get("root"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, errors.New("root must be a deck id")
		}
		req.Root = id
	}
	if v := q.Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			return req, errors.New("depth must be a non-negative integer")
		}
		req.Depth = d
	}
	req.Kind = q.Get("kind")
	if v := q.Get("interactive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("interactive must be a boolean")
		}
		req.Interactive = b
	}
	return req, nil
}

// Layout handles GET /api/graph/layout.
func (h *Handler) Layout(w http.ResponseWriter, r *http.Request) {
	req, err := layoutQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Layout(r.Context(), req)
	if err != nil {
		h.writeError(w, "layout", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Explore handles POST /api/graph/explore: restore states, apply one
// toggle and return the settled layout.
func (h *Handler) Explore(w http.ResponseWriter, r *http.Request) {
	var req deckservice.LayoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Layout(r.Context(), req)
	if err != nil {
		h.writeError(w, "explore", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StreamLayout handles GET /api/graph/layout/stream. Each simulation tick
// is sent as a layout.frame event; layout.done follows the settled frame.
// With interactive=true the stream stays open until the client leaves and
// the session named in every frame accepts toggle, drag and release.
func (h *Handler) StreamLayout(w http.ResponseWriter, r *http.Request) {
	req, err := layoutQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var write func(sse.Event) error
	var last deckservice.LayoutFrame
	err = h.svc.StreamLayout(r.Context(), req, func(f deckservice.LayoutFrame) error {
		if write == nil {
			var serr error
			if write, serr = sse.Stream(w); serr != nil {
				return serr
			}
		}
		last = f
		return write(sse.Event{Type: sse.LayoutFrame, Data: f})
	})

	switch {
	case write == nil && err != nil:
		h.writeError(w, "layout stream", err)
	case err != nil:
		if r.Context().Err() == nil {
			h.logger.Warn("api: layout stream aborted", slog.String("error", err.Error()))
			_ = write(sse.Event{Type: sse.LayoutError, Data: errorBody(err.Error())})
		}
	case write != nil:
		_ = write(sse.Event{Type: sse.LayoutDone, Data: map[string]any{
			"session":    last.Session,
			"generation": last.Generation,
			"nodes":      len(last.Nodes),
		}})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody("no frames produced"))
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*deckservice.LayoutSession, bool) {
	ls, err := h.svc.Session(chi.URLParam(r, "session"))
	if err != nil {
		h.writeError(w, "layout session", err)
		return nil, false
	}
	return ls, true
}

func decodeNode(w http.ResponseWriter, r *http.Request, v *SessionNodeRequest) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if v.ID == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return false
	}
	return true
}

// ToggleNode handles POST /api/graph/sessions/{session}/toggle.
func (h *Handler) ToggleNode(w http.ResponseWriter, r *http.Request) {
	ls, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SessionNodeRequest
	if !decodeNode(w, r, &req) {
		return
	}
	state, err := ls.Toggle(r.Context(), req.ID)
	if err != nil {
		h.writeError(w, "toggle", err, slog.Int64("deck_id", req.ID))
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{ID: req.ID, State: state})
}

// DragNode handles POST /api/graph/sessions/{session}/drag.
func (h *Handler) DragNode(w http.ResponseWriter, r *http.Request) {
	ls, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SessionNodeRequest
	if !decodeNode(w, r, &req) {
		return
	}
	if req.X == nil || req.Y == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("x and y are required"))
		return
	}
	ls.Drag(req.ID, *req.X, *req.Y)
	w.WriteHeader(http.StatusAccepted)
}

// ReleaseNode handles POST /api/graph/sessions/{session}/release.
func (h *Handler) ReleaseNode(w http.ResponseWriter, r *http.Request) {
	ls, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SessionNodeRequest
	if !decodeNode(w, r, &req) {
		return
	}
	ls.Release(req.ID)
	w.WriteHeader(http.StatusAccepted)
}

// Neighbourhood handles GET /api/graph/neighbourhood/*?depth=N.
func (h *Handler) Neighbourhood(w http.ResponseWriter, r *http.Request) {
	p := deckPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))
	n, err := h.svc.NeighbourhoodOf(r.Context(), p, depth)
	if err != nil {
		h.writeError(w, "neighbourhood", err, slog.String("path", p))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// RenderMarkup handles POST /api/markup/render. Each request numbers
// sidenotes from zero.
func (h *Handler) RenderMarkup(w http.ResponseWriter, r *http.Request) {
	var req MarkupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RenderMarkup(r.Context(), req.Content, nil)
	if err != nil {
		h.writeError(w, "render markup", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SplitMarkup handles POST /api/markup/split.
func (h *Handler) SplitMarkup(w http.ResponseWriter, r *http.Request) {
	var req MarkupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	notes, err := h.svc.Split(r.Context(), req.Content)
	if err != nil {
		h.writeError(w, "split markup", err)
		return
	}
	writeJSON(w, http.StatusOK, SplitResponse{Notes: notes})
}
