package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/deckgraph/internal/deckservice"
)

// RouterConfig wires optional collaborators into the router.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	Logger *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *deckservice.Service, cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Get("/decks", h.ListDecks)
	r.Post("/decks", h.CreateDeck)
	r.Get("/decks/*", h.GetDeck)
	r.Put("/decks/*", h.UpdateDeck)
	r.Delete("/decks/*", h.DeleteDeck)
	r.Get("/rendered/*", h.RenderDeck)

	r.Get("/search", h.Search)

	r.Route("/graph", func(r chi.Router) {
		r.Get("/", h.Graph)
		r.Get("/layout", h.Layout)
		r.Get("/layout/stream", h.StreamLayout)
		r.Post("/explore", h.Explore)
		r.Get("/neighbourhood/*", h.Neighbourhood)
		r.Route("/sessions/{session}", func(r chi.Router) {
			r.Post("/toggle", h.ToggleNode)
			r.Post("/drag", h.DragNode)
			r.Post("/release", h.ReleaseNode)
		})
	})

	r.Post("/markup/render", h.RenderMarkup)
	r.Post("/markup/split", h.SplitMarkup)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
