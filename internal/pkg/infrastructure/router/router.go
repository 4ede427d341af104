package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/diwise/integration-nodos/domain"
	"github.com/diwise/integration-nodos/internal/pkg/application"
	"github.com/diwise/integration-nodos/internal/pkg/application/pipeline"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Router interface {
	Start(port string) error
}

type CardSource interface {
	Cards() ([]domain.NodeCard, time.Time, bool)
	Refresh(ctx context.Context) error
}

type routerStruct struct {
	router chi.Router
	log    zerolog.Logger
	app    application.Application
	cards  CardSource
	loc    *time.Location
}

// SetupRouter registers the routes. Zone-less start and end dates of node views
// are read in loc, the location readings are normalized in.
func SetupRouter(chiRouter chi.Router, log zerolog.Logger, app application.Application, cards CardSource, gatherer prometheus.Gatherer, loc *time.Location) *routerStruct {
	if loc == nil {
		loc = time.UTC
	}

	r := &routerStruct{
		router: chiRouter,
		log:    log,
		app:    app,
		cards:  cards,
		loc:    loc,
	}

	chiRouter.Use(middleware.Logger)
	chiRouter.Get("/health", r.health)
	chiRouter.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	chiRouter.Route("/api", func(api chi.Router) {
		api.Get("/tipos", r.dataTypes)
		api.Get("/nodos", r.nodeCards)
		api.Get("/nodos/{id}", r.nodeView)
	})

	return r
}

func (r *routerStruct) Start(port string) error {
	r.log.Info().Str("port", port).Msg("starting to listen for connections")
	return http.ListenAndServe(fmt.Sprintf(":%s", port), r.router)
}

func (router *routerStruct) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (router *routerStruct) dataTypes(w http.ResponseWriter, r *http.Request) {
	types, err := router.app.DataTypes(r.Context())
	if err != nil {
		router.fail(w, err, "failed to retrieve data types")
		return
	}

	router.respond(w, http.StatusOK, types)
}

func (router *routerStruct) nodeCards(w http.ResponseWriter, r *http.Request) {
	cards, updatedAt, ok := router.cards.Cards()
	if !ok {
		// a client going away must not cancel the refresh other requests wait for
		ctx := context.WithoutCancel(r.Context())
		if err := router.cards.Refresh(ctx); err != nil && !errors.Is(err, application.ErrSuperseded) {
			router.log.Error().Err(err).Msg("on demand refresh of node cards failed")
		}
		cards, updatedAt, ok = router.cards.Cards()
	}

	if !ok {
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	router.respond(w, http.StatusOK, cards)
}

func (router *routerStruct) nodeView(w http.ResponseWriter, r *http.Request) {
	nodeID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || nodeID <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	filter := application.Filter{}

	if filter.Start, err = queryTime(r, "start", router.loc); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if filter.End, err = queryTime(r, "end", router.loc); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	view, err := router.app.NodeView(r.Context(), nodeID, filter)
	if err != nil {
		router.fail(w, err, "failed to build node view")
		return
	}

	router.respond(w, http.StatusOK, view)
}

func queryTime(r *http.Request, key string, loc *time.Location) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}

	t, ok := pipeline.ParseTimestamp(value, loc)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid %s %q", key, value)
	}

	return t, nil
}

func (router *routerStruct) fail(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, application.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	router.log.Error().Err(err).Msg(msg)
	w.WriteHeader(http.StatusBadGateway)
}

func (router *routerStruct) respond(w http.ResponseWriter, code int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		router.log.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
