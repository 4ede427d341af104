package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diwise/integration-nodos/domain"
	"github.com/diwise/integration-nodos/internal/pkg/infrastructure/metrics"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

type SnapshotStore interface {
	SaveCards(ctx context.Context, cards []domain.NodeCard) error
	LoadCards(ctx context.Context) ([]domain.NodeCard, error)
}

// Publisher forwards freshly computed node cards to an outbound system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, cards []domain.NodeCard) error
}

// Refresher keeps the node cards up to date. Refreshes may overlap when the
// upstream API is slow, the loader makes sure an older one never overwrites the
// cards of a newer one.
type Refresher struct {
	app        Application
	store      SnapshotStore
	publishers []Publisher
	interval   time.Duration
	metrics    *metrics.Metrics

	loader   Loader[[]domain.NodeCard]
	inFlight atomic.Int32

	mu        sync.RWMutex
	cards     []domain.NodeCard
	updatedAt time.Time
}

func NewRefresher(app Application, store SnapshotStore, interval time.Duration, m *metrics.Metrics, publishers ...Publisher) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Refresher{
		app:        app,
		store:      store,
		publishers: publishers,
		interval:   interval,
		metrics:    m,
	}
}

// Cards returns the cached cards, when they were computed and whether any
// cards have been computed or restored yet.
func (r *Refresher) Cards() ([]domain.NodeCard, time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cards == nil {
		return nil, time.Time{}, false
	}

	return append([]domain.NodeCard{}, r.cards...), r.updatedAt, true
}

func (r *Refresher) setCards(cards []domain.NodeCard, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cards = cards
	r.updatedAt = at
}

// Restore fills an empty cache from the snapshot store.
func (r *Refresher) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	if _, _, ok := r.Cards(); ok {
		return nil
	}

	cards, err := r.store.LoadCards(ctx)
	if err != nil {
		return err
	}

	updatedAt := time.Time{}
	for _, c := range cards {
		if c.UpdatedAt.After(updatedAt) {
			updatedAt = c.UpdatedAt
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cards == nil && len(cards) > 0 {
		r.cards = cards
		r.updatedAt = updatedAt
	}

	return nil
}

func (r *Refresher) Refresh(ctx context.Context) error {
	logger := logging.GetFromContext(ctx)

	r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	cards, err := r.loader.Load(ctx, r.app.NodeCards, func(cards []domain.NodeCard) {
		r.setCards(cards, time.Now())
	})
	if errors.Is(err, ErrSuperseded) {
		r.metrics.RefreshDone("superseded")
		logger.Debug().Msg("node card refresh superseded by a newer one")
		return err
	}
	if err != nil {
		r.metrics.RefreshDone("error")
		return err
	}

	r.metrics.RefreshDone("ok")
	logger.Info().Int("cards", len(cards)).Msg("node cards refreshed")

	var errs []error

	if r.store != nil {
		if err := r.store.SaveCards(ctx, cards); err != nil {
			logger.Error().Err(err).Msg("failed to save node card snapshot")
			errs = append(errs, err)
		}
	}

	for _, p := range r.publishers {
		err := p.Publish(ctx, cards)
		r.metrics.Published(p.Name(), err)
		if err != nil {
			logger.Error().Err(err).Str("sink", p.Name()).Msg("failed to publish node cards")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Run refreshes the cards right away and then once every interval until ctx is
// done. Ticks are skipped while a refresh is still running.
func (r *Refresher) Run(ctx context.Context) {
	logger := logging.GetFromContext(ctx)

	refresh := func() {
		defer r.inFlight.Add(-1)

		err := r.Refresh(ctx)
		if err != nil && !errors.Is(err, ErrSuperseded) && ctx.Err() == nil {
			logger.Error().Err(err).Msg("node card refresh failed")
		}
	}

	r.inFlight.Add(1)
	go refresh()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.inFlight.Load() > 0 {
				logger.Debug().Msg("node card refresh still running, skipping tick")
				continue
			}
			r.inFlight.Add(1)
			go refresh()
		}
	}
}
