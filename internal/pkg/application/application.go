package application

import (
	"context"
	"time"

	"github.com/diwise/integration-nodos/domain"
	"github.com/diwise/integration-nodos/internal/pkg/application/pipeline"
	"github.com/diwise/integration-nodos/internal/pkg/infrastructure/metrics"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"golang.org/x/sync/errgroup"
)

type Application interface {
	DataTypes(ctx context.Context) ([]domain.DataType, error)
	NodeCards(ctx context.Context) ([]domain.NodeCard, error)
	NodeView(ctx context.Context, nodeID int, filter Filter) (*domain.NodeView, error)
}

type Settings struct {
	CardWindow   time.Duration `yaml:"card_window"`
	CardPageSize int           `yaml:"card_page_size"`
	CardMaxPages int           `yaml:"card_max_pages"`
	ViewPageSize int           `yaml:"view_page_size"`
	ViewMaxPages int           `yaml:"view_max_pages"`
	Concurrency  int           `yaml:"concurrency"`
}

func DefaultSettings() Settings {
	return Settings{
		CardWindow:   24 * time.Hour,
		CardPageSize: 100,
		CardMaxPages: 20,
		ViewPageSize: 500,
		ViewMaxPages: 20,
		Concurrency:  4,
	}
}

// Filter limits the readings of a node view. Zero times are not sent upstream.
type Filter struct {
	Start time.Time
	End   time.Time
}

type app struct {
	api      NodosAPI
	pipeline *pipeline.Pipeline
	settings Settings
	metrics  *metrics.Metrics
}

func New(api NodosAPI, p *pipeline.Pipeline, settings Settings, m *metrics.Metrics) Application {
	defaults := DefaultSettings()

	if settings.CardWindow <= 0 {
		settings.CardWindow = defaults.CardWindow
	}
	if settings.CardPageSize <= 0 {
		settings.CardPageSize = defaults.CardPageSize
	}
	if settings.CardMaxPages <= 0 {
		settings.CardMaxPages = defaults.CardMaxPages
	}
	if settings.ViewPageSize <= 0 {
		settings.ViewPageSize = defaults.ViewPageSize
	}
	if settings.ViewMaxPages <= 0 {
		settings.ViewMaxPages = defaults.ViewMaxPages
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = defaults.Concurrency
	}

	return &app{
		api:      api,
		pipeline: p,
		settings: settings,
		metrics:  m,
	}
}

func (a *app) DataTypes(ctx context.Context) ([]domain.DataType, error) {
	types, err := a.api.GetDataTypes(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.NewCatalog(types).All(), nil
}

func (a *app) NodeCards(ctx context.Context) ([]domain.NodeCard, error) {
	logger := logging.GetFromContext(ctx)

	var types []domain.DataType
	var nodes []domain.Node

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		types, err = a.api.GetDataTypes(gctx)
		return
	})
	g.Go(func() (err error) {
		nodes, err = a.api.GetNodes(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog := pipeline.NewCatalog(types)
	now := a.pipeline.Now()

	cards := make([]*domain.NodeCard, len(nodes))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(a.settings.Concurrency)

	for i := range nodes {
		i := i
		g.Go(func() error {
			card, err := a.nodeCard(gctx, nodes[i], catalog, now)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn().Err(err).Int("node_id", nodes[i].ID).Msg("failed to build node card, skipping node")
				return nil
			}
			cards[i] = card
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]domain.NodeCard, 0, len(cards))
	for _, c := range cards {
		if c != nil {
			result = append(result, *c)
		}
	}

	return result, nil
}

func (a *app) nodeCard(ctx context.Context, node domain.Node, catalog *pipeline.Catalog, now time.Time) (*domain.NodeCard, error) {
	readings, _, err := a.allReadings(ctx, ReadingsQuery{
		NodeID:  node.ID,
		Start:   now.Add(-a.settings.CardWindow),
		End:     now,
		OrderBy: "timestamp",
		Order:   "asc",
	}, a.settings.CardPageSize, a.settings.CardMaxPages)
	if err != nil {
		return nil, err
	}

	a.pipeline.Normalize(readings)
	a.metrics.ReadingsProcessed(len(readings))

	groups := a.pipeline.Group(readings, catalog)
	selected := a.pipeline.Select(catalog.Resolve(node.Types))

	values := make([]domain.TypeValue, 0, len(selected))
	for _, t := range selected {
		values = append(values, a.typeValue(t, groups))
	}

	return &domain.NodeCard{
		Node:      node,
		Values:    values,
		UpdatedAt: now,
	}, nil
}

func (a *app) NodeView(ctx context.Context, nodeID int, filter Filter) (*domain.NodeView, error) {
	var node *domain.Node
	var types []domain.DataType
	var readings []domain.Reading
	var total int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		node, err = a.api.GetNode(gctx, nodeID)
		return
	})
	g.Go(func() (err error) {
		types, err = a.api.GetDataTypes(gctx)
		return
	})
	g.Go(func() (err error) {
		readings, total, err = a.allReadings(gctx, ReadingsQuery{
			NodeID:  nodeID,
			Start:   filter.Start,
			End:     filter.End,
			OrderBy: "timestamp",
			Order:   "asc",
		}, a.settings.ViewPageSize, a.settings.ViewMaxPages)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog := pipeline.NewCatalog(types)

	a.pipeline.Normalize(readings)
	a.metrics.ReadingsProcessed(len(readings))

	groups := a.pipeline.Group(readings, catalog)
	detail := a.pipeline.DetailTypes(catalog.Resolve(node.Types))

	view := &domain.NodeView{
		Node:   *node,
		Recent: make([]domain.TypeValue, 0, len(detail)),
		Series: make([]domain.Series, 0, len(detail)),
		Table:  pipeline.MergeNewestFirst(groups, a.pipeline.Location()),
		Total:  total,
	}

	for _, t := range detail {
		tv := a.typeValue(t, groups)
		view.Recent = append(view.Recent, tv)

		points := seriesPoints(groups[t.LogicalCode])
		if len(points) > 0 {
			view.Series = append(view.Series, domain.Series{Type: tv, Points: points})
		}
	}

	return view, nil
}

// allReadings pages through the readings matching q in ascending order. When
// there are more than maxPages pages only the newest maxPages are fetched, so
// the last reading returned is always the newest one.
func (a *app) allReadings(ctx context.Context, q ReadingsQuery, pageSize, maxPages int) ([]domain.Reading, int, error) {
	q.Limit = pageSize
	q.Page = 1

	first, err := a.api.GetReadings(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	readings := append([]domain.Reading{}, first.Items...)
	total := first.Info.TotalItems
	last := len(first.Items)

	pages := maxPages
	if total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}

	from := 2
	if pages > maxPages {
		from = pages - maxPages + 1
		readings = readings[:0]
		logger := logging.GetFromContext(ctx)
		logger.Warn().Int("node_id", q.NodeID).Int("total", total).Msg("too many readings, only the newest pages are fetched")
	}

	for p := from; p <= pages && last == pageSize; p++ {
		q.Page = p

		page, err := a.api.GetReadings(ctx, q)
		if err != nil {
			return nil, 0, err
		}

		readings = append(readings, page.Items...)
		last = len(page.Items)
	}

	if total < len(readings) {
		total = len(readings)
	}

	return readings, total, nil
}

func (a *app) typeValue(t domain.DataType, groups pipeline.GroupedSeries) domain.TypeValue {
	visual, name := a.pipeline.Visual(&t)

	tv := domain.TypeValue{
		TypeID:  t.ID,
		Code:    t.LogicalCode,
		Name:    name,
		Symbol:  t.Symbol,
		Icon:    visual.Icon,
		Color:   visual.Color,
		Display: pipeline.Missing,
	}

	latest, ok := groups.Latest(t.LogicalCode)
	if !ok {
		return tv
	}

	converter := a.pipeline.Converter()
	v := converter.Convert(t.LogicalCode, latest.Value)

	tv.Value = &v
	tv.Display = converter.Format(t.LogicalCode, &latest.Value, t.Symbol)
	tv.Since = a.pipeline.TimeSince(&latest)

	if ms, ok := latest.Timestamp.Millis(); ok {
		tv.ObservedAt = ms
		tv.Time = pipeline.FormatClock(time.UnixMilli(ms).In(a.pipeline.Location()))
	}

	return tv
}

func seriesPoints(readings []domain.Reading) []domain.SeriesPoint {
	points := make([]domain.SeriesPoint, 0, len(readings))
	for _, r := range readings {
		if ms, ok := r.Timestamp.Millis(); ok {
			points = append(points, domain.SeriesPoint{Timestamp: ms, Value: r.Value})
		}
	}
	return points
}
