package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/diwise/integration-nodos/domain"
	"github.com/diwise/integration-nodos/internal/pkg/application/pipeline"
	"github.com/matryer/is"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	types       []domain.DataType
	nodes       []domain.Node
	readings    map[int][]domain.Reading
	failReading map[int]bool

	mu      sync.Mutex
	queries []ReadingsQuery
}

func (f *fakeAPI) GetDataTypes(ctx context.Context) ([]domain.DataType, error) {
	return append([]domain.DataType{}, f.types...), nil
}

func (f *fakeAPI) GetNodes(ctx context.Context) ([]domain.Node, error) {
	return append([]domain.Node{}, f.nodes...), nil
}

func (f *fakeAPI) GetNode(ctx context.Context, nodeID int) (*domain.Node, error) {
	for _, n := range f.nodes {
		if n.ID == nodeID {
			node := n
			return &node, nil
		}
	}
	return nil, fmt.Errorf("/nodos/%d: %w", nodeID, ErrNotFound)
}

func (f *fakeAPI) GetReadings(ctx context.Context, q ReadingsQuery) (*domain.ReadingsPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.failReading[q.NodeID] {
		return nil, errors.New("request failed, expected status code 200, got 500")
	}

	all := f.readings[q.NodeID]

	page := q.Page
	if page < 1 {
		page = 1
	}
	from := (page - 1) * q.Limit
	to := from + q.Limit
	if from > len(all) {
		from = len(all)
	}
	if to > len(all) || q.Limit <= 0 {
		to = len(all)
	}

	items := make([]domain.Reading, to-from)
	copy(items, all[from:to])

	return &domain.ReadingsPage{
		Info:  domain.PaginationInfo{TotalItems: len(all), CurrentPage: page, Limit: q.Limit},
		Items: items,
	}, nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		types: []domain.DataType{
			{ID: 1, LogicalCode: pipeline.TemperatureCode, Symbol: "°C", DisplayName: "Temperatura"},
			{ID: 3, LogicalCode: pipeline.VoltageCode, Symbol: "V", DisplayName: "Tensión"},
			{ID: 7, LogicalCode: pipeline.WaterLevelCode, Symbol: "m", DisplayName: "Nivel Hidrométrico"},
			{ID: 9, LogicalCode: 30, Symbol: "mm", DisplayName: "Precipitación", Icon: "fa-cloud"},
		},
		nodes: []domain.Node{
			{ID: 1, Identifier: "NODO-RIO-01", Types: domain.TypeRefs{1, 3, 7, 9}},
			{ID: 2, Identifier: "NODO-RIO-02", Types: domain.TypeRefs{3}},
			{ID: 3, Identifier: "NODO-RIO-03"},
		},
		readings: map[int][]domain.Reading{
			1: {
				{ID: 100, NodeID: 1, TypeID: 16, Value: 3.70, Timestamp: domain.TimestampText("2024-05-01T11:00:00")},
				{ID: 101, NodeID: 1, TypeID: 16, Value: 3.7249, Timestamp: domain.TimestampText("2024-05-01T11:30:00")},
				{ID: 102, NodeID: 1, TypeID: 1, Value: 21.46, Timestamp: domain.EpochMillis(now.Add(-5 * time.Minute).UnixMilli())},
				{ID: 103, NodeID: 1, TypeID: 25, Value: 123.456, Timestamp: domain.TimestampText("2024-05-01T11:59:30Z")},
			},
		},
		failReading: map[int]bool{2: true},
	}
}

func newTestApp(t *testing.T, api NodosAPI, settings Settings) Application {
	p, err := pipeline.New(pipeline.DefaultConfig(), pipeline.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}
	return New(api, p, settings, nil)
}

func TestThatNodeCardsSelectsMandatoryTypeFirst(t *testing.T) {
	is := is.New(t)

	api := newFakeAPI()
	a := newTestApp(t, api, DefaultSettings())

	cards, err := a.NodeCards(context.Background())
	is.NoErr(err)
	is.Equal(len(cards), 2) // the node whose readings failed is skipped

	card := cards[0]
	is.Equal(card.Node.ID, 1)
	is.Equal(card.UpdatedAt, now)
	is.Equal(len(card.Values), 3)

	is.Equal(card.Values[0].Name, "Tensión")
	is.Equal(card.Values[0].Display, "3.72V")
	is.Equal(card.Values[0].Since, "Hace 30 minutos")
	is.Equal(card.Values[0].Icon, "fa-bolt")

	is.Equal(card.Values[1].Name, "Temperatura")
	is.Equal(card.Values[1].Display, "21.5°C")
	is.Equal(card.Values[1].Since, "Hace 5 minutos")
	is.Equal(card.Values[1].Time, "11:55 hs")

	is.Equal(card.Values[2].Name, "Nivel Hidrométrico")
	is.Equal(*card.Values[2].Value, 1.23)
	is.Equal(card.Values[2].Display, "1.23m")
	is.Equal(card.Values[2].Since, "Hace menos de un minuto")

	is.Equal(cards[1].Node.ID, 3)
	is.Equal(len(cards[1].Values), 0)
}

func TestThatNodeCardsQueriesTheLastDay(t *testing.T) {
	is := is.New(t)

	api := newFakeAPI()
	a := newTestApp(t, api, DefaultSettings())

	_, err := a.NodeCards(context.Background())
	is.NoErr(err)

	is.Equal(len(api.queries), 3)
	for _, q := range api.queries {
		is.Equal(q.Start, now.Add(-24*time.Hour))
		is.Equal(q.End, now)
		is.Equal(q.Limit, 100)
		is.Equal(q.OrderBy, "timestamp")
		is.Equal(q.Order, "asc")
	}
}

func TestThatNodeCardsUseTheNewestReadingAcrossPages(t *testing.T) {
	is := is.New(t)

	api := newFakeAPI()
	api.readings[2] = voltageEveryMinute(2, 150)
	api.failReading = nil

	cards, err := newTestApp(t, api, DefaultSettings()).NodeCards(context.Background())
	is.NoErr(err)

	card := cards[1]
	is.Equal(card.Node.ID, 2)
	is.Equal(*card.Values[0].Value, 149.0)
	is.Equal(card.Values[0].Since, "Hace un minuto")
}

func TestThatNodeCardsFetchOnlyTheNewestPages(t *testing.T) {
	is := is.New(t)

	api := newFakeAPI()
	api.readings[2] = voltageEveryMinute(2, 150)
	api.failReading = nil

	settings := DefaultSettings()
	settings.CardPageSize = 10
	settings.CardMaxPages = 2

	cards, err := newTestApp(t, api, settings).NodeCards(context.Background())
	is.NoErr(err)
	is.Equal(*cards[1].Values[0].Value, 149.0)

	pages := []int{}
	for _, q := range api.queries {
		if q.NodeID == 2 {
			pages = append(pages, q.Page)
		}
	}
	sort.Ints(pages)
	is.Equal(pages, []int{1, 14, 15}) // first page for the total, then the last two
}

func voltageEveryMinute(nodeID, n int) []domain.Reading {
	readings := make([]domain.Reading, 0, n)
	for i := 0; i < n; i++ {
		readings = append(readings, domain.Reading{
			ID:        1000 + i,
			NodeID:    nodeID,
			TypeID:    pipeline.VoltageCode,
			Value:     float64(i),
			Timestamp: domain.EpochMillis(now.Add(-time.Duration(n-i) * time.Minute).UnixMilli()),
		})
	}
	return readings
}

func TestThatNodeViewGroupsReadingsPerType(t *testing.T) {
	is := is.New(t)

	api := newFakeAPI()
	settings := DefaultSettings()
	settings.ViewPageSize = 2
	a := newTestApp(t, api, settings)

	view, err := a.NodeView(context.Background(), 1, Filter{})
	is.NoErr(err)

	is.Equal(len(api.queries), 2) // two pages of two readings
	is.Equal(view.Total, 4)

	is.Equal(len(view.Recent), 3)
	is.Equal(view.Recent[0].Name, "Temperatura")
	is.Equal(view.Recent[1].Display, "1.23m")
	is.Equal(view.Recent[2].Name, "Precipitación")
	is.Equal(view.Recent[2].Display, pipeline.Missing)
	is.Equal(view.Recent[2].Icon, "fa-cloud")

	is.Equal(len(view.Series), 2)
	is.Equal(view.Series[1].Type.Code, pipeline.WaterLevelCode)
	is.Equal(view.Series[1].Points, []domain.SeriesPoint{{Timestamp: 1714564770000, Value: 123.456}})

	is.Equal(ids(view.Table), []int{103, 102, 101, 100})
	for _, r := range view.Table {
		is.True(r.Timestamp.IsEpoch()) // table rows carry normalized timestamps
	}
}

func TestThatNodeViewReportsUnknownNodes(t *testing.T) {
	is := is.New(t)

	a := newTestApp(t, newFakeAPI(), DefaultSettings())

	_, err := a.NodeView(context.Background(), 99, Filter{})
	is.True(errors.Is(err, ErrNotFound))
}

func TestThatDataTypesAreReturnedById(t *testing.T) {
	is := is.New(t)

	api := newFakeAPI()
	api.types = append([]domain.DataType{api.types[3], api.types[3]}, api.types[:3]...)

	types, err := newTestApp(t, api, DefaultSettings()).DataTypes(context.Background())
	is.NoErr(err)

	result := []int{}
	for _, dt := range types {
		result = append(result, dt.ID)
	}
	is.Equal(result, []int{1, 3, 7, 9}) // duplicates dropped, sorted by id
}

func ids(readings []domain.Reading) []int {
	result := []int{}
	for _, r := range readings {
		result = append(result, r.ID)
	}
	return result
}
