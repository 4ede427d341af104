package application

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var method = expects.RequestMethod

func TestThatGetDataTypesFailsIfResponseCodeIsNotOK(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
		),
		Returns(
			response.Code(http.StatusInternalServerError),
			response.Body([]byte("")),
		),
	)

	api := NewNodosAPI(s.URL(), "", nil)

	types, err := api.GetDataTypes(context.Background())
	is.True(err != nil)
	is.True(types == nil)
}

func TestThatGetNodeReportsNotFound(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
		),
		Returns(
			response.Code(http.StatusNotFound),
			response.Body([]byte(`{"detail":"Nodo no encontrado"}`)),
		),
	)

	api := NewNodosAPI(s.URL(), "", nil)

	node, err := api.GetNode(context.Background(), 42)
	is.True(errors.Is(err, ErrNotFound))
	is.True(node == nil)
}

func TestThatGetNodesFailsIfReturnedDataIsIncorrect(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
		),
		Returns(
			response.Code(http.StatusOK),
			response.Body([]byte(nodesBadResponse)),
		),
	)

	api := NewNodosAPI(s.URL(), "", nil)

	nodes, err := api.GetNodes(context.Background())
	is.True(err != nil)
	is.True(nodes == nil)
}

func TestThatGetNodesHandlesBothTypeShapes(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
		),
		Returns(
			response.Code(http.StatusOK),
			response.Body([]byte(nodesResponse)),
		),
	)

	api := NewNodosAPI(s.URL(), "", nil)

	nodes, err := api.GetNodes(context.Background())
	is.NoErr(err)
	is.Equal(len(nodes), 2)
	is.Equal(nodes[0].Identifier, "NODO-RIO-01")
	is.Equal([]int(nodes[0].Types), []int{1, 3, 7})
	is.Equal([]int(nodes[1].Types), []int{3, 9})
}

func TestThatGetReadingsReturnsAndUnmarshalsCorrectly(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
		),
		Returns(
			response.Code(http.StatusOK),
			response.Body([]byte(readingsResponse)),
		),
	)

	api := NewNodosAPI(s.URL(), "", nil)

	page, err := api.GetReadings(context.Background(), ReadingsQuery{NodeID: 1})
	is.NoErr(err)
	is.Equal(page.Info.TotalItems, 3)
	is.Equal(len(page.Items), 3)

	is.True(!page.Items[0].Timestamp.IsEpoch())
	is.Equal(page.Items[0].Timestamp.Text(), "2024-05-01T11:00:00")

	ms, ok := page.Items[1].Timestamp.Millis()
	is.True(ok)
	is.Equal(ms, int64(1714564500000))

	is.True(page.Items[2].Timestamp.IsZero())
}

func TestThatReadingsQueryIsSentAsParameters(t *testing.T) {
	is := is.New(t)

	var path, auth string
	var query map[string][]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		query = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"info":{"total_items":0},"items":[]}`))
	}))
	defer ts.Close()

	api := NewNodosAPI(ts.URL+"/", "secret", nil)

	start := time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC)
	page, err := api.GetReadings(context.Background(), ReadingsQuery{
		NodeID:  7,
		Start:   start,
		End:     start.Add(24 * time.Hour),
		OrderBy: "timestamp",
		Order:   "asc",
		Page:    2,
		Limit:   100,
	})
	is.NoErr(err)
	is.Equal(len(page.Items), 0)

	is.Equal(path, "/paquetes")
	is.Equal(auth, "Bearer secret")
	is.Equal(query["nodo_id"], []string{"7"})
	is.Equal(query["start_date"], []string{"2024-04-30T12:00:00Z"})
	is.Equal(query["end_date"], []string{"2024-05-01T12:00:00Z"})
	is.Equal(query["order_by"], []string{"timestamp"})
	is.Equal(query["order"], []string{"asc"})
	is.Equal(query["page"], []string{"2"})
	is.Equal(query["limit"], []string{"100"})
	_, hasType := query["type_id"]
	is.True(!hasType) // zero values are not sent
}

const nodesBadResponse string = `[
	{
		"id": 1,
		"identificador": "NODO-RIO-01",
		"tipos": [1, 3, 7]
	}
	{
		"id": 2,
		"identificador": "NODO-RIO-02"
	}
]`

const nodesResponse string = `[
	{
		"id": 1,
		"identificador": "NODO-RIO-01",
		"porcentajeBateria": 87,
		"latitud": -31.63333,
		"longitud": -60.7,
		"descripcion": "Puente colgante",
		"tipos": [1, 3, 7]
	},
	{
		"id": 2,
		"identificador": "NODO-RIO-02",
		"porcentajeBateria": 40,
		"latitud": null,
		"longitud": null,
		"descripcion": null,
		"tipos": [
			{"id": 3, "data_type": 16, "data_symbol": "V", "nombre": "Tensión"},
			{"id": 9, "data_type": 30, "data_symbol": "mm", "nombre": "Precipitación"}
		]
	}
]`

const readingsResponse string = `{
	"info": {
		"total_items": 3,
		"total_pages": 1,
		"current_page": 1,
		"limit": 10,
		"offset": 0
	},
	"items": [
		{"id": 10, "nodo_id": 1, "type_id": 16, "data": 3.71, "timestamp": "2024-05-01T11:00:00"},
		{"id": 11, "nodo_id": 1, "type_id": 1, "data": 21.4, "timestamp": 1714564500000},
		{"id": 12, "nodo_id": 1, "type_id": 25, "data": 120.5, "timestamp": null}
	]
}`
