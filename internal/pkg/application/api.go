package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/integration-nodos/domain"
	"github.com/diwise/integration-nodos/internal/pkg/infrastructure/metrics"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var ErrNotFound = errors.New("not found")

type NodosAPI interface {
	GetDataTypes(ctx context.Context) ([]domain.DataType, error)
	GetNodes(ctx context.Context) ([]domain.Node, error)
	GetNode(ctx context.Context, nodeID int) (*domain.Node, error)
	GetReadings(ctx context.Context, q ReadingsQuery) (*domain.ReadingsPage, error)
}

type ReadingsQuery struct {
	NodeID  int
	TypeID  int
	Start   time.Time
	End     time.Time
	OrderBy string
	Order   string
	Page    int
	Limit   int
}

func (q ReadingsQuery) values() url.Values {
	v := url.Values{}

	if q.NodeID != 0 {
		v.Set("nodo_id", strconv.Itoa(q.NodeID))
	}
	if q.TypeID != 0 {
		v.Set("type_id", strconv.Itoa(q.TypeID))
	}
	if !q.Start.IsZero() {
		v.Set("start_date", q.Start.UTC().Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("end_date", q.End.UTC().Format(time.RFC3339))
	}
	if q.OrderBy != "" {
		v.Set("order_by", q.OrderBy)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	return v
}

type nodosAPI struct {
	baseUrl     string
	accessToken string
	metrics     *metrics.Metrics
}

var tracer = otel.Tracer("integration-nodos/app")

func NewNodosAPI(baseUrl, accessToken string, m *metrics.Metrics) NodosAPI {
	if accessToken != "" && !strings.HasPrefix(accessToken, "Bearer ") {
		accessToken = fmt.Sprintf("Bearer %s", accessToken)
	}

	return &nodosAPI{
		baseUrl:     strings.TrimSuffix(baseUrl, "/"),
		accessToken: accessToken,
		metrics:     m,
	}
}

func (a *nodosAPI) GetDataTypes(ctx context.Context) ([]domain.DataType, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-data-types")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	types := []domain.DataType{}

	err = a.get(ctx, "/tipos", nil, &types)
	if err != nil {
		return nil, err
	}

	return types, nil
}

func (a *nodosAPI) GetNodes(ctx context.Context) ([]domain.Node, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-nodes")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	nodes := []domain.Node{}

	err = a.get(ctx, "/nodos", nil, &nodes)
	if err != nil {
		return nil, err
	}

	return nodes, nil
}

func (a *nodosAPI) GetNode(ctx context.Context, nodeID int) (*domain.Node, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-node")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if nodeID <= 0 {
		err = fmt.Errorf("cannot retrieve node as no valid node id has been provided")
		return nil, err
	}

	node := domain.Node{}

	err = a.get(ctx, fmt.Sprintf("/nodos/%d", nodeID), nil, &node)
	if err != nil {
		return nil, err
	}

	return &node, nil
}

func (a *nodosAPI) GetReadings(ctx context.Context, q ReadingsQuery) (*domain.ReadingsPage, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-readings")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	page := domain.ReadingsPage{}

	err = a.get(ctx, "/paquetes", q.values(), &page)
	if err != nil {
		return nil, err
	}

	if page.Items == nil {
		page.Items = []domain.Reading{}
	}

	return &page, nil
}

func (a *nodosAPI) get(ctx context.Context, path string, query url.Values, target any) (err error) {
	start := time.Now()
	endpoint := path
	if strings.HasPrefix(path, "/nodos/") {
		endpoint = "/nodos/{id}"
	}
	defer func() { a.metrics.ObserveRequest(endpoint, time.Since(start), err) }()

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	u := a.baseUrl + path
	if len(query) > 0 {
		u = u + "?" + query.Encode()
	}

	var req *http.Request
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		err = fmt.Errorf("failed to create request: %s", err.Error())
		return err
	}

	req.Header.Add("Accept", "application/json")
	if a.accessToken != "" {
		req.Header.Add("Authorization", a.accessToken)
	}

	var resp *http.Response
	resp, err = httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to retrieve %s: %w", path, err)
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		err = fmt.Errorf("%s: %w", path, ErrNotFound)
		return err
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("request failed, expected status code %d, got %d", http.StatusOK, resp.StatusCode)
		return err
	}

	var respBytes []byte
	respBytes, err = io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response body as bytes: %s", err.Error())
		return err
	}

	err = json.Unmarshal(respBytes, target)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %s,\ndue to: %s", string(respBytes), err.Error())
		return err
	}

	return nil
}
