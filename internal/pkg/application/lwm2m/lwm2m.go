package lwm2m

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/integration-nodos/domain"
	"github.com/diwise/integration-nodos/internal/pkg/application/pipeline"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/farshidtz/senml/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var tlsSkipVerify bool

func init() {
	tlsSkipVerify = env.GetVariableOrDefault(zerolog.Logger{}, "TLS_SKIP_VERIFY", "0") == "1"
}

var tracer = otel.Tracer("integration-nodos/lwm2m")

const (
	GenericSensorURN string = "urn:oma:lwm2m:ext:3300"
	TemperatureURN   string = "urn:oma:lwm2m:ext:3303"
	HumidityURN      string = "urn:oma:lwm2m:ext:3304"
	VoltageURN       string = "urn:oma:lwm2m:ext:3316"
	DistanceURN      string = "urn:oma:lwm2m:ext:3330"
)

const SensorValue string = "5700"

type Publisher struct {
	url    string
	sender SenderFunc
}

func NewPublisher(url string, sender SenderFunc) *Publisher {
	return &Publisher{url: url, sender: sender}
}

func (p *Publisher) Name() string {
	return "lwm2m"
}

func (p *Publisher) Publish(ctx context.Context, cards []domain.NodeCard) error {
	var errs []error
	for _, card := range cards {
		if err := CreateAndSendAsLWM2M(ctx, card, p.url, p.sender); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateAndSendAsLWM2M sends one SenML pack per value of the card that has a
// reading with a known timestamp.
func CreateAndSendAsLWM2M(ctx context.Context, card domain.NodeCard, url string, sender SenderFunc) error {
	logger := logging.GetFromContext(ctx)

	deviceID := card.Node.Identifier
	if deviceID == "" {
		deviceID = strconv.Itoa(card.Node.ID)
	}
	log := logger.With().Str("device_id", deviceID).Logger()

	var errs []error

	for _, pack := range packsFromCard(card, deviceID) {
		err := sender(ctx, url, pack)
		if err != nil {
			log.Error().Err(err).Msg("could not send pack")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func packsFromCard(card domain.NodeCard, deviceID string) []senml.Pack {
	packs := []senml.Pack{}

	for _, tv := range card.Values {
		if tv.Value == nil || tv.ObservedAt <= 0 {
			continue
		}

		t := time.UnixMilli(tv.ObservedAt)
		urn, unit := objectFor(tv)

		packs = append(packs, newPack(urn, SensorValue, deviceID, *tv.Value, unit, t, t))
	}

	return packs
}

func objectFor(tv domain.TypeValue) (string, string) {
	switch {
	case tv.Code == pipeline.TemperatureCode:
		return TemperatureURN, senml.UnitCelsius
	case tv.Code == pipeline.VoltageCode:
		return VoltageURN, senml.UnitVolt
	case tv.Code == pipeline.WaterLevelCode:
		return DistanceURN, senml.UnitMeter
	case strings.EqualFold("Humedad", tv.Name):
		return HumidityURN, senml.UnitRelativeHumidity
	}
	return GenericSensorURN, tv.Symbol
}

func newPack(baseName, name, id string, v float64, u string, bt, t time.Time) senml.Pack {
	p := senml.Pack{
		senml.Record{
			BaseName:    baseName,
			BaseTime:    float64(bt.Unix()),
			Name:        "0",
			StringValue: id,
		},
		newRec(name, v, u, t),
	}
	return p
}

func newRec(name string, v float64, u string, t time.Time) senml.Record {
	return senml.Record{
		Name:  name,
		Value: &v,
		Time:  float64(t.Unix()),
		Unit:  u,
	}
}

type SenderFunc = func(context.Context, string, senml.Pack) error

func Send(ctx context.Context, url string, pack senml.Pack) error {
	var err error

	ctx, span := tracer.Start(ctx, "send-object")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var httpClient http.Client

	if tlsSkipVerify {
		customTransport := http.DefaultTransport.(*http.Transport).Clone()
		customTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		httpClient = http.Client{
			Transport: otelhttp.NewTransport(customTransport),
		}
	} else {
		httpClient = http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	var b []byte
	b, err = json.Marshal(pack)
	if err != nil {
		return err
	}

	var req *http.Request
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(b))
	if err != nil {
		return err
	}

	req.Header.Add("Content-Type", "application/senml+json")

	var resp *http.Response
	resp, err = httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		err = fmt.Errorf("unexpected response code %d", resp.StatusCode)
	}

	return err
}
