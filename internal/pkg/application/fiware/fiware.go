package fiware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/diwise/context-broker/pkg/ngsild/client"
	ngsierrors "github.com/diwise/context-broker/pkg/ngsild/errors"
	"github.com/diwise/context-broker/pkg/ngsild/types"
	"github.com/diwise/context-broker/pkg/ngsild/types/entities"
	. "github.com/diwise/context-broker/pkg/ngsild/types/entities/decorators"
	"github.com/diwise/context-broker/pkg/ngsild/types/properties"
	"github.com/diwise/integration-nodos/domain"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("integration-nodos/fiware")

const (
	DeviceIDPrefix string = "urn:ngsi-ld:Device:nodo-"
	DeviceTypeName string = "Device"
)

type Publisher struct {
	cbClient client.ContextBrokerClient
}

func NewPublisher(cbClient client.ContextBrokerClient) *Publisher {
	return &Publisher{cbClient: cbClient}
}

func (p *Publisher) Name() string {
	return "fiware"
}

func (p *Publisher) Publish(ctx context.Context, cards []domain.NodeCard) error {
	var errs []error
	for _, card := range cards {
		if err := CreateOrUpdateDevice(ctx, p.cbClient, card); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func CreateOrUpdateDevice(ctx context.Context, cbClient client.ContextBrokerClient, card domain.NodeCard) error {
	var err error

	ctx, span := tracer.Start(ctx, "create-or-update-device")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, ctx, logger := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

	headers := map[string][]string{"Content-Type": {"application/ld+json"}}

	decorators := []entities.EntityDecoratorFunc{
		entities.DefaultContext(),
		Text("name", card.Node.Identifier),
		Number("batteryLevel", float64(card.Node.BatteryPercent), properties.UnitCode("P1")),
	}

	if card.Node.Description != "" {
		decorators = append(decorators, Text("description", card.Node.Description))
	}

	if card.Node.Latitude != 0 || card.Node.Longitude != 0 {
		decorators = append(decorators, Location(card.Node.Latitude, card.Node.Longitude))
	}

	var lastReported int64
	for _, tv := range card.Values {
		if tv.ObservedAt > lastReported {
			lastReported = tv.ObservedAt
		}
	}
	if lastReported > 0 {
		decorators = append(decorators, DateTime("dateLastValueReported", observedAt(lastReported)))
	}

	decorators = append(decorators, createFragmentsFromValues(card.Values)...)

	entityID := DeviceIDPrefix + strconv.Itoa(card.Node.ID)
	log := logger.With().Str("entity_id", entityID).Logger()

	var fragment types.EntityFragment
	fragment, err = entities.NewFragment(decorators...)
	if err != nil {
		err = fmt.Errorf("failed to create entity fragment: %s", err.Error())
		return err
	}

	_, err = cbClient.MergeEntity(ctx, entityID, fragment, headers)
	if err == nil {
		log.Info().Msg("updated entity")
		return nil
	}

	if !errors.Is(err, ngsierrors.ErrNotFound) {
		log.Error().Err(err).Msg("failed to merge entity")
	}

	var entity types.Entity
	entity, err = entities.New(entityID, DeviceTypeName, decorators...)
	if err != nil {
		err = fmt.Errorf("failed to create new entity: %s", err.Error())
		return err
	}

	_, err = cbClient.CreateEntity(ctx, entity, headers)
	if err != nil {
		err = fmt.Errorf("failed to post entity to context broker: %s", err.Error())
		return err
	}

	log.Info().Msg("created entity")

	return nil
}

func createFragmentsFromValues(values []domain.TypeValue) []entities.EntityDecoratorFunc {
	fragments := []entities.EntityDecoratorFunc{}

	for _, tv := range values {
		name, ok := propertyNames[tv.Name]
		if !ok || tv.Value == nil {
			continue
		}

		unit := unitCodes[tv.Symbol]

		if tv.ObservedAt > 0 {
			fragments = append(fragments, Number(name, *tv.Value, properties.UnitCode(unit), properties.ObservedAt(observedAt(tv.ObservedAt))))
		} else {
			fragments = append(fragments, Number(name, *tv.Value, properties.UnitCode(unit)))
		}
	}

	return fragments
}

func observedAt(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

var unitCodes map[string]string = map[string]string{
	"°C":   "CEL",
	"V":    "VLT",
	"m":    "MTR",
	"cm":   "CMT",
	"mm":   "MMT",
	"%":    "P1",
	"km/h": "KMH",
	"m/s":  "MTS",
}

var propertyNames map[string]string = map[string]string{
	"Temperatura":        "temperature",
	"Tensión":            "voltage",
	"Nivel Hidrométrico": "waterLevel",
	"Precipitación":      "precipitation",
	"Humedad":            "relativeHumidity",
	"Viento":             "windSpeed",
}
