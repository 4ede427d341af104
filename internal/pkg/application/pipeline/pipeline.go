// Package pipeline reshapes raw node readings and data type definitions into the
// per type series, latest values and display selections shown on the dashboard.
package pipeline

import (
	"fmt"
	"time"

	"github.com/diwise/integration-nodos/domain"
)

type Config struct {
	MandatoryCode int              `yaml:"mandatory_code"`
	DisplayLimit  int              `yaml:"display_limit"`
	Timezone      string           `yaml:"timezone"`
	Units         map[int]UnitRule `yaml:"units"`
	Visuals       Visuals          `yaml:"visuals"`
}

func DefaultConfig() Config {
	return Config{
		MandatoryCode: VoltageCode,
		DisplayLimit:  DefaultDisplayLimit,
		Timezone:      "UTC",
		Units:         DefaultUnitRules(),
		Visuals:       DefaultVisuals(),
	}
}

type Pipeline struct {
	mandatoryCode int
	displayLimit  int
	location      *time.Location
	converter     Converter
	visuals       Visuals
	clock         Clock
}

type Option func(*Pipeline)

func WithClock(clock Clock) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

func New(cfg Config, opts ...Option) (*Pipeline, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %s", cfg.Timezone, err.Error())
		}
	}

	if cfg.Visuals == nil {
		cfg.Visuals = DefaultVisuals()
	}
	if cfg.Units == nil {
		cfg.Units = DefaultUnitRules()
	}

	p := &Pipeline{
		mandatoryCode: cfg.MandatoryCode,
		displayLimit:  cfg.DisplayLimit,
		location:      loc,
		converter:     NewConverter(cfg.Units),
		visuals:       cfg.Visuals,
		clock:         time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func (p *Pipeline) Now() time.Time {
	return p.clock()
}

func (p *Pipeline) Location() *time.Location {
	return p.location
}

func (p *Pipeline) MandatoryCode() int {
	return p.mandatoryCode
}

func (p *Pipeline) Normalize(readings []domain.Reading) {
	NormalizeTimestamps(readings, p.location)
}

func (p *Pipeline) Group(readings []domain.Reading, catalog *Catalog) GroupedSeries {
	return GroupByType(readings, catalog)
}

func (p *Pipeline) TimeSince(r *domain.Reading) string {
	return TimeSince(p.clock(), r, p.location)
}

func (p *Pipeline) TimeSinceLast(readings []domain.Reading) string {
	return TimeSinceLast(p.clock(), readings, p.location)
}

func (p *Pipeline) Select(types []domain.DataType) []domain.DataType {
	return SelectForDisplay(types, p.mandatoryCode, p.displayLimit)
}

func (p *Pipeline) DetailTypes(types []domain.DataType) []domain.DataType {
	return DetailTypes(types, p.mandatoryCode)
}

func (p *Pipeline) Converter() Converter {
	return p.converter
}

func (p *Pipeline) Visual(t *domain.DataType) (Visual, string) {
	return p.visuals.For(t)
}
