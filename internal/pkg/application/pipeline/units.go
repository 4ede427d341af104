package pipeline

import (
	"math"
	"strconv"
)

const (
	TemperatureCode int = 1
	VoltageCode     int = 16
	WaterLevelCode  int = 25
)

const Missing string = "--"

type UnitRule struct {
	Scale    float64 `yaml:"scale" json:"scale"`
	Decimals int     `yaml:"decimals" json:"decimals"`
}

var genericRule = UnitRule{Scale: 1, Decimals: 1}

func DefaultUnitRules() map[int]UnitRule {
	return map[int]UnitRule{
		WaterLevelCode: {Scale: 0.01, Decimals: 2}, // cm -> m
		VoltageCode:    {Scale: 1, Decimals: 2},
	}
}

// Converter applies the per type display transform to latest values.
type Converter struct {
	rules map[int]UnitRule
}

func NewConverter(rules map[int]UnitRule) Converter {
	c := Converter{rules: make(map[int]UnitRule, len(rules))}
	for code, r := range rules {
		if r.Scale == 0 {
			r.Scale = 1
		}
		if r.Decimals < 0 {
			r.Decimals = 0
		}
		c.rules[code] = r
	}
	return c
}

func (c Converter) Rule(code int) UnitRule {
	if r, ok := c.rules[code]; ok {
		return r
	}
	return genericRule
}

// Convert scales value and rounds it, half away from zero, to the decimals of
// the rule for code.
func (c Converter) Convert(code int, value float64) float64 {
	r := c.Rule(code)
	return round(value*r.Scale, r.Decimals)
}

// Format renders value with the decimals of its rule followed by symbol.
func (c Converter) Format(code int, value *float64, symbol string) string {
	if value == nil || math.IsNaN(*value) {
		return Missing
	}
	r := c.Rule(code)
	return strconv.FormatFloat(c.Convert(code, *value), 'f', r.Decimals, 64) + symbol
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
