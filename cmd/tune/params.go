package main

import (
	"github.com/pthm-cable/stride/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name string  // Column name in the evaluation log
	Path string  // Config path
	Min  float64 // Lower bound
	Max  float64 // Upper bound
}

// ParamVector holds the set of tunable steering parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "max_force", Path: "agent.max_force", Min: 0.02, Max: 0.5},
			{Name: "slow_radius", Path: "agent.slow_radius", Min: 0.1, Max: 3.0},
			{Name: "avoidance_strength", Path: "agent.avoidance_strength", Min: 0, Max: 2.0},
			{Name: "turn_rate", Path: "agent.turn_rate", Min: 0.02, Max: 1.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to the [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes clamped values into cfg.Agent. Order matches Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	cfg.Agent.MaxForce = clamped[0]
	cfg.Agent.SlowRadius = clamped[1]
	cfg.Agent.AvoidanceStrength = clamped[2]
	cfg.Agent.TurnRate = clamped[3]
}

// ExtractFromConfig reads the current values, clamped to bounds.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return pv.Clamp([]float64{
		cfg.Agent.MaxForce,
		cfg.Agent.SlowRadius,
		cfg.Agent.AvoidanceStrength,
		cfg.Agent.TurnRate,
	})
}
