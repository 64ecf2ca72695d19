package main

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/stride/config"
	"github.com/pthm-cable/stride/sim"
	"github.com/pthm-cable/stride/telemetry"
)

// Evaluator runs seeded headless scenarios and scores a parameter vector.
type Evaluator struct {
	params   *ParamVector
	base     *config.Config
	seeds    []int64
	maxTicks int32
	agents   int

	mu       sync.Mutex
	lastRuns []runResult
}

// NewEvaluator creates an evaluator. Each scenario is base with the seed,
// agent count and tick limit replaced.
func NewEvaluator(params *ParamVector, base *config.Config, seeds []int64, maxTicks int32, agents int) *Evaluator {
	return &Evaluator{
		params:   params,
		base:     base,
		seeds:    seeds,
		maxTicks: maxTicks,
		agents:   agents,
	}
}

// runResult holds the outcome of one scenario.
type runResult struct {
	trips    []float64 // Ticks per trip; trips still open at the end count their elapsed ticks
	arrivals int
	failed   int
	err      error
}

// Evaluate returns the mean ticks-to-arrival over all seeds (lower = better).
// Invalid parameter sets score as if no agent ever arrived.
func (e *Evaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(e.seeds))
	var wg sync.WaitGroup
	for i, seed := range e.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = e.runScenario(x, s)
		}(i, seed)
	}
	wg.Wait()

	e.mu.Lock()
	e.lastRuns = results
	e.mu.Unlock()

	return e.fitness(results)
}

// LastArrivals returns the total arrivals from the most recent Evaluate call.
func (e *Evaluator) LastArrivals() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, r := range e.lastRuns {
		n += r.arrivals
	}
	return n
}

func (e *Evaluator) fitness(results []runResult) float64 {
	var trips []float64
	for _, r := range results {
		if r.err != nil {
			return float64(e.maxTicks)
		}
		trips = append(trips, r.trips...)
	}
	if len(trips) == 0 {
		return float64(e.maxTicks)
	}
	return stat.Mean(trips, nil)
}

// scenarioConfig returns a copy of the base config for one seed.
func (e *Evaluator) scenarioConfig(x []float64, seed int64) *config.Config {
	c := *e.base
	cfg := &c
	e.params.ApplyToConfig(cfg, x)
	cfg.Simulation.Seed = seed
	cfg.Simulation.MaxTicks = int(e.maxTicks)
	cfg.Simulation.Agents = e.agents
	cfg.Simulation.Spawns = nil
	cfg.Policy.Kind = sim.PolicyRandom
	cfg.Telemetry.OutputDir = ""
	return cfg
}

// runScenario steps one simulation to the tick limit and collects trip
// durations from its events.
func (e *Evaluator) runScenario(x []float64, seed int64) runResult {
	s, err := sim.New(e.scenarioConfig(x, seed))
	if err != nil {
		return runResult{err: err}
	}

	var res runResult
	open := make(map[uint32]int32)
	for s.CurrentTick() < e.maxTicks {
		s.Tick()
		for _, ev := range s.Events() {
			switch ev.Type {
			case telemetry.EventPathPlanned:
				if _, ok := open[ev.AgentID]; !ok {
					open[ev.AgentID] = ev.Tick
				}
			case telemetry.EventArrived:
				delete(open, ev.AgentID)
				res.trips = append(res.trips, float64(ev.TripTicks))
				res.arrivals++
			case telemetry.EventPathFailed:
				res.failed++
			}
		}
	}
	for _, start := range open {
		res.trips = append(res.trips, math.Max(float64(e.maxTicks-start), 0))
	}
	sort.Float64s(res.trips)
	return res
}
