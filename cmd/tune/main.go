// Package main searches steering parameters with CMA-ES for the shortest
// mean ticks-to-arrival across seeded scenarios.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/logrusorgru/aurora"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/stride/config"
)

// EvalRecord is one row of the evaluation log.
type EvalRecord struct {
	Eval              int     `csv:"eval"`
	Fitness           float64 `csv:"fitness"`
	Arrivals          int     `csv:"arrivals"`
	MaxForce          float64 `csv:"max_force"`
	SlowRadius        float64 `csv:"slow_radius"`
	AvoidanceStrength float64 `csv:"avoidance_strength"`
	TurnRate          float64 `csv:"turn_rate"`
}

func newEvalRecord(eval int, fitness float64, arrivals int, v []float64) EvalRecord {
	return EvalRecord{
		Eval:              eval,
		Fitness:           fitness,
		Arrivals:          arrivals,
		MaxForce:          v[0],
		SlowRadius:        v[1],
		AvoidanceStrength: v[2],
		TurnRate:          v[3],
	}
}

// formatDuration formats a duration as HhMMmSSs, or MmSSs when under an hour.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 3000, "Ticks per scenario")
	seeds := flag.Int("seeds", 3, "Number of seeded scenarios per evaluation")
	agents := flag.Int("agents", 8, "Agents per scenario")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatal("failed to create output directory", zap.Error(err))
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	// Obstacles make avoidance matter.
	if len(baseCfg.Obstacles.Shapes) == 0 {
		baseCfg.Obstacles.Noise.Enabled = true
	}

	params := NewParamVector()
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewEvaluator(params, baseCfg, evalSeeds, int32(*maxTicks), *agents)

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}

	logPath := filepath.Join(*outputDir, "evaluations.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatal("failed to create evaluation log", zap.Error(err))
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := float64(*maxTicks) + 1
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			fitness := evaluator.Evaluate(raw)
			evalCount++

			// Log the clamped values; those are what the scenarios used.
			clamped := params.Clamp(raw)
			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			rec := []EvalRecord{newEvalRecord(evalCount, fitness, evaluator.LastArrivals(), clamped)}
			write := gocsv.MarshalWithoutHeaders
			if evalCount == 1 {
				write = gocsv.Marshal
			}
			if err := write(rec, logFile); err != nil {
				log.Error("failed to write evaluation", zap.Error(err))
			}

			elapsed := time.Since(startTime)
			remaining := time.Duration(*maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			fmt.Printf("Eval %d/%d: mean_ticks=%.1f arrivals=%d (best=%.1f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, fitness, evaluator.LastArrivals(), bestFitness,
				formatDuration(elapsed), formatDuration(remaining))
			return fitness
		},
	}

	fmt.Printf("Starting CMA-ES with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, agents: %d, ticks per run: %d\n", *seeds, *agents, *maxTicks)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Warn("optimization ended", zap.Error(err))
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluations completed")
	}

	fmt.Printf("\nOptimization complete after %d evaluations in %s\n",
		evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best mean ticks-to-arrival: %.1f\n", aurora.Green(bestFitness))
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, aurora.Cyan(bestParams[i]))
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to reload config", zap.Error(err))
	}
	params.ApplyToConfig(bestCfg, bestParams)
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Error("failed to write best config", zap.Error(err))
		return
	}
	fmt.Printf("\nBest config saved to: %s\n", configOutPath)
}
