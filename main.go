package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logrusorgru/aurora"
	"go.uber.org/zap"

	"github.com/pthm-cable/stride/config"
	"github.com/pthm-cable/stride/server"
	"github.com/pthm-cable/stride/sim"
	"github.com/pthm-cable/stride/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", -1, "Stop after N ticks (0 = unlimited, -1 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	listen := flag.String("listen", "", "HTTP listen address (empty = use config)")
	realtime := flag.Bool("realtime", false, "Pace ticks to the wall clock")
	watch := flag.Bool("watch", false, "Reload agent parameters when the config file changes")
	flag.Parse()

	if err := run(options{
		configPath: *configPath,
		seed:       *seed,
		maxTicks:   *maxTicks,
		outputDir:  *outputDir,
		listen:     *listen,
		realtime:   *realtime,
		watch:      *watch,
	}); err != nil {
		fmt.Fprintln(os.Stderr, aurora.Red(err.Error()))
		os.Exit(1)
	}
}

type options struct {
	configPath string
	seed       int64
	maxTicks   int
	outputDir  string
	listen     string
	realtime   bool
	watch      bool
}

// apply checks the flag combination and overrides config values with the
// flags that were set. It runs before anything is started.
func (o options) apply(cfg *config.Config) error {
	if o.watch && o.configPath == "" {
		return errors.New("-watch requires -config")
	}
	if o.seed != 0 {
		cfg.Simulation.Seed = o.seed
	}
	if o.maxTicks >= 0 {
		cfg.Simulation.MaxTicks = o.maxTicks
	}
	if o.outputDir != "" {
		cfg.Telemetry.OutputDir = o.outputDir
	}
	if o.listen != "" {
		cfg.Server.Listen = o.listen
	}
	if o.realtime {
		cfg.Server.Realtime = true
	}
	return cfg.Prepare()
}

// summary accumulates window stats for the end-of-run report.
type summary struct {
	windows  int
	arrivals int
	plans    int
	failed   int
	replans  int
	tripSec  float64
}

func (s *summary) add(ws telemetry.WindowStats) {
	s.windows++
	s.arrivals += ws.Arrivals
	s.plans += ws.PlansOK
	s.failed += ws.PlansFailed
	s.replans += ws.Replans
	s.tripSec += ws.TripSecMean * float64(ws.Arrivals)
}

func run(o options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if err := o.apply(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	om, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	var sum summary
	s, err := sim.New(cfg,
		sim.WithLogger(log),
		sim.WithOutput(om),
		sim.WithStatsCallback(sum.add),
	)
	if err != nil {
		return err
	}
	r := sim.NewRunner(s, sim.WithRunnerLogger(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background services stop when the runner does.
	svcCtx, cancelSvc := context.WithCancel(ctx)
	defer cancelSvc()

	srvErr := make(chan error, 1)
	if cfg.Server.Listen != "" {
		srv := server.New(r, log.Named("server"))
		go func() { srvErr <- srv.ListenAndServe(svcCtx, cfg.Server.Listen) }()
	} else {
		close(srvErr)
	}

	if o.watch {
		w, err := config.NewWatcher(o.configPath)
		if err != nil {
			return err
		}
		defer w.Close()
		go reload(svcCtx, w, r, log)
	}

	start := time.Now()
	runErr := r.Run(ctx)
	cancelSvc()
	if err := <-srvErr; err != nil {
		log.Error("server stopped", zap.Error(err))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	printSummary(s, &sum, time.Since(start), om.Dir())
	return nil
}

// reload applies agent parameters from each successfully parsed config.
// Other sections only take effect on restart.
func reload(ctx context.Context, w *config.Watcher, r *sim.Runner, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("config reload failed", zap.Error(err))
		case cfg, ok := <-w.Updates:
			if !ok {
				return
			}
			p := sim.ParamsFromConfig(cfg.Agent)
			err := r.Do(ctx, func(s *sim.Simulation) error { return s.ApplyParams(p) })
			if err != nil {
				log.Warn("agent params rejected", zap.Error(err))
				continue
			}
			log.Info("agent params reloaded",
				zap.Float64("max_speed", p.MaxSpeed),
				zap.Float64("max_force", p.MaxForce),
			)
		}
	}
}

func printSummary(s *sim.Simulation, sum *summary, wall time.Duration, dir string) {
	snap := s.Snapshot()
	perf := s.Perf().Stats()

	fmt.Println(aurora.Bold("run summary"))
	fmt.Printf("  ticks       %d (%.1fs simulated, %s wall)\n",
		aurora.Cyan(snap.Tick), snap.Time, wall.Round(time.Millisecond))
	fmt.Printf("  agents      %d\n", aurora.Cyan(len(snap.Agents)))
	fmt.Printf("  plans       %d ok, %d failed, %d replans\n",
		aurora.Green(sum.plans), aurora.Red(sum.failed), aurora.Magenta(sum.replans))
	fmt.Printf("  arrivals    %d\n", aurora.Green(sum.arrivals))
	if sum.arrivals > 0 {
		fmt.Printf("  trip time   %.2fs mean\n", sum.tripSec/float64(sum.arrivals))
	}
	fmt.Printf("  tick rate   %.0f ticks/s\n", perf.TicksPerSecond)
	if dir != "" {
		fmt.Printf("  output      %s\n", aurora.Blue(dir))
	}
}
