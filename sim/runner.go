package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pthm-cable/stride/telemetry"
)

// ErrStopped is returned by Do once the runner has exited.
var ErrStopped = errors.New("runner stopped")

const (
	commandBuffer     = 64
	maxBufferedEvents = 1024
)

// Update is published to subscribers every PublishTicks ticks.
type Update struct {
	Snapshot Snapshot
	Events   []telemetry.Event // Events since the previous update
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRealtime paces ticks to the wall clock.
func WithRealtime(on bool) RunnerOption {
	return func(r *Runner) { r.realtime = on }
}

// WithMaxTicks stops the runner after n ticks. 0 runs until cancelled.
func WithMaxTicks(n int) RunnerOption {
	return func(r *Runner) { r.maxTicks = n }
}

// WithPublishEvery sets the number of ticks between published updates.
func WithPublishEvery(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.publishEvery = n
		}
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// Runner owns a Simulation on a single goroutine. Other goroutines reach it
// only through Do and Subscribe.
type Runner struct {
	sim *Simulation
	log *zap.Logger

	dt           float64
	realtime     bool
	maxTicks     int
	publishEvery int

	cmds    chan Command
	done    chan struct{}
	pending []telemetry.Event

	mu      sync.Mutex
	subs    map[int]chan Update
	nextSub int
	latest  Snapshot
}

// NewRunner creates a runner for s with settings from its config.
func NewRunner(s *Simulation, opts ...RunnerOption) *Runner {
	cfg := s.Config()
	r := &Runner{
		sim:          s,
		log:          zap.NewNop(),
		dt:           cfg.Simulation.DT,
		realtime:     cfg.Server.Realtime,
		maxTicks:     cfg.Simulation.MaxTicks,
		publishEvery: cfg.Derived.PublishTicks,
		cmds:         make(chan Command, commandBuffer),
		done:         make(chan struct{}),
		subs:         make(map[int]chan Update),
		latest:       s.Snapshot(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run ticks the simulation until ctx is cancelled or the tick limit is
// reached. It must be called once. Subscriber channels are closed on return.
func (r *Runner) Run(ctx context.Context) error {
	defer r.shutdown()

	var tick <-chan time.Time
	if r.realtime {
		t := time.NewTicker(time.Duration(r.dt * float64(time.Second)))
		defer t.Stop()
		tick = t.C
	}

	r.log.Info("runner started",
		zap.Bool("realtime", r.realtime),
		zap.Int("max_ticks", r.maxTicks),
		zap.Float64("dt", r.dt),
	)

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		r.sim.Step(r.dt, r.drain()...)
		r.collectEvents()

		n := int(r.sim.CurrentTick())
		published := n%r.publishEvery == 0
		if published {
			r.publish()
		}
		if r.maxTicks > 0 && n >= r.maxTicks {
			r.log.Info("tick limit reached", zap.Int("ticks", n))
			if !published {
				r.publish()
			}
			return nil
		}
	}
}

func (r *Runner) drain() []Command {
	var cmds []Command
	for {
		select {
		case c := <-r.cmds:
			cmds = append(cmds, c)
		default:
			return cmds
		}
	}
}

func (r *Runner) collectEvents() {
	r.pending = append(r.pending, r.sim.Events()...)
	if over := len(r.pending) - maxBufferedEvents; over > 0 {
		r.pending = append(r.pending[:0], r.pending[over:]...)
	}
}

func (r *Runner) publish() {
	u := Update{Snapshot: r.sim.Snapshot(), Events: r.pending}
	r.pending = nil

	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = u.Snapshot
	for _, ch := range r.subs {
		// Slow subscribers miss updates rather than stall the simulation.
		select {
		case ch <- u:
		default:
		}
	}
}

func (r *Runner) shutdown() {
	close(r.done)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
}

// Do runs fn on the simulation goroutine before the next tick and returns
// its error.
func (r *Runner) Do(ctx context.Context, fn func(s *Simulation) error) error {
	errc := make(chan error, 1)
	cmd := func(s *Simulation) { errc <- fn(s) }

	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		// The command may have run on the final tick.
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	}
}

// Subscribe returns a channel of published updates with the given buffer
// and a function that cancels the subscription.
func (r *Runner) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, buffer)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	select {
	case <-r.done:
		close(ch)
	default:
		r.subs[id] = ch
	}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			close(c)
			delete(r.subs, id)
		}
	}
	return ch, cancel
}

// Latest returns the most recently published snapshot.
func (r *Runner) Latest() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }
