package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/pthm-cable/stride/grid"
)

// Policy names accepted in config and SpawnSpec.
const (
	PolicyRandom = "random"
	PolicyStay   = "stay"
	PolicyScript = "script"
)

// ErrUnknownPolicy is returned for a policy name with no registered Policy.
var ErrUnknownPolicy = errors.New("unknown policy")

// randomGoalAttempts bounds the search for an open cell other than the
// current one.
const randomGoalAttempts = 16

// PolicyContext is what a policy sees when an agent needs a new goal.
type PolicyContext struct {
	AgentID uint32
	Tick    int32
	Cell    *grid.Cell // Cell the agent is standing on
	Grid    *grid.Grid
	Rand    *rand.Rand
}

// Policy decides where an agent goes next after spawning or arriving.
type Policy interface {
	// NextGoal returns the next goal cell, or ok=false to stay idle.
	NextGoal(ctx PolicyContext) (ix, iy int, ok bool)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx PolicyContext) (int, int, bool)

func (f PolicyFunc) NextGoal(ctx PolicyContext) (int, int, bool) { return f(ctx) }

// RandomGoal sends the agent to a uniformly random open cell.
type RandomGoal struct{}

func (RandomGoal) NextGoal(ctx PolicyContext) (int, int, bool) {
	n := ctx.Grid.Size()
	for i := 0; i < randomGoalAttempts; i++ {
		ix, iy := ctx.Rand.Intn(n), ctx.Rand.Intn(n)
		if ctx.Grid.IsBlocked(ix, iy) {
			continue
		}
		if ctx.Cell != nil && ix == ctx.Cell.IX && iy == ctx.Cell.IY {
			continue
		}
		return ix, iy, true
	}
	return 0, 0, false
}

// Stay never moves the agent on its own.
type Stay struct{}

func (Stay) NextGoal(PolicyContext) (int, int, bool) { return 0, 0, false }

// ScriptPolicy runs a tengo script to choose goals. The script reads
// agent_id, tick, ix, iy and size, may call nav.blocked(ix, iy) and
// nav.rand(n), and assigns goal_x and goal_y. Leaving either negative keeps
// the agent idle.
type ScriptPolicy struct {
	compiled *tengo.Compiled
	ctx      PolicyContext // valid only while the script runs
}

// NewScriptPolicy compiles src.
func NewScriptPolicy(src string) (*ScriptPolicy, error) {
	p := &ScriptPolicy{}

	script := tengo.NewScript([]byte(src))
	for _, name := range []string{"agent_id", "tick", "ix", "iy", "size", "goal_x", "goal_y"} {
		if err := script.Add(name, 0); err != nil {
			return nil, fmt.Errorf("declaring %s: %w", name, err)
		}
	}
	if err := script.Add("nav", p.navModule()); err != nil {
		return nil, fmt.Errorf("declaring nav: %w", err)
	}
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("compiling policy script: %w", err)
	}
	p.compiled = compiled
	return p, nil
}

func (p *ScriptPolicy) navModule() *tengo.ImmutableMap {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"blocked": &tengo.UserFunction{Name: "blocked", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			ix, ok1 := tengo.ToInt(args[0])
			iy, ok2 := tengo.ToInt(args[1])
			if !ok1 || !ok2 || p.ctx.Grid == nil {
				return tengo.TrueValue, nil
			}
			if p.ctx.Grid.IsBlocked(ix, iy) {
				return tengo.TrueValue, nil
			}
			return tengo.FalseValue, nil
		}},
		"rand": &tengo.UserFunction{Name: "rand", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			n, ok := tengo.ToInt(args[0])
			if !ok || n <= 0 || p.ctx.Rand == nil {
				return &tengo.Int{Value: 0}, nil
			}
			return &tengo.Int{Value: int64(p.ctx.Rand.Intn(n))}, nil
		}},
	}}
}

// NextGoal runs the script once. Script errors leave the agent idle.
func (p *ScriptPolicy) NextGoal(ctx PolicyContext) (int, int, bool) {
	ix, iy, err := p.Run(ctx)
	if err != nil || ix < 0 || iy < 0 {
		return 0, 0, false
	}
	return ix, iy, true
}

// Run executes the script and returns the raw goal_x and goal_y values.
func (p *ScriptPolicy) Run(ctx PolicyContext) (int, int, error) {
	p.ctx = ctx
	defer func() { p.ctx = PolicyContext{} }()

	ix, iy := -1, -1
	if ctx.Cell != nil {
		ix, iy = ctx.Cell.IX, ctx.Cell.IY
	}
	inputs := map[string]any{
		"agent_id": int(ctx.AgentID),
		"tick":     int(ctx.Tick),
		"ix":       ix,
		"iy":       iy,
		"size":     ctx.Grid.Size(),
		"goal_x":   -1,
		"goal_y":   -1,
	}
	for name, v := range inputs {
		if err := p.compiled.Set(name, v); err != nil {
			return -1, -1, fmt.Errorf("setting %s: %w", name, err)
		}
	}
	if err := p.compiled.Run(); err != nil {
		return -1, -1, fmt.Errorf("running policy script: %w", err)
	}
	return p.compiled.Get("goal_x").Int(), p.compiled.Get("goal_y").Int(), nil
}
