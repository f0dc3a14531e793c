// Package effect is the atomic interpreter for Effect values, trade
// resolution, and step-end rule firing. It is stateless except for its
// reference to the current simulation state and situation; all mutation
// is best-effort and resilient — unknown targets, unknown items,
// malformed parameter references, and negative computed quantities are
// clamped or logged rather than raised.
package effect

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	loggercore "github.com/kart-io/logger/core"

	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/situation"
)

// Engine interprets effects against one SimulationState for one Situation.
type Engine struct {
	sit   *situation.Situation
	state *simstate.SimulationState
	log   loggercore.Logger
	rng   *rand.Rand
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger attaches a structured logger; callers not interested in
// diagnostics can omit it and get a no-op logger.
func WithLogger(log loggercore.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRand overrides the engine's random source. Tests pass a seeded
// *rand.Rand to make random_outcome resolution deterministic (seed 42 in
// the spec's seed scenario 4).
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// New builds an Engine bound to sit and state.
func New(sit *situation.Situation, state *simstate.SimulationState, opts ...Option) *Engine {
	e := &Engine{
		sit:   sit,
		state: state,
		log:   loggercore.NewNoOpLogger(nil),
		rng:   rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// resolveRef resolves a target/source string to an inventory key: "actor"
// maps to actor, "environment" stays "environment", a "{param}" reference
// is substituted from params, and anything else is treated as a literal
// agent name.
func (e *Engine) resolveRef(ref, actor string, params map[string]string) string {
	switch ref {
	case "actor":
		return actor
	case "environment":
		return "environment"
	}
	if isParamRef(ref) {
		if v, ok := params[paramName(ref)]; ok {
			return v
		}
		e.log.Warnw("unresolved parameter reference", "ref", ref)
		return ref
	}
	return ref
}

// resolveItemName substitutes a parameter reference inside an item name,
// if any; item names are otherwise used literally.
func (e *Engine) resolveItemName(item string, params map[string]string) string {
	if isParamRef(item) {
		if v, ok := params[paramName(item)]; ok {
			return v
		}
		e.log.Warnw("unresolved item_name parameter reference", "ref", item)
		return item
	}
	return item
}

func (e *Engine) resolveQuantity(q situation.Quantity, params map[string]string) int {
	if !q.IsParam {
		return q.Literal
	}
	raw, ok := params[paramName(q.Param)]
	if !ok {
		e.log.Warnw("unresolved quantity parameter reference", "ref", q.Param)
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.log.Warnw("quantity parameter did not parse as an integer", "ref", q.Param, "value", raw)
		return 0
	}
	return n
}

func isParamRef(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2
}

func paramName(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
}

// ApplyEffects evaluates each effect in order against actor's
// perspective, with params substituted into target/source/item_name/
// quantity fields. It returns human-readable transcript lines: one per
// item or message effect, a line naming the chosen outcome followed by
// that outcome's own lines for random_outcome, and none for an unknown
// effect type.
func (e *Engine) ApplyEffects(effects situation.Effects, actor string, params map[string]string) []string {
	log := make([]string, 0, len(effects))
	for _, eff := range effects {
		log = append(log, e.applyOne(eff, actor, params)...)
	}
	return log
}

func (e *Engine) applyOne(eff situation.Effect, actor string, params map[string]string) []string {
	switch v := eff.(type) {
	case situation.AddItemEffect:
		target := e.resolveRef(v.Target, actor, params)
		item := e.resolveItemName(v.ItemName, params)
		qty := e.resolveQuantity(v.Quantity, params)
		e.state.AddItem(target, item, qty)
		return []string{fmt.Sprintf("%s gained %d %s", target, qty, item)}

	case situation.RemoveItemEffect:
		target := e.resolveRef(v.Target, actor, params)
		item := e.resolveItemName(v.ItemName, params)
		qty := e.resolveQuantity(v.Quantity, params)
		removed := e.state.RemoveItem(target, item, qty)
		return []string{fmt.Sprintf("%s lost %d %s", target, removed, item)}

	case situation.TransferItemEffect:
		source := e.resolveRef(v.Source, actor, params)
		target := e.resolveRef(v.Target, actor, params)
		item := e.resolveItemName(v.ItemName, params)
		qty := e.resolveQuantity(v.Quantity, params)
		available := e.state.ItemCount(source, item)
		moved := qty
		if moved > available {
			moved = available
		}
		e.state.RemoveItem(source, item, moved)
		e.state.AddItem(target, item, moved)
		return []string{fmt.Sprintf("%s transferred %d %s to %s", source, moved, item, target)}

	case situation.RandomOutcomeEffect:
		return e.applyRandomOutcome(v, actor, params)

	case situation.MessageEffect:
		target := e.resolveRef(v.Target, actor, params)
		return []string{fmt.Sprintf("[message to %s] %s", target, v.MessageText)}

	default:
		e.log.Warnw("unknown effect type, skipping", "effect", fmt.Sprintf("%T", eff))
		return nil
	}
}

func (e *Engine) applyRandomOutcome(v situation.RandomOutcomeEffect, actor string, params map[string]string) []string {
	if len(v.Outcomes) == 0 {
		return nil
	}
	draw := e.rng.Float64()
	cumulative := 0.0
	chosen := v.Outcomes[len(v.Outcomes)-1] // fallback: last outcome when cumulative < 1
	for _, o := range v.Outcomes {
		cumulative += o.Probability
		if draw < cumulative {
			chosen = o
			break
		}
	}
	out := []string{fmt.Sprintf("random outcome: %s", chosen.Description)}
	out = append(out, e.ApplyEffects(chosen.Effects, actor, params)...)
	return out
}
