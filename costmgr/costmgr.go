// Package costmgr implements the MonetaryCostManager scoped resource: a
// hard USD budget that every LLM invocation executes inside, plus an
// optional per-scope call-rate limiter checked alongside it. Scopes form
// a context-carried stack (mirroring the context-threaded execution state
// goagent/core/execution/runtime.go builds its runnables on) rather than
// a goroutine-local, so they compose correctly across the errgroup-driven
// parallel branch tails the intervention runner spawns.
package costmgr

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	loggercore "github.com/kart-io/logger/core"

	simerrors "github.com/kart-io/forecastsim/errors"
)

type scopeKey struct{}

// Scope is one nested budget. CheckAndAdd is safe for concurrent use so several
// goroutines sharing a Scope (e.g. per-branch tails nested under one
// batch-run scope) can record cost without racing.
type Scope struct {
	mu      sync.Mutex
	budget  float64
	spent   float64
	parent  *Scope
	log     loggercore.Logger
	closed  bool
	limiter *rate.Limiter
}

// Option configures a Scope at Enter time.
type Option func(*Scope)

// WithRateLimit attaches a token-bucket call-rate limiter to the scope:
// at most callsPerSecond LLM calls per second, with burst as the initial
// allowance. Every call into this scope blocks on the limiter (respecting
// ctx cancellation) before its cost is checked against the USD budget.
// Unset (the default), a scope imposes no rate limit at all.
func WithRateLimit(callsPerSecond float64, burst int) Option {
	return func(s *Scope) {
		s.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst)
	}
}

// Enter derives a new context carrying a child Scope with the given USD
// budget, nested under whatever Scope (if any) was already active in ctx.
func Enter(ctx context.Context, budgetUSD float64, log loggercore.Logger, opts ...Option) (context.Context, *Scope) {
	if log == nil {
		log = loggercore.NewNoOpLogger(nil)
	}
	s := &Scope{budget: budgetUSD, parent: scopeFrom(ctx), log: log}
	for _, opt := range opts {
		opt(s)
	}
	return context.WithValue(ctx, scopeKey{}, s), s
}

func scopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// CheckAndAdd is called once per completed LLM invocation. It first waits
// on this scope's own rate limiter (if any), then adds cost to this scope
// and every enclosing scope. If adding cost to any scope in the chain
// would exceed that scope's budget, it returns a hard
// CodeCostLimitExceeded error and the cost is NOT recorded in any scope —
// the call is meant to abort.
func CheckAndAdd(ctx context.Context, cost float64) error {
	s := scopeFrom(ctx)
	if s == nil {
		return nil
	}
	return s.checkAndAdd(ctx, cost)
}

func (s *Scope) checkAndAdd(ctx context.Context, cost float64) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return simerrors.Wrap(err, simerrors.CodeCostLimitExceeded, "call-rate limit wait aborted").
				WithComponent("costmgr").WithOperation("check_and_add")
		}
	}

	// Pre-flight: would any enclosing scope be exceeded?
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		wouldBe := cur.spent + cost
		budget := cur.budget
		cur.mu.Unlock()
		if budget > 0 && wouldBe > budget {
			return simerrors.Newf(simerrors.CodeCostLimitExceeded, "cost limit exceeded: spending $%.4f would bring scope to $%.4f of a $%.4f budget", cost, wouldBe, budget).
				WithComponent("costmgr").WithOperation("check_and_add")
		}
	}
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		cur.spent += cost
		cur.mu.Unlock()
	}
	return nil
}

// Spent returns the cost recorded against this scope so far.
func (s *Scope) Spent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spent
}

// Budget returns this scope's USD budget (0 means unlimited).
func (s *Scope) Budget() float64 {
	return s.budget
}

// Close performs the scope's final budget check and logs if it was
// exceeded despite the per-call guard (e.g. a non-LLM cost was recorded
// directly). Close is idempotent.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.budget > 0 && s.spent > s.budget {
		s.log.Warnw("cost scope closed over budget", "spent", s.spent, "budget", s.budget)
		return simerrors.Newf(simerrors.CodeCostLimitExceeded, "scope closed with $%.4f spent against a $%.4f budget", s.spent, s.budget).
			WithComponent("costmgr").WithOperation("close")
	}
	return nil
}
