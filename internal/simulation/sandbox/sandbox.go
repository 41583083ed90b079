// Package sandbox runs untrusted agent decision code.
//
// Agent code is Lua. Each execution gets a fresh VM that only exposes the
// round context (history, capacity, roundNumber), a fixed helper set, and the
// base, math, and table libraries with every loader, file, process, and
// metatable entry point removed. Execution is bounded by a wall-clock timeout
// and an instruction budget; exceeding either aborts the script.
//
// Code may take one of three shapes:
//
//	average(history) < capacity * 0.6          -- an expression
//	decision = last(history) <= capacity       -- a block assigning decision
//	if #history == 0 then return true end      -- a block with its own return
//	return average(history) < capacity
//
// The result is coerced to a boolean: nil, false, 0, NaN, and "" are false.
// Validation and execution failures are always returned as errors.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/go-lua"
	apperrors "github.com/louisbranch/elfarol/internal/platform/errors"
	"github.com/louisbranch/elfarol/internal/platform/timeouts"
	"github.com/louisbranch/elfarol/internal/random"
)

const (
	// DefaultInstructionLimit bounds the VM instructions of one execution.
	DefaultInstructionLimit = 1_000_000

	// hookInterval is how many VM instructions run between limit checks.
	hookInterval = 1000

	chunkName = "=agent"
)

var (
	// ErrInvalidCode indicates code was rejected before execution.
	ErrInvalidCode = apperrors.New(apperrors.CodeSandboxInvalidCode, "invalid agent code")
	// ErrExecution indicates code failed while running.
	ErrExecution = apperrors.New(apperrors.CodeSandboxExecutionFailed, "agent code execution failed")
	// ErrTimeout indicates code exceeded its time or instruction budget.
	ErrTimeout = apperrors.New(apperrors.CodeSandboxTimeout, "agent code exceeded its execution limits")
)

// Context is the only data visible to agent code.
type Context struct {
	History     []int
	Capacity    int
	RoundNumber int
	// Random backs the random helper and math.random. Nil uses the
	// sandbox's own source.
	Random *random.Source
}

// ValidationResult reports whether code passed static validation.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Sandbox validates and executes agent code.
type Sandbox struct {
	timeout          time.Duration
	instructionLimit int
	random           *random.Source
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithTimeout sets the wall-clock limit of one execution.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sandbox) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithInstructionLimit sets the VM instruction budget of one execution.
func WithInstructionLimit(limit int) Option {
	return func(s *Sandbox) {
		if limit > 0 {
			s.instructionLimit = limit
		}
	}
}

// WithRandom sets the fallback random source for helpers.
func WithRandom(source *random.Source) Option {
	return func(s *Sandbox) {
		if source != nil {
			s.random = source
		}
	}
}

// New builds a Sandbox. Without WithRandom the helpers draw from an
// unseeded source.
func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		timeout:          timeouts.SandboxExecution,
		instructionLimit: DefaultInstructionLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.random == nil {
		s.random = random.New()
	}
	return s
}

// Timeout returns the configured wall-clock limit.
func (s *Sandbox) Timeout() time.Duration {
	return s.timeout
}

// Validate checks code against the denylist and the Lua grammar.
func (s *Sandbox) Validate(code string) ValidationResult {
	if strings.TrimSpace(code) == "" {
		return ValidationResult{Reason: "code is empty"}
	}
	if reason, ok := checkDenylist(code); !ok {
		return ValidationResult{Reason: reason}
	}
	if _, _, err := compileChunk(code); err != nil {
		return ValidationResult{Reason: err.Error()}
	}
	return ValidationResult{Valid: true}
}

// Compile validates code and returns a reusable Program.
func (s *Sandbox) Compile(code string) (*Program, error) {
	if res := s.Validate(code); !res.Valid {
		return nil, apperrors.WrapWithMetadata(
			apperrors.CodeSandboxInvalidCode,
			"invalid agent code",
			map[string]string{"reason": res.Reason},
			errors.New(res.Reason),
		)
	}
	chunk, form, err := compileChunk(code)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSandboxInvalidCode, "invalid agent code", err)
	}
	return &Program{sandbox: s, code: code, chunk: chunk, form: form}, nil
}

// Execute validates and runs code once.
func (s *Sandbox) Execute(ctx context.Context, code string, c Context) (bool, error) {
	program, err := s.Compile(code)
	if err != nil {
		return false, err
	}
	return program.Run(ctx, c)
}

// Program is validated agent code bound to a Sandbox.
type Program struct {
	sandbox *Sandbox
	code    string
	chunk   string
	form    form
}

// Code returns the source the program was compiled from.
func (p *Program) Code() string {
	return p.code
}

// Run executes the program in a fresh VM.
func (p *Program) Run(ctx context.Context, c Context) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.sandbox.timeout)
	defer cancel()

	source := c.Random
	if source == nil {
		source = p.sandbox.random
	}
	guard := &drawGuard{source: source}

	done := make(chan result, 1)
	go func() {
		done <- p.exec(ctx, c, guard)
	}()

	return await(ctx, done, guard)
}

// await prefers a finished result over an expired limit.
func await(ctx context.Context, done <-chan result, guard *drawGuard) (bool, error) {
	select {
	case res := <-done:
		return res.decision, res.err
	case <-ctx.Done():
		select {
		case res := <-done:
			return res.decision, res.err
		default:
		}
		// The hook aborts the VM shortly after; it must not draw again.
		guard.abandon()
		return false, limitError(ctx.Err())
	}
}

type result struct {
	decision bool
	err      error
}

func (p *Program) exec(ctx context.Context, c Context, guard *drawGuard) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: apperrors.Wrap(apperrors.CodeSandboxExecutionFailed, "agent code execution failed", fmt.Errorf("vm panic: %v", r))}
		}
	}()

	l := newState(c, guard)
	budget := &budget{limit: p.sandbox.instructionLimit}
	lua.SetDebugHook(l, func(l *lua.State, _ lua.Debug) {
		budget.used += hookInterval
		if budget.used > budget.limit {
			budget.exceeded = errInstructionLimit
			lua.Errorf(l, "instruction limit exceeded")
		}
		if err := ctx.Err(); err != nil {
			budget.exceeded = err
			lua.Errorf(l, "execution interrupted")
		}
	}, lua.MaskCount, hookInterval)

	if err := lua.LoadBuffer(l, p.chunk, chunkName, "t"); err != nil {
		return result{err: apperrors.Wrap(apperrors.CodeSandboxInvalidCode, "invalid agent code", err)}
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		if budget.exceeded != nil {
			return result{err: limitError(budget.exceeded)}
		}
		return result{err: apperrors.Wrap(apperrors.CodeSandboxExecutionFailed, "agent code execution failed", err)}
	}

	if p.form == formDecision && l.IsNil(-1) {
		return result{err: apperrors.Wrap(apperrors.CodeSandboxExecutionFailed, "agent code execution failed", errors.New("code did not assign decision"))}
	}
	return result{decision: truthy(l, -1)}
}

var errInstructionLimit = errors.New("instruction limit exceeded")

type budget struct {
	used     int
	limit    int
	exceeded error
}

func limitError(cause error) error {
	if errors.Is(cause, context.Canceled) {
		return apperrors.Wrap(apperrors.CodeSandboxExecutionFailed, "agent code execution cancelled", cause)
	}
	return apperrors.Wrap(apperrors.CodeSandboxTimeout, "agent code exceeded its execution limits", cause)
}

// drawGuard stops an abandoned VM from touching the caller's random source.
type drawGuard struct {
	mu        sync.Mutex
	source    *random.Source
	abandoned bool
}

func (g *drawGuard) draw() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.abandoned {
		return 0, false
	}
	return g.source.Float64(), true
}

func (g *drawGuard) abandon() {
	g.mu.Lock()
	g.abandoned = true
	g.mu.Unlock()
}
