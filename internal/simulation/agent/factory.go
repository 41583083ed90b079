package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/elfarol/internal/platform/errors"
	"github.com/louisbranch/elfarol/internal/platform/id"
	"github.com/louisbranch/elfarol/internal/random"
	"github.com/louisbranch/elfarol/internal/simulation/sandbox"
)

// Built-in parameter names and their defaults.
const (
	ParamThreshold        = "threshold"
	ParamGoProbability    = "goProbability"
	ParamWindowSize       = "windowSize"
	ParamInitialThreshold = "initialThreshold"
	ParamAdaptationRate   = "adaptationRate"

	DefaultThreshold              = 1.0
	DefaultGoProbability          = 0.8
	DefaultWindowSize             = 5
	DefaultMovingAverageThreshold = 0.6
	DefaultInitialThreshold       = 0.6
	DefaultAdaptationRate         = 0.1

	// MaxWindowSize bounds the moving average window.
	MaxWindowSize = math.MaxInt32
)

// Config describes an agent to create.
type Config struct {
	Name string
	Kind Kind
	// Strategy selects the built-in rule. Empty means random.
	Strategy Strategy
	// Parameters accepts any numeric representation: Go numbers,
	// json.Number, or numeric strings.
	Parameters     map[string]any
	Code           string
	UserID         string
	ExternalUserID string
}

// ExecutionContext is the round context custom agents are created against.
type ExecutionContext struct {
	History     []int
	Capacity    int
	RoundNumber int
}

// Factory builds agents from declarative configuration.
type Factory struct {
	sandbox *sandbox.Sandbox
	random  *random.Source
	idGen   func() (string, error)
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithIDGenerator overrides agent identifier generation.
func WithIDGenerator(idGen func() (string, error)) FactoryOption {
	return func(f *Factory) {
		if idGen != nil {
			f.idGen = idGen
		}
	}
}

// NewFactory builds a Factory. Agents it creates draw from source; a nil
// source gets an unseeded one and a nil sandbox a default one drawing from
// the same source.
func NewFactory(sb *sandbox.Sandbox, source *random.Source, opts ...FactoryOption) *Factory {
	if source == nil {
		source = random.New()
	}
	if sb == nil {
		sb = sandbox.New(sandbox.WithRandom(source))
	}
	f := &Factory{sandbox: sb, random: source, idGen: id.NewID}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateAgent builds one agent. Custom agents require an execution context
// and code that passes sandbox validation.
func (f *Factory) CreateAgent(cfg Config, exec *ExecutionContext) (*Agent, error) {
	agentID, err := f.idGen()
	if err != nil {
		return nil, fmt.Errorf("generate agent id: %w", err)
	}
	a := &Agent{
		ID:   agentID,
		Name: strings.TrimSpace(cfg.Name),
		Kind: cfg.Kind,
	}

	switch cfg.Kind {
	case KindBuiltIn:
		if err := f.builtIn(a, cfg); err != nil {
			return nil, err
		}
	case KindCustom:
		if strings.TrimSpace(cfg.Code) == "" {
			return nil, ErrCustomCodeMissing
		}
		if exec == nil {
			return nil, ErrCustomContextMissing
		}
		program, err := f.sandbox.Compile(cfg.Code)
		if err != nil {
			return nil, err
		}
		a.Strategy = StrategyCustom
		a.Code = cfg.Code
		a.impl = &customStrategy{program: program, random: f.random, exec: *exec}
	case KindHuman:
		a.Strategy = StrategyHuman
		a.UserID = cfg.UserID
		a.ExternalUserID = cfg.ExternalUserID
		a.impl = &humanStrategy{}
	default:
		return nil, apperrors.WithMetadata(apperrors.CodeAgentInvalidType, "agent type is not supported", map[string]string{"type": string(cfg.Kind)})
	}
	return a, nil
}

// CreateAgents builds count agents from one config, naming them
// "<name> <i>" or "Agent <i>" when the config has no name.
func (f *Factory) CreateAgents(count int, cfg Config, exec *ExecutionContext) ([]*Agent, error) {
	base := strings.TrimSpace(cfg.Name)
	agents := make([]*Agent, 0, count)
	for i := 1; i <= count; i++ {
		named := cfg
		if base != "" {
			named.Name = fmt.Sprintf("%s %d", base, i)
		} else {
			named.Name = fmt.Sprintf("Agent %d", i)
		}
		a, err := f.CreateAgent(named, exec)
		if err != nil {
			return nil, fmt.Errorf("create agent %d: %w", i, err)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func (f *Factory) builtIn(a *Agent, cfg Config) error {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyRandom
	}
	params := parameters{raw: cfg.Parameters, resolved: map[string]float64{}}

	switch strategy {
	case StrategyRandom:
		a.impl = &randomStrategy{random: f.random}
	case StrategyThreshold:
		threshold := params.float(ParamThreshold, DefaultThreshold)
		goProbability := params.float(ParamGoProbability, DefaultGoProbability)
		params.checkProbability(ParamGoProbability, goProbability)
		a.impl = &thresholdStrategy{random: f.random, threshold: threshold, goProbability: goProbability}
	case StrategyMovingAverage:
		window := params.float(ParamWindowSize, DefaultWindowSize)
		if params.err == nil && (window < 1 || window > MaxWindowSize || window != math.Trunc(window)) {
			params.err = invalidParameter(ParamWindowSize, fmt.Sprintf("must be an integer between 1 and %d", MaxWindowSize))
		}
		threshold := params.float(ParamThreshold, DefaultMovingAverageThreshold)
		a.impl = &movingAverageStrategy{random: f.random, windowSize: int(window), threshold: threshold}
	case StrategyAdaptive:
		initial := params.float(ParamInitialThreshold, DefaultInitialThreshold)
		rate := params.float(ParamAdaptationRate, DefaultAdaptationRate)
		if params.err == nil && rate < 0 {
			params.err = invalidParameter(ParamAdaptationRate, "must not be negative")
		}
		a.impl = &adaptiveStrategy{random: f.random, initial: initial, adaptationRate: rate, current: initial}
	default:
		return apperrors.WithMetadata(apperrors.CodeAgentInvalidStrategy, "built-in strategy is not supported", map[string]string{"strategy": string(strategy)})
	}
	if params.err != nil {
		return params.err
	}
	a.Strategy = strategy
	a.Parameters = params.resolved
	return nil
}

// parameters reads numeric parameters, keeping the first error.
type parameters struct {
	raw      map[string]any
	resolved map[string]float64
	err      error
}

func (p *parameters) float(name string, fallback float64) float64 {
	v := fallback
	if raw, ok := p.raw[name]; ok && raw != nil {
		parsed, err := toFloat(raw)
		if err != nil {
			if p.err == nil {
				p.err = invalidParameter(name, err.Error())
			}
			return fallback
		}
		v = parsed
	}
	p.resolved[name] = v
	return v
}

func (p *parameters) checkProbability(name string, v float64) {
	if p.err == nil && (v < 0 || v > 1) {
		p.err = invalidParameter(name, "must be between 0 and 1")
	}
}

func invalidParameter(name, reason string) error {
	return apperrors.WithMetadata(
		apperrors.CodeAgentInvalidParameter,
		fmt.Sprintf("parameter %s %s", name, reason),
		map[string]string{"parameter": name},
	)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, errors.New("is not a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errors.New("is not a number")
		}
		f = parsed
	default:
		return 0, fmt.Errorf("has unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("must be finite")
	}
	return f, nil
}
