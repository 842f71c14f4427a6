// Package verify implements the Verification Engine (C3): the two-phase
// symbolic/neural policy check every agent action passes through before
// execution, plus the ESG carbon gate.
package verify

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/riftguard/riftguard/internal/carbon"
	"github.com/riftguard/riftguard/internal/classifier"
	"github.com/riftguard/riftguard/internal/dsl"
)

// Effect is the action a Rule takes when its condition matches.
type Effect string

const (
	EffectAllow  Effect = "allow"
	EffectDeny   Effect = "deny"
	EffectReview Effect = "review"
	EffectAudit  Effect = "audit"
)

// Rule is one condition/effect pair within a Policy.
type Rule struct {
	Condition string
	Effect    Effect
	RiskScore uint8
	Message   string

	compiled *dsl.Expression
}

// Policy groups rules under a jurisdiction and priority; higher-priority
// policies are evaluated first.
type Policy struct {
	ID         string
	Name       string
	Jurisdiction string // "*" matches any
	Priority   int
	Enabled    bool
	Rules      []Rule
}

// Action is the unit of work the Verification Engine evaluates.
type Action struct {
	AgentID      string
	ActionString string
	Jurisdiction string
	Context      map[string]any
}

// Result is the outcome of one verification call.
type Result struct {
	Allowed           bool
	FinalRisk         uint8
	SymbolicRisk      uint8
	NeuralRisk        uint8
	NeuralEngaged     bool
	BlockingPolicies  []string
	EvaluatedPolicies []string
	Reasoning         string
	CarbonAllowed     bool
	SymbolicLatency   time.Duration
	TotalLatency      time.Duration
}

// Registry holds the set of registered policies, guarded for concurrent
// reads during evaluation and writes during reload.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*Policy
}

// NewRegistry creates an empty policy registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]*Policy)}
}

// Register compiles and installs (or replaces) a policy. Malformed rule
// conditions fail compilation for that rule alone: such a rule is kept but
// always evaluates false at runtime (PolicyMalformed is local, not fatal).
func (r *Registry) Register(p *Policy) {
	for i := range p.Rules {
		if compiled, err := dsl.Compile(p.Rules[i].Condition); err == nil {
			p.Rules[i].compiled = compiled
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.ID] = p
}

// Remove deletes a policy by id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.policies, id)
}

// Get returns a policy by id.
func (r *Registry) Get(id string) (*Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[id]
	return p, ok
}

// snapshot returns enabled policies matching jurisdiction, sorted by
// descending priority.
func (r *Registry) snapshot(jurisdiction string) []*Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Policy, 0, len(r.policies))
	for _, p := range r.policies {
		if !p.Enabled {
			continue
		}
		if p.Jurisdiction != "*" && p.Jurisdiction != "" && p.Jurisdiction != jurisdiction {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Auditor is the subset of the Audit Ledger the engine depends on, kept as
// an interface to avoid a package cycle between verify and audit.
type Auditor interface {
	RecordVerification(action Action, result Result)
}

// Engine ties together the policy registry, risk classifier and carbon
// veto into the full verification algorithm.
type Engine struct {
	registry       *Registry
	scorer         classifier.Scorer
	veto           *carbon.Veto
	auditor        Auditor
	neuralThreshold uint8
	blockingThreshold uint8
	logger         *slog.Logger
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithAuditor wires an audit sink that receives every completed
// verification.
func WithAuditor(a Auditor) Option { return func(e *Engine) { e.auditor = a } }

// WithCarbonVeto wires the ESG gate.
func WithCarbonVeto(v *carbon.Veto) Option { return func(e *Engine) { e.veto = v } }

// WithNeuralThreshold overrides the default symbolic-risk gate (50) at or
// above which the neural classifier is consulted.
func WithNeuralThreshold(t uint8) Option { return func(e *Engine) { e.neuralThreshold = t } }

// WithBlockingThreshold overrides the default final-risk deny threshold (80).
func WithBlockingThreshold(t uint8) Option { return func(e *Engine) { e.blockingThreshold = t } }

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// NewEngine builds an Engine over registry and scorer.
func NewEngine(registry *Registry, scorer classifier.Scorer, opts ...Option) *Engine {
	e := &Engine{
		registry:          registry,
		scorer:            scorer,
		neuralThreshold:   50,
		blockingThreshold: 80,
		logger:            slog.Default().With("component", "verify.Engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func evalContext(a Action) dsl.Context {
	ctx := make(map[string]any, len(a.Context)+1)
	for k, v := range a.Context {
		ctx[k] = v
	}
	ctx["agent_id"] = a.AgentID
	ctx["action"] = a.ActionString
	return dsl.Context(ctx)
}

func contextString(ctx map[string]any, key, def string) string {
	if v, ok := ctx[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func contextFloat(ctx map[string]any, key string, def float64) float64 {
	if v, ok := ctx[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return def
}

// Evaluate runs the full verification algorithm against action. It never
// panics and never returns an error: a malformed policy condition is
// treated as a non-match, a classifier failure degrades to the default
// neural score, and a carbon-veto failure degrades to allowed.
func (e *Engine) Evaluate(action Action) Result {
	start := time.Now()

	policies := e.registry.snapshot(action.Jurisdiction)
	evalCtx := evalContext(action)

	var maxRisk uint8
	var blockingPolicies []string
	var evaluatedPolicies []string
	denyMessage := ""

	for _, p := range policies {
		evaluatedPolicies = append(evaluatedPolicies, p.ID)
		for _, rule := range p.Rules {
			if rule.compiled == nil {
				continue // malformed condition: local no-op, never aborts evaluation
			}
			if !rule.compiled.Evaluate(evalCtx) {
				continue
			}
			if rule.RiskScore > maxRisk {
				maxRisk = rule.RiskScore
			}
			switch rule.Effect {
			case EffectDeny:
				blockingPolicies = append(blockingPolicies, p.ID)
				maxRisk = 100
				if denyMessage == "" {
					if rule.Message != "" {
						denyMessage = rule.Message
					} else {
						denyMessage = "denied by policy " + p.ID
					}
				}
			case EffectReview:
				if maxRisk < 60 {
					maxRisk = 60
				}
			case EffectAudit:
				// no decision impact beyond the unconditional evaluatedPolicies record above
			case EffectAllow:
				// no decision impact beyond the rule's RiskScore, applied above
			}
		}
	}

	symbolicRisk := maxRisk
	symbolicLatency := time.Since(start)

	var neuralRisk uint8
	neuralEngaged := false
	if symbolicRisk >= e.neuralThreshold {
		neuralEngaged = true
		neuralRisk = e.scoreNeural(action)
	}

	var finalRisk uint8
	if neuralEngaged {
		finalRisk = uint8((uint16(symbolicRisk) + uint16(neuralRisk)) / 2)
	} else {
		finalRisk = symbolicRisk
	}

	carbonAllowed, carbonMessage := e.evaluateCarbon(action)

	allowed := len(blockingPolicies) == 0 && finalRisk < e.blockingThreshold && carbonAllowed

	reasoning := buildReasoning(allowed, carbonAllowed, carbonMessage, blockingPolicies, denyMessage, finalRisk, e.blockingThreshold)

	result := Result{
		Allowed:           allowed,
		FinalRisk:         finalRisk,
		SymbolicRisk:      symbolicRisk,
		NeuralRisk:        neuralRisk,
		NeuralEngaged:     neuralEngaged,
		BlockingPolicies:  blockingPolicies,
		EvaluatedPolicies: evaluatedPolicies,
		Reasoning:         reasoning,
		CarbonAllowed:     carbonAllowed,
		SymbolicLatency:   symbolicLatency,
		TotalLatency:      time.Since(start),
	}

	if e.auditor != nil {
		e.auditor.RecordVerification(action, result)
	}

	return result
}

func (e *Engine) scoreNeural(action Action) (score uint8) {
	defer func() {
		if recover() != nil {
			score = classifier.DefaultScore
		}
	}()
	if e.scorer == nil {
		return classifier.DefaultScore
	}
	return e.scorer.Score(action.ActionString, action.Context)
}

func (e *Engine) evaluateCarbon(action Action) (allowed bool, message string) {
	if e.veto == nil {
		return true, ""
	}
	defer func() {
		if recover() != nil {
			allowed = true
			message = ""
		}
	}()
	computeType := contextString(action.Context, "compute_type", "cpu")
	durationMs := contextFloat(action.Context, "duration_ms", 0)
	decision := e.veto.Evaluate(action.AgentID, action.ActionString, computeType, durationMs)
	return decision.Allowed, decision.Message
}

func buildReasoning(allowed, carbonAllowed bool, carbonMessage string, blockingPolicies []string, denyMessage string, finalRisk, blockingThreshold uint8) string {
	if !carbonAllowed {
		if carbonMessage != "" {
			return carbonMessage
		}
		return "denied by carbon budget veto"
	}
	if len(blockingPolicies) > 0 {
		if denyMessage != "" {
			return denyMessage
		}
		return "denied by policy"
	}
	if finalRisk >= blockingThreshold {
		return "denied: final risk score exceeds blocking threshold"
	}
	return "All policies passed"
}
