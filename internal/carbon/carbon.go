// Package carbon implements the Carbon Veto (C12): a per-agent running
// gCO2 ledger checked against a budget, participating in the Verification
// Engine's decision as an ESG gate. Grounded on
// original_source/packages/pillars/gate/src/engine.rs's
// test_carbon_veto_blocks_action (the CarbonBudget/CarbonLedger/CarbonVeto
// integration contract — daily limit, block_on_exceed, compute_type and
// duration_ms extracted from the action context) since the structs
// themselves live in a crate the retrieval pack did not include; and on
// packages/treasury/src/watttime.rs for the lat/lon grid-intensity lookup
// shape.
package carbon

import (
	"log/slog"
	"sync"
)

// GridIntensitySource returns the current grid carbon intensity in
// gCO2eq/kWh for a compute type. It takes no location; location lookups
// are the separate LatLonIntensitySource interface.
type GridIntensitySource interface {
	Intensity(computeType string) float64
}

// StaticIntensityTable is a region-independent lookup by compute type,
// the simplest GridIntensitySource.
type StaticIntensityTable struct {
	byComputeType map[string]float64
}

// DefaultIntensityTable approximates typical datacenter gCO2eq/kWh by
// compute type (cpu/gpu/tpu), matching the class of numbers in
// packages/arbiter/src/carbon.rs's CarbonIntensity levels.
func DefaultIntensityTable() *StaticIntensityTable {
	return &StaticIntensityTable{byComputeType: map[string]float64{
		"cpu": 200,
		"gpu": 400,
		"tpu": 350,
	}}
}

func (t *StaticIntensityTable) Intensity(computeType string) float64 {
	if v, ok := t.byComputeType[computeType]; ok {
		return v
	}
	return t.byComputeType["cpu"]
}

// LatLonIntensitySource models a real-time grid-intensity client such as
// WattTime, keyed by coordinates rather than a static table.
type LatLonIntensitySource interface {
	IntensityAt(lat, lon float64) (float64, error)
}

// Budget is a per-agent carbon budget: a daily gCO2 allowance and whether
// exceeding it blocks the action outright.
type Budget struct {
	AgentID        string
	DailyLimitGCO2 float64
	BlockOnExceed  bool
}

// Ledger tracks running emissions per agent against their Budget.
type Ledger struct {
	mu      sync.Mutex
	budgets map[string]Budget
	totals  map[string]float64
	logger  *slog.Logger
}

// NewLedger creates an empty carbon ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		budgets: make(map[string]Budget),
		totals:  make(map[string]float64),
		logger:  logger.With("component", "carbon.Ledger"),
	}
}

// SetBudget installs or replaces the budget for an agent.
func (l *Ledger) SetBudget(b Budget) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budgets[b.AgentID] = b
}

// Total returns the agent's running gCO2 total.
func (l *Ledger) Total(agentID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[agentID]
}

// Record adds grams to the agent's running total and reports whether this
// addition would (or does) exceed the agent's budget.
func (l *Ledger) Record(agentID string, grams float64) (overBudget bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals[agentID] += grams
	budget, ok := l.budgets[agentID]
	if !ok {
		return false
	}
	return l.totals[agentID] > budget.DailyLimitGCO2
}

// getBudget returns the agent's configured budget under the lock.
func (l *Ledger) getBudget(agentID string) (Budget, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.budgets[agentID]
	return b, ok
}

// Reset clears an agent's running total, e.g. at the start of a new day.
func (l *Ledger) Reset(agentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.totals, agentID)
}

// Decision is the Veto's verdict for one action.
type Decision struct {
	Allowed bool
	Message string
}

// Veto is the Carbon Veto gate the Verification Engine consults.
type Veto struct {
	ledger *Ledger
	source GridIntensitySource
	logger *slog.Logger
}

// NewVeto builds a Veto over the given ledger, defaulting to the static
// intensity table if source is nil.
func NewVeto(ledger *Ledger, source GridIntensitySource, logger *slog.Logger) *Veto {
	if source == nil {
		source = DefaultIntensityTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Veto{ledger: ledger, source: source, logger: logger.With("component", "carbon.Veto")}
}

// Evaluate implements the C12 contract: evaluate(agent_id, action,
// compute_type, duration_ms) -> {allowed, message?}. The estimate is
// grams = intensity(gCO2/kWh) * (duration_ms/3600000) assuming a nominal
// 1kW draw; callers needing precise power draw should scale duration_ms
// accordingly.
func (v *Veto) Evaluate(agentID, action, computeType string, durationMs float64) Decision {
	if durationMs < 0 {
		durationMs = 0
	}
	if computeType == "" {
		computeType = "cpu"
	}

	intensity := v.source.Intensity(computeType)
	hours := durationMs / 3_600_000.0
	grams := intensity * hours

	over := v.ledger.Record(agentID, grams)
	if !over {
		return Decision{Allowed: true}
	}

	budget, ok := v.ledger.getBudget(agentID)
	if !ok || !budget.BlockOnExceed {
		v.logger.Warn("carbon budget exceeded, not blocking", "agent_id", agentID, "action", action)
		return Decision{Allowed: true, Message: "carbon budget exceeded (warn-only)"}
	}

	v.logger.Warn("carbon veto blocked action", "agent_id", agentID, "action", action)
	return Decision{Allowed: false, Message: "carbon budget exceeded for agent " + agentID}
}
