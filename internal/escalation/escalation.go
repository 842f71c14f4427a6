// Package escalation implements the Escalation Router (C11): trust and
// budget trigger evaluation plus the human-in-the-loop approval workflow
// state machine that follows a trigger breach.
package escalation

import (
	"sync"
	"time"
)

// Level grades how urgently an escalation needs human attention.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// DefaultTimeout returns the approval-request expiry window for a level.
func (l Level) DefaultTimeout() time.Duration {
	switch l {
	case LevelLow:
		return 1 * time.Hour
	case LevelMedium:
		return 30 * time.Minute
	case LevelHigh:
		return 5 * time.Minute
	case LevelCritical:
		return 1 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// ShouldPause reports whether this level warrants pausing the agent
// pending a decision.
func (l Level) ShouldPause() bool { return l == LevelHigh || l == LevelCritical }

// TrustThreshold pairs a minimum trust score with the Level to raise when
// the score falls at or below it.
type TrustThreshold struct {
	MinScore float64
	Level    Level
}

// IsBreached reports whether score triggers this threshold.
func (t TrustThreshold) IsBreached(score float64) bool { return score <= t.MinScore }

// TriggerConfig configures one EscalationTrigger.
type TriggerConfig struct {
	Enabled         bool
	TrustThresholds []TrustThreshold
	CooldownSecs    uint64
}

// DefaultTrustTriggerConfig mirrors the original implementation's default
// trust-trigger thresholds and cooldown.
func DefaultTrustTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Enabled: true,
		TrustThresholds: []TrustThreshold{
			{MinScore: 0.8, Level: LevelLow},
			{MinScore: 0.5, Level: LevelMedium},
			{MinScore: 0.3, Level: LevelHigh},
			{MinScore: 0.1, Level: LevelCritical},
		},
		CooldownSecs: 60,
	}
}

// Result is what a trigger evaluation returns when a threshold breaches.
type Result struct {
	AgentID string
	Level   Level
	Reason  string
	At      time.Time
}

// Trigger evaluates trust and budget signals against its TriggerConfig,
// rate-limited by a per-agent cooldown.
type Trigger struct {
	mu       sync.Mutex
	config   TriggerConfig
	lastFire map[string]time.Time
	now      func() time.Time
}

// NewTrigger creates a Trigger with the given config. now defaults to
// time.Now if nil, overridable for deterministic tests.
func NewTrigger(config TriggerConfig, now func() time.Time) *Trigger {
	if now == nil {
		now = time.Now
	}
	return &Trigger{config: config, lastFire: make(map[string]time.Time), now: now}
}

func (t *Trigger) inCooldown(agentID string, at time.Time) bool {
	last, ok := t.lastFire[agentID]
	if !ok {
		return false
	}
	cooldown := time.Duration(t.config.CooldownSecs) * time.Second
	return at.Sub(last) < cooldown
}

// highestBreach finds the most severe (lowest-min-score) breached
// threshold among those sorted descending by MinScore, i.e. the thresholds
// are checked in order and the last one that breaches wins, matching the
// original implementation's ordered-thresholds semantics.
func highestBreach(thresholds []TrustThreshold, score float64) (TrustThreshold, bool) {
	var best TrustThreshold
	found := false
	for _, th := range thresholds {
		if th.IsBreached(score) {
			if !found || th.MinScore < best.MinScore {
				best = th
				found = true
			}
		}
	}
	return best, found
}

// EvaluateTrust checks score against the configured trust thresholds,
// returning a Result if the most severe breached threshold fires and the
// agent is not in cooldown.
func (t *Trigger) EvaluateTrust(agentID string, score float64) *Result {
	if !t.config.Enabled {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	th, breached := highestBreach(t.config.TrustThresholds, score)
	if !breached {
		return nil
	}

	now := t.now()
	if t.inCooldown(agentID, now) {
		return nil
	}
	t.lastFire[agentID] = now

	return &Result{AgentID: agentID, Level: th.Level, Reason: "trust score breached threshold", At: now}
}

// EvaluateBudget flags budget overruns: critical above 100% usage, high
// above 90%.
func (t *Trigger) EvaluateBudget(agentID string, used, limit float64) *Result {
	if !t.config.Enabled || limit <= 0 {
		return nil
	}
	pct := used / limit

	var level Level
	switch {
	case pct > 1.0:
		level = LevelCritical
	case pct > 0.9:
		level = LevelHigh
	default:
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if t.inCooldown(agentID, now) {
		return nil
	}
	t.lastFire[agentID] = now

	return &Result{AgentID: agentID, Level: level, Reason: "budget usage breached threshold", At: now}
}

// ManualEscalate raises an escalation outside the normal trigger path,
// bypassing cooldown.
func (t *Trigger) ManualEscalate(agentID, reason string, level Level) Result {
	return Result{AgentID: agentID, Level: level, Reason: reason, At: t.now()}
}

// Status is the lifecycle state of an ApprovalRequest.
type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusAutoApproved Status = "auto_approved"
	StatusExpired      Status = "expired"
)

// Decision records who approved/rejected a request and why.
type Decision struct {
	Approver string
	Reason   string
	At       time.Time
}

// Request is one pending (or resolved) approval request.
type Request struct {
	ID        string
	AgentID   string
	Action    string
	Level     Level
	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time
	Decision  *Decision
}

func (r *Request) isExpired(at time.Time) bool { return at.After(r.ExpiresAt) }

// IsPending reports whether r is still awaiting a decision and has not
// expired as of at.
func (r *Request) IsPending(at time.Time) bool { return r.Status == StatusPending && !r.isExpired(at) }

// WorkflowStats summarizes an ApprovalWorkflow's request counts by status.
type WorkflowStats struct {
	Pending      int
	Approved     int
	Rejected     int
	AutoApproved int
	Expired      int
}

// Workflow is the approval queue and its state machine.
type Workflow struct {
	mu          sync.Mutex
	requests    map[string]*Request
	autoApprove map[Level]bool
	now         func() time.Time
	nextID      func() string
}

// WorkflowOption configures a Workflow at construction.
type WorkflowOption func(*Workflow)

// WithAutoApprove marks the given levels as auto-approved on creation.
func WithAutoApprove(levels ...Level) WorkflowOption {
	return func(w *Workflow) {
		for _, l := range levels {
			w.autoApprove[l] = true
		}
	}
}

// WithClock overrides the workflow's time source, for deterministic tests.
func WithClock(now func() time.Time) WorkflowOption { return func(w *Workflow) { w.now = now } }

// WithIDGenerator overrides how request IDs are minted.
func WithIDGenerator(gen func() string) WorkflowOption {
	return func(w *Workflow) { w.nextID = gen }
}

// NewWorkflow creates an empty approval Workflow.
func NewWorkflow(opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		requests:    make(map[string]*Request),
		autoApprove: make(map[Level]bool),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.nextID == nil {
		counter := 0
		w.nextID = func() string {
			counter++
			return "req-" + itoa(counter)
		}
	}
	return w
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// RequestApproval creates a new Request for agentID's action at level,
// auto-approving immediately if level is in the auto-approve set.
func (w *Workflow) RequestApproval(agentID, action string, level Level) *Request {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	status := StatusPending
	if w.autoApprove[level] {
		status = StatusAutoApproved
	}

	req := &Request{
		ID:        w.nextID(),
		AgentID:   agentID,
		Action:    action,
		Level:     level,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(level.DefaultTimeout()),
	}
	w.requests[req.ID] = req
	return req
}

// GetRequest returns a request by id.
func (w *Workflow) GetRequest(id string) (*Request, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.requests[id]
	return r, ok
}

// PendingRequests returns all requests currently pending (not expired).
func (w *Workflow) PendingRequests() []*Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	var out []*Request
	for _, r := range w.requests {
		if r.IsPending(now) {
			out = append(out, r)
		}
	}
	return out
}

// RequestsByAgent returns all requests (any status) for agentID.
func (w *Workflow) RequestsByAgent(agentID string) []*Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*Request
	for _, r := range w.requests {
		if r.AgentID == agentID {
			out = append(out, r)
		}
	}
	return out
}

// Approve transitions a pending request to Approved. Returns nil if the
// request does not exist or is not pending.
func (w *Workflow) Approve(id, approver, reason string) *Request {
	return w.transition(id, StatusApproved, approver, reason)
}

// Reject transitions a pending request to Rejected.
func (w *Workflow) Reject(id, approver, reason string) *Request {
	return w.transition(id, StatusRejected, approver, reason)
}

func (w *Workflow) transition(id string, status Status, approver, reason string) *Request {
	w.mu.Lock()
	defer w.mu.Unlock()

	req, ok := w.requests[id]
	if !ok || req.Status != StatusPending {
		return nil
	}
	now := w.now()
	if req.isExpired(now) {
		req.Status = StatusExpired
		return nil
	}
	req.Status = status
	req.Decision = &Decision{Approver: approver, Reason: reason, At: now}
	return req
}

// ExpireStale scans all requests and transitions any pending-but-expired
// ones to Expired, returning their ids.
func (w *Workflow) ExpireStale() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	var expired []string
	for id, r := range w.requests {
		if r.Status == StatusPending && r.isExpired(now) {
			r.Status = StatusExpired
			expired = append(expired, id)
		}
	}
	return expired
}

// Stats summarizes request counts by status.
func (w *Workflow) Stats() WorkflowStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	var s WorkflowStats
	for _, r := range w.requests {
		switch r.Status {
		case StatusPending:
			s.Pending++
		case StatusApproved:
			s.Approved++
		case StatusRejected:
			s.Rejected++
		case StatusAutoApproved:
			s.AutoApproved++
		case StatusExpired:
			s.Expired++
		}
	}
	return s
}
