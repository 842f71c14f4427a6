// Package bulkhead implements the Budget & Bulkhead Controller's
// concurrency half (C5): a per-agent concurrency barrier plus resource
// quotas, with suspend/resume for an emergency stop.
package bulkhead

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// QuotaType names one of the resource quotas a Bulkhead tracks alongside
// raw concurrency.
type QuotaType string

const (
	QuotaAPICalls QuotaType = "api_calls"
	QuotaTokens   QuotaType = "tokens"
	QuotaCost     QuotaType = "cost"
)

// Quota is a single limit/current pair for one QuotaType.
type Quota struct {
	Limit   float64
	current float64
	mu      sync.Mutex
}

func (q *Quota) remaining() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.Limit - q.current
}

func (q *Quota) remainingPct() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Limit == 0 || q.current >= q.Limit {
		return 0
	}
	return (q.Limit - q.current) / q.Limit
}

func (q *Quota) record(amount float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current += amount
}

func (q *Quota) snapshot() (current, limit float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.Limit
}

// Tier is a named preset of bulkhead limits.
type Tier struct {
	MaxConcurrent    int
	AcquireTimeout   time.Duration
	MaxAPICalls      float64
	MaxTokens        float64
	MaxCostUSD       float64
	FairQueuing      bool
}

var (
	Basic = Tier{MaxConcurrent: 5, AcquireTimeout: 5 * time.Second, MaxAPICalls: 100, MaxTokens: 10_000}

	DefaultTier = Tier{MaxConcurrent: 10, AcquireTimeout: 5 * time.Second, MaxAPICalls: 1_000, MaxTokens: 100_000, FairQueuing: true}

	Premium = Tier{MaxConcurrent: 50, AcquireTimeout: 5 * time.Second, MaxAPICalls: 10_000, MaxTokens: 1_000_000}

	Enterprise = Tier{MaxConcurrent: 200, AcquireTimeout: 5 * time.Second, MaxAPICalls: 100_000, MaxTokens: 10_000_000}
)

// Rejection is the typed-error family a failed acquisition returns.
type Rejection struct {
	Kind    string
	Current int
	Max     int
	Quota   QuotaType
	Limit   float64
	Reason  string
	WaitedMs int64
}

func (r *Rejection) Error() string {
	switch r.Kind {
	case "max_concurrent_exceeded":
		return fmt.Sprintf("bulkhead: max concurrent exceeded: current=%d max=%d", r.Current, r.Max)
	case "quota_exceeded":
		return fmt.Sprintf("bulkhead: quota exceeded: type=%s limit=%v", r.Quota, r.Limit)
	case "agent_suspended":
		return fmt.Sprintf("bulkhead: agent suspended: %s", r.Reason)
	case "timeout":
		return fmt.Sprintf("bulkhead: acquire timed out after %dms", r.WaitedMs)
	default:
		return "bulkhead: rejected"
	}
}

// Permit is a scoped concurrency slot. Callers must call Release exactly
// once when done with the unit of work it guards.
type Permit struct {
	b        *Bulkhead
	released int32
}

// Release returns the concurrency slot. Safe to call more than once; only
// the first call has effect.
func (p *Permit) Release() {
	if !atomic.CompareAndSwapInt32(&p.released, 0, 1) {
		return
	}
	<-p.b.sem
	atomic.AddInt64(&p.b.current, -1)
}

// RecordAPICall records one API call against this permit's quotas.
func (p *Permit) RecordAPICall() { p.b.quotas[QuotaAPICalls].record(1) }

// RecordTokens records n tokens against this permit's quotas.
func (p *Permit) RecordTokens(n float64) { p.b.quotas[QuotaTokens].record(n) }

// RecordCost records d dollars against this permit's quotas.
func (p *Permit) RecordCost(d float64) { p.b.quotas[QuotaCost].record(d) }

// Bulkhead is a per-agent concurrency barrier plus quota set.
type Bulkhead struct {
	agentID string
	tier    Tier
	sem     chan struct{}
	quotas  map[QuotaType]*Quota

	current int64
	peak    int64

	total     int64 // successful acquisitions
	rejected  int64 // rejected acquisition attempts, any kind
	waitMsSum int64 // cumulative time spent waiting in Acquire

	mu        sync.Mutex
	suspended bool
	reason    string

	fairMu sync.Mutex // serializes acquisition order when FairQueuing is set
}

// New creates a Bulkhead for agentID under tier.
func New(agentID string, tier Tier) *Bulkhead {
	return &Bulkhead{
		agentID: agentID,
		tier:    tier,
		sem:     make(chan struct{}, tier.MaxConcurrent),
		quotas: map[QuotaType]*Quota{
			QuotaAPICalls: {Limit: tier.MaxAPICalls},
			QuotaTokens:   {Limit: tier.MaxTokens},
			QuotaCost:     {Limit: tier.MaxCostUSD},
		},
	}
}

func (b *Bulkhead) suspendedReason() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspended, b.reason
}

func (b *Bulkhead) checkQuotas() *Rejection {
	for qt, q := range b.quotas {
		if q.Limit <= 0 {
			continue
		}
		current, limit := q.snapshot()
		if current >= limit {
			return &Rejection{Kind: "quota_exceeded", Quota: qt, Limit: limit}
		}
	}
	return nil
}

// TryAcquire attempts a non-blocking acquisition.
func (b *Bulkhead) TryAcquire() (*Permit, *Rejection) {
	if suspended, reason := b.suspendedReason(); suspended {
		atomic.AddInt64(&b.rejected, 1)
		return nil, &Rejection{Kind: "agent_suspended", Reason: reason}
	}
	if rej := b.checkQuotas(); rej != nil {
		atomic.AddInt64(&b.rejected, 1)
		return nil, rej
	}
	select {
	case b.sem <- struct{}{}:
		b.bumpPeak()
		atomic.AddInt64(&b.total, 1)
		return &Permit{b: b}, nil
	default:
		atomic.AddInt64(&b.rejected, 1)
		return nil, &Rejection{Kind: "max_concurrent_exceeded", Current: b.currentCount(), Max: b.tier.MaxConcurrent}
	}
}

// Acquire blocks up to timeout (or the tier's default AcquireTimeout if
// timeout is zero) waiting for a concurrency slot.
func (b *Bulkhead) Acquire(ctx context.Context, timeout time.Duration) (*Permit, *Rejection) {
	if suspended, reason := b.suspendedReason(); suspended {
		atomic.AddInt64(&b.rejected, 1)
		return nil, &Rejection{Kind: "agent_suspended", Reason: reason}
	}
	if rej := b.checkQuotas(); rej != nil {
		atomic.AddInt64(&b.rejected, 1)
		return nil, rej
	}
	if timeout == 0 {
		timeout = b.tier.AcquireTimeout
	}

	if b.tier.FairQueuing {
		b.fairMu.Lock()
		defer b.fairMu.Unlock()
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		b.bumpPeak()
		atomic.AddInt64(&b.total, 1)
		atomic.AddInt64(&b.waitMsSum, time.Since(start).Milliseconds())
		return &Permit{b: b}, nil
	case <-timer.C:
		atomic.AddInt64(&b.rejected, 1)
		atomic.AddInt64(&b.waitMsSum, time.Since(start).Milliseconds())
		return nil, &Rejection{Kind: "timeout", WaitedMs: time.Since(start).Milliseconds()}
	case <-ctx.Done():
		atomic.AddInt64(&b.rejected, 1)
		atomic.AddInt64(&b.waitMsSum, time.Since(start).Milliseconds())
		return nil, &Rejection{Kind: "timeout", WaitedMs: time.Since(start).Milliseconds()}
	}
}

func (b *Bulkhead) bumpPeak() {
	cur := atomic.AddInt64(&b.current, 1)
	for {
		p := atomic.LoadInt64(&b.peak)
		if cur <= p {
			return
		}
		if atomic.CompareAndSwapInt64(&b.peak, p, cur) {
			return
		}
	}
}

func (b *Bulkhead) currentCount() int { return int(atomic.LoadInt64(&b.current)) }

// PeakConcurrent returns the highest number of simultaneously-held permits
// observed so far.
func (b *Bulkhead) PeakConcurrent() int { return int(atomic.LoadInt64(&b.peak)) }

// CurrentConcurrent returns the number of currently-held permits.
func (b *Bulkhead) CurrentConcurrent() int { return b.currentCount() }

// Stats is the bulkhead's data-model stats: total acquisitions, rejections,
// peak concurrency, and cumulative time spent waiting in Acquire.
type Stats struct {
	Total          int64
	Rejected       int64
	PeakConcurrent int
	WaitMsSum      int64
}

// Stats returns a snapshot of the bulkhead's running counters.
func (b *Bulkhead) Stats() Stats {
	return Stats{
		Total:          atomic.LoadInt64(&b.total),
		Rejected:       atomic.LoadInt64(&b.rejected),
		PeakConcurrent: b.PeakConcurrent(),
		WaitMsSum:      atomic.LoadInt64(&b.waitMsSum),
	}
}

// RemainingPct returns the fraction of headroom left in quota qt, in [0,1].
func (b *Bulkhead) RemainingPct(qt QuotaType) float64 {
	q, ok := b.quotas[qt]
	if !ok {
		return 1
	}
	return q.remainingPct()
}

// Suspend marks the agent suspended: every subsequent acquisition fails
// until Resume is called.
func (b *Bulkhead) Suspend(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suspended = true
	b.reason = reason
}

// Resume clears a suspension. Idempotent: calling Resume when not suspended
// (or calling it twice) is a no-op.
func (b *Bulkhead) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suspended = false
	b.reason = ""
}

// Suspended reports whether the agent is currently suspended.
func (b *Bulkhead) Suspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspended
}
