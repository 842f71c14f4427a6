package escalation

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestEvaluateTrustPicksMostSevereBreach(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	trig := NewTrigger(DefaultTrustTriggerConfig(), fixedClock(base))

	result := trig.EvaluateTrust("agent-1", 0.2)
	if result == nil {
		t.Fatal("expected a breach")
	}
	if result.Level != LevelHigh {
		t.Errorf("level = %v, want high", result.Level)
	}
}

func TestEvaluateTrustRespectsCooldown(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	clockTime := base
	trig := NewTrigger(DefaultTrustTriggerConfig(), func() time.Time { return clockTime })

	if r := trig.EvaluateTrust("agent-1", 0.05); r == nil {
		t.Fatal("expected first breach to fire")
	}
	if r := trig.EvaluateTrust("agent-1", 0.05); r != nil {
		t.Fatal("expected second breach within cooldown to be suppressed")
	}

	clockTime = base.Add(61 * time.Second)
	if r := trig.EvaluateTrust("agent-1", 0.05); r == nil {
		t.Fatal("expected breach after cooldown elapses to fire")
	}
}

func TestEvaluateBudgetThresholds(t *testing.T) {
	trig := NewTrigger(DefaultTrustTriggerConfig(), fixedClock(time.Unix(1_700_000_000, 0)))

	if r := trig.EvaluateBudget("agent-1", 95, 100); r == nil || r.Level != LevelHigh {
		t.Fatalf("expected high at 95%%, got %+v", r)
	}
}

func TestEvaluateBudgetCriticalOverLimit(t *testing.T) {
	trig := NewTrigger(DefaultTrustTriggerConfig(), fixedClock(time.Unix(1_700_000_100, 0)))
	if r := trig.EvaluateBudget("agent-2", 150, 100); r == nil || r.Level != LevelCritical {
		t.Fatalf("expected critical over 100%%, got %+v", r)
	}
}

func TestApprovalWorkflowAutoApprove(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	w := NewWorkflow(WithClock(fixedClock(base)), WithAutoApprove(LevelLow))

	req := w.RequestApproval("agent-1", "read_file", LevelLow)
	if req.Status != StatusAutoApproved {
		t.Errorf("expected auto-approved status, got %v", req.Status)
	}
}

func TestApprovalWorkflowApproveReject(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	w := NewWorkflow(WithClock(fixedClock(base)))

	req := w.RequestApproval("agent-1", "transfer_funds", LevelHigh)
	if req.Status != StatusPending {
		t.Fatalf("expected pending, got %v", req.Status)
	}

	approved := w.Approve(req.ID, "ops@example.com", "looks fine")
	if approved == nil || approved.Status != StatusApproved {
		t.Fatalf("expected approval to succeed, got %+v", approved)
	}

	// approving again should be a no-op (not pending anymore)
	if again := w.Approve(req.ID, "ops@example.com", "again"); again != nil {
		t.Error("expected re-approval of a resolved request to return nil")
	}
}

func TestApprovalExpiresAfterTimeout(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	clockTime := base
	w := NewWorkflow(WithClock(func() time.Time { return clockTime }))

	req := w.RequestApproval("agent-1", "escalate", LevelCritical) // 60s timeout
	clockTime = base.Add(61 * time.Second)

	expired := w.ExpireStale()
	if len(expired) != 1 || expired[0] != req.ID {
		t.Fatalf("expected request to expire, got %v", expired)
	}

	got, _ := w.GetRequest(req.ID)
	if got.Status != StatusExpired {
		t.Errorf("expected status expired, got %v", got.Status)
	}
}

func TestWorkflowStats(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	w := NewWorkflow(WithClock(fixedClock(base)), WithAutoApprove(LevelLow))

	w.RequestApproval("agent-1", "a1", LevelLow)
	r2 := w.RequestApproval("agent-1", "a2", LevelHigh)
	w.Approve(r2.ID, "ops", "ok")
	w.RequestApproval("agent-1", "a3", LevelMedium)

	stats := w.Stats()
	if stats.AutoApproved != 1 || stats.Approved != 1 || stats.Pending != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
