package carbon

import "testing"

func TestVeto_BlocksActionOverBudget(t *testing.T) {
	ledger := NewLedger(nil)
	ledger.SetBudget(Budget{AgentID: "agent-1", DailyLimitGCO2: 0.1, BlockOnExceed: true})
	veto := NewVeto(ledger, nil, nil)

	decision := veto.Evaluate("agent-1", "train_model", "gpu", 60_000)

	if decision.Allowed {
		t.Fatalf("expected action to be blocked, got allowed with message %q", decision.Message)
	}
	if decision.Message == "" {
		t.Error("expected a message explaining the block")
	}
}

func TestVeto_AllowsUnderBudget(t *testing.T) {
	ledger := NewLedger(nil)
	ledger.SetBudget(Budget{AgentID: "agent-1", DailyLimitGCO2: 1000, BlockOnExceed: true})
	veto := NewVeto(ledger, nil, nil)

	decision := veto.Evaluate("agent-1", "list_files", "cpu", 100)

	if !decision.Allowed {
		t.Fatalf("expected action to be allowed, got blocked: %q", decision.Message)
	}
}

func TestVeto_WarnOnlyWhenNotBlocking(t *testing.T) {
	ledger := NewLedger(nil)
	ledger.SetBudget(Budget{AgentID: "agent-1", DailyLimitGCO2: 0.1, BlockOnExceed: false})
	veto := NewVeto(ledger, nil, nil)

	decision := veto.Evaluate("agent-1", "train_model", "gpu", 60_000)

	if !decision.Allowed {
		t.Error("expected warn-only budget to still allow the action")
	}
	if decision.Message == "" {
		t.Error("expected a warning message even though allowed")
	}
}

func TestVeto_NoBudgetConfiguredAlwaysAllows(t *testing.T) {
	ledger := NewLedger(nil)
	veto := NewVeto(ledger, nil, nil)

	decision := veto.Evaluate("unknown-agent", "anything", "gpu", 1_000_000)
	if !decision.Allowed {
		t.Error("expected an agent with no configured budget to always be allowed")
	}
}

func TestVeto_DefaultsComputeTypeAndDuration(t *testing.T) {
	ledger := NewLedger(nil)
	veto := NewVeto(ledger, nil, nil)

	decision := veto.Evaluate("agent-2", "noop", "", -5)
	if !decision.Allowed {
		t.Error("expected defaulted compute_type/duration_ms to not break evaluation")
	}
}
