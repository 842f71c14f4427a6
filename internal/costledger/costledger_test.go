package costledger

import "testing"

func TestThresholdTriggersAlert(t *testing.T) {
	l := New()
	l.AddThreshold(Threshold{ID: "t1", AgentID: "agent-1", AmountUSD: 10, Level: AlertLevelWarning, Enabled: true})

	alert := l.Record(Event{AgentID: "agent-1", Category: CategoryTokens, AmountUSD: 12})
	if alert == nil {
		t.Fatal("expected an alert once threshold is crossed")
	}
	if alert.Level != AlertLevelWarning || alert.AgentPaused {
		t.Errorf("unexpected alert: %+v", alert)
	}
}

func TestEmergencyLevelPausesAgent(t *testing.T) {
	l := New()
	l.AddThreshold(Threshold{ID: "t1", AgentID: "agent-1", AmountUSD: 5, Level: AlertLevelEmergency, Enabled: true})

	alert := l.Record(Event{AgentID: "agent-1", AmountUSD: 6})
	if alert == nil || !alert.AgentPaused {
		t.Fatalf("expected emergency alert to pause the agent, got %+v", alert)
	}
}

func TestWildcardThresholdMatchesAnyAgent(t *testing.T) {
	l := New()
	l.AddThreshold(Threshold{ID: "t1", AgentID: "*", AmountUSD: 1, Level: AlertLevelInfo, Enabled: true})

	alert := l.Record(Event{AgentID: "any-agent", AmountUSD: 2})
	if alert == nil {
		t.Fatal("expected wildcard threshold to match any agent")
	}
}

func TestDisabledThresholdNeverFires(t *testing.T) {
	l := New()
	l.AddThreshold(Threshold{ID: "t1", AgentID: "agent-1", AmountUSD: 1, Level: AlertLevelCritical, Enabled: false})

	alert := l.Record(Event{AgentID: "agent-1", AmountUSD: 100})
	if alert != nil {
		t.Fatalf("expected disabled threshold not to fire, got %+v", alert)
	}
}

func TestAgentTotalAccumulates(t *testing.T) {
	l := New()
	l.Record(Event{AgentID: "agent-1", AmountUSD: 1})
	l.Record(Event{AgentID: "agent-1", AmountUSD: 2})
	if got := l.AgentTotal("agent-1"); got != 3 {
		t.Errorf("AgentTotal = %v, want 3", got)
	}
}
