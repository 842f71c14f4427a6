package escalation

import "github.com/riftguard/riftguard/internal/alert"

// ToAlert adapts an escalation Result into the shared alert.Alert
// notification shape.
func ToAlert(r Result) alert.Alert {
	severity := "warning"
	switch r.Level {
	case LevelHigh, LevelCritical:
		severity = "critical"
	case LevelLow:
		severity = "info"
	}

	return alert.Alert{
		Type:     "escalation",
		Severity: severity,
		Title:    "Agent escalation raised",
		Message:  r.Reason,
		AgentID:  r.AgentID,
		Details: map[string]interface{}{
			"level":        string(r.Level),
			"should_pause": r.Level.ShouldPause(),
		},
	}
}
