package costledger

import "github.com/riftguard/riftguard/internal/alert"

// ToAlert adapts a cost Alert into the shared alert.Alert notification
// shape so it can be dispatched through alert.Manager's configured
// channels (Slack, webhook).
func ToAlert(a Alert) alert.Alert {
	severity := "warning"
	switch a.Level {
	case AlertLevelCritical, AlertLevelEmergency:
		severity = "critical"
	case AlertLevelInfo:
		severity = "info"
	}

	return alert.Alert{
		Type:     "cost_threshold",
		Severity: severity,
		Title:    "Cost threshold breached",
		Message:  "agent spend crossed a configured threshold",
		AgentID:  a.AgentID,
		Details: map[string]interface{}{
			"threshold_id":  a.ThresholdID,
			"level":         string(a.Level),
			"current_usd":   a.Current,
			"threshold_usd": a.ThresholdUSD,
			"agent_paused":  a.AgentPaused,
		},
	}
}
