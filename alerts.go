package main

// Alert levels in increasing severity.
const (
	AlertNormal        = "Normal"
	AlertWarning       = "WARNING"
	AlertCritical      = "CRITICAL"
	AlertSuperCritical = "SUPER CRITICAL"
)

// alertLogSize bounds the retained alert history per feed.
const alertLogSize = 50

// alertTimeLayout matches the dashboard's timestamp format.
const alertTimeLayout = "2006-01-02 15:04:05"

// AlertRecord is one triggered super-critical alert.
type AlertRecord struct {
	Time             string   `json:"time"`
	Density          float64  `json:"density"`
	PredictedDensity *float64 `json:"pred"`
	EstimatedPeople  int      `json:"estimated"`
	Alert            string   `json:"alert"`
}

// classifyAlert maps density and the occupancy estimate onto an alert level.
// The super-critical check runs last and overrides the density tiers. There is
// no hysteresis; the level may change on every frame.
func classifyAlert(density float64, estimatedPeople int, cfg *Config) string {
	level := AlertNormal
	if density >= cfg.DensityThresholdCritical {
		level = AlertCritical
	} else if density >= cfg.DensityThresholdHigh {
		level = AlertWarning
	}
	if estimatedPeople >= cfg.SuperCriticalThreshold {
		level = AlertSuperCritical
	}
	return level
}

// alertLog is a bounded history of super-critical alerts, oldest evicted
// first.
type alertLog struct {
	records []AlertRecord
}

// Push appends a record, evicting the oldest past capacity.
func (l *alertLog) Push(rec AlertRecord) {
	if len(l.records) == alertLogSize {
		copy(l.records, l.records[1:])
		l.records = l.records[:alertLogSize-1]
	}
	l.records = append(l.records, rec)
}

// Records returns a copy of the retained alerts, oldest first.
func (l *alertLog) Records() []AlertRecord {
	out := make([]AlertRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of retained alerts.
func (l *alertLog) Len() int {
	return len(l.records)
}

// Reset discards all alerts.
func (l *alertLog) Reset() {
	l.records = l.records[:0]
}
