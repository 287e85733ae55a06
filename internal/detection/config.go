package detection

import "time"

// Config holds the detection thresholds. All defaults are documented
// design-level reference values; every field is overridable.
type Config struct {
	// RouteDeviationMeters is the corridor distance above which route
	// deviation flags. Exactly at the threshold does not flag.
	// Default: 200
	RouteDeviationMeters float64

	// InactivityWarn is the silence duration after which inactivity
	// flags at medium severity. Default: 2 hours
	InactivityWarn time.Duration

	// InactivityEscalate is the silence duration after which inactivity
	// escalates to high severity. Default: 4 hours
	InactivityEscalate time.Duration

	// SpeedRatio is the fraction of baseline speed the deviation must
	// exceed to flag. Default: 0.5
	SpeedRatio float64

	// SpeedEscalateRatio is the fraction of baseline speed above which
	// the anomaly escalates to high severity. Default: 0.8
	SpeedEscalateRatio float64

	// CommLossGrace is how long communication may be silent before a
	// communication-loss anomaly flags for an otherwise active tourist.
	// Default: 30 minutes
	CommLossGrace time.Duration

	// PanicWindow is the look-back window for the panic-pattern motion
	// signature. Default: 2 minutes
	PanicWindow time.Duration

	// PanicReversalDegrees is the minimum heading change counted as a
	// direction reversal. Default: 120
	PanicReversalDegrees float64

	// PanicReversalCount is how many reversals within the window flag a
	// panic pattern. Default: 3
	PanicReversalCount int

	// ZoneCriticalRiskFactors is the risk-factor count at which a
	// dangerous-zone breach escalates from high to critical. Default: 3
	ZoneCriticalRiskFactors int
}

// DefaultConfig returns the documented detection defaults.
func DefaultConfig() Config {
	return Config{
		RouteDeviationMeters:    200,
		InactivityWarn:          2 * time.Hour,
		InactivityEscalate:      4 * time.Hour,
		SpeedRatio:              0.5,
		SpeedEscalateRatio:      0.8,
		CommLossGrace:           30 * time.Minute,
		PanicWindow:             2 * time.Minute,
		PanicReversalDegrees:    120,
		PanicReversalCount:      3,
		ZoneCriticalRiskFactors: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RouteDeviationMeters <= 0 {
		c.RouteDeviationMeters = d.RouteDeviationMeters
	}
	if c.InactivityWarn <= 0 {
		c.InactivityWarn = d.InactivityWarn
	}
	if c.InactivityEscalate <= 0 {
		c.InactivityEscalate = d.InactivityEscalate
	}
	if c.SpeedRatio <= 0 {
		c.SpeedRatio = d.SpeedRatio
	}
	if c.SpeedEscalateRatio <= 0 {
		c.SpeedEscalateRatio = d.SpeedEscalateRatio
	}
	if c.CommLossGrace <= 0 {
		c.CommLossGrace = d.CommLossGrace
	}
	if c.PanicWindow <= 0 {
		c.PanicWindow = d.PanicWindow
	}
	if c.PanicReversalDegrees <= 0 {
		c.PanicReversalDegrees = d.PanicReversalDegrees
	}
	if c.PanicReversalCount <= 0 {
		c.PanicReversalCount = d.PanicReversalCount
	}
	if c.ZoneCriticalRiskFactors <= 0 {
		c.ZoneCriticalRiskFactors = d.ZoneCriticalRiskFactors
	}
	return c
}
