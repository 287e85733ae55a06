package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/monitor"
)

// SweepJob runs the detection engine over every tracked tourist.
type SweepJob struct {
	config  SweepConfig
	logger  zerolog.Logger
	monitor *monitor.Service

	metrics *SweepMetrics
}

// SweepMetrics tracks sweep job statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	TotalSweeps       int64
	TouristsEvaluated int64
	AlertsRaised      int64
	FailedEvaluations int64

	LastSweepAt       time.Time
	LastSweepDuration time.Duration
	TotalDuration     time.Duration
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config  SweepConfig
	Logger  zerolog.Logger
	Monitor *monitor.Service
}

// NewSweepJob creates a new sweep job processor.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	return &SweepJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger,
		monitor: cfg.Monitor,
		metrics: &SweepMetrics{},
	}
}

// SweepResult contains the result of one sweep.
type SweepResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Evaluated    int
	AlertsRaised int
	Failed       int
	Errors       []SweepError
}

// SweepError records a failed evaluation.
type SweepError struct {
	TouristID string
	Error     string
}

// Run executes one sweep over all tracked tourists.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	startTime := time.Now()
	tourists := j.monitor.TrackedTourists()

	result := &SweepResult{
		StartTime: startTime,
		Evaluated: len(tourists),
	}

	j.logger.Info().
		Int("tourists", len(tourists)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting detection sweep")

	touristsChan := make(chan string, len(tourists))
	resultsChan := make(chan touristResult, len(tourists))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.sweepWorker(ctx, touristsChan, resultsChan)
		}()
	}

	for _, id := range tourists {
		touristsChan <- id
	}
	close(touristsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SweepError{
				TouristID: tr.touristID,
				Error:     tr.err.Error(),
			})
			continue
		}
		result.AlertsRaised += tr.alerts
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("evaluated", result.Evaluated).
		Int("alerts_raised", result.AlertsRaised).
		Int("failed", result.Failed).
		Msg("detection sweep completed")

	return result
}

// Start runs sweeps on the configured interval until the context is
// cancelled. The first sweep runs immediately.
func (j *SweepJob) Start(ctx context.Context) {
	j.Run(ctx)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("detection sweep loop stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

type touristResult struct {
	touristID string
	alerts    int
	err       error
}

func (j *SweepJob) sweepWorker(ctx context.Context, tourists <-chan string, results chan<- touristResult) {
	for id := range tourists {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.evaluate(ctx, id)
		}
	}
}

func (j *SweepJob) evaluate(ctx context.Context, touristID string) touristResult {
	evalCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	created, err := j.monitor.EvaluateTourist(evalCtx, touristID)
	if err != nil {
		return touristResult{touristID: touristID, err: err}
	}
	return touristResult{touristID: touristID, alerts: len(created)}
}

func (j *SweepJob) updateMetrics(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalSweeps++
	j.metrics.TouristsEvaluated += int64(result.Evaluated)
	j.metrics.AlertsRaised += int64(result.AlertsRaised)
	j.metrics.FailedEvaluations += int64(result.Failed)
	j.metrics.LastSweepAt = result.EndTime
	j.metrics.LastSweepDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		TotalSweeps:       j.metrics.TotalSweeps,
		TouristsEvaluated: j.metrics.TouristsEvaluated,
		AlertsRaised:      j.metrics.AlertsRaised,
		FailedEvaluations: j.metrics.FailedEvaluations,
		LastSweepAt:       j.metrics.LastSweepAt,
		LastSweepDuration: j.metrics.LastSweepDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_sweeps":        m.TotalSweeps,
		"tourists_evaluated":  m.TouristsEvaluated,
		"alerts_raised":       m.AlertsRaised,
		"failed_evaluations":  m.FailedEvaluations,
		"last_sweep_at":       m.LastSweepAt,
		"last_sweep_duration": m.LastSweepDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
