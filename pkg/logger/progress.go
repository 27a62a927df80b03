package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker tracks progress of long-running operations
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	current     int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.RWMutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string        `json:"operation"`
	Total       int64         `json:"total"`
	LogInterval time.Duration `json:"log_interval"`
	Logger      Logger        `json:"-"`
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 5 * time.Second
	}

	now := time.Now()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   now,
		lastLogTime: now,
		logInterval: config.LogInterval,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Debug("Starting operation")

	return tracker
}

// Increment increments the progress counter by 1
func (p *ProgressTracker) Increment() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current++
	now := time.Now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logger.WithFields(p.fields(now)).Info("Progress update")
		p.lastLogTime = now
	}
}

// Complete marks the operation as complete and logs final statistics
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.logger.WithFields(p.fields(time.Now())).Info("Operation completed")
}

// CompleteWithError marks the operation as complete with error
func (p *ProgressTracker) CompleteWithError(err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.logger.WithError(err).WithFields(p.fields(time.Now())).Error("Operation completed with error")
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	duration := time.Since(p.startTime)
	stats := ProgressStats{
		Operation: p.operation,
		Total:     p.total,
		Current:   p.current,
		Duration:  duration,
	}
	if duration.Seconds() > 0 {
		stats.Rate = float64(p.current) / duration.Seconds()
	}
	if p.total > 0 {
		stats.Percentage = float64(p.current) / float64(p.total) * 100
	}
	if p.total > 0 && p.current > 0 && stats.Rate > 0 {
		remaining := p.total - p.current
		stats.ETA = time.Duration(float64(remaining)/stats.Rate) * time.Second
	}

	return stats
}

// fields must be called with the mutex held.
func (p *ProgressTracker) fields(now time.Time) Fields {
	duration := now.Sub(p.startTime)
	var rate float64
	if duration.Seconds() > 0 {
		rate = float64(p.current) / duration.Seconds()
	}

	fields := Fields{
		"operation": p.operation,
		"processed": p.current,
		"duration":  duration.String(),
		"rate":      fmt.Sprintf("%.2f/sec", rate),
	}

	if p.total > 0 {
		fields["total"] = p.total
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(p.current)/float64(p.total)*100)
	}

	return fields
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int64         `json:"total"`
	Current    int64         `json:"current"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
	Rate       float64       `json:"rate"`
	ETA        time.Duration `json:"eta,omitempty"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d (%.1f%%) at %.2f/sec, ETA: %v",
			ps.Operation, ps.Current, ps.Total, ps.Percentage, ps.Rate, ps.ETA)
	}
	return fmt.Sprintf("%s: %d processed at %.2f/sec, elapsed: %v",
		ps.Operation, ps.Current, ps.Rate, ps.Duration)
}

// OperationLogger provides structured logging for operations with timing
type OperationLogger struct {
	logger    Logger
	operation string
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithField("operation", operation),
		operation: operation,
		startTime: time.Now(),
	}

	ol.logger.Info("Starting operation")
	return ol
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string, fields Fields) {
	ol.logger.WithField("step", step).WithFields(fields).Info("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string, fields Fields) {
	ol.logger.WithFields(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	}).WithFields(fields).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.logger.WithError(err).WithFields(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	}).Error(message)
}
