package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PlacementEvent describes one step of a mockup request
type PlacementEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         string                 `json:"source,omitempty"`
	Method         string                 `json:"method,omitempty"`
	Rationale      string                 `json:"rationale,omitempty"`
	PrimaryError   string                 `json:"primary_error,omitempty"`
	ErrorType      string                 `json:"error_type,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of placement event
type EventType string

const (
	// PlacementStarted when a request is admitted for processing
	PlacementStarted EventType = "placement_started"
	// PlacementCompleted when an output image was produced
	PlacementCompleted EventType = "placement_completed"
	// PlacementFailed when both placement paths failed or inputs were unusable
	PlacementFailed EventType = "placement_failed"
	// PlacementRejected when admission control turned a request away
	PlacementRejected EventType = "placement_rejected"
	// AssetFetched when a remote template or artwork was retrieved
	AssetFetched EventType = "asset_fetched"
	// AssetFetchFailed when a remote template or artwork could not be retrieved
	AssetFetchFailed EventType = "asset_fetch_failed"
	// CacheHit when a result was served from the cache
	CacheHit EventType = "cache_hit"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PlacementEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PlacementEvent)
}

// LoggingObserver logs placement events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles placement events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event PlacementEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"processing_time": event.ProcessingTime.String(),
		"success":         event.Success,
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.Method != "" {
		fields["method"] = event.Method
		fields["rationale"] = event.Rationale
	}
	if event.PrimaryError != "" {
		fields["primary_error"] = event.PrimaryError
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_type"] = event.ErrorType
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case PlacementStarted:
		entry.Debug("Placement started")
	case PlacementCompleted:
		entry.Info("Placement completed")
	case PlacementFailed:
		entry.Error("Placement failed")
	case PlacementRejected:
		entry.Warn("Placement rejected")
	case AssetFetched:
		entry.Debug("Asset fetched successfully")
	case AssetFetchFailed:
		entry.Error("Asset fetch failed")
	case CacheHit:
		entry.Debug("Placement served from cache")
	default:
		entry.Info("Placement event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsSnapshot is a copy of the collected counters
type MetricsSnapshot struct {
	TotalPlacements      int64            `json:"total_placements"`
	SuccessfulPlacements int64            `json:"successful_placements"`
	FailedPlacements     int64            `json:"failed_placements"`
	RejectedPlacements   int64            `json:"rejected_placements"`
	CacheHits            int64            `json:"cache_hits"`
	FetchFailures        int64            `json:"fetch_failures"`
	ByMethod             map[string]int64 `json:"by_method"`
	FailuresByType       map[string]int64 `json:"failures_by_type"`
	PrimaryFailures      int64            `json:"primary_failures"`
	AvgProcessingTime    time.Duration    `json:"avg_processing_time"`
}

// MetricsObserver collects counters from placement events
type MetricsObserver struct {
	mu                  sync.RWMutex
	total               int64
	successful          int64
	failed              int64
	rejected            int64
	cacheHits           int64
	fetchFailures       int64
	primaryFailures     int64
	byMethod            map[string]int64
	failuresByType      map[string]int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		byMethod:       make(map[string]int64),
		failuresByType: make(map[string]int64),
	}
}

// OnEvent handles placement events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event PlacementEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case PlacementStarted:
		o.total++
	case PlacementCompleted:
		o.successful++
		o.totalProcessingTime += event.ProcessingTime
		if event.Method != "" {
			o.byMethod[event.Method]++
		}
		if event.PrimaryError != "" {
			o.primaryFailures++
		}
	case PlacementFailed:
		o.failed++
		if event.ErrorType != "" {
			o.failuresByType[event.ErrorType]++
		}
	case PlacementRejected:
		o.rejected++
	case CacheHit:
		o.cacheHits++
	case AssetFetchFailed:
		o.fetchFailures++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Snapshot returns current metrics
func (o *MetricsObserver) Snapshot() MetricsSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := time.Duration(0)
	if o.successful > 0 {
		avg = o.totalProcessingTime / time.Duration(o.successful)
	}

	byMethod := make(map[string]int64, len(o.byMethod))
	for k, v := range o.byMethod {
		byMethod[k] = v
	}
	byType := make(map[string]int64, len(o.failuresByType))
	for k, v := range o.failuresByType {
		byType[k] = v
	}

	return MetricsSnapshot{
		TotalPlacements:      o.total,
		SuccessfulPlacements: o.successful,
		FailedPlacements:     o.failed,
		RejectedPlacements:   o.rejected,
		CacheHits:            o.cacheHits,
		FetchFailures:        o.fetchFailures,
		ByMethod:             byMethod,
		FailuresByType:       byType,
		PrimaryFailures:      o.primaryFailures,
		AvgProcessingTime:    avg,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event concurrently
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PlacementEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Observers outlive the request; drop its cancellation.
	ctx = context.WithoutCancel(ctx)
	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Flush waits until every dispatched event has been handled
func (p *EventPublisher) Flush() {
	p.pending.Wait()
}
