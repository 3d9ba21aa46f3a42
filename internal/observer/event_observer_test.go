package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, PlacementEvent) { panic("observer bug") }
func (panickingObserver) GetObserverName() string                { return "panicking" }

func TestMetricsObserver_Snapshot(t *testing.T) {
	metrics := NewMetricsObserver()
	publisher := NewEventPublisher()
	publisher.Subscribe(metrics)
	publisher.Subscribe(panickingObserver{})

	ctx := context.Background()
	events := []PlacementEvent{
		{EventType: PlacementStarted},
		{EventType: PlacementCompleted, Method: "layer-aware", ProcessingTime: 2 * time.Second, Success: true},
		{EventType: PlacementStarted},
		{EventType: PlacementCompleted, Method: "geometric-fallback", PrimaryError: "no_placement_target: none", ProcessingTime: 4 * time.Second, Success: true},
		{EventType: PlacementStarted},
		{EventType: PlacementFailed, ErrorType: "placement_failed"},
		{EventType: PlacementRejected},
		{EventType: CacheHit},
		{EventType: AssetFetchFailed},
	}
	for _, e := range events {
		publisher.NotifyObservers(ctx, e)
	}
	publisher.Flush()

	snap := metrics.Snapshot()
	if snap.TotalPlacements != 3 || snap.SuccessfulPlacements != 2 || snap.FailedPlacements != 1 {
		t.Errorf("Unexpected totals %+v", snap)
	}
	if snap.RejectedPlacements != 1 || snap.CacheHits != 1 || snap.FetchFailures != 1 {
		t.Errorf("Unexpected auxiliary counters %+v", snap)
	}
	if snap.ByMethod["layer-aware"] != 1 || snap.ByMethod["geometric-fallback"] != 1 {
		t.Errorf("Unexpected method counts %v", snap.ByMethod)
	}
	if snap.PrimaryFailures != 1 {
		t.Errorf("Expected 1 primary failure, got %d", snap.PrimaryFailures)
	}
	if snap.FailuresByType["placement_failed"] != 1 {
		t.Errorf("Unexpected failure types %v", snap.FailuresByType)
	}
	if snap.AvgProcessingTime != 3*time.Second {
		t.Errorf("Expected 3s average, got %s", snap.AvgProcessingTime)
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	metrics := NewMetricsObserver()
	publisher := NewEventPublisher()
	publisher.Subscribe(metrics)
	publisher.Unsubscribe(metrics)

	publisher.NotifyObservers(context.Background(), PlacementEvent{EventType: PlacementStarted})
	publisher.Flush()

	if got := metrics.Snapshot().TotalPlacements; got != 0 {
		t.Errorf("Expected no events after unsubscribe, got %d", got)
	}
}

func TestLoggingObserver_OnEvent(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(log)
	obs.OnEvent(context.Background(), PlacementEvent{
		EventType:    PlacementCompleted,
		Method:       "geometric-fallback",
		Rationale:    "centered_70_percent",
		PrimaryError: "parsing_timeout: layer parsing exceeded 25s",
		Success:      true,
		Metadata:     map[string]interface{}{"filename": "mug.psd"},
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "Placement completed" {
		t.Errorf("Unexpected message %v", entry["msg"])
	}
	if entry["method"] != "geometric-fallback" || entry["filename"] != "mug.psd" {
		t.Errorf("Missing fields in %v", entry)
	}
	if !strings.HasPrefix(entry["primary_error"].(string), "parsing_timeout") {
		t.Errorf("Unexpected primary error field %v", entry["primary_error"])
	}
}
