package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"greenhouse_monitor/internal/models"
)

// recorderStub collects readings produced by the simulator.
type recorderStub struct {
	mu   sync.Mutex
	msgs []models.GreenhouseMessage
}

func (r *recorderStub) Record(ctx context.Context, m models.GreenhouseMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorderStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestStep_ProducesOneReadingPerGreenhouse(t *testing.T) {
	svc := NewSimulatorService(nil)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	msgs := svc.Step(now)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(msgs))
	}
	if msgs[0].GreenhouseID != "001" || msgs[1].GreenhouseID != "002" {
		t.Fatalf("unexpected order: %s, %s", msgs[0].GreenhouseID, msgs[1].GreenhouseID)
	}
	for _, m := range msgs {
		if m.Timestamp != "2026-05-01T08:00:00Z" {
			t.Fatalf("unexpected timestamp %q", m.Timestamp)
		}
		if m.Temperature01 == nil || m.Humidity01 == nil || m.Temperature02 == nil || m.Humidity02 == nil || m.Sector01 == nil {
			t.Fatalf("all readings must be set: %+v", m)
		}
		if *m.Humidity01 < 0 || *m.Humidity01 > 100 {
			t.Fatalf("humidity out of range: %v", *m.Humidity01)
		}
	}
}

func TestSetSector_DrivesTemperatureDown(t *testing.T) {
	svc := NewSimulatorService(nil)
	if err := svc.SetSector("001", 1, 100); err != nil {
		t.Fatalf("SetSector: %v", err)
	}

	var last models.GreenhouseMessage
	now := time.Now()
	for i := 0; i < 100; i++ {
		last = svc.Step(now.Add(time.Duration(i) * time.Second))[0]
	}
	want := AmbientC - SectorCoolingC*100
	if *last.Temperature01 > want+1 || *last.Temperature01 < want-1 {
		t.Fatalf("expected temperature near %.1f, got %.1f", want, *last.Temperature01)
	}
	if *last.Sector01 != 100 {
		t.Fatalf("sector not reported: %v", *last.Sector01)
	}
}

func TestSetSector_Errors(t *testing.T) {
	svc := NewSimulatorService(nil)
	if err := svc.SetSector("999", 1, 10); !errors.Is(err, ErrUnknownGreenhouse) {
		t.Fatalf("expected ErrUnknownGreenhouse, got %v", err)
	}
	if err := svc.SetSector("001", 2, 10); !errors.Is(err, ErrUnknownSector) {
		t.Fatalf("expected ErrUnknownSector, got %v", err)
	}
}

func TestRun_RecordsUntilCanceled(t *testing.T) {
	svc := NewSimulatorService(nil)
	rec := &recorderStub{}
	svc.sink = rec

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx, 5*time.Millisecond)
	}()

	deadline := time.Now().Add(time.Second)
	for rec.count() < 4 {
		if time.Now().After(deadline) {
			t.Fatal("simulator produced nothing")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
