package pipeline

import (
	"errors"
	"testing"
)

func TestWorkerPoolSubmitTracksSuccessAndFailure(t *testing.T) {
	wp, err := NewWorkerPool(2)
	if err != nil {
		t.Fatalf("NewWorkerPool returned error: %v", err)
	}
	defer wp.Release()

	if err := wp.Submit(func() error { return nil }); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if err := wp.Submit(func() error { return errors.New("boom") }); err == nil {
		t.Fatal("expected Submit to propagate the inner function's error")
	}

	stats := wp.Stats()
	if stats.ProcessedJobs != 1 {
		t.Errorf("ProcessedJobs = %d, want 1", stats.ProcessedJobs)
	}
	if stats.FailedJobs != 1 {
		t.Errorf("FailedJobs = %d, want 1", stats.FailedJobs)
	}
	if stats.Capacity != 2 {
		t.Errorf("Capacity = %d, want 2", stats.Capacity)
	}
}

func TestWorkerPoolRunsSubmittedWork(t *testing.T) {
	wp, err := NewWorkerPool(1)
	if err != nil {
		t.Fatalf("NewWorkerPool returned error: %v", err)
	}
	defer wp.Release()

	ran := false
	if err := wp.Submit(func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !ran {
		t.Fatal("expected submitted function to run")
	}
}
