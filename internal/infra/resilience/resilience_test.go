package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/naijastore/naijastore-api/internal/infra/resilience"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 10 * time.Millisecond,
	}

	sentinel := errors.New("bad request")
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return resilience.Permanent(sentinel)
	})

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel to be reachable, got %v", err)
	}
	if !resilience.IsPermanent(err) {
		t.Error("expected error to stay marked permanent")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestCircuitBreaker_IgnoresPermanentErrors(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-permanent")

	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, resilience.Permanent(errors.New("404"))
		})
	}

	_, err := cb.Execute(func() (any, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("expected breaker to stay closed, got %v", err)
	}
}

func TestCircuitBreaker_OpensOnFailures(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-open")

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, errors.New("upstream down")
		})
	}

	_, err := cb.Execute(func() (any, error) { return "ok", nil })
	if !resilience.IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block; bound it with a timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := bh.Acquire(ctx); err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}
