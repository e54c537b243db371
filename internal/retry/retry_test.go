package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordingWait(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestDoDoublesDelayBetweenAttempts(t *testing.T) {
	var delays []time.Duration
	calls := 0
	boom := errors.New("boom")

	err := Do(context.Background(), Config{
		Attempts:  3,
		BaseDelay: 2 * time.Second,
		Wait:      recordingWait(&delays),
	}, func(attempt int) error {
		calls++
		if attempt != calls {
			t.Fatalf("expected attempt %d, got %d", calls, attempt)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("wait %d: got %s want %s", i, delays[i], want[i])
		}
	}
}

func TestDoStopsOnSuccess(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), Config{Attempts: 5, BaseDelay: time.Second, Wait: recordingWait(&delays)}, func(int) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 || len(delays) != 1 {
		t.Fatalf("expected 2 calls and 1 wait, got %d calls %d waits", calls, len(delays))
	}
}

func TestDoCapsDelay(t *testing.T) {
	var delays []time.Duration
	_ = Do(context.Background(), Config{
		Attempts:  4,
		BaseDelay: time.Second,
		MaxDelay:  3 * time.Second,
		Wait:      recordingWait(&delays),
	}, func(int) error { return errors.New("x") })
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("wait %d: got %s want %s", i, delays[i], want[i])
		}
	}
}

func TestDoReturnsContextErrorWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Config{Attempts: 2, BaseDelay: time.Hour}, func(int) error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
