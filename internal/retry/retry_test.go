package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func recordingPolicy(delays *[]time.Duration) Policy {
	p := DefaultPolicy()
	p.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestDoRetriesConflictWithBackoffSchedule(t *testing.T) {
	var delays []time.Duration
	attempts := 0

	_, err := Do(context.Background(), recordingPolicy(&delays), func(context.Context) (bool, error) {
		attempts++
		return false, ErrSerializationConflict
	})

	if !errors.Is(err, ErrSerializationConflict) {
		t.Fatalf("expected serialization conflict, got %v", err)
	}
	if attempts != 6 {
		t.Fatalf("expected 6 attempts (1 initial + 5 retries), got %d", attempts)
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1000 * time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("expected %d delays, got %d (%v)", len(want), len(delays), delays)
	}
	for i, d := range want {
		if delays[i] != d {
			t.Fatalf("delay %d: expected %v, got %v", i, d, delays[i])
		}
	}
}

func TestDoDoesNotRetryOrdinaryErrors(t *testing.T) {
	var delays []time.Duration
	attempts := 0
	boom := errors.New("boom")

	_, err := Do(context.Background(), recordingPolicy(&delays), func(context.Context) (int, error) {
		attempts++
		return 0, boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no backoff sleeps, got %v", delays)
	}
}

func TestDoRecoversAfterTransientConflict(t *testing.T) {
	var delays []time.Duration
	attempts := 0

	result, err := Do(context.Background(), recordingPolicy(&delays), func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %q", result)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestIsSerializationConflictWalksTheChain(t *testing.T) {
	wrapped := errors.Join(errors.New("save failed"),
		&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	if !IsSerializationConflict(wrapped) {
		t.Fatal("expected wrapped 40001 to classify as conflict")
	}

	if IsSerializationConflict(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation must not classify as conflict")
	}
	if IsSerializationConflict(errors.New("plain")) {
		t.Fatal("plain error must not classify as conflict")
	}
}

func TestDoStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := DefaultPolicy()
	_, err := Do(ctx, p, func(context.Context) (bool, error) {
		return false, ErrSerializationConflict
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
