package orders

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

type stubSequencer struct {
	next int64
	err  error
}

func (s *stubSequencer) NextSequence(ctx context.Context, name string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{14}-\d{6,}$`)

func TestNumberGeneratorUsesSharedSequence(t *testing.T) {
	gen := NewNumberGenerator("", &stubSequencer{}, nil)
	at := time.Date(2026, 10, 19, 8, 30, 5, 0, time.FixedZone("PDT", -7*3600))

	first := gen.Next(context.Background(), at)
	second := gen.Next(context.Background(), at)

	if first != "ORD-20261019153005-000001" {
		t.Fatalf("unexpected first number %q", first)
	}
	if second != "ORD-20261019153005-000002" {
		t.Fatalf("unexpected second number %q", second)
	}
}

func TestNumberGeneratorFallsBackToLocalCounter(t *testing.T) {
	gen := NewNumberGenerator("ORD", &stubSequencer{err: errors.New("redis down")}, nil)
	now := time.Now()

	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		n := gen.Next(context.Background(), now)
		if !orderNumberPattern.MatchString(n) {
			t.Fatalf("malformed order number %q", n)
		}
		if _, dup := seen[n]; dup {
			t.Fatalf("duplicate order number %q", n)
		}
		seen[n] = struct{}{}
	}
}

func TestNumberGeneratorLocalCounterKeepsSixDigitWidth(t *testing.T) {
	fixed := regexp.MustCompile(`^ORD-\d{14}-\d{6}$`)
	for i := 0; i < 20; i++ {
		gen := NewNumberGenerator("ORD", nil, nil)
		n := gen.Next(context.Background(), time.Now())
		if !fixed.MatchString(n) {
			t.Fatalf("local counter produced %q", n)
		}
	}
}
