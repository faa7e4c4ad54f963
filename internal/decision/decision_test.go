package decision

import (
	"errors"
	"testing"

	"github.com/mkoval/refinex/internal"
)

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultThresholds())
	if err != nil {
		t.Fatalf("default thresholds must validate: %v", err)
	}
	return e
}

func TestDecide_Bands(t *testing.T) {
	e := mustEngine(t)

	cases := []struct {
		score float64
		want  internal.Decision
	}{
		{1.00, internal.DecisionAccept},
		{0.90, internal.DecisionAccept},
		{0.85, internal.DecisionAccept}, // boundary closed on the upper side
		{0.84, internal.DecisionFix},
		{0.65, internal.DecisionFix},
		{0.64, internal.DecisionRegenerate},
		{0.50, internal.DecisionRegenerate},
		{0.49, internal.DecisionEscalate},
		{0.30, internal.DecisionEscalate},
		{0.00, internal.DecisionEscalate},
	}

	for _, tc := range cases {
		if got := e.Decide(tc.score); got != tc.want {
			t.Errorf("Decide(%g) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestDecide_Total(t *testing.T) {
	e := mustEngine(t)

	// Every score in [0,1] maps to exactly one of the four decisions.
	for i := 0; i <= 1000; i++ {
		score := float64(i) / 1000
		switch e.Decide(score) {
		case internal.DecisionAccept, internal.DecisionFix, internal.DecisionRegenerate, internal.DecisionEscalate:
		default:
			t.Fatalf("Decide(%g) returned an unknown decision", score)
		}
	}
}

func TestValidate_Orderings(t *testing.T) {
	cases := []struct {
		name string
		t    Thresholds
		ok   bool
	}{
		{"defaults", DefaultThresholds(), true},
		{"accept of 1.0", Thresholds{Accept: 1.0, Fix: 0.6, Regenerate: 0.3}, true},
		{"regenerate zero", Thresholds{Accept: 0.85, Fix: 0.65, Regenerate: 0}, false},
		{"fix above accept", Thresholds{Accept: 0.65, Fix: 0.85, Regenerate: 0.5}, false},
		{"equal thresholds", Thresholds{Accept: 0.7, Fix: 0.7, Regenerate: 0.5}, false},
		{"accept above one", Thresholds{Accept: 1.1, Fix: 0.65, Regenerate: 0.5}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.t.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected ConfigError")
				}
				var cfgErr *internal.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("expected ConfigError, got %T", err)
				}
			}
		})
	}
}

func TestNew_RejectsInvalid(t *testing.T) {
	if _, err := New(Thresholds{Accept: 0.5, Fix: 0.6, Regenerate: 0.7}); err == nil {
		t.Fatal("construction must reject invalid thresholds")
	}
}

func TestExplain(t *testing.T) {
	e := mustEngine(t)

	d, justification, next := e.Explain(0.72)
	if d != internal.DecisionFix {
		t.Errorf("expected fix, got %s", d)
	}
	if justification == "" || next == "" {
		t.Error("expected non-empty justification and next action")
	}
}
