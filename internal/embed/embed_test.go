package embed

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{name: "already unit", in: []float32{1, 0, 0}},
		{name: "needs scaling", in: []float32{3, 4}},
		{name: "negative components", in: []float32{-2, 2, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.in)
			if len(out) != len(tt.in) {
				t.Fatalf("length changed: %d -> %d", len(tt.in), len(out))
			}
			var norm float64
			for _, x := range out {
				norm += float64(x) * float64(x)
			}
			if math.Abs(norm-1) > 1e-6 {
				t.Errorf("norm² = %v, want 1", norm)
			}
		})
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	in := []float32{0, 0, 0}
	out := Normalize(in)
	for i, x := range out {
		if x != 0 {
			t.Errorf("component %d = %v, want 0", i, x)
		}
	}
}

func TestGoogleMissingAPIKey(t *testing.T) {
	g := NewGoogle("", "", 0, nil)

	_, err := g.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Embed() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestGoogleDefaults(t *testing.T) {
	g := NewGoogle("key", "", 0, nil)
	if g.model != DefaultModel {
		t.Errorf("model = %q, want %q", g.model, DefaultModel)
	}
	if g.Dimension() != int(DefaultDimension) {
		t.Errorf("Dimension() = %d, want %d", g.Dimension(), DefaultDimension)
	}
}
