package coords

import (
	"image"
	"math"
	"testing"
)

func TestMatrixTransformRect(t *testing.T) {
	m := Scale(2, 2).Multiply(Translate(10, 5))
	got := m.TransformRect(Rect{X: 1, Y: 1, W: 3, H: 4})
	want := Rect{X: 12, Y: 7, W: 6, H: 8}
	if got != want {
		t.Fatalf("TransformRect = %+v, want %+v", got, want)
	}
}

func TestRectPixels(t *testing.T) {
	r := Rect{X: 0.5, Y: 1.2, W: 2, H: 2.1}
	if got, want := r.Pixels(), image.Rect(0, 1, 3, 4); got != want {
		t.Fatalf("Pixels = %v, want %v", got, want)
	}
}

func TestInsetsValid(t *testing.T) {
	tests := []struct {
		name string
		in   Insets
		want bool
	}{
		{"zero", Insets{}, true},
		{"positive", Insets{T: 1, R: 2, B: 3, L: 4}, true},
		{"negative", Insets{T: -1}, false},
		{"nan", Insets{R: math.NaN()}, false},
		{"inf", Insets{B: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectInsetAndValid(t *testing.T) {
	r := Rect{W: 100, H: 50}.Inset(Insets{T: 10, R: 5, B: 10, L: 5})
	if r.X != 5 || r.Y != 10 || r.W != 90 || r.H != 30 {
		t.Fatalf("unexpected inset rect: %+v", r)
	}
	if !r.Valid() {
		t.Fatalf("expected valid rect")
	}
	if (Rect{W: 0, H: 10}).Valid() {
		t.Fatalf("zero width should be invalid")
	}
}
