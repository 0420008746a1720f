package identity

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero norm candidate", []float32{0, 0}, []float32{1, 0}, 1},
		{"zero norm query", []float32{1, 0}, []float32{0, 0}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 1},
		{"empty", nil, nil, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineDistance(tc.a, tc.b)
			if math.Abs(got-tc.expected) > 1e-6 {
				t.Errorf("CosineDistance(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}
