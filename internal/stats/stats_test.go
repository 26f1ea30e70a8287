package stats

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPercentileRank(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []float64
	}{
		{"empty", nil, []float64{}},
		{"single", []float64{7}, []float64{1}},
		{"distinct", []float64{3, 1, 2}, []float64{1, 1.0 / 3, 2.0 / 3}},
		{"ties average", []float64{5, 5, 1, 9}, []float64{0.625, 0.625, 0.25, 1}},
		{"all equal", []float64{2, 2}, []float64{0.75, 0.75}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentileRank(tt.values)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !approx(got[i], tt.want[i]) {
					t.Errorf("rank[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestQuantile(t *testing.T) {
	if _, ok := Quantile(nil, 0.1); ok {
		t.Error("Quantile of empty input should not be ok")
	}

	tests := []struct {
		values []float64
		q      float64
		want   float64
	}{
		{[]float64{10}, 0.1, 10},
		{[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 0.1, 2},
		{[]float64{30, 10, 20}, 0.1, 12},
		{[]float64{5, 5, 5}, 0.5, 5},
	}
	for _, tt := range tests {
		got, ok := Quantile(tt.values, tt.q)
		if !ok || !approx(got, tt.want) {
			t.Errorf("Quantile(%v, %v) = %v, %v; want %v", tt.values, tt.q, got, ok, tt.want)
		}
	}
}

func TestSafeRatio(t *testing.T) {
	if got := SafeRatio(5, 0); got != 0 {
		t.Errorf("SafeRatio(5, 0) = %v, want 0", got)
	}
	if got := SafeRatio(0, 0); got != 0 {
		t.Errorf("SafeRatio(0, 0) = %v, want 0", got)
	}
	if got := SafeRatio(3, 10); !approx(got, 0.3) {
		t.Errorf("SafeRatio(3, 10) = %v, want 0.3", got)
	}
}

func TestMeanAndSum(t *testing.T) {
	if Mean(nil) != 0 {
		t.Error("Mean(nil) should be 0")
	}
	if got := Mean([]float64{1, 2, 3}); !approx(got, 2) {
		t.Errorf("Mean = %v, want 2", got)
	}
	if got := Sum([]float64{1, 2, 3}); !approx(got, 6) {
		t.Errorf("Sum = %v, want 6", got)
	}
}

func TestMinRank(t *testing.T) {
	got := MinRank([]float64{50, 80, 50, 10, 80})
	want := []int{3, 1, 3, 5, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{12.34, 12.3},
		{12.36, 12.4},
		{0.25, 0.2},
		{0.75, 0.8},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round1(tt.in); !approx(got, tt.want) {
			t.Errorf("Round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
