package ledger

import (
	"math"
	"testing"
)

func TestEqualShares(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		n        int
		want     []float64
		validate func(t *testing.T, shares []float64)
	}{
		{
			name:   "single member takes the full amount",
			amount: 100,
			n:      1,
			want:   []float64{100},
		},
		{
			name:   "even two-way split",
			amount: 100,
			n:      2,
			want:   []float64{50, 50},
		},
		{
			name:   "three-way split places remainder cent first",
			amount: 100,
			n:      3,
			want:   []float64{33.34, 33.33, 33.33},
		},
		{
			name:   "sub-cent amounts round to cents before dividing",
			amount: 0.10,
			n:      3,
			want:   []float64{0.04, 0.03, 0.03},
		},
		{
			name:   "zero members leaves amount undistributed",
			amount: 100,
			n:      0,
			want:   nil,
		},
		{
			name:   "zero amount yields zero shares",
			amount: 0,
			n:      4,
			want:   []float64{0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EqualShares(tt.amount, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("EqualShares(%v, %d) returned %d shares, want %d", tt.amount, tt.n, len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("share[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEqualSharesSumInvariant(t *testing.T) {
	amounts := []float64{100, 99.99, 0.01, 1234.56, 7}
	for _, amount := range amounts {
		for n := 1; n <= 9; n++ {
			shares := EqualShares(amount, n)
			if got := Sum(shares); math.Abs(got-amount) > 1e-9 {
				t.Errorf("sum of EqualShares(%v, %d) = %v, want %v", amount, n, got, amount)
			}
			// equal split: shares differ by at most one cent
			min, max := shares[0], shares[0]
			for _, s := range shares {
				if s < min {
					min = s
				}
				if s > max {
					max = s
				}
			}
			if max-min > 0.01+1e-9 {
				t.Errorf("EqualShares(%v, %d) spread %v exceeds one cent", amount, n, max-min)
			}
		}
	}
}
