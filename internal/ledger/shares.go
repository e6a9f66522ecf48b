// Package ledger implements the equal-split share math for groups.
//
// Shares are computed in whole cents so that the per-member values always
// sum back to the group amount exactly. Remainder cents after integer
// division go to the earliest members in join order.
package ledger

import "math"

// EqualShares divides amount evenly across n members and returns one share
// per member, ordered to match the caller's member ordering. An empty slice
// is returned for n <= 0: a memberless group keeps its amount undistributed.
func EqualShares(amount float64, n int) []float64 {
	if n <= 0 {
		return nil
	}

	cents := int64(math.Round(amount * 100))
	base := cents / int64(n)
	remainder := cents % int64(n)

	shares := make([]float64, n)
	for i := range shares {
		c := base
		if int64(i) < remainder {
			c++
		}
		shares[i] = float64(c) / 100
	}
	return shares
}

// Sum adds shares with cent precision, for invariant checks.
func Sum(shares []float64) float64 {
	var cents int64
	for _, s := range shares {
		cents += int64(math.Round(s * 100))
	}
	return float64(cents) / 100
}
