package vectorstore

import "docqa/internal/domain"

// SquaredL2 returns the squared Euclidean distance between a and b.
// Both must have the same length.
func SquaredL2(a, b domain.Vector) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
