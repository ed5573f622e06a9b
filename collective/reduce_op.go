package collective

// An Op folds one member's contribution into an accumulator, element-wise.
// Operators must be commutative and associative; the reduction tree decides
// the order in which contributions are combined.
//
// Both slices are guaranteed to have the same length.
type Op func(acc, in []float64)

// Sum adds each element of in to acc.
func Sum(acc, in []float64) {
	for i, x := range in {
		acc[i] += x
	}
}

// Max keeps the element-wise maximum in acc.
func Max(acc, in []float64) {
	for i, x := range in {
		if x > acc[i] {
			acc[i] = x
		}
	}
}
