package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Axis resolves a possibly negative axis against the rank of s.
// Panics if the axis is out of range.
func (s Shape) Axis(dim int) int {
	if dim < 0 {
		dim += len(s)
	}
	if dim < 0 || dim >= len(s) {
		panic(fmt.Sprintf("axis %d out of range for shape %v", dim, s))
	}
	return dim
}

// Last returns the size of the innermost dimension (1 for scalars).
func (s Shape) Last() int {
	if len(s) == 0 {
		return 1
	}
	return s[len(s)-1]
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared right to left; two dimensions are compatible when they
// are equal or one of them is 1. Missing leading dimensions count as 1.
//
// Returns the broadcast shape, whether any broadcasting is needed, and an
// error if the shapes are incompatible.
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// BroadcastOffsets maps every flat index of out to the flat index of src
// that broadcasting reads from. src must be broadcastable to out.
func BroadcastOffsets(src, out Shape) []int {
	nd := len(out)
	pad := nd - len(src)
	if pad < 0 {
		panic(fmt.Sprintf("cannot broadcast %v to %v", src, out))
	}

	srcStrides := src.ComputeStrides()
	eff := make([]int, nd)
	for i, dim := range src {
		switch {
		case dim == out[pad+i]:
			eff[pad+i] = srcStrides[i]
		case dim == 1:
			eff[pad+i] = 0
		default:
			panic(fmt.Sprintf("cannot broadcast %v to %v", src, out))
		}
	}

	n := out.NumElements()
	offsets := make([]int, n)
	idx := make([]int, nd)
	off := 0
	for flat := 0; flat < n; flat++ {
		offsets[flat] = off
		for d := nd - 1; d >= 0; d-- {
			idx[d]++
			off += eff[d]
			if idx[d] < out[d] {
				break
			}
			off -= idx[d] * eff[d]
			idx[d] = 0
		}
	}
	return offsets
}
