// Package util contains helper functions used across the runtime.
package util

// Int is satisfied by all built-in integer types.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b.
func Rounddown[T Int](v, b T) T {
	return v - (v % b)
}

// Roundup aligns v up to the nearest multiple of b. The second result is
// false if the rounding wrapped around.
func Roundup[T Int](v, b T) (T, bool) {
	r := Rounddown(v+b-1, b)
	return r, r >= v
}

// Addok returns a+b and whether the sum did not wrap.
func Addok[T Int](a, b T) (T, bool) {
	s := a + b
	return s, s >= a && s >= b
}
