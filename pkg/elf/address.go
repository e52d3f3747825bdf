package elf

import (
	"fmt"
	"math"
	"strconv"
)

// An Address is a file offset or a virtual address.
type Address uint64

// Uint64 returns a as a plain integer, the way it is stored on disk.
func (a Address) Uint64() uint64 {
	return uint64(a)
}

// Uintptr returns a as a native-width integer.
func (a Address) Uintptr() uintptr {
	return uintptr(a)
}

// Int returns a as an int suitable for slicing, or false if it does not fit.
func (a Address) Int() (int, bool) {
	if uint64(a) > math.MaxInt {
		return 0, false
	}
	return int(a), true
}

// Add adds b to address a.
func (a Address) Add(b Address) Address {
	return a + b
}

// Sub subtracts b from a, saturating at zero when b > a.
func (a Address) Sub(b Address) Address {
	if b > a {
		return 0
	}
	return a - b
}

// CheckedSub subtracts b from a and reports whether the result did not wrap.
func (a Address) CheckedSub(b Address) (Address, bool) {
	return a - b, a >= b
}

// CheckedAdd adds b to a and reports whether the result did not wrap.
func (a Address) CheckedAdd(b Address) (Address, bool) {
	s := a + b
	return s, s >= a
}

// AlignDown rounds a down to a multiple of x.
// x must be a power of 2.
func (a Address) AlignDown(x uint64) Address {
	return a &^ Address(x-1)
}

// AlignUp rounds a up to a multiple of x.
// x must be a power of 2.
func (a Address) AlignUp(x uint64) Address {
	return (a + Address(x) - 1) &^ Address(x-1)
}

func (a Address) String() string {
	return fmt.Sprintf("%08x", uint64(a))
}

// Set parses s as an address. Prefixes 0x, 0o and 0b are honoured, which lets
// *Address act as a command line flag value.
func (a *Address) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return err
	}
	*a = Address(v)
	return nil
}

// A Range is the half-open interval [Start, End).
type Range struct {
	Start Address
	End   Address
}

// Len returns the number of bytes covered by r.
func (r Range) Len() Address {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether r covers no bytes.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Contains reports whether a lies inside r.
func (r Range) Contains(a Address) bool {
	return r.Start <= a && a < r.End
}

// Overlaps reports whether the ranges have any bytes in common.
func (r Range) Overlaps(o Range) bool {
	return r.End > o.Start && o.End > r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%v, %v)", r.Start, r.End)
}
