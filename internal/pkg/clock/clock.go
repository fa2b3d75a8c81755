// Package clock supplies the current time to services so tests can pin it.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Func adapts a plain function, e.g. func() time.Time { return now }.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
