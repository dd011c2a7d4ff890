// Package clock provides the wall-clock Clock implementation every
// substrate context's ports.Clock interface is structurally satisfied by.
package clock

import "time"

// Real is a zero-value Clock backed by time.Now.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time { return time.Now().UTC() }
