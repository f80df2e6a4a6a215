// Package system provides the real clock implementation.
package system

import "time"

// Clock implements jobs.Clock using time.Now.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
