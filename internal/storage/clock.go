package storage

import "time"

// Clock abstracts the current time so TTL expiry is testable without
// sleeping. Production code uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
