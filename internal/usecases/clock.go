// Package usecases holds the application operations behind the HTTP
// handlers and the operator CLI. Each use case orchestrates one or two
// repository calls.
package usecases

import "time"

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func orSystem(now Clock) Clock {
	if now == nil {
		return systemClock
	}
	return now
}
