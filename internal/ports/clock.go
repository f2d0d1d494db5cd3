package ports

import "time"

// Clock abstracts the time source so deadline checks are testable without
// real timers.
type Clock interface {
	Now() time.Time
}
