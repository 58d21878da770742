package queue

import "time"

// pollInterval bounds how long a blocked Get waits before checking the
// table again. SQLite has no native blocking-dequeue primitive, so the
// queue is a short-interval poll rather than a condition variable; this
// keeps CPU use negligible while remaining responsive enough for a human
// operator.
const pollInterval = 50 * time.Millisecond

func pollTick() <-chan time.Time {
	return time.After(pollInterval)
}
