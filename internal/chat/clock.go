package chat

import "time"

// Clock supplies the current time. The service assigns every created_at,
// read watermark and closure boundary itself (client timestamps are never
// trusted), and tests swap in a fixed clock to drive typing decay and
// closure ordering deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }
