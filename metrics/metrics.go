package metrics

import "time"

// Recorder receives gate events. Counter names are event types such as
// "verification_accepted" or "challenge_issued"; latency names are
// operations such as "ledger_fetch"
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
