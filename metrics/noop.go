package metrics

import "time"

// NoopRecorder drops all events. It is the default until a real recorder
// is configured
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
