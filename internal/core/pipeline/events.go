package pipeline

import "time"

// Event is one progress line.
type Event struct {
	Message string
	Time    time.Time
}

// ChannelSink forwards progress lines to ch without blocking. Lines are
// dropped while the consumer is behind.
func ChannelSink(ch chan<- Event) Sink {
	return func(msg string) {
		select {
		case ch <- Event{Message: msg, Time: time.Now()}:
		default:
		}
	}
}

// Tee fans one progress line out to several sinks.
func Tee(sinks ...Sink) Sink {
	return func(msg string) {
		for _, s := range sinks {
			if s != nil {
				s(msg)
			}
		}
	}
}
