package bulk

import (
	"log/slog"
	"sync"
)

// subscriberSet holds the live report channels of a job.
type subscriberSet struct {
	mu   sync.Mutex
	subs map[Channel]struct{}
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[Channel]struct{})}
}

func (s *subscriberSet) add(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[ch] = struct{}{}
}

func (s *subscriberSet) remove(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, ch)
}

func (s *subscriberSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *subscriberSet) snapshot() []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Channel, 0, len(s.subs))
	for ch := range s.subs {
		out = append(out, ch)
	}
	return out
}

// broadcast emits to every subscriber independently. A subscriber whose Emit fails is
// logged and evicted; delivery to the others continues.
func (s *subscriberSet) broadcast(logger *slog.Logger, event string, payload any) {
	for _, ch := range s.snapshot() {
		if err := ch.Emit(event, payload); err != nil {
			logger.Warn("report subscriber emit failed, evicting",
				"event", event,
				"error", err,
			)
			s.remove(ch)
		}
	}
}
