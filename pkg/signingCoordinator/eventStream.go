package signingCoordinator

import (
	"sync"

	"github.com/walletkit/txsign/pkg/types"
)

// eventStream delivers events in order without ever blocking the producer.
// Events queue up until the consumer reads them from out.
type eventStream struct {
	mu     sync.Mutex
	queue  []types.SigningEvent
	closed bool

	notify chan struct{}
	done   chan struct{}
	out    chan types.SigningEvent
}

func newEventStream() *eventStream {
	s := &eventStream{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan types.SigningEvent),
	}
	go s.run()
	return s
}

func (s *eventStream) push(ev types.SigningEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// close stops delivery and closes out. Undelivered events are dropped.
func (s *eventStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	close(s.done)
}

func (s *eventStream) run() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = types.SigningEvent{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
