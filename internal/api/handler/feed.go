package handler

import (
	"context"
	"log/slog"
)

// Feed fans the session's coalesced update signal out to every connected
// push socket.
type Feed struct {
	subscribers map[chan struct{}]struct{}

	RegisterCh   chan chan struct{}
	UnregisterCh chan chan struct{}

	done chan struct{}
	log  *slog.Logger
}

func NewFeed(log *slog.Logger) *Feed {
	return &Feed{
		subscribers:  make(map[chan struct{}]struct{}),
		RegisterCh:   make(chan chan struct{}),
		UnregisterCh: make(chan chan struct{}),
		done:         make(chan struct{}),
		log:          log,
	}
}

// Run relays updates until ctx is done. Subscriber channels are closed when
// they unregister or when Run returns.
func (f *Feed) Run(ctx context.Context, updates <-chan struct{}) {
	defer func() {
		for sub := range f.subscribers {
			close(sub)
		}
		f.subscribers = nil
		close(f.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-f.RegisterCh:
			f.subscribers[sub] = struct{}{}
			f.log.Debug("Push socket registered", "subscribers", len(f.subscribers))

		case sub := <-f.UnregisterCh:
			if _, ok := f.subscribers[sub]; ok {
				delete(f.subscribers, sub)
				close(sub)
			}
			f.log.Debug("Push socket unregistered", "subscribers", len(f.subscribers))

		case <-updates:
			for sub := range f.subscribers {
				select {
				case sub <- struct{}{}:
				default:
				}
			}
		}
	}
}

// Subscribe returns a channel signalled after every update and a function
// releasing it. ok is false once the feed has stopped.
func (f *Feed) Subscribe() (updates <-chan struct{}, release func(), ok bool) {
	sub := make(chan struct{}, 1)
	select {
	case f.RegisterCh <- sub:
	case <-f.done:
		return nil, func() {}, false
	}

	release = func() {
		select {
		case f.UnregisterCh <- sub:
		case <-f.done:
		}
	}
	return sub, release, true
}
