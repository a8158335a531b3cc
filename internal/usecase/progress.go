package usecase

import (
	"github.com/tcgvault/backend/internal/domain"
)

// ObserverFunc adapts a function to domain.ProgressObserver
type ObserverFunc func(domain.ProgressEvent)

func (f ObserverFunc) OnProgress(e domain.ProgressEvent) { f(e) }

type nopObserver struct{}

func (nopObserver) OnProgress(domain.ProgressEvent) {}

// ChannelObserver forwards events to a buffered channel without blocking.
// Events are dropped while the channel is full.
type ChannelObserver struct {
	ch chan domain.ProgressEvent
}

// NewChannelObserver creates an observer with the given buffer size
func NewChannelObserver(size int) *ChannelObserver {
	if size < 1 {
		size = 1
	}
	return &ChannelObserver{ch: make(chan domain.ProgressEvent, size)}
}

func (o *ChannelObserver) OnProgress(e domain.ProgressEvent) {
	select {
	case o.ch <- e:
	default:
	}
}

// Events returns the receive side of the channel
func (o *ChannelObserver) Events() <-chan domain.ProgressEvent {
	return o.ch
}

// Close closes the channel. OnProgress must not be called afterwards.
func (o *ChannelObserver) Close() {
	close(o.ch)
}

// multiObserver fans one event out to several observers
type multiObserver []domain.ProgressObserver

func (m multiObserver) OnProgress(e domain.ProgressEvent) {
	for _, o := range m {
		o.OnProgress(e)
	}
}

// Observers combines observers, skipping nil entries
func Observers(obs ...domain.ProgressObserver) domain.ProgressObserver {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return nopObserver{}
	}
	return out
}
