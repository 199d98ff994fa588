package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/learnchain/txwatcher/config"
	"github.com/learnchain/txwatcher/pkg/types"
)

var eventBus *EventBus

const defaultReceiverBufSize = 64

type Channels []chan *types.WatcherEvent

// EventBus fans watcher events out to subscribers, grouped by terminal
// status. A subscriber that only cares about abandoned transactions does not
// receive completion traffic.
type EventBus struct {
	mu         sync.RWMutex
	channels   map[types.TxStatus]Channels
	bufferSize int
}

func NewEventBus(cfg *config.EventBusConfig) *EventBus {
	bufferSize := defaultReceiverBufSize
	if cfg != nil && cfg.ReceiverBufferSize > 0 {
		bufferSize = cfg.ReceiverBufferSize
	}
	return &EventBus{
		channels:   make(map[types.TxStatus]Channels),
		bufferSize: bufferSize,
	}
}

func GetEventBus(cfg *config.EventBusConfig) *EventBus {
	if eventBus == nil {
		eventBus = NewEventBus(cfg)
	}
	return eventBus
}

// Subscribe returns a channel delivering events for the given statuses.
// With no statuses it delivers everything.
func (eb *EventBus) Subscribe(statuses ...types.TxStatus) <-chan *types.WatcherEvent {
	if len(statuses) == 0 {
		statuses = []types.TxStatus{types.StatusCompleted, types.StatusAbandoned, types.StatusUnhandled}
	}
	receiver := make(chan *types.WatcherEvent, eb.bufferSize)
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for _, status := range statuses {
		eb.channels[status] = append(eb.channels[status], receiver)
	}
	return receiver
}

// BroadcastEvent delivers the event to every subscriber of its status.
// Delivery is non-blocking; a subscriber with a full buffer misses the event.
func (eb *EventBus) BroadcastEvent(event *types.WatcherEvent) {
	eb.mu.RLock()
	channels := eb.channels[event.Status]
	eb.mu.RUnlock()
	for _, channel := range channels {
		select {
		case channel <- event:
		default:
			log.Warn().
				Str("EventId", event.ID).
				Str("Status", event.Status.String()).
				Msg("[EventBus] [BroadcastEvent] subscriber buffer full, dropping event")
		}
	}
}
