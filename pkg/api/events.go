// Event bridge: forwards domain events to the WebSocket hub.
package api

import (
	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/logger"
)

// EventBridge connects the domain event bus to the WebSocket hub.
type EventBridge struct {
	bus domain.EventBus
	hub *WSHub
}

// NewEventBridge creates a bridge that forwards bus events to WebSocket clients.
func NewEventBridge(bus domain.EventBus, hub *WSHub) *EventBridge {
	return &EventBridge{bus: bus, hub: hub}
}

// Start subscribes to every domain event. The hub drops events when its
// buffer is full, so publishers never block on slow clients.
func (eb *EventBridge) Start() {
	logger.InfoC("events", "Event bridge started")
	eb.bus.SubscribeAll(eb.forward)
}

func (eb *EventBridge) forward(e domain.Event) {
	data := map[string]interface{}{}
	if id := e.AggregateID(); !id.IsZero() {
		data["monitor_id"] = id.String()
	}
	if p := e.Payload(); p != nil {
		data["payload"] = p
	}
	eb.hub.BroadcastAt(string(e.EventType()), e.OccurredAt(), data)
}
