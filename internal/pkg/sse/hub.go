package sse

import (
	"sync"
)

// Event is a live attendance change pushed to dashboards of one school.
type Event struct {
	SchoolID string
	Event    string
	Data     interface{}
}

// Hub fans attendance events out to the dashboard subscribers of each school.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a dashboard for a school and returns the event channel and cleanup function
func (h *Hub) Subscribe(schoolID string) (chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 10)

	if h.subscribers[schoolID] == nil {
		h.subscribers[schoolID] = make(map[chan Event]struct{})
	}
	h.subscribers[schoolID][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[schoolID], ch)
			close(ch)
			if len(h.subscribers[schoolID]) == 0 {
				delete(h.subscribers, schoolID)
			}
		})
	}

	return ch, cleanup
}

// Publish sends an event to every subscriber of the event's school.
// Slow subscribers miss events instead of blocking the publisher.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.SchoolID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// PublishAttendance publishes an attendance change for a school.
func (h *Hub) PublishAttendance(schoolID string, eventName string, data interface{}) {
	h.Publish(Event{SchoolID: schoolID, Event: eventName, Data: data})
}

// SubscriberCount returns the number of active subscribers for a school
func (h *Hub) SubscriberCount(schoolID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[schoolID])
}
