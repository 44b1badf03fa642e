package realtime

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/Manimaran10/task-manager/domain"
)

// Broadcaster turns task lifecycle changes into push frames. Sends are
// fire-and-forget: delivery to an unreachable or saturated connection is
// dropped, never retried, and never reported to the caller.
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// BroadcastGlobal sends the event to every connected party.
func (b *Broadcaster) BroadcastGlobal(event string, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}
	b.reg.each(func(c *Conn) { c.trySend(frame) })
}

// NotifyUser sends the event only to the user's personal room, reaching
// every one of their simultaneous sessions.
func (b *Broadcaster) NotifyUser(userID, event string, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}
	b.reg.eachInRoom(userID, func(c *Conn) { c.trySend(frame) })
}

func encodeFrame(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("event", event).Error("failed to encode push payload")
		return nil, false
	}
	frame, err := json.Marshal(domain.Event{Event: event, Data: data})
	if err != nil {
		log.WithError(err).WithField("event", event).Error("failed to encode push frame")
		return nil, false
	}
	return frame, true
}
