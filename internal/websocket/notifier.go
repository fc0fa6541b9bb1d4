package websocket

import (
	"github.com/goccy/go-json"

	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// Notifier broadcasts every lifecycle notification to feed subscribers
// as a JSON object.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Notify(note maptesting.Notification) {
	data, err := json.Marshal(note)
	if err != nil {
		logging.L().Error("feed encode failed", "error", err)
		return
	}
	n.hub.Broadcast(data)
}
