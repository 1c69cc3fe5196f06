package protocol

import (
	"encoding/json"
	"fmt"
)

// Bus channel names. Both are subscribed by every instance at startup.
const (
	ChatChannel    = "global_chat"
	ControlChannel = "control_channel"
)

// Event types carried on the bus.
const (
	EventBroadcast   = "BROADCAST"
	EventPubSub      = "PUBSUB"
	EventForceLogout = "FORCE_LOGOUT"
)

// Event is the wire envelope for both chat and control traffic.
// Chat events carry Sender/Content (and Room for broadcasts); control
// events carry Target.
type Event struct {
	Type    string `json:"type"`
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content,omitempty"`
	Room    string `json:"room,omitempty"`
	Target  string `json:"target,omitempty"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

func Broadcast(sender, room, content string) Event {
	return Event{Type: EventBroadcast, Sender: sender, Room: room, Content: content}
}

func PubSub(sender, content string) Event {
	return Event{Type: EventPubSub, Sender: sender, Content: content}
}

func ForceLogout(target string) Event {
	return Event{Type: EventForceLogout, Target: target}
}

// Client-facing reply lines.
const (
	AuthSuccess     = "AUTH_SUCCESS"
	RegisterSuccess = "REGISTER_SUCCESS"
	ForcedLogout    = "FORCED_LOGOUT: Logged in from another location."
)

func AuthFailed(reason string) string {
	return "AUTH_FAILED: " + reason
}

func RegisterFailed(reason string) string {
	return "REGISTER_FAILED: " + reason
}

func System(text string) string {
	return "[SYSTEM] " + text
}

// RoomMessage formats a room broadcast line, e.g. "[dev] bob: hi".
func RoomMessage(room, sender, text string) string {
	return fmt.Sprintf("[%s] %s: %s", room, sender, text)
}

// SubscriberMessage formats a pub/sub line, e.g. "[PUB-SUB] alice: hello".
func SubscriberMessage(sender, text string) string {
	return fmt.Sprintf("[PUB-SUB] %s: %s", sender, text)
}
