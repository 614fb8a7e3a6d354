package playback

import "context"

// Engine controls the remote playback device. One engine is owned per quiz session.
type Engine interface {
	Play(ctx context.Context, deviceID, mediaRef string) error
	Pause(ctx context.Context, deviceID string) error
}

// Event is a player lifecycle notification relayed from the device.
type Event interface {
	isEvent()
}

// Ready means the device connected and can receive commands.
type Ready struct {
	DeviceID string
}

// NotReady means the device went offline.
type NotReady struct{}

// StateChanged reports play/pause transitions on the device.
type StateChanged struct {
	IsPlaying bool
}

// ErrorCategory classifies device-reported failures.
type ErrorCategory string

const (
	CategoryInitialization ErrorCategory = "initialization"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAccount        ErrorCategory = "account"
	CategoryPlayback       ErrorCategory = "playback"
)

// ParseCategory accepts both short names and the SDK's "<name>_error" spelling.
func ParseCategory(raw string) (ErrorCategory, bool) {
	switch raw {
	case "initialization", "initialization_error":
		return CategoryInitialization, true
	case "authentication", "authentication_error":
		return CategoryAuthentication, true
	case "account", "account_error":
		return CategoryAccount, true
	case "playback", "playback_error":
		return CategoryPlayback, true
	}
	return "", false
}

// Error is a failure reported by the device.
type Error struct {
	Category ErrorCategory
	Message  string
}

func (Ready) isEvent()        {}
func (NotReady) isEvent()     {}
func (StateChanged) isEvent() {}
func (Error) isEvent()        {}

// Relay is the typed event stream of a single device. The transport publishes into it and
// the owning session drains it from one loop.
type Relay struct {
	events chan Event
	done   chan struct{}
}

func NewRelay(buffer int) *Relay {
	if buffer <= 0 {
		buffer = 16
	}
	return &Relay{events: make(chan Event, buffer), done: make(chan struct{})}
}

// Publish delivers ev unless ctx ends or the relay is closed first.
func (r *Relay) Publish(ctx context.Context, ev Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Events is the subscription side of the stream.
func (r *Relay) Events() <-chan Event {
	return r.events
}

// Close stops further publishes. It is safe to call more than once.
func (r *Relay) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}
