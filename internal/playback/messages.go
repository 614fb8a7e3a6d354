package playback

import (
	"context"
	"errors"
	"net"

	"pipeband-quiz-service/internal/domain"
)

const (
	msgRateLimited    = "Spotify is rate limiting requests. Please wait a moment and try again."
	msgDeviceNotFound = "Spotify player not found. Please refresh the page."
	msgForbidden      = "Spotify Premium required for playback"
	msgAccount        = "Spotify Premium is required for playback."
	msgSessionExpired = "Session expired. Refreshing..."
	msgConnect        = "Failed to connect to Spotify"
	msgPlayFailed     = "Failed to play track"
	msgInitFailed     = "Could not start the Spotify player"
)

type userMessager interface {
	UserMessage() string
}

// UserMessage maps a play command failure to the text shown under the player.
func UserMessage(err error) string {
	var (
		um     userMessager
		netErr net.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, domain.ErrDeviceNotFound):
		return msgDeviceNotFound
	case errors.Is(err, domain.ErrPlaybackForbidden):
		return msgForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return msgSessionExpired
	case errors.Is(err, context.DeadlineExceeded):
		return msgConnect
	case errors.As(err, &netErr):
		return msgConnect
	case errors.As(err, &um) && um.UserMessage() != "":
		return um.UserMessage()
	default:
		return msgPlayFailed
	}
}

// eventMessage maps a device error event to display text.
func eventMessage(e Error) string {
	switch e.Category {
	case CategoryAuthentication:
		return msgSessionExpired
	case CategoryAccount:
		return msgAccount
	case CategoryInitialization:
		if e.Message != "" {
			return e.Message
		}
		return msgInitFailed
	default:
		if e.Message != "" {
			return e.Message
		}
		return msgPlayFailed
	}
}
