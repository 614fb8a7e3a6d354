package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session id is unknown or already closed.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned when a command reaches a session that has stopped.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrNoTracks indicates the catalog has nothing to build a session from.
	ErrNoTracks = errors.New("no tracks available")
	// ErrNotActivated is returned when a session is started before playback was unlocked.
	ErrNotActivated = errors.New("playback not activated")
	// ErrAlreadyStarted is returned by a second start.
	ErrAlreadyStarted = errors.New("quiz already started")
	// ErrNotInProgress is returned when a question-scoped action arrives outside a running quiz.
	ErrNotInProgress = errors.New("quiz not in progress")
	// ErrStaleQuestion is returned when an action targets a question that is no longer active.
	ErrStaleQuestion = errors.New("question is no longer active")
	// ErrSelectionIncomplete is returned when continue is requested without both answers.
	ErrSelectionIncomplete = errors.New("select a band and a year first")
	// ErrInvalidOption is returned when a selection is not one of the offered options.
	ErrInvalidOption = errors.New("selection is not an offered option")
	// ErrInvalidResult rejects a malformed game result.
	ErrInvalidResult = errors.New("invalid game result")
	// ErrUnauthorized indicates missing or expired credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the playback API throttles requests.
	ErrRateLimited = errors.New("playback rate limited")
	// ErrDeviceNotFound means the playback device or session was invalidated.
	ErrDeviceNotFound = errors.New("playback device not found")
	// ErrPlaybackForbidden means the account is not entitled to playback.
	ErrPlaybackForbidden = errors.New("playback not permitted for account")
)
