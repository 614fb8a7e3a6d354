package playback

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"pipeband-quiz-service/internal/domain"
)

// ErrPlayerNotReady is returned when activation is attempted before the device connected.
var ErrPlayerNotReady = errors.New("player not ready")

// DefaultCommandTimeout bounds a play command including its retries.
const DefaultCommandTimeout = 15 * time.Second

// State is the gate lifecycle position.
type State int

const (
	Uninitialized State = iota
	Connecting
	ReadyState
	AwaitingActivation
	Activated
	Errored
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Connecting:
		return "connecting"
	case ReadyState:
		return "ready"
	case AwaitingActivation:
		return "awaiting_activation"
	case Activated:
		return "activated"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// Failure is the error currently shown for the player.
type Failure struct {
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
	Terminal bool          `json:"terminal"`
}

// PlayCompletion is the outcome of a play command, tagged with the ref and generation it
// was issued for.
type PlayCompletion struct {
	Ref string
	Gen uint64
	Err error
}

// Status is a read-only view of the gate.
type Status struct {
	State     string   `json:"state"`
	DeviceID  string   `json:"deviceId,omitempty"`
	Activated bool     `json:"activated"`
	Playing   bool     `json:"playing"`
	Error     *Failure `json:"error,omitempty"`
}

// Options tunes a gate.
type Options struct {
	Retry     RetryPolicy
	Timeout   time.Duration
	OnFailure func(Failure)
}

// Gate mediates activation and the play commands sent to the device. All methods must be
// called from the owner's loop; play results are handed back through post.
type Gate struct {
	engine    Engine
	post      func(func())
	retry     RetryPolicy
	timeout   time.Duration
	onFailure func(Failure)

	state     State
	activated bool
	deviceID  string
	playing   bool
	failure   *Failure

	want   string
	issued string
	gen    uint64
	cancel context.CancelFunc
}

func NewGate(engine Engine, post func(func()), opts Options) *Gate {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCommandTimeout
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Gate{
		engine:    engine,
		post:      post,
		retry:     opts.Retry,
		timeout:   opts.Timeout,
		onFailure: opts.OnFailure,
	}
}

// Connect marks the device as connecting.
func (g *Gate) Connect() {
	if g.state == Uninitialized {
		g.state = Connecting
	}
}

// Handle applies a device event.
func (g *Gate) Handle(ev Event) {
	switch e := ev.(type) {
	case Ready:
		if e.DeviceID != g.deviceID {
			g.issued = ""
		}
		g.deviceID = e.DeviceID
		g.state = ReadyState
		if g.failure != nil && g.failure.Category == CategoryInitialization {
			g.failure = nil
		}
		if g.activated {
			g.state = Activated
			g.maybePlay()
		} else {
			g.state = AwaitingActivation
		}
	case NotReady:
		g.state = Connecting
		g.playing = false
	case StateChanged:
		g.playing = e.IsPlaying
	case Error:
		g.fail(Failure{
			Category: e.Category,
			Message:  eventMessage(e),
			Terminal: e.Category == CategoryAccount,
		})
		if e.Category == CategoryAccount {
			g.cancelInFlight()
		}
	}
}

// Activate records the user gesture that unlocks audio. Activation is kept for the life of
// the gate.
func (g *Gate) Activate() error {
	if g.activated {
		return nil
	}
	if g.terminal() {
		return domain.ErrPlaybackForbidden
	}
	if !g.Ready() {
		return ErrPlayerNotReady
	}
	g.activated = true
	g.state = Activated
	g.maybePlay()
	return nil
}

// Load makes ref the active track and plays it once activated. Loading the ref that was
// already sent is a no-op.
func (g *Gate) Load(ref string) {
	g.want = ref
	g.maybePlay()
}

// Complete applies a play result. Results for a ref or generation that is no longer current
// are dropped and false is returned.
func (g *Gate) Complete(c PlayCompletion) bool {
	if c.Gen != g.gen || c.Ref != g.want {
		log.Debug().Str("ref", c.Ref).Uint64("gen", c.Gen).Msg("dropping stale play completion")
		return false
	}
	g.cancel = nil
	if c.Err == nil {
		if g.failure != nil && !g.failure.Terminal {
			g.failure = nil
		}
		return true
	}
	if errors.Is(c.Err, context.Canceled) {
		return false
	}

	f := Failure{Category: CategoryPlayback, Message: UserMessage(c.Err)}
	switch {
	case errors.Is(c.Err, domain.ErrPlaybackForbidden):
		f.Category = CategoryAccount
		f.Terminal = true
	case errors.Is(c.Err, domain.ErrUnauthorized):
		f.Category = CategoryAuthentication
	}
	g.fail(f)
	return true
}

// Stop pauses the device without waiting and abandons any in-flight play.
func (g *Gate) Stop() {
	g.Cancel()
	g.issued = ""
	if g.deviceID == "" {
		return
	}
	device, timeout := g.deviceID, g.timeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := g.engine.Pause(ctx, device); err != nil {
			log.Warn().Err(err).Str("device_id", device).Msg("pause failed")
		}
	}()
}

// Cancel abandons in-flight plays so their results are ignored.
func (g *Gate) Cancel() {
	g.cancelInFlight()
	g.gen++
	g.want = ""
}

// ClearError dismisses a recoverable failure. Account failures stay.
func (g *Gate) ClearError() {
	if g.failure != nil && !g.failure.Terminal {
		g.failure = nil
	}
}

// Ready reports whether the device is connected.
func (g *Gate) Ready() bool {
	return g.state == AwaitingActivation || g.state == Activated
}

func (g *Gate) State() State {
	if g.failure != nil {
		return Errored
	}
	return g.state
}

func (g *Gate) Activated() bool   { return g.activated }
func (g *Gate) Failure() *Failure { return g.failure }

func (g *Gate) Status() Status {
	st := Status{
		State:     g.State().String(),
		DeviceID:  g.deviceID,
		Activated: g.activated,
		Playing:   g.playing,
	}
	if g.failure != nil {
		f := *g.failure
		st.Error = &f
	}
	return st
}

func (g *Gate) terminal() bool {
	return g.failure != nil && g.failure.Terminal
}

func (g *Gate) fail(f Failure) {
	g.failure = &f
	log.Warn().Str("category", string(f.Category)).Str("message", f.Message).Msg("player failure")
	if g.onFailure != nil {
		g.onFailure(f)
	}
}

func (g *Gate) maybePlay() {
	if !g.activated || !g.Ready() || g.want == "" || g.want == g.issued || g.terminal() {
		return
	}
	g.issue(g.want)
}

func (g *Gate) issue(ref string) {
	g.cancelInFlight()
	g.gen++
	g.issued = ref

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	g.cancel = cancel
	gen, device := g.gen, g.deviceID

	go func() {
		defer cancel()
		err := g.retry.Do(ctx, func(ctx context.Context) error {
			return g.engine.Play(ctx, device, ref)
		})
		g.post(func() {
			g.Complete(PlayCompletion{Ref: ref, Gen: gen, Err: err})
		})
	}()
}

func (g *Gate) cancelInFlight() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}
