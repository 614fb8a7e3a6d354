package quiz

// Countdown is the per-question clock, advanced one whole second per Tick.
// It is paused while an overlay is shown or while the player is not ready.
type Countdown struct {
	total       int
	remaining   int
	overlay     bool
	playerReady bool
}

func NewCountdown(total int) *Countdown {
	if total <= 0 {
		total = DefaultQuestionSeconds
	}
	return &Countdown{total: total, remaining: total}
}

// Reset refills the clock for a new question. Pause flags are left alone.
func (c *Countdown) Reset() {
	c.remaining = c.total
}

// Tick advances one second and reports whether this tick reached zero.
// A paused or already expired clock never reports expiry.
func (c *Countdown) Tick() bool {
	if c.Paused() || c.remaining == 0 {
		return false
	}
	c.remaining--
	return c.remaining == 0
}

func (c *Countdown) Paused() bool {
	return c.overlay || !c.playerReady
}

func (c *Countdown) SetOverlay(shown bool)     { c.overlay = shown }
func (c *Countdown) SetPlayerReady(ready bool) { c.playerReady = ready }
func (c *Countdown) Remaining() int            { return c.remaining }
func (c *Countdown) Total() int                { return c.total }
