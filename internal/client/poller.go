package client

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Poll intervals and backoff bounds for the notification poller.
const (
	FocusedInterval = 30 * time.Second
	BlurredInterval = 120 * time.Second

	// Credential and payload failures share one strike counter; the third
	// strike halts polling with no further request. Payload errors signal a
	// data problem that sooner retries cannot heal, hence the longer wait.
	AuthRetry      = 120 * time.Second
	PayloadRetry   = 300 * time.Second
	AuthMaxStrikes = 3

	// Transport failures: start quick, double, cap at 60s; after five
	// consecutive failures have burned the whole ladder, give up.
	NetworkBaseRetry  = 5 * time.Second
	NetworkRetryCap   = 60 * time.Second
	NetworkMaxStrikes = 5

	UnknownRetry = 180 * time.Second
)

// PollOutcome is one classified poll result.
type PollOutcome int

const (
	OutcomeSuccess PollOutcome = iota
	OutcomeAuth
	OutcomePayload
	OutcomeNetwork
	OutcomeUnknown
)

// outcomeFor maps an error class onto the poll outcome.
func outcomeFor(class ErrorClass) PollOutcome {
	switch class {
	case ClassNone:
		return OutcomeSuccess
	case ClassAuth:
		return OutcomeAuth
	case ClassPayload:
		return OutcomePayload
	case ClassNetwork:
		return OutcomeNetwork
	default:
		return OutcomeUnknown
	}
}

// BackoffPolicy decides the delay before the next poll. It is a pure state
// machine over two strike counters, kept separate from the timer plumbing so
// the schedule is testable on its own.
type BackoffPolicy struct {
	authStrikes    int
	networkStrikes int
}

// Next consumes one outcome and returns the delay until the next poll, or
// stop=true when polling should halt until an external signal revives it.
func (p *BackoffPolicy) Next(outcome PollOutcome, focused bool) (delay time.Duration, stop bool) {
	switch outcome {
	case OutcomeSuccess:
		p.authStrikes = 0
		p.networkStrikes = 0
		if focused {
			return FocusedInterval, false
		}
		return BlurredInterval, false

	case OutcomeAuth, OutcomePayload:
		p.authStrikes++
		if p.authStrikes >= AuthMaxStrikes {
			return 0, true
		}
		if outcome == OutcomePayload {
			return PayloadRetry, false
		}
		return AuthRetry, false

	case OutcomeNetwork:
		p.networkStrikes++
		if p.networkStrikes > NetworkMaxStrikes {
			return 0, true
		}
		delay = NetworkBaseRetry << (p.networkStrikes - 1)
		if delay > NetworkRetryCap {
			delay = NetworkRetryCap
		}
		return delay, false

	default:
		// Unknown failures keep the steady rhythm without burning strikes.
		return UnknownRetry, false
	}
}

// Reset clears both strike counters.
func (p *BackoffPolicy) Reset() {
	p.authStrikes = 0
	p.networkStrikes = 0
}

// FetchFunc runs one poll. The returned error is classified to drive the
// backoff schedule.
type FetchFunc func(ctx context.Context) error

// Poller drives the adaptive notification poll loop. It owns exactly one
// timer: scheduling a poll always cancels the previous one first, so focus
// flapping or a burst of push signals can never stack requests.
type Poller struct {
	fetch FetchFunc
	log   *slog.Logger

	mu      sync.Mutex
	policy  BackoffPolicy
	timer   *time.Timer
	focused bool
	stopped bool
	halted  bool // stopped by strikes, only Start revives
}

func NewPoller(fetch FetchFunc, log *slog.Logger) *Poller {
	return &Poller{
		fetch:   fetch,
		log:     log,
		focused: true,
		stopped: true,
	}
}

// Start begins polling with an immediate first poll.
func (p *Poller) Start() {
	p.mu.Lock()
	p.stopped = false
	p.halted = false
	p.policy.Reset()
	p.mu.Unlock()

	go p.pollOnce()
}

// Stop halts polling entirely.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.cancelTimerLocked()
}

// SetFocused switches between the focused and blurred cadence. Gaining focus
// triggers an immediate poll.
func (p *Poller) SetFocused(focused bool) {
	p.mu.Lock()
	was := p.focused
	p.focused = focused
	p.mu.Unlock()

	if focused && !was {
		p.Poke()
	}
}

// Poke requests an immediate out-of-band poll. Push signals and visibility
// changes route here. A poller halted by strikes stays halted; only Start
// (typically after re-authentication) revives it.
func (p *Poller) Poke() {
	p.mu.Lock()
	if p.stopped || p.halted {
		p.mu.Unlock()
		return
	}
	p.cancelTimerLocked()
	p.mu.Unlock()

	go p.pollOnce()
}

func (p *Poller) pollOnce() {
	p.mu.Lock()
	if p.stopped || p.halted {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := p.fetch(ctx)
	cancel()

	outcome := outcomeFor(Classify(err))
	if err != nil {
		p.log.Warn("poll failed", "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	delay, stop := p.policy.Next(outcome, p.focused)
	if stop {
		p.halted = true
		p.cancelTimerLocked()
		p.log.Warn("polling halted until restart")
		return
	}
	p.scheduleLocked(delay)
}

func (p *Poller) scheduleLocked(d time.Duration) {
	p.cancelTimerLocked()
	p.timer = time.AfterFunc(d, p.pollOnce)
}

func (p *Poller) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
