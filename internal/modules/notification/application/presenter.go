package application

import (
	"sync"
	"time"

	"github.com/fakenews/notifier/internal/modules/notification/domain"
	"github.com/fakenews/notifier/internal/shared/infrastructure/metrics"
)

// DefaultPopupTimeout is how long a transient alert stays up.
const DefaultPopupTimeout = 5 * time.Second

// Timer is the part of *time.Timer the presenter needs.
type Timer interface {
	Stop() bool
}

// Clock lets tests drive popup expiry deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// PopupState is what the UI renders. Current is nil while idle.
type PopupState struct {
	Current   *domain.Notification
	Visible   bool
	ExpiresAt time.Time
}

type PresenterConfig struct {
	Timeout time.Duration
	Clock   Clock
	// OnNavigate opens the full notification feed after a click-through.
	OnNavigate func(clicked *domain.Notification)
	// OnChange is called after every state transition.
	OnChange func(PopupState)
}

// Presenter shows one transient alert at a time. A newer alert replaces the
// visible one and restarts the expiry; at most one timer is ever pending.
type Presenter struct {
	timeout    time.Duration
	clock      Clock
	onNavigate func(*domain.Notification)
	onChange   func(PopupState)

	mu    sync.Mutex
	state PopupState
	timer Timer
	gen   uint64
}

func NewPresenter(cfg PresenterConfig) *Presenter {
	p := &Presenter{
		timeout:    cfg.Timeout,
		clock:      cfg.Clock,
		onNavigate: cfg.OnNavigate,
		onChange:   cfg.OnChange,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultPopupTimeout
	}
	if p.clock == nil {
		p.clock = systemClock{}
	}
	return p
}

// Show displays n, preempting any alert already on screen.
func (p *Presenter) Show(n domain.Notification) {
	p.mu.Lock()
	p.stopTimerLocked()
	p.gen++
	gen := p.gen
	p.state = PopupState{
		Current:   &n,
		Visible:   true,
		ExpiresAt: p.clock.Now().Add(p.timeout),
	}
	p.timer = p.clock.AfterFunc(p.timeout, func() { p.expire(gen) })
	state := p.state
	p.mu.Unlock()

	metrics.PopupsShown.Inc()
	p.changed(state)
}

// Dismiss hides the alert. Dismissing an idle presenter does nothing.
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	if !p.state.Visible {
		p.mu.Unlock()
		return
	}
	p.clearLocked()
	state := p.state
	p.mu.Unlock()

	p.changed(state)
}

// ClickThrough dismisses the alert and opens the full feed. It works the
// same whether or not an alert is still showing.
func (p *Presenter) ClickThrough() {
	p.mu.Lock()
	clicked := p.state.Current
	wasVisible := p.state.Visible
	if wasVisible {
		p.clearLocked()
	}
	state := p.state
	p.mu.Unlock()

	if wasVisible {
		p.changed(state)
	}
	if p.onNavigate != nil {
		p.onNavigate(clicked)
	}
}

// Close cancels any pending expiry and returns to idle. The presenter can
// be reused afterwards.
func (p *Presenter) Close() {
	p.Dismiss()
}

func (p *Presenter) State() PopupState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Presenter) expire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || !p.state.Visible {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.gen++
	p.state = PopupState{}
	p.mu.Unlock()

	p.changed(PopupState{})
}

func (p *Presenter) clearLocked() {
	p.stopTimerLocked()
	p.gen++
	p.state = PopupState{}
}

func (p *Presenter) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Presenter) changed(state PopupState) {
	if p.onChange != nil {
		p.onChange(state)
	}
}
