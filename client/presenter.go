package client

import (
	"context"
	"log"
	"time"

	"pall-network-service/services"
)

// CountdownView receives display updates from the presenter.
type CountdownView interface {
	SetCountdown(remaining time.Duration, optimisticMicro int64)
}

// TimerPresenter drives the 1 Hz mining countdown. It holds the
// server-confirmed session start plus a server/local clock offset and derives
// everything else from the current tick time, so a suspended or throttled
// timer cannot drift the display: every tick recomputes from scratch instead
// of decrementing stale state.
//
// The optimistic balance it shows uses the same accrual math as server
// settlement, but the presenter is never a source of truth; on reaching zero
// it asks the server to settle and renders whatever comes back.
type TimerPresenter struct {
	est          services.AccrualEstimator
	view         CountdownView
	settle       func() error
	multiplierBp int64

	active       bool
	sessionStart time.Time     // server-confirmed
	clockOffset  time.Duration // serverNow - localNow at last reconcile
}

// NewTimerPresenter returns a presenter; it stays idle until Reconcile.
func NewTimerPresenter(est services.AccrualEstimator, view CountdownView, settle func() error) *TimerPresenter {
	return &TimerPresenter{est: est, view: view, settle: settle}
}

// Reconcile resyncs against freshly fetched server state. Call after the
// session starts and on every resume (foreground / reconnect); any in-memory
// countdown is discarded in favor of the server timestamps.
func (p *TimerPresenter) Reconcile(sessionStart, serverNow, localNow time.Time, multiplierBp int64) {
	if p == nil {
		return
	}
	p.sessionStart = sessionStart
	p.clockOffset = serverNow.Sub(localNow)
	p.multiplierBp = multiplierBp
	p.active = true
}

// Tick recomputes the countdown and optimistic accrual at localNow. When the
// countdown reaches zero it invokes the settle callback once and goes idle.
func (p *TimerPresenter) Tick(localNow time.Time) {
	if p == nil || !p.active {
		return
	}

	serverNow := localNow.Add(p.clockOffset)
	remaining := p.est.Remaining(p.sessionStart, serverNow)
	accrued := p.est.Accrued(serverNow.Sub(p.sessionStart), p.multiplierBp)

	if p.view != nil {
		p.view.SetCountdown(remaining, accrued)
	}

	if remaining > 0 {
		return
	}

	p.active = false
	if p.settle != nil {
		if err := p.settle(); err != nil {
			// The sweeper settles server-side regardless; the next
			// reconcile picks up the credited balance.
			log.Printf("[Presenter] Settle failed: %v", err)
		}
	}
}

// Stop halts local ticking. The server-side session keeps accruing; closing
// the view never cancels mining.
func (p *TimerPresenter) Stop() {
	if p == nil {
		return
	}
	p.active = false
}

// Active reports whether the presenter is currently ticking a session.
func (p *TimerPresenter) Active() bool {
	return p != nil && p.active
}

// Run drives Tick at the given interval until ctx is cancelled. Convenience
// for headless clients; UI hosts usually call Tick from their own loop.
func (p *TimerPresenter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.Tick(now)
		}
	}
}
