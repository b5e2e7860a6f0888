package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"property-insight-be/pkg/store"
)

var ErrAlreadyRunning = errors.New("poller already running")

// Fetcher returns the current snapshot of a session.
type Fetcher interface {
	Fetch(ctx context.Context, sessionID string) (*store.Session, error)
}

type FetcherFunc func(ctx context.Context, sessionID string) (*store.Session, error)

func (f FetcherFunc) Fetch(ctx context.Context, sessionID string) (*store.Session, error) {
	return f(ctx, sessionID)
}

// Update is one poll result. Done is set on the last update of a run.
type Update struct {
	SessionID string
	Session   *store.Session
	View      View
	Interval  time.Duration
	Done      bool
	Err       error
}

type Option func(*Poller)

// WithIntervalFunc replaces NextInterval.
func WithIntervalFunc(fn func(*store.Session) time.Duration) Option {
	return func(p *Poller) { p.interval = fn }
}

// WithMaxErrorBackoff caps the retry delay after consecutive fetch errors.
func WithMaxErrorBackoff(d time.Duration) Option {
	return func(p *Poller) { p.maxBackoff = d }
}

// Poller owns the polling loop for one session. Run is the only goroutine
// that fetches; subscribers receive the latest Update and may miss
// intermediate ones if they fall behind.
type Poller struct {
	sessionID  string
	fetcher    Fetcher
	interval   func(*store.Session) time.Duration
	maxBackoff time.Duration

	started atomic.Bool
	running atomic.Bool
	refresh chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	subs   map[int]chan Update
	nextID int
	latest *Update
	closed bool
}

func New(sessionID string, fetcher Fetcher, opts ...Option) *Poller {
	p := &Poller{
		sessionID:  sessionID,
		fetcher:    fetcher,
		interval:   NextInterval,
		maxBackoff: 30 * time.Second,
		refresh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		subs:       make(map[int]chan Update),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) SessionID() string {
	return p.sessionID
}

// Subscribe returns a channel that first carries the latest update, if any.
// The channel is closed after the final update or by unsubscribe.
func (p *Poller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.latest != nil {
		ch <- *p.latest
	}
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (p *Poller) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// MarkAnalysisStarted pins the view away from preview.
func (p *Poller) MarkAnalysisStarted() {
	p.started.Store(true)
}

// Refresh asks the owner loop for an immediate fetch. Repeated calls before
// the loop picks one up collapse into one.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *Poller) Latest() (Update, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return Update{}, false
	}
	return *p.latest, true
}

// Done is closed when Run returns.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Run polls until the session is finished or ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.finish()

	timer := time.NewTimer(0)
	defer timer.Stop()

	view := ViewNone
	var errDelay time.Duration

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-p.refresh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		session, err := p.fetcher.Fetch(ctx, p.sessionID)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			errDelay = p.backoff(errDelay)
			p.publish(Update{SessionID: p.sessionID, View: view, Interval: errDelay, Err: err})
			timer.Reset(errDelay)
			continue
		}
		errDelay = 0

		view = ResolveView(session, p.started.Load(), view)
		if view != ViewPreview && view != ViewNone {
			p.started.Store(true)
		}

		u := Update{
			SessionID: p.sessionID,
			Session:   session,
			View:      view,
			Interval:  p.interval(session),
			Done:      IsFinished(session),
		}
		p.publish(u)
		if u.Done {
			return nil
		}
		timer.Reset(u.Interval)
	}
}

func (p *Poller) backoff(prev time.Duration) time.Duration {
	next := prev * 2
	if prev == 0 {
		next = p.interval(nil)
	}
	if next > p.maxBackoff {
		next = p.maxBackoff
	}
	return next
}

// publish delivers latest-wins: a subscriber whose buffer is full has its
// stale update replaced. Only the Run goroutine sends.
func (p *Poller) publish(u Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = &u
	for _, ch := range p.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

func (p *Poller) finish() {
	p.mu.Lock()
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
	p.mu.Unlock()
	close(p.done)
}
