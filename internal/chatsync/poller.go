// Package chatsync keeps the message list of the selected chat room in step
// with the server by polling.
package chatsync

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/agora/internal/model"
	"go.uber.org/zap"
)

// MessageLister is the chat subset the poller reads from.
type MessageLister interface {
	ListMessages(ctx context.Context, chatID int64, p model.Page) (model.MessageList, error)
}

// Status of the selected room.
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return "unknown"
}

// Snapshot is a copy of the poller state. Version grows with every change.
type Snapshot struct {
	Version  uint64
	RoomID   int64
	Status   Status
	Messages []model.ChatMessage
	// Err is set in the Error state: the initial load failed.
	Err error
	// PollErr is the last background refresh failure while Ready.
	PollErr error
}

const (
	DefaultInterval       = 1500 * time.Millisecond
	DefaultReconcileDelay = 500 * time.Millisecond
	DefaultPageSize       = 50
)

// Option configures a Poller.
type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithReconcileDelay(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.reconcileDelay = d
		}
	}
}

func WithPageSize(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithOnChange registers an observer. It runs outside the poller's lock and
// never sees an older snapshot after a newer one.
func WithOnChange(fn func(Snapshot)) Option {
	return func(p *Poller) { p.onChange = fn }
}

type pendingMsg struct {
	msg model.ChatMessage
	seq uint64
}

type loop struct {
	gen    uint64
	room   int64
	cancel context.CancelFunc
	retry  chan struct{}
	sent   chan struct{}
}

// Poller drives one selected room at a time.
type Poller struct {
	api            MessageLister
	log            *zap.Logger
	interval       time.Duration
	reconcileDelay time.Duration
	pageSize       int
	onChange       func(Snapshot)

	mu       sync.Mutex
	gen      uint64
	cur      *loop
	status   Status
	msgs     []model.ChatMessage
	err      error
	pollErr  error
	pending  []pendingMsg
	seq      uint64 // orders fetch starts and optimistic inserts
	applied  uint64 // start seq of the last applied fetch
	version  uint64
	wg       sync.WaitGroup
	notifyMu sync.Mutex
	notified uint64
}

// New returns an idle poller.
func New(api MessageLister, log *zap.Logger, opts ...Option) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Poller{
		api:            api,
		log:            log,
		interval:       DefaultInterval,
		reconcileDelay: DefaultReconcileDelay,
		pageSize:       DefaultPageSize,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Select switches to roomID, dropping any previous loop. Zero means none.
func (p *Poller) Select(roomID int64) {
	p.mu.Lock()
	p.stopLocked()
	if roomID <= 0 {
		snap := p.snapshotLocked()
		p.mu.Unlock()
		p.notify(snap)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{
		gen:    p.gen,
		room:   roomID,
		cancel: cancel,
		retry:  make(chan struct{}, 1),
		sent:   make(chan struct{}, 1),
	}
	p.cur = l
	p.status = Loading
	p.bumpLocked()
	snap := p.snapshotLocked()
	p.wg.Add(1)
	p.mu.Unlock()

	p.log.Info("chat polling started", zap.Int64("chat_id", roomID), zap.Duration("interval", p.interval))
	p.notify(snap)
	go p.run(ctx, l)
}

// Stop cancels polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	room := int64(0)
	if p.cur != nil {
		room = p.cur.room
	}
	p.stopLocked()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.wg.Wait()
	if room != 0 {
		p.log.Info("chat polling stopped", zap.Int64("chat_id", room))
	}
	p.notify(snap)
}

// stopLocked invalidates the current loop and resets to Idle.
func (p *Poller) stopLocked() {
	if p.cur != nil {
		p.cur.cancel()
		p.cur = nil
	}
	p.gen++
	p.status = Idle
	p.msgs = nil
	p.err = nil
	p.pollErr = nil
	p.pending = nil
	p.applied = p.seq
	p.bumpLocked()
}

// Sent records a message this client just sent so it shows immediately, and
// schedules one reconciliation fetch.
func (p *Poller) Sent(msg model.ChatMessage) {
	p.mu.Lock()
	l := p.cur
	if l == nil || (msg.ChatID != 0 && msg.ChatID != l.room) {
		p.mu.Unlock()
		return
	}
	p.seq++
	p.pending = append(p.pending, pendingMsg{msg: msg, seq: p.seq})
	// Without a loaded list there is nothing to show it in; merge adds it
	// once a fetch succeeds.
	if p.status == Ready && !containsID(p.msgs, msg.ID) {
		p.msgs = append(p.msgs, msg)
	}
	p.bumpLocked()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	signal(l.sent)
	p.notify(snap)
}

// Retry fetches now. After a failed initial load it shows Loading again.
func (p *Poller) Retry() {
	p.mu.Lock()
	l := p.cur
	if l == nil {
		p.mu.Unlock()
		return
	}
	var snap *Snapshot
	if p.status == Error {
		p.status = Loading
		p.err = nil
		p.bumpLocked()
		s := p.snapshotLocked()
		snap = &s
	}
	p.mu.Unlock()

	signal(l.retry)
	if snap != nil {
		p.notify(*snap)
	}
}

// Snapshot returns a copy of the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) run(ctx context.Context, l *loop) {
	defer p.wg.Done()

	p.fetch(ctx, l)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	var reconcile <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx, l)
		case <-l.retry:
			p.fetch(ctx, l)
		case <-l.sent:
			reconcile = time.After(p.reconcileDelay)
		case <-reconcile:
			reconcile = nil
			p.fetch(ctx, l)
		}
	}
}

func (p *Poller) fetch(ctx context.Context, l *loop) {
	p.mu.Lock()
	if p.gen != l.gen {
		p.mu.Unlock()
		return
	}
	p.seq++
	start := p.seq
	p.mu.Unlock()

	list, err := p.api.ListMessages(ctx, l.room, model.Page{Skip: 0, Limit: p.pageSize})
	p.apply(l, start, list.Messages, err)
}

func (p *Poller) apply(l *loop, start uint64, server []model.ChatMessage, err error) {
	p.mu.Lock()
	if p.gen != l.gen || p.cur == nil || p.cur.room != l.room || start <= p.applied {
		p.mu.Unlock()
		p.log.Debug("discarding stale chat result", zap.Int64("chat_id", l.room))
		return
	}

	if err != nil {
		if p.status == Ready {
			p.pollErr = err
			p.log.Warn("chat poll failed", zap.Int64("chat_id", l.room), zap.Error(err))
		} else {
			p.status = Error
			p.err = err
			p.msgs = nil
			p.log.Warn("chat load failed", zap.Int64("chat_id", l.room), zap.Error(err))
		}
	} else {
		p.applied = start
		p.msgs, p.pending = merge(server, p.pending, start)
		p.status = Ready
		p.err = nil
		p.pollErr = nil
	}
	p.bumpLocked()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// merge replaces the list with the server snapshot. Optimistic messages
// inserted after the fetch started are kept if the snapshot lacks them;
// older ones are dropped because the server has had the chance to return them.
func merge(server []model.ChatMessage, pending []pendingMsg, start uint64) ([]model.ChatMessage, []pendingMsg) {
	out := make([]model.ChatMessage, 0, len(server)+len(pending))
	seen := make(map[int64]struct{}, len(server))
	for _, m := range server {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}

	var keep []pendingMsg
	for _, pm := range pending {
		if pm.seq <= start {
			continue
		}
		keep = append(keep, pm)
		if _, dup := seen[pm.msg.ID]; dup {
			continue
		}
		seen[pm.msg.ID] = struct{}{}
		out = append(out, pm.msg)
	}
	return out, keep
}

func containsID(msgs []model.ChatMessage, id int64) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *Poller) bumpLocked() { p.version++ }

func (p *Poller) snapshotLocked() Snapshot {
	s := Snapshot{
		Version: p.version,
		Status:  p.status,
		Err:     p.err,
		PollErr: p.pollErr,
	}
	if p.cur != nil {
		s.RoomID = p.cur.room
	}
	if p.msgs != nil {
		s.Messages = append([]model.ChatMessage(nil), p.msgs...)
	}
	return s
}

func (p *Poller) notify(s Snapshot) {
	if p.onChange == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if s.Version <= p.notified {
		return
	}
	p.notified = s.Version
	p.onChange(s)
}
