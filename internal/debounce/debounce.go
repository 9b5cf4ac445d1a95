// Package debounce coalesces rapid quantity changes into one network update
// per cart row.
package debounce

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDelay is the quiet interval before a scheduled quantity is sent.
const DefaultDelay = 400 * time.Millisecond

// CommitFunc sends the final quantity for a row.
type CommitFunc func(ctx context.Context, cartItemID int64, quantity int) error

// SettledFunc is told the outcome of a commit while the owner is still attached.
type SettledFunc func(cartItemID int64, quantity int, err error)

type pending struct {
	timer    *time.Timer
	seq      uint64
	quantity int
}

// QuantityDebouncer keeps one timer per cart row. Rows are independent: a
// change on one never delays or cancels another.
type QuantityDebouncer struct {
	delay         time.Duration
	commit        CommitFunc
	onSettled     SettledFunc
	commitTimeout time.Duration
	log           logrus.FieldLogger

	mu      sync.Mutex
	pending map[int64]*pending
	seq     uint64

	attached atomic.Bool
	inflight sync.WaitGroup
}

type Option func(*QuantityDebouncer)

func WithDelay(d time.Duration) Option {
	return func(q *QuantityDebouncer) { q.delay = d }
}

func WithOnSettled(fn SettledFunc) Option {
	return func(q *QuantityDebouncer) { q.onSettled = fn }
}

func WithCommitTimeout(d time.Duration) Option {
	return func(q *QuantityDebouncer) { q.commitTimeout = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(q *QuantityDebouncer) { q.log = l }
}

func New(commit CommitFunc, opts ...Option) *QuantityDebouncer {
	q := &QuantityDebouncer{
		delay:         DefaultDelay,
		commit:        commit,
		commitTimeout: 10 * time.Second,
		pending:       make(map[int64]*pending),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.log == nil {
		l := logrus.New()
		l.Out = io.Discard
		q.log = l
	}
	q.attached.Store(true)
	return q
}

// Schedule (re)starts the quiet interval for cartItemID. Only the last
// quantity scheduled before the interval elapses is sent.
func (q *QuantityDebouncer) Schedule(cartItemID int64, quantity int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	seq := q.seq
	if p, ok := q.pending[cartItemID]; ok {
		p.timer.Stop()
	}
	q.pending[cartItemID] = &pending{
		seq:      seq,
		quantity: quantity,
		timer:    time.AfterFunc(q.delay, func() { q.fire(cartItemID, seq) }),
	}
}

// Pending reports whether cartItemID has an unsent quantity.
func (q *QuantityDebouncer) Pending(cartItemID int64) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[cartItemID]
	if !ok {
		return 0, false
	}
	return p.quantity, true
}

// Cancel drops the unsent quantity for cartItemID. It returns false if nothing was pending.
func (q *QuantityDebouncer) Cancel(cartItemID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[cartItemID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(q.pending, cartItemID)
	return true
}

// CancelAll drops every unsent quantity.
func (q *QuantityDebouncer) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, p := range q.pending {
		p.timer.Stop()
		delete(q.pending, id)
	}
}

// Detach is called when the owning view goes away. Pending timers still fire
// and their commits still run, but onSettled is no longer invoked.
func (q *QuantityDebouncer) Detach() {
	q.attached.Store(false)
}

// Wait blocks until commits that already started have returned.
func (q *QuantityDebouncer) Wait() {
	q.inflight.Wait()
}

// FlushAll sends every unsent quantity now, without waiting for its quiet
// interval, and returns once all commits, including running ones, are done.
func (q *QuantityDebouncer) FlushAll() {
	type due struct {
		cartItemID int64
		quantity   int
	}
	q.mu.Lock()
	batch := make([]due, 0, len(q.pending))
	for id, p := range q.pending {
		// a timer that already fired finds its entry gone and returns
		p.timer.Stop()
		delete(q.pending, id)
		batch = append(batch, due{cartItemID: id, quantity: p.quantity})
	}
	q.inflight.Add(len(batch))
	q.mu.Unlock()

	for _, d := range batch {
		q.send(d.cartItemID, d.quantity)
	}
	q.inflight.Wait()
}

func (q *QuantityDebouncer) fire(cartItemID int64, seq uint64) {
	q.mu.Lock()
	p, ok := q.pending[cartItemID]
	if !ok || p.seq != seq {
		// superseded or cancelled between the timer firing and taking the lock
		q.mu.Unlock()
		return
	}
	delete(q.pending, cartItemID)
	quantity := p.quantity
	q.inflight.Add(1)
	q.mu.Unlock()

	q.send(cartItemID, quantity)
}

// send runs one commit. The caller has already added it to inflight.
func (q *QuantityDebouncer) send(cartItemID int64, quantity int) {
	defer q.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), q.commitTimeout)
	defer cancel()

	err := q.commit(ctx, cartItemID, quantity)
	if err != nil {
		q.log.WithError(err).WithFields(logrus.Fields{"cart_item_id": cartItemID, "quantity": quantity}).Warn("debounced quantity update failed")
	}
	if q.onSettled != nil && q.attached.Load() {
		q.onSettled(cartItemID, quantity, err)
	}
}
