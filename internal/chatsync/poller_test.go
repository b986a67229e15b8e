package chatsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/and161185/agora/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeLister struct {
	mu      sync.Mutex
	msgs    map[int64][]model.ChatMessage
	fail    map[int64]error
	gates   map[int64]chan struct{}
	calls   map[int64]int
	started chan int64
}

var _ MessageLister = (*fakeLister)(nil)

func newFakeLister() *fakeLister {
	return &fakeLister{
		msgs:  map[int64][]model.ChatMessage{},
		fail:  map[int64]error{},
		gates: map[int64]chan struct{}{},
		calls: map[int64]int{},
	}
}

func (f *fakeLister) ListMessages(ctx context.Context, chatID int64, _ model.Page) (model.MessageList, error) {
	f.mu.Lock()
	f.calls[chatID]++
	gate := f.gates[chatID]
	started := f.started
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- chatID:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.MessageList{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[chatID]; err != nil {
		return model.MessageList{}, err
	}
	out := append([]model.ChatMessage(nil), f.msgs[chatID]...)
	return model.MessageList{Messages: out}, nil
}

func (f *fakeLister) set(chatID int64, msgs ...model.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[chatID] = msgs
}

func (f *fakeLister) setErr(chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[chatID] = err
}

func (f *fakeLister) Calls(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[chatID]
}

func msg(chatID, id int64, text string) model.ChatMessage {
	return model.ChatMessage{ID: id, ChatID: chatID, Content: text, Type: model.MessageText}
}

func ids(msgs []model.ChatMessage) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestPoller_LoadsAndPolls(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	api.set(1, msg(1, 10, "hi"))
	p := New(api, zaptest.NewLogger(t), WithInterval(10*time.Millisecond))
	defer p.Stop()

	p.Select(1)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)
	assert.Equal(t, []int64{10}, ids(p.Snapshot().Messages))

	api.set(1, msg(1, 10, "hi"), msg(1, 11, "there"))
	require.Eventually(t, func() bool { return len(p.Snapshot().Messages) == 2 }, waitFor, tick)
}

func TestPoller_StaleRoomDiscarded(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	api.started = make(chan int64, 8)
	gateA := make(chan struct{})
	api.gates[1] = gateA
	api.set(1, msg(1, 100, "from A"))
	api.set(2, msg(2, 200, "from B"))

	p := New(api, zaptest.NewLogger(t), WithInterval(time.Hour))
	defer p.Stop()

	p.Select(1)
	require.Equal(t, int64(1), <-api.started)
	assert.Equal(t, Loading, p.Snapshot().Status)

	p.Select(2)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)

	close(gateA)
	time.Sleep(30 * time.Millisecond)

	s := p.Snapshot()
	assert.Equal(t, int64(2), s.RoomID)
	assert.Equal(t, []int64{200}, ids(s.Messages))
}

func TestPoller_ReselectSameRoomDiscardsOlderFetch(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	api.started = make(chan int64, 8)
	gate := make(chan struct{})
	api.gates[1] = gate
	api.set(1, msg(1, 1, "a"))

	p := New(api, zaptest.NewLogger(t), WithInterval(time.Hour))
	defer p.Stop()

	p.Select(1)
	<-api.started
	p.Select(1)
	<-api.started
	assert.Equal(t, Loading, p.Snapshot().Status)

	close(gate)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)
	assert.Equal(t, []int64{1}, ids(p.Snapshot().Messages))
}

func TestPoller_OptimisticSendReconciles(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	api.set(1, msg(1, 1, "first"))
	p := New(api, zaptest.NewLogger(t),
		WithInterval(time.Hour),
		WithReconcileDelay(20*time.Millisecond),
	)
	defer p.Stop()

	p.Select(1)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)
	before := api.Calls(1)

	sent := msg(1, 2, "mine")
	api.set(1, msg(1, 1, "first"), sent)
	p.Sent(sent)
	assert.Equal(t, []int64{1, 2}, ids(p.Snapshot().Messages), "visible before any fetch")

	p.Sent(sent)
	assert.Equal(t, []int64{1, 2}, ids(p.Snapshot().Messages), "no duplicate by id")

	require.Eventually(t, func() bool { return api.Calls(1) > before }, waitFor, tick)
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.pending) == 0
	}, waitFor, tick)
	assert.Equal(t, []int64{1, 2}, ids(p.Snapshot().Messages))
}

func TestPoller_SentForOtherRoomIgnored(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	p := New(api, nil, WithInterval(time.Hour))
	defer p.Stop()

	p.Sent(msg(1, 5, "nobody listening"))
	assert.Empty(t, p.Snapshot().Messages)

	p.Select(1)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)
	p.Sent(msg(9, 5, "wrong room"))
	assert.Empty(t, p.Snapshot().Messages)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	server := []model.ChatMessage{msg(1, 1, "a"), msg(1, 2, "b"), msg(1, 2, "b")}
	pending := []pendingMsg{
		{msg: msg(1, 3, "old optimistic"), seq: 4},
		{msg: msg(1, 2, "already on server"), seq: 6},
		{msg: msg(1, 7, "after fetch start"), seq: 7},
	}

	out, keep := merge(server, pending, 5)
	assert.Equal(t, []int64{1, 2, 7}, ids(out))
	require.Len(t, keep, 2)
	assert.Equal(t, int64(2), keep[0].msg.ID)
	assert.Equal(t, int64(7), keep[1].msg.ID)

	out, keep = merge(server, keep, 10)
	assert.Equal(t, []int64{1, 2}, ids(out))
	assert.Empty(t, keep)
}

func TestPoller_PollFailureKeepsReady(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	api.set(1, msg(1, 1, "a"))
	p := New(api, zaptest.NewLogger(t), WithInterval(10*time.Millisecond))
	defer p.Stop()

	p.Select(1)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)

	boom := errors.New("boom")
	api.setErr(1, boom)
	require.Eventually(t, func() bool { return p.Snapshot().PollErr != nil }, waitFor, tick)

	s := p.Snapshot()
	assert.Equal(t, Ready, s.Status)
	assert.ErrorIs(t, s.PollErr, boom)
	assert.Equal(t, []int64{1}, ids(s.Messages), "last good list kept")

	n := api.Calls(1)
	require.Eventually(t, func() bool { return api.Calls(1) > n+1 }, waitFor, tick, "keeps polling")

	api.setErr(1, nil)
	require.Eventually(t, func() bool { return p.Snapshot().PollErr == nil }, waitFor, tick)
}

func TestPoller_InitialFailureThenRetry(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	api.setErr(1, errors.New("offline"))
	p := New(api, zaptest.NewLogger(t), WithInterval(time.Hour))
	defer p.Stop()

	p.Select(1)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Error }, waitFor, tick)
	assert.Error(t, p.Snapshot().Err)
	assert.Nil(t, p.Snapshot().Messages)

	api.setErr(1, nil)
	api.set(1, msg(1, 1, "back"))
	p.Retry()
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)
	assert.NoError(t, p.Snapshot().Err)
	assert.Equal(t, []int64{1}, ids(p.Snapshot().Messages))
}

func TestPoller_SentDuringErrorStaysHidden(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	api.setErr(1, errors.New("offline"))
	p := New(api, zaptest.NewLogger(t), WithInterval(time.Hour), WithReconcileDelay(time.Hour))
	defer p.Stop()

	p.Select(1)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Error }, waitFor, tick)

	p.Sent(msg(1, 9, "while offline"))
	s := p.Snapshot()
	assert.Equal(t, Error, s.Status)
	assert.Nil(t, s.Messages)

	api.setErr(1, nil)
	api.set(1, msg(1, 9, "while offline"))
	p.Retry()
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)
	assert.Equal(t, []int64{9}, ids(p.Snapshot().Messages))
}

func TestPoller_StopHalts(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	p := New(api, zaptest.NewLogger(t), WithInterval(5*time.Millisecond))

	p.Select(1)
	require.Eventually(t, func() bool { return api.Calls(1) >= 2 }, waitFor, tick)

	p.Stop()
	n := api.Calls(1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, api.Calls(1))

	s := p.Snapshot()
	assert.Equal(t, Idle, s.Status)
	assert.Zero(t, s.RoomID)
}

func TestPoller_SelectZeroIsIdle(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	p := New(api, nil, WithInterval(5*time.Millisecond))
	defer p.Stop()

	p.Select(1)
	require.Eventually(t, func() bool { return p.Snapshot().Status == Ready }, waitFor, tick)
	p.Select(0)
	time.Sleep(10 * time.Millisecond)

	n := api.Calls(1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, api.Calls(1))
	assert.Equal(t, Idle, p.Snapshot().Status)
}

func TestPoller_OnChangeMonotonic(t *testing.T) {
	t.Parallel()

	api := newFakeLister()
	api.set(1, msg(1, 1, "a"))

	var (
		mu       sync.Mutex
		versions []uint64
		last     Snapshot
	)
	p := New(api, nil, WithInterval(time.Hour), WithOnChange(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, s.Version)
		last = s
	}))
	defer p.Stop()

	p.Select(1)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.Status == Ready
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "unknown", Status(42).String())
}
