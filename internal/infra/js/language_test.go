package js

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

type scheduled struct {
	delay, period time.Duration
	fn            func(ctx context.Context)
}

// fakeHost records timers instead of running them
type fakeHost struct {
	mu        sync.Mutex
	timers    map[string]scheduled
	cancelled []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{timers: make(map[string]scheduled)}
}

func (h *fakeHost) ProjectID() string   { return "p-1" }
func (h *fakeHost) ProjectName() string { return "echo" }
func (h *fakeHost) Env() map[string]string {
	return map[string]string{"GREETING": "hi"}
}

func (h *fakeHost) Schedule(delay time.Duration, fn func(ctx context.Context)) string {
	return h.ScheduleRepeating(delay, 0, fn)
}

func (h *fakeHost) ScheduleRepeating(initial, period time.Duration, fn func(ctx context.Context)) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := "tmr_" + string(rune('a'+len(h.timers)))
	h.timers[id] = scheduled{delay: initial, period: period, fn: fn}
	return id
}

func (h *fakeHost) CancelTimer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = append(h.cancelled, id)
	_, ok := h.timers[id]
	return ok
}

// room records sent text
type room struct {
	mu   sync.Mutex
	sent []string
}

func (r *room) ID() string        { return "room-1" }
func (r *room) Name() string      { return "Team" }
func (r *room) IsGroupChat() bool { return true }
func (r *room) MarkAsRead() bool  { return true }
func (r *room) Send(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return true
}

func (r *room) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

const echoScript = `
function onMessage(msg) {
	if (msg.text === "ping") {
		msg.room.send(Env.GREETING + " " + msg.sender.name);
	}
	return msg.chatLogID;
}
`

func TestInvoke_OnMessage(t *testing.T) {
	lang := NewLanguage()
	ctx := context.Background()

	sc, err := lang.Compile(ctx, newFakeHost(), echoScript)
	require.NoError(t, err)

	r := &room{}
	msg := &domain.ChatMessage{
		Text:      "ping",
		Sender:    domain.ChatSender{Name: "Alice"},
		Room:      r,
		ChatLogID: 42,
	}
	res, err := lang.Invoke(ctx, sc, "onMessage", []any{msg})
	require.NoError(t, err)
	assert.EqualValues(t, 42, res)
	assert.Equal(t, []string{"hi Alice"}, r.Sent())
}

func TestInvoke_MissingFunction(t *testing.T) {
	lang := NewLanguage()
	sc, err := lang.Compile(context.Background(), newFakeHost(), echoScript)
	require.NoError(t, err)

	_, err = lang.Invoke(context.Background(), sc, "onMessageDeleted", nil)
	assert.True(t, errors.Is(err, domain.ErrFunctionNotFound))
}

func TestCompile_SyntaxAndRuntimeErrors(t *testing.T) {
	lang := NewLanguage()

	_, err := lang.Compile(context.Background(), newFakeHost(), "function (")
	assert.Error(t, err)

	_, err = lang.Compile(context.Background(), newFakeHost(), "throw new Error('boom')")
	assert.ErrorContains(t, err, "boom")
}

func TestInvoke_InterruptedOnTimeout(t *testing.T) {
	lang := NewLanguage()
	sc, err := lang.Compile(context.Background(), newFakeHost(), "function onMessage() { for (;;) {} }")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = lang.Invoke(ctx, sc, "onMessage", nil)
	require.Error(t, err)

	// the interrupt does not leak into the next call
	sc2, err := lang.Compile(context.Background(), newFakeHost(), "function f() { return 1 }")
	require.NoError(t, err)
	res, err := lang.Invoke(context.Background(), sc2, "f", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res)
}

func TestTimers(t *testing.T) {
	lang := NewLanguage()
	host := newFakeHost()
	sc, err := lang.Compile(context.Background(), host, `
		var ticks = 0;
		var once = Timer.schedule(1000, function () { ticks++; });
		var every = Timer.repeat(0, 500, function () { ticks += 10; });
		function count() { return ticks; }
		function stop() { return Timer.cancel(every); }
	`)
	require.NoError(t, err)
	require.Len(t, host.timers, 2)

	for _, tm := range host.timers {
		tm.fn(context.Background())
	}
	res, err := lang.Invoke(context.Background(), sc, "count", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 11, res)

	res, err = lang.Invoke(context.Background(), sc, "stop", nil)
	require.NoError(t, err)
	assert.Equal(t, true, res)

	_, err = lang.Compile(context.Background(), newFakeHost(), "Timer.repeat(0, 0, function () {})")
	assert.Error(t, err)
}

func TestRelease(t *testing.T) {
	lang := NewLanguage()
	sc, err := lang.Compile(context.Background(), newFakeHost(), echoScript)
	require.NoError(t, err)

	lang.Release(sc)
	_, err = lang.Invoke(context.Background(), sc, "onMessage", nil)
	assert.True(t, errors.Is(err, domain.ErrNotCompiled))
}
