package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

func newTestProject(t *testing.T, source string) (*Project, *fakeLanguage, *JobLocker) {
	t.Helper()
	repo := newMemProjectRepo()
	info := domain.ProjectInfo{ID: "p-1", Name: "proj", LanguageID: "fake", IsEnabled: true, AllowedEventIDs: []string{"onMessage"}}
	require.NoError(t, repo.Create(context.Background(), &info, source))
	repo.envs["proj"] = map[string]string{"TOKEN": "secret"}

	lang := &fakeLanguage{}
	locker := NewJobLocker()
	p := newProject(info, lang, repo, locker, ProjectOptions{})
	t.Cleanup(p.Destroy)
	return p, lang, locker
}

func TestProject_LoadAndCall(t *testing.T) {
	p, lang, _ := newTestProject(t, "ok")
	ctx := context.Background()

	require.NoError(t, p.Load(ctx))
	assert.Equal(t, StateCompiled, p.State())
	assert.Equal(t, "secret", p.Env()["TOKEN"])

	p.CallFunction(ctx, "onMessage", []any{"x"}, func(err error) {
		t.Fatalf("unexpected failure: %v", err)
	})
	assert.Equal(t, []string{"proj:onMessage"}, lang.Calls())

	// reload releases the previous scope
	require.NoError(t, p.Load(ctx))
	assert.Equal(t, 1, lang.released)
}

func TestProject_CallWhenNotCompiled(t *testing.T) {
	p, lang, _ := newTestProject(t, "ok")

	var got error
	p.CallFunction(context.Background(), "onMessage", nil, func(err error) { got = err })
	assert.ErrorIs(t, got, domain.ErrNotCompiled)
	assert.Empty(t, lang.Calls())
}

func TestProject_DestroyIsIdempotent(t *testing.T) {
	p, lang, locker := newTestProject(t, "timer")
	require.NoError(t, p.Load(context.Background()))
	assert.Equal(t, 1, locker.Count("p-1"))

	p.Destroy()
	p.Destroy()
	assert.Equal(t, StateDestroyed, p.State())
	assert.Equal(t, 1, lang.released)
	assert.Equal(t, 0, p.ActiveJobs())

	calls := len(lang.Calls())
	var got error
	p.CallFunction(context.Background(), "onMessage", nil, func(err error) { got = err })
	assert.NoError(t, got, "a destroyed project is skipped, not reported")
	assert.Len(t, lang.Calls(), calls)
}

func TestProject_SetEnabledGatesEligibility(t *testing.T) {
	p, _, _ := newTestProject(t, "ok")
	require.NoError(t, p.Load(context.Background()))

	assert.True(t, p.Eligible("onMessage"))
	assert.False(t, p.Eligible("other"))

	p.SetEnabled(false)
	assert.False(t, p.Eligible("onMessage"))
	assert.Equal(t, StateCompiled, p.State())
	assert.True(t, p.IsEventCallAllowed("onMessage"))
}

func TestProject_TimersHoldJobs(t *testing.T) {
	p, _, _ := newTestProject(t, "ok")
	require.NoError(t, p.Load(context.Background()))

	var fired atomic.Int32
	p.Schedule(10*time.Millisecond, func(context.Context) { fired.Add(1) })
	assert.Equal(t, 1, p.ActiveJobs())

	require.Eventually(t, func() bool {
		return fired.Load() == 1 && p.ActiveJobs() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestProject_RepeatingTimerAndCancel(t *testing.T) {
	p, _, _ := newTestProject(t, "ok")
	require.NoError(t, p.Load(context.Background()))

	var ticks atomic.Int32
	id := p.ScheduleRepeating(0, 5*time.Millisecond, func(context.Context) { ticks.Add(1) })
	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	assert.True(t, p.CancelTimer(id))
	require.Eventually(t, func() bool { return p.ActiveJobs() == 0 && p.Timers() == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, p.CancelTimer(id))
	assert.False(t, p.CancelTimer("not-a-timer"))
}

func TestProject_StopAllJobsCancelsTimers(t *testing.T) {
	p, _, _ := newTestProject(t, "ok")
	require.NoError(t, p.Load(context.Background()))

	var fired atomic.Int32
	p.Schedule(time.Hour, func(context.Context) { fired.Add(1) })
	p.Schedule(time.Hour, func(context.Context) { fired.Add(1) })

	assert.Equal(t, 2, p.StopAllJobs())
	assert.Equal(t, 0, p.ActiveJobs())
	require.Eventually(t, func() bool { return p.Timers() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, fired.Load())
}
