package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

func messageEvents(reg *EventRegistry) error {
	return reg.Category("message", func(c *CategoryBuilder) {
		c.Add("onMessage", "onMessage", domain.ArgChatMessage)
	})
}

func TestSession_InitOnce(t *testing.T) {
	repo := newMemProjectRepo()
	lang := &fakeLanguage{}
	require.NoError(t, repo.Create(context.Background(), &domain.ProjectInfo{
		ID: "1", Name: "stored", LanguageID: "fake", IsEnabled: true, AllowedEventIDs: []string{"onMessage"},
	}, "ok"))

	s := NewSession(repo, SessionOptions{})
	require.NoError(t, s.Languages.AddLanguage(lang))
	assert.Equal(t, InitNone, s.State())

	// dispatch is a no-op before init
	require.NoError(t, s.FireEvent(context.Background(), "onMessage", []any{chatMessage()}, nil))
	assert.Empty(t, lang.Calls())

	require.NoError(t, s.Init(context.Background(), messageEvents))
	assert.True(t, s.IsInitComplete())
	assert.True(t, s.Events.Sealed())
	assert.ErrorIs(t, s.Init(context.Background(), messageEvents), domain.ErrAlreadyInitialized)

	require.NoError(t, s.FireEvent(context.Background(), "onMessage", []any{chatMessage()}, nil))
	assert.Equal(t, []string{"stored:onMessage"}, lang.Calls())

	s.Shutdown()
	s.Shutdown()
	assert.Equal(t, InitClosed, s.State())
	assert.Empty(t, s.Projects.Projects())
	assert.ErrorIs(t, s.Init(context.Background()), domain.ErrAlreadyInitialized)
}

func TestSession_DuplicateRegistrationFails(t *testing.T) {
	s := NewSession(newMemProjectRepo(), SessionOptions{})
	err := s.Init(context.Background(), messageEvents, messageEvents)
	_, ok := domain.IsDuplicateEventError(err)
	assert.True(t, ok)
	assert.Equal(t, InitNone, s.State())
}

func TestSession_RegistrarError(t *testing.T) {
	s := NewSession(newMemProjectRepo(), SessionOptions{})
	boom := errors.New("boom")
	err := s.Init(context.Background(), func(*EventRegistry) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSession_InitRetryAfterRegistrarError(t *testing.T) {
	s := NewSession(newMemProjectRepo(), SessionOptions{})
	boom := errors.New("boom")

	err := s.Init(context.Background(), messageEvents, func(*EventRegistry) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, InitNone, s.State())
	assert.Empty(t, s.Events.Events(), "failed init registers nothing")

	require.NoError(t, s.Init(context.Background(), messageEvents))
	assert.True(t, s.IsInitComplete())
	assert.True(t, s.Events.Resolve("onMessage").IsPresent())
	s.Shutdown()
}

func TestLanguageManager(t *testing.T) {
	m := NewLanguageManager()
	require.NoError(t, m.AddLanguage(&fakeLanguage{}))
	assert.Error(t, m.AddLanguage(&fakeLanguage{}))

	lang, ok := m.Language("fake").Get()
	require.True(t, ok)
	assert.Equal(t, "Fake", lang.Name())
	assert.True(t, m.Language("lua").IsAbsent())
	assert.Len(t, m.Languages(), 1)

	_, err := m.resolve("lua")
	assert.ErrorIs(t, err, domain.ErrLanguageNotFound)
}
