package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	dir := t.TempDir()
	repos, err := NewRepositories(filepath.Join(dir, "projects"), filepath.Join(dir, "db", "starlight.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestProjectRepo_InfoRoundTrip(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	info := &domain.ProjectInfo{
		ID:              "0b7f",
		Name:            "echo",
		MainScript:      "main.js",
		LanguageID:      "js",
		IsEnabled:       true,
		IsPinned:        true,
		CreatedMillis:   1700000000000,
		AllowedEventIDs: []string{"onMessage", "*"},
	}
	require.NoError(t, repos.Project.Create(ctx, info, "function onMessage(msg) {}"))

	loaded, err := repos.Project.LoadInfo(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, info, loaded)

	src, err := repos.Project.ReadSource(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, "function onMessage(msg) {}", src)

	loaded.IsEnabled = false
	require.NoError(t, repos.Project.SaveInfo(ctx, loaded))
	again, err := repos.Project.LoadInfo(ctx, "echo")
	require.NoError(t, err)
	assert.False(t, again.IsEnabled)

	err = repos.Project.Create(ctx, info, "")
	assert.True(t, errors.Is(err, domain.ErrProjectExists))
}

func TestProjectRepo_ListOrderAndMissing(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Project.Create(ctx, &domain.ProjectInfo{Name: "b", MainScript: "main.js", CreatedMillis: 2}, ""))
	require.NoError(t, repos.Project.Create(ctx, &domain.ProjectInfo{Name: "a", MainScript: "main.js", CreatedMillis: 3}, ""))
	require.NoError(t, repos.Project.Create(ctx, &domain.ProjectInfo{Name: "c", MainScript: "main.js", CreatedMillis: 1}, ""))
	// a stray directory without project.json is ignored
	require.NoError(t, os.MkdirAll(repos.Project.Dir("stray"), 0755))

	infos, err := repos.Project.List(ctx)
	require.NoError(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"c", "b", "a"}, names)

	_, err = repos.Project.LoadInfo(ctx, "nope")
	assert.True(t, errors.Is(err, domain.ErrProjectNotFound))
	err = repos.Project.SaveInfo(ctx, &domain.ProjectInfo{Name: "nope"})
	assert.True(t, errors.Is(err, domain.ErrProjectNotFound))

	require.NoError(t, repos.Project.Remove(ctx, "b"))
	_, err = os.Stat(repos.Project.Dir("b"))
	assert.True(t, os.IsNotExist(err))
}

func TestProjectRepo_ReadEnv(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	require.NoError(t, repos.Project.Create(ctx, &domain.ProjectInfo{Name: "bot", MainScript: "main.js"}, ""))

	env, err := repos.Project.ReadEnv(ctx, "bot")
	require.NoError(t, err)
	assert.Empty(t, env)

	require.NoError(t, os.WriteFile(filepath.Join(repos.Project.Dir("bot"), ".env"), []byte("TOKEN=abc\n# comment\nMODE=\"test\"\n"), 0644))
	env, err = repos.Project.ReadEnv(ctx, "bot")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TOKEN": "abc", "MODE": "test"}, env)
}

func TestRuleRepo_Replace(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	rules, err := repos.Rule.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	want := []domain.RuleData{
		{PackageName: domain.PackageKakaoTalk, UserID: 0, ParserSpecID: domain.ParserSpecAndroidR},
		{PackageName: domain.PackageFeishu, UserID: 10, ParserSpecID: domain.ParserSpecFeishu},
	}
	require.NoError(t, repos.Rule.Replace(ctx, want))
	rules, err = repos.Rule.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, rules)

	require.NoError(t, repos.Rule.Replace(ctx, want[1:]))
	rules, err = repos.Rule.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want[1:], rules)
}

func TestProjectRepo_MainScriptStaysInsideProject(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	err := repos.Project.Create(ctx, &domain.ProjectInfo{Name: "bot", MainScript: "../../escaped.js"}, "boom")
	assert.ErrorIs(t, err, domain.ErrInvalidMainScript)
	_, statErr := os.Stat(filepath.Join(repos.Project.Dir("bot"), "..", "..", "escaped.js"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(repos.Project.Dir("bot"))
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, repos.Project.Create(ctx, &domain.ProjectInfo{Name: "bot", MainScript: "main.js"}, ""))
	_, err = repos.Project.ReadSource(ctx, &domain.ProjectInfo{Name: "bot", MainScript: "../bot/main.js"})
	assert.ErrorIs(t, err, domain.ErrInvalidMainScript)
	err = repos.Project.SaveInfo(ctx, &domain.ProjectInfo{Name: "bot", MainScript: "/etc/passwd"})
	assert.ErrorIs(t, err, domain.ErrInvalidMainScript)
}
