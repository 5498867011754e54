package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// fakeLanguage interprets the source as a behaviour keyword
type fakeLanguage struct {
	mu       sync.Mutex
	calls    []string
	args     [][]any
	released int
}

type fakeScope struct {
	host   Host
	source string
}

func (l *fakeLanguage) ID() string        { return "fake" }
func (l *fakeLanguage) Name() string      { return "Fake" }
func (l *fakeLanguage) Extension() string { return "fk" }

func (l *fakeLanguage) Compile(ctx context.Context, host Host, source string) (Scope, error) {
	if strings.Contains(source, "syntax error") {
		return nil, errors.New("unexpected token")
	}
	if strings.HasPrefix(source, "timer") {
		host.Schedule(time.Hour, func(context.Context) {})
	}
	return &fakeScope{host: host, source: source}, nil
}

func (l *fakeLanguage) Invoke(ctx context.Context, scope Scope, fn string, args []any) (any, error) {
	s := scope.(*fakeScope)
	if fn == "undefined" {
		return nil, domain.ErrFunctionNotFound
	}

	l.mu.Lock()
	l.calls = append(l.calls, s.host.ProjectName()+":"+fn)
	l.args = append(l.args, args)
	l.mu.Unlock()

	switch s.source {
	case "fail":
		return nil, errors.New("script error")
	case "panic":
		panic("script panic")
	case "slow":
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, nil
}

func (l *fakeLanguage) Release(scope Scope) {
	l.mu.Lock()
	l.released++
	l.mu.Unlock()
}

func (l *fakeLanguage) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]string(nil), l.calls...)
	sort.Strings(out)
	return out
}

// memProjectRepo is an in-memory repo.ProjectRepo
type memProjectRepo struct {
	mu      sync.Mutex
	infos   map[string]domain.ProjectInfo
	order   []string
	sources map[string]string
	envs    map[string]map[string]string
	removed []string
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{
		infos:   make(map[string]domain.ProjectInfo),
		sources: make(map[string]string),
		envs:    make(map[string]map[string]string),
	}
}

func (r *memProjectRepo) List(ctx context.Context) ([]domain.ProjectInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ProjectInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.infos[name].Clone())
	}
	return out, nil
}

func (r *memProjectRepo) LoadInfo(ctx context.Context, name string) (*domain.ProjectInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.infos[name]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	c := info.Clone()
	return &c, nil
}

func (r *memProjectRepo) SaveInfo(ctx context.Context, info *domain.ProjectInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.infos[info.Name]; !ok {
		return domain.ErrProjectNotFound
	}
	r.infos[info.Name] = info.Clone()
	return nil
}

func (r *memProjectRepo) Create(ctx context.Context, info *domain.ProjectInfo, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.infos[info.Name]; ok {
		return domain.ErrProjectExists
	}
	r.infos[info.Name] = info.Clone()
	r.order = append(r.order, info.Name)
	r.sources[info.Name] = source
	return nil
}

func (r *memProjectRepo) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.infos, name)
	delete(r.sources, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.removed = append(r.removed, name)
	return nil
}

func (r *memProjectRepo) ReadSource(ctx context.Context, info *domain.ProjectInfo) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[info.Name]
	if !ok {
		return "", fmt.Errorf("no source for %s", info.Name)
	}
	return src, nil
}

func (r *memProjectRepo) ReadEnv(ctx context.Context, name string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.envs[name], nil
}

func (r *memProjectRepo) Dir(name string) string {
	return "/projects/" + name
}

func (r *memProjectRepo) setSource(name, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = source
}

// fakeRoom is a minimal domain.ChatRoom
type fakeRoom struct{ id, name string }

func (r *fakeRoom) ID() string                      { return r.id }
func (r *fakeRoom) Name() string                    { return r.name }
func (r *fakeRoom) IsGroupChat() bool               { return false }
func (r *fakeRoom) Send(string) bool                { return true }
func (r *fakeRoom) MarkAsRead() bool                { return true }
func (r *fakeRoom) IsKind(kind domain.ArgKind) bool { return kind == domain.ArgChatRoom }
