package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/repo"
	"github.com/starlight-bridge/starlight/internal/log"
)

// FailureFunc is told about a project that failed to handle an event.
// It may be called from several goroutines at once.
type FailureFunc func(p *Project, err error)

// ProjectManager owns every loaded project and fans events out to them
type ProjectManager struct {
	mu       sync.RWMutex
	projects []*Project
	byName   map[string]*Project

	repo      repo.ProjectRepo
	languages *LanguageManager
	events    *EventRegistry
	locker    *JobLocker
	bus       *EventBus
	opts      ProjectOptions
}

// NewProjectManager creates an empty project manager. bus may be nil.
func NewProjectManager(
	projectRepo repo.ProjectRepo,
	languages *LanguageManager,
	events *EventRegistry,
	locker *JobLocker,
	bus *EventBus,
	opts ProjectOptions,
) *ProjectManager {
	return &ProjectManager{
		byName:    make(map[string]*Project),
		repo:      projectRepo,
		languages: languages,
		events:    events,
		locker:    locker,
		bus:       bus,
		opts:      opts,
	}
}

// Events returns the schema registry used for dispatch
func (m *ProjectManager) Events() *EventRegistry {
	return m.events
}

// LoadAll reads every stored project and compiles it. Projects whose
// language is unknown are skipped; compile failures are logged and leave the
// project uncompiled.
func (m *ProjectManager) LoadAll(ctx context.Context) error {
	infos, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	for _, info := range infos {
		lang, err := m.languages.resolve(info.LanguageID)
		if err != nil {
			log.Warn("[ProjectManager] skipping project", "project", info.Name, "error", err)
			continue
		}

		p := newProject(info, lang, m.repo, m.locker, m.opts)
		m.mu.Lock()
		if _, exists := m.byName[info.Name]; exists {
			m.mu.Unlock()
			p.Destroy()
			continue
		}
		m.projects = append(m.projects, p)
		m.byName[info.Name] = p
		m.mu.Unlock()

		_ = m.compile(ctx, p)
	}

	log.Info("[ProjectManager] projects loaded", "count", len(m.Projects()))
	return nil
}

// Projects returns a snapshot in registration order
func (m *ProjectManager) Projects() []*Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Project(nil), m.projects...)
}

// EnabledProjects returns the enabled projects in registration order
func (m *ProjectManager) EnabledProjects() []*Project {
	var out []*Project
	for _, p := range m.Projects() {
		if p.Info().IsEnabled {
			out = append(out, p)
		}
	}
	return out
}

// ProjectByName looks a project up by name
func (m *ProjectManager) ProjectByName(name string, ignoreCase bool) mo.Option[*Project] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.byName[name]; ok {
		return mo.Some(p)
	}
	if ignoreCase {
		for _, p := range m.projects {
			if strings.EqualFold(p.name, name) {
				return mo.Some(p)
			}
		}
	}
	return mo.None[*Project]()
}

// ProjectByID looks a project up by id
func (m *ProjectManager) ProjectByID(id string) mo.Option[*Project] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.projects {
		if p.id == id {
			return mo.Some(p)
		}
	}
	return mo.None[*Project]()
}

func (m *ProjectManager) lookup(name string) (*Project, error) {
	p, ok := m.ProjectByName(name, false).Get()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
	}
	return p, nil
}

// NewProjectRequest describes a project to create
type NewProjectRequest struct {
	Name            string
	LanguageID      string
	MainScript      string
	Source          string
	AllowedEventIDs []string
	Enabled         bool
	PoolSize        int
}

// NewProject persists a new project and registers it uncompiled
func (m *ProjectManager) NewProject(ctx context.Context, req NewProjectRequest) (*Project, error) {
	if !domain.ValidProjectName(req.Name) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProjectName, req.Name)
	}
	lang, err := m.languages.resolve(req.LanguageID)
	if err != nil {
		return nil, err
	}
	if m.ProjectByName(req.Name, true).IsPresent() {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectExists, req.Name)
	}

	mainScript := req.MainScript
	if mainScript == "" {
		mainScript = "main." + lang.Extension()
	}
	if !domain.ValidMainScript(mainScript) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMainScript, mainScript)
	}
	info := domain.ProjectInfo{
		ID:              uuid.NewString(),
		Name:            req.Name,
		MainScript:      mainScript,
		LanguageID:      lang.ID(),
		IsEnabled:       req.Enabled,
		CreatedMillis:   time.Now().UnixMilli(),
		AllowedEventIDs: append([]string{}, req.AllowedEventIDs...),
		PoolSize:        req.PoolSize,
	}
	if err := m.repo.Create(ctx, &info, req.Source); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	p := newProject(info, lang, m.repo, m.locker, m.opts)

	m.mu.Lock()
	if _, exists := m.byName[info.Name]; exists {
		m.mu.Unlock()
		p.Destroy()
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectExists, info.Name)
	}
	m.projects = append(m.projects, p)
	m.byName[info.Name] = p
	m.mu.Unlock()

	log.Info("[ProjectManager] project created", "project", info.Name, "language", info.LanguageID)
	m.publish(domain.LifecycleEvent{Type: domain.LifecycleProjectCreated, ProjectID: info.ID, ProjectName: info.Name})
	return p, nil
}

// RemoveProject destroys the project before optionally deleting its files
func (m *ProjectManager) RemoveProject(ctx context.Context, name string, removeFiles bool) error {
	m.mu.Lock()
	p, ok := m.byName[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
	}
	delete(m.byName, name)
	for i, candidate := range m.projects {
		if candidate == p {
			m.projects = append(m.projects[:i:i], m.projects[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	p.Destroy()
	m.publish(domain.LifecycleEvent{Type: domain.LifecycleProjectDestroyed, ProjectID: p.id, ProjectName: p.name})

	if removeFiles {
		if err := m.repo.Remove(ctx, name); err != nil {
			return fmt.Errorf("remove project files: %w", err)
		}
	}

	log.Info("[ProjectManager] project removed", "project", name, "files_removed", removeFiles)
	m.publish(domain.LifecycleEvent{Type: domain.LifecycleProjectDeleted, ProjectID: p.id, ProjectName: p.name})
	return nil
}

// UpdateProjectInfo applies fn to the project's info and persists it.
// The id and name cannot be changed.
func (m *ProjectManager) UpdateProjectInfo(ctx context.Context, name string, fn func(info *domain.ProjectInfo)) (domain.ProjectInfo, error) {
	p, err := m.lookup(name)
	if err != nil {
		return domain.ProjectInfo{}, err
	}

	info, err := p.updateInfo(fn)
	if err != nil {
		return info, err
	}
	if err := m.repo.SaveInfo(ctx, &info); err != nil {
		return info, fmt.Errorf("save project info: %w", err)
	}
	return info, nil
}

// SetProjectEnabled toggles and persists the enabled flag
func (m *ProjectManager) SetProjectEnabled(ctx context.Context, name string, enabled bool) error {
	_, err := m.UpdateProjectInfo(ctx, name, func(info *domain.ProjectInfo) {
		info.IsEnabled = enabled
	})
	return err
}

// CompileProject (re)loads a project's main script
func (m *ProjectManager) CompileProject(ctx context.Context, name string) error {
	p, err := m.lookup(name)
	if err != nil {
		return err
	}
	return m.compile(ctx, p)
}

// StopProjectJobs force-releases the named project's jobs
func (m *ProjectManager) StopProjectJobs(name string) (int, error) {
	p, err := m.lookup(name)
	if err != nil {
		return 0, err
	}
	return p.StopAllJobs(), nil
}

func (m *ProjectManager) compile(ctx context.Context, p *Project) error {
	if err := p.Load(ctx); err != nil {
		m.publish(domain.LifecycleEvent{
			Type:        domain.LifecycleProjectCompileFailed,
			ProjectID:   p.id,
			ProjectName: p.name,
			Error:       err.Error(),
		})
		return err
	}
	m.publish(domain.LifecycleEvent{Type: domain.LifecycleProjectCompiled, ProjectID: p.id, ProjectName: p.name})
	return nil
}

// FireEvent validates args against the event schema and calls the event's
// entry point on every compiled, enabled and permitted project. Invalid
// arguments reject the whole call before any project runs. A failing
// project is reported to onFailure and does not affect the others.
func (m *ProjectManager) FireEvent(ctx context.Context, eventID string, args []any, onFailure FailureFunc) error {
	def, ok := m.events.Resolve(eventID).Get()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEvent, eventID)
	}
	if err := m.events.Validate(def, args); err != nil {
		return err
	}
	if onFailure == nil {
		onFailure = logFailure(eventID)
	}

	var wg sync.WaitGroup
	for _, p := range m.Projects() {
		if !p.Eligible(eventID) {
			continue
		}
		wg.Add(1)
		go func(p *Project) {
			defer wg.Done()
			p.CallFunction(ctx, def.FunctionName, args, func(err error) {
				onFailure(p, err)
			})
		}(p)
	}
	wg.Wait()
	return nil
}

// Purge destroys every project and empties the manager
func (m *ProjectManager) Purge() {
	m.mu.Lock()
	projects := m.projects
	m.projects = nil
	m.byName = make(map[string]*Project)
	m.mu.Unlock()

	for _, p := range projects {
		p.Destroy()
	}
}

func (m *ProjectManager) publish(ev domain.LifecycleEvent) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ev); err != nil {
		log.Warn("[ProjectManager] lifecycle event not published", "type", ev.Type, "error", err)
	}
}

func logFailure(eventID string) FailureFunc {
	return func(p *Project, err error) {
		log.Error("[ProjectManager] failed to call event", "event", eventID, "project", p.ProjectName(), "error", err)
	}
}
