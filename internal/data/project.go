package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/repo"
	"github.com/starlight-bridge/starlight/internal/log"
)

const (
	infoFileName = "project.json"
	lockFileName = ".project.lock"
)

// envFileNames are tried in order; the first readable one wins
var envFileNames = []string{".env", ".ENV"}

// projectRepo stores one directory per project under root
type projectRepo struct {
	root string
}

// NewProjectRepo creates a new project repository rooted at dir
func NewProjectRepo(dir string) (repo.ProjectRepo, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create projects directory: %w", err)
	}
	return &projectRepo{root: dir}, nil
}

func (r *projectRepo) Dir(name string) string {
	return filepath.Join(r.root, name)
}

// List reads every directory holding a valid project.json
func (r *projectRepo) List(ctx context.Context) ([]domain.ProjectInfo, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	var infos []domain.ProjectInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := r.LoadInfo(ctx, e.Name())
		if err != nil {
			if !errors.Is(err, domain.ErrProjectNotFound) {
				log.Warn("[ProjectRepo] skipping unreadable project", "dir", e.Name(), "error", err)
			}
			continue
		}
		infos = append(infos, *info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].CreatedMillis < infos[j].CreatedMillis
	})
	return infos, nil
}

func (r *projectRepo) LoadInfo(ctx context.Context, name string) (*domain.ProjectInfo, error) {
	raw, err := os.ReadFile(filepath.Join(r.Dir(name), infoFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrProjectNotFound)
		}
		return nil, fmt.Errorf("failed to read project info: %w", err)
	}

	var info domain.ProjectInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to decode project info %s: %w", name, err)
	}
	// the directory name is authoritative
	info.Name = name
	return &info, nil
}

func (r *projectRepo) SaveInfo(ctx context.Context, info *domain.ProjectInfo) error {
	if err := checkPaths(info); err != nil {
		return err
	}
	if _, err := os.Stat(r.Dir(info.Name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", info.Name, domain.ErrProjectNotFound)
		}
		return err
	}
	return r.writeInfo(info)
}

func (r *projectRepo) Create(ctx context.Context, info *domain.ProjectInfo, source string) error {
	if err := checkPaths(info); err != nil {
		return err
	}
	dir := r.Dir(info.Name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%s: %w", info.Name, domain.ErrProjectExists)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, info.MainScript), []byte(source), 0644); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to write main script: %w", err)
	}
	if err := r.writeInfo(info); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	return nil
}

func (r *projectRepo) Remove(ctx context.Context, name string) error {
	if !domain.ValidProjectName(name) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidProjectName, name)
	}
	if err := os.RemoveAll(r.Dir(name)); err != nil {
		return fmt.Errorf("failed to remove project directory: %w", err)
	}
	return nil
}

func (r *projectRepo) ReadSource(ctx context.Context, info *domain.ProjectInfo) (string, error) {
	if err := checkPaths(info); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Join(r.Dir(info.Name), info.MainScript))
	if err != nil {
		return "", fmt.Errorf("failed to read main script: %w", err)
	}
	return string(raw), nil
}

func (r *projectRepo) ReadEnv(ctx context.Context, name string) (map[string]string, error) {
	for _, fn := range envFileNames {
		path := filepath.Join(r.Dir(name), fn)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		env, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", fn, err)
		}
		return env, nil
	}
	return map[string]string{}, nil
}

// checkPaths keeps every file a project touches inside its own directory
func checkPaths(info *domain.ProjectInfo) error {
	if !domain.ValidProjectName(info.Name) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidProjectName, info.Name)
	}
	if !domain.ValidMainScript(info.MainScript) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidMainScript, info.MainScript)
	}
	return nil
}

// writeInfo replaces project.json atomically while holding the directory lock
func (r *projectRepo) writeInfo(info *domain.ProjectInfo) error {
	dir := r.Dir(info.Name)

	lock := flock.New(filepath.Join(dir, lockFileName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock project directory: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("[ProjectRepo] failed to unlock", "project", info.Name, "error", err)
		}
	}()

	raw, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode project info: %w", err)
	}

	tmp, err := os.CreateTemp(dir, infoFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write project info: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write project info: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, infoFileName)); err != nil {
		return fmt.Errorf("failed to replace project info: %w", err)
	}
	return nil
}
