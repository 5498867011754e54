package repo

import (
	"context"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// ProjectRepo is the project repository interface
// Responsible for project directories, info files and sources
type ProjectRepo interface {
	// List returns the info of every stored project, ordered by creation time
	List(ctx context.Context) ([]domain.ProjectInfo, error)

	// LoadInfo reads the info of a single project
	LoadInfo(ctx context.Context, name string) (*domain.ProjectInfo, error)

	// SaveInfo writes the info of an existing project
	SaveInfo(ctx context.Context, info *domain.ProjectInfo) error

	// Create makes the project directory, writes info and the initial main script
	Create(ctx context.Context, info *domain.ProjectInfo, source string) error

	// Remove deletes the project directory
	Remove(ctx context.Context, name string) error

	// ReadSource reads the main script
	ReadSource(ctx context.Context, info *domain.ProjectInfo) (string, error)

	// ReadEnv reads the project environment file, empty when absent
	ReadEnv(ctx context.Context, name string) (map[string]string, error)

	// Dir returns the directory that holds the project
	Dir(name string) string
}
