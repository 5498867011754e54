package repo

import (
	"context"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// RuleRepo is the notification rule repository interface
type RuleRepo interface {
	// List returns the rules in priority order
	List(ctx context.Context) ([]domain.RuleData, error)

	// Replace atomically replaces every rule
	Replace(ctx context.Context, rules []domain.RuleData) error
}
