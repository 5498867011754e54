package usecase

import (
	"context"
	"fmt"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/repo"
)

// RuleOptions control how notification rules are chosen
type RuleOptions struct {
	// AutoRule ignores stored rules and derives one from the platform
	AutoRule bool
	// PlatformSDKVersion picks the parser for the detected rule
	PlatformSDKVersion int
}

// RuleUsecase resolves the active notification rules
type RuleUsecase struct {
	ruleRepo repo.RuleRepo
	opts     RuleOptions
}

// NewRuleUsecase creates a new rule usecase
func NewRuleUsecase(ruleRepo repo.RuleRepo, opts RuleOptions) *RuleUsecase {
	return &RuleUsecase{ruleRepo: ruleRepo, opts: opts}
}

// DetectRule returns the rule for the default messenger on this platform
func DetectRule(sdkVersion int) domain.RuleData {
	spec := domain.ParserSpecDefault
	if sdkVersion >= 30 {
		spec = domain.ParserSpecAndroidR
	}
	return domain.RuleData{
		PackageName:  domain.PackageKakaoTalk,
		UserID:       0,
		ParserSpecID: spec,
	}
}

// Resolve returns the rules in priority order; never empty
func (uc *RuleUsecase) Resolve(ctx context.Context) ([]domain.RuleData, error) {
	if uc.opts.AutoRule {
		return []domain.RuleData{DetectRule(uc.opts.PlatformSDKVersion)}, nil
	}

	rules, err := uc.ruleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	if len(rules) == 0 {
		return []domain.RuleData{domain.DefaultRule}, nil
	}
	return rules, nil
}

// Stored returns the persisted rules as-is
func (uc *RuleUsecase) Stored(ctx context.Context) ([]domain.RuleData, error) {
	return uc.ruleRepo.List(ctx)
}

// Save replaces the persisted rules
func (uc *RuleUsecase) Save(ctx context.Context, rules []domain.RuleData) error {
	for i, r := range rules {
		if r.PackageName == "" || r.ParserSpecID == "" {
			return fmt.Errorf("%w: rule %d: package_name and parser_spec_id are required", domain.ErrInvalidRule, i)
		}
	}
	if err := uc.ruleRepo.Replace(ctx, rules); err != nil {
		return fmt.Errorf("replace rules: %w", err)
	}
	return nil
}

// AutoRule reports whether stored rules are ignored
func (uc *RuleUsecase) AutoRule() bool {
	return uc.opts.AutoRule
}
