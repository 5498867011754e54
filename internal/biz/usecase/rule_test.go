package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

type memRuleRepo struct {
	rules []domain.RuleData
}

func (r *memRuleRepo) List(ctx context.Context) ([]domain.RuleData, error) {
	return append([]domain.RuleData(nil), r.rules...), nil
}

func (r *memRuleRepo) Replace(ctx context.Context, rules []domain.RuleData) error {
	r.rules = append([]domain.RuleData(nil), rules...)
	return nil
}

func TestRuleUsecase_Resolve(t *testing.T) {
	ctx := context.Background()
	repo := &memRuleRepo{}

	uc := NewRuleUsecase(repo, RuleOptions{})
	rules, err := uc.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RuleData{domain.DefaultRule}, rules)

	stored := []domain.RuleData{
		{PackageName: "a", UserID: 0, ParserSpecID: "default"},
		{PackageName: "b", UserID: 10, ParserSpecID: "android_r"},
	}
	require.NoError(t, uc.Save(ctx, stored))
	rules, err = uc.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored, rules)

	assert.Error(t, uc.Save(ctx, []domain.RuleData{{PackageName: "x"}}))
}

func TestRuleUsecase_AutoRule(t *testing.T) {
	ctx := context.Background()
	repo := &memRuleRepo{rules: []domain.RuleData{{PackageName: "ignored", ParserSpecID: "default"}}}

	rules, err := NewRuleUsecase(repo, RuleOptions{AutoRule: true, PlatformSDKVersion: 33}).Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RuleData{{PackageName: domain.PackageKakaoTalk, ParserSpecID: domain.ParserSpecAndroidR}}, rules)

	assert.Equal(t, domain.ParserSpecDefault, DetectRule(29).ParserSpecID)
}
