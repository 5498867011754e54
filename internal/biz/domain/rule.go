package domain

// Parser spec ids
const (
	ParserSpecDefault  = "default"
	ParserSpecAndroidR = "android_r"
	ParserSpecFeishu   = "feishu"
)

// Package names of known notification sources
const (
	PackageKakaoTalk = "com.kakao.talk"
	PackageFeishu    = "com.ss.android.lark"
)

// RuleData selects a parser spec for notifications of one package and user
type RuleData struct {
	PackageName  string `json:"package_name"`
	UserID       int    `json:"user_id"`
	ParserSpecID string `json:"parser_spec_id"`
}

// Matches reports whether the rule applies to the notification source
func (r RuleData) Matches(packageName string, userID int) bool {
	return r.PackageName == packageName && r.UserID == userID
}

// DefaultRule is used when no rule is configured
var DefaultRule = RuleData{
	PackageName:  PackageKakaoTalk,
	UserID:       0,
	ParserSpecID: ParserSpecDefault,
}
