package chat

import (
	"encoding/base64"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
)

// ImageDB exposes the sender profile picture of a message
type ImageDB struct {
	profile []byte
}

// NewImageDB wraps raw image bytes; nil is allowed
func NewImageDB(profile []byte) *ImageDB {
	return &ImageDB{profile: profile}
}

func (db *ImageDB) IsKind(kind domain.ArgKind) bool {
	return db != nil && kind == domain.ArgImageDB
}

// ProfileImage returns the raw image, nil when unknown
func (db *ImageDB) ProfileImage() []byte {
	return db.profile
}

// ProfileBase64 returns the image as standard base64, "" when unknown
func (db *ImageDB) ProfileBase64() string {
	if len(db.profile) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(db.profile)
}
