package db

import (
	"time"

	"github.com/oggyb/muzz-matching/internal/model"
)

// Profile is the directory row behind a discovery card.
//
// Indexes:
//   - idx_active_last_seen(active, last_active_at DESC)
//     Serves the recommendation-seed query (most recently active first).
type Profile struct {
	ID                 string    `gorm:"primaryKey;size:64"`
	Username           string    `gorm:"uniqueIndex;size:64;not null"`
	DisplayName        string    `gorm:"size:128;not null"`
	Bio                string    `gorm:"size:1024"`
	AvatarURL          string    `gorm:"size:512"`
	UserType           string    `gorm:"size:32;not null"`
	VerificationStatus string    `gorm:"size:32;default:unverified"`
	City               string    `gorm:"size:128"`
	Active             bool      `gorm:"default:true;index:idx_active_last_seen,priority:1"`
	LastActiveAt       time.Time `gorm:"index:idx_active_last_seen,priority:2,sort:desc"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// Card projects the row onto the lightweight card returned to callers.
func (p Profile) Card() model.Card {
	return model.Card{
		ID:                 p.ID,
		Username:           p.Username,
		DisplayName:        p.DisplayName,
		Bio:                p.Bio,
		AvatarURL:          p.AvatarURL,
		UserType:           p.UserType,
		VerificationStatus: p.VerificationStatus,
		LastActiveAt:       p.LastActiveAt,
		City:               p.City,
	}
}
