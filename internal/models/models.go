package models

import (
	"strings"
	"time"
)

// User represents an operator account that can sign in to the back office.
type User struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role is the closed set of roles a profile may carry.
type Role string

const (
	RoleUnknown Role = ""
	RoleMember  Role = "member"
	RoleEditor  Role = "editor"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a stored role string onto the Role enum. Unrecognised values
// become RoleUnknown, which never grants access.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleMember:
		return RoleMember
	case RoleEditor:
		return RoleEditor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// Profile holds the per-user authorization record.
type Profile struct {
	UserID    string
	Role      Role
	CreatedAt time.Time
}

// Category is the service category a training video belongs to.
type Category string

const (
	CategoryOnboarding Category = "onboarding"
	CategoryProduct    Category = "product"
	CategorySales      Category = "sales"
	CategorySupport    Category = "support"
	CategoryCompliance Category = "compliance"
	CategoryWebinar    Category = "webinar"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryOnboarding,
	CategoryProduct,
	CategorySales,
	CategorySupport,
	CategoryCompliance,
	CategoryWebinar,
}

// ParseCategory validates a raw category string.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// VideoRecord is a curated training video as persisted by the record store.
// VideoID is derived from URL and is never read back from storage.
type VideoRecord struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Category        Category  `json:"category"`
	Description     string    `json:"description"`
	VideoID         string    `json:"videoId"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	DurationSeconds int       `json:"durationSeconds"`
	ViewCount       int64     `json:"viewCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
