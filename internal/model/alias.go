package model

import "time"

// AliasAsset maps description keywords to a display label.
type AliasAsset struct {
	CreatedAt time.Time
	UserID    string
	Alias     string
	KeyWords  string
	LogoURL   string
	ID        int64
}
