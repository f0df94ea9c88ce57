package model

import "time"

// User stores Telegram user metadata captured on first /start.
type User struct {
	UserID       int64 `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Username     *string
	FirstName    *string
	LastName     *string
	RegisteredAt time.Time `gorm:"autoCreateTime"`
	Notes        []Note    `gorm:"foreignKey:UserID;references:UserID"`
}

// DisplayName picks the first non-empty of first name and username.
func (u User) DisplayName() string {
	if u.FirstName != nil && *u.FirstName != "" {
		return *u.FirstName
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return ""
}
