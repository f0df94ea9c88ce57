package model

import "time"

// Note is a short text record owned by a user.
type Note struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"index"`
	Text      string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
