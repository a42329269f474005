package models

import (
	"time"
)

// CacheEntry stores a counter or value for the database-backed cache used
// when Redis is disabled.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:255"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name used by migrations.
func (CacheEntry) TableName() string {
	return "cache_entries"
}
