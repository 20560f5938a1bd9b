package analytics

import (
	"time"
)

// ClickAnalytics is the durable click tally of one shortcode per traffic source.
type ClickAnalytics struct {
	ShortCode   string `gorm:"primaryKey;type:varchar(20)"`
	Source      string `gorm:"primaryKey;type:varchar(16)"`
	ClickCount  int64  `gorm:"not null;default:0"`
	LastClickAt time.Time
	UpdatedAt   time.Time
}

func (ClickAnalytics) TableName() string {
	return "click_analytics"
}
