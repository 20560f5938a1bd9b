package analytics

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresSink upserts tallies into click_analytics in one transaction.
type PostgresSink struct {
	db *gorm.DB
}

func NewPostgresSink(db *gorm.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Migrate() error {
	return errors.Wrap(s.db.AutoMigrate(&ClickAnalytics{}), "migrate click_analytics")
}

func (s *PostgresSink) Apply(ctx context.Context, b Batch) error {
	if len(b) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, k := range b.Keys() {
			t := b[k]
			rec := ClickAnalytics{
				ShortCode:   k.ShortCode,
				Source:      k.Source,
				ClickCount:  t.Count,
				LastClickAt: t.Last,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "short_code"}, {Name: "source"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"click_count":   gorm.Expr("click_analytics.click_count + EXCLUDED.click_count"),
					"last_click_at": gorm.Expr("GREATEST(click_analytics.last_click_at, EXCLUDED.last_click_at)"),
					"updated_at":    gorm.Expr("EXCLUDED.updated_at"),
				}),
			}).Create(&rec).Error
			if err != nil {
				return errors.Wrapf(err, "upsert clicks for %q/%s", k.ShortCode, k.Source)
			}
		}
		return nil
	})
}
