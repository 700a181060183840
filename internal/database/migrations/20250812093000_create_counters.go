package migrations

import (
	"context"
	"fmt"

	"github.com/talkline/counters/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewCreateTable().
			Model((*types.UserUnreadCounter)(nil)).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create user_unread_counters table: %w", err)
		}

		// The upsert in CounterModel depends on this unique pair index
		_, err = db.NewCreateIndex().
			Model((*types.UserUnreadCounter)(nil)).
			Index("user_unread_counters_user_friend_key").
			Unique().
			IfNotExists().
			Column("user_id", "friend_id").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create unique pair index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().
			Model((*types.UserUnreadCounter)(nil)).
			IfExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop user_unread_counters table: %w", err)
		}

		return nil
	})
}
