package model

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Create the database schema for all models
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, m := range []interface{}{
		(*Calendar)(nil),
	} {
		if _, err := db.NewCreateTable().
			Model(m).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("CreateSchema: %w", err)
		}
	}
	return nil
}
