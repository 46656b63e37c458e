package repository

import (
	"context"
	"fmt"

	"mission-control/pkg/db/option"
	"mission-control/pkg/db/pagination"

	"gorm.io/gorm"
)

// After continues a listing ordered by (column DESC, id DESC) past the row
// whose id is cursor. An empty cursor yields a no-op option; an unknown one
// yields pagination.ErrInvalidCursor.
func After[T any](ctx context.Context, r Repository[T], cursor, column string, key func(*T) int64) (option.QueryOption, error) {
	if cursor == "" {
		return func(db *gorm.DB) *gorm.DB { return db }, nil
	}

	row, err := r.FindOne(ctx, nil, option.WithWhere("id = ?", cursor))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pagination.ErrInvalidCursor
	}

	v := key(row)
	return option.WithWhere(
		fmt.Sprintf("((%[1]s < ?) OR (%[1]s = ? AND id < ?))", column),
		v, v, cursor,
	), nil
}
