package repository

import (
	"context"
	"errors"

	"mission-control/pkg/db/option"

	"gorm.io/gorm"
)

type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when no row matches.
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error)
	Create(ctx context.Context, entity *T) error
	BatchCreate(ctx context.Context, entities []*T) error
	// Update applies values (a map or struct) to the row with the given id.
	Update(ctx context.Context, id string, values any) error
	BatchUpdate(ctx context.Context, entities []*T) error
	Delete(ctx context.Context, id string) error
	DeleteWhere(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return r
	}
	return &store[T]{db: tx}
}

func (r *store[T]) query(ctx context.Context, filter *T, opts []option.QueryOption) (*gorm.DB, error) {
	if r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	q := r.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		q = q.Where(filter)
	}
	for _, opt := range opts {
		q = opt(q)
	}
	return q, nil
}

func (r *store[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	q, err := r.query(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var out []*T
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *store[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	q, err := r.query(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var out T
	if err := q.Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *store[T]) Count(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error) {
	q, err := r.query(ctx, filter, opts)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *store[T]) Create(ctx context.Context, entity *T) error {
	if r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(entity).Error
}

func (r *store[T]) BatchCreate(ctx context.Context, entities []*T) error {
	if r.db == nil {
		return gorm.ErrInvalidDB
	}
	if len(entities) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(entities, 100).Error
}

func (r *store[T]) Update(ctx context.Context, id string, values any) error {
	if r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(values).Error
}

func (r *store[T]) BatchUpdate(ctx context.Context, entities []*T) error {
	if r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entities {
			if err := tx.Save(e).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *store[T]) Delete(ctx context.Context, id string) error {
	if r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *store[T]) DeleteWhere(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error) {
	q, err := r.query(ctx, filter, opts)
	if err != nil {
		return 0, err
	}

	res := q.Delete(new(T))
	return res.RowsAffected, res.Error
}
