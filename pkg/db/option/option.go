package option

import (
	"strings"

	"mission-control/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ      Operator = "="
	NEQ     Operator = "<>"
	GT      Operator = ">"
	GTE     Operator = ">="
	LT      Operator = "<"
	LTE     Operator = "<="
	IN      Operator = "IN"
	LIKE    Operator = "LIKE"
	IsNull  Operator = "IS NULL"
	NotNull Operator = "IS NOT NULL"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

const defaultSortColumn = "created_at"

// ApplyPagination limits the query to one row more than the page size so the
// caller can tell whether another page exists.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if p.Limit <= 0 {
			return db
		}
		return db.Limit(p.Limit + 1)
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}

// WithSortBy appends an ORDER BY term. Columns outside Allow fall back to
// created_at; calling it several times yields a compound ordering.
func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := s.SortBy
		if column == "" || (s.Allow != nil && !s.Allow[column]) {
			column = defaultSortColumn
		}
		return db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: column},
			Desc:   strings.EqualFold(s.OrderBy, "desc"),
		})
	}
}

func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		col := clause.Column{Name: c.Field}
		switch c.Operator {
		case EQ:
			return db.Where(clause.Eq{Column: col, Value: c.Value})
		case NEQ:
			return db.Where(clause.Neq{Column: col, Value: c.Value})
		case GT:
			return db.Where(clause.Gt{Column: col, Value: c.Value})
		case GTE:
			return db.Where(clause.Gte{Column: col, Value: c.Value})
		case LT:
			return db.Where(clause.Lt{Column: col, Value: c.Value})
		case LTE:
			return db.Where(clause.Lte{Column: col, Value: c.Value})
		case IN:
			values, _ := c.Value.([]any)
			if values == nil {
				if ss, ok := c.Value.([]string); ok {
					for _, s := range ss {
						values = append(values, s)
					}
				}
			}
			if len(values) == 0 {
				return db.Where("1 = 0")
			}
			return db.Where(clause.IN{Column: col, Values: values})
		case LIKE:
			return db.Where(clause.Like{Column: col, Value: c.Value})
		case IsNull:
			return db.Where(clause.Expr{SQL: "? IS NULL", Vars: []any{col}})
		case NotNull:
			return db.Where(clause.Expr{SQL: "? IS NOT NULL", Vars: []any{col}})
		default:
			return db
		}
	}
}

func WithWhere(query any, args ...any) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

// LockingUpdate adds SELECT ... FOR UPDATE. Dialects without row locks
// (sqlite) ignore the clause.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}
