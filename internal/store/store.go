// Package store persists templates, documents and version chains with GORM.
//
// Stores accept a context on every call. When the context carries a
// transaction started by Transactor.ExecTx, the store joins it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

type txKey struct{}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

// Transactor runs functions inside a database transaction.
type Transactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor for db.
func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// ExecTx runs fn in a transaction that commits when fn returns nil and rolls
// back otherwise, including when ctx is cancelled. A call made with a context
// that already carries a transaction joins it.
func (t *Transactor) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// notFound maps gorm's not-found error onto ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Paging is the page/limit pair shared by list filters.
type Paging struct {
	Page  int // 1-based
	Limit int
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Normalize fills defaults and clamps the limit.
func (p Paging) Normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset is the number of rows skipped before the page.
func (p Paging) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// orderClause builds an ORDER BY from a whitelisted sort key.
func orderClause(sortBy, sortOrder string, allowed map[string]string, fallback string) string {
	col, ok := allowed[sortBy]
	if !ok {
		col = allowed[fallback]
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

// likePattern escapes LIKE wildcards and wraps s for a contains match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}
