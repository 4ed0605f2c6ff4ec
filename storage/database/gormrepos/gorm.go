// Package gormrepos implements the core repositories with gorm.
package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trezcool/muziki/core"
)

type txKey struct{}

// Transactor runs functions in a gorm transaction.
type Transactor struct {
	db *gorm.DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// InTx runs fn in a transaction, committed when fn returns nil.
// Nested calls run in the outer transaction.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

type repo struct {
	db *gorm.DB
}

// conn returns the transaction of ctx, if any, or the database.
func (r repo) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func order(q *gorm.DB, ordering []core.DBOrdering, fallback string) *gorm.DB {
	if len(ordering) == 0 {
		return q.Order(fallback)
	}
	for _, ord := range ordering {
		q = q.Order(ord.String())
	}
	return q
}

func newID() string {
	return uuid.NewString()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// AutoMigrate creates the tables of the records. Used where the SQL migrations cannot run, e.g. in tests on SQLite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRecord{},
		&teacherRecord{},
		&studentRecord{},
		&lessonPlanRecord{},
		&quizRecord{},
		&assignmentRecord{},
		&feeRecord{},
	)
}
