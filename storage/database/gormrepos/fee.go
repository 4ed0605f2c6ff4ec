package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/fee"
)

type feeRecord struct {
	ID        string          `gorm:"primaryKey;size:36"`
	StudentID string          `gorm:"size:36;not null;index"`
	Student   *studentRecord  `gorm:"foreignKey:StudentID;references:UserID;constraint:OnDelete:CASCADE"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	DueDate   time.Time       `gorm:"type:date;not null"`
	Paid      bool            `gorm:"not null"`
}

func (feeRecord) TableName() string { return "fees" }

func fromFee(f fee.Fee) feeRecord {
	return feeRecord{
		ID:        f.ID,
		StudentID: f.StudentID,
		Amount:    f.Amount.Round(2),
		DueDate:   f.DueDate.Time,
		Paid:      f.Paid,
	}
}

func (rec feeRecord) toFee() fee.Fee {
	return fee.Fee{
		ID:        rec.ID,
		StudentID: rec.StudentID,
		Amount:    rec.Amount,
		DueDate:   fee.NewDate(rec.DueDate),
		Paid:      rec.Paid,
	}
}

type FeeRepository struct {
	repo
}

var _ fee.Repository = (*FeeRepository)(nil)

func NewFeeRepository(db *gorm.DB) *FeeRepository {
	return &FeeRepository{repo{db: db}}
}

func (r *FeeRepository) CreateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	f.ID = newID()
	rec := fromFee(f)
	if err := r.conn(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return fee.Fee{}, errors.Wrap(err, "inserting fee")
	}
	return rec.toFee(), nil
}

func (r *FeeRepository) GetFee(ctx context.Context, id string) (fee.Fee, error) {
	if !validID(id) {
		return fee.Fee{}, fee.ErrNotFound
	}
	var rec feeRecord
	if err := r.conn(ctx).Take(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fee.Fee{}, fee.ErrNotFound
		}
		return fee.Fee{}, errors.Wrap(err, "getting fee")
	}
	return rec.toFee(), nil
}

func (r *FeeRepository) QueryFees(ctx context.Context, filter fee.Filter, today fee.Date, ordering []core.DBOrdering) ([]fee.Fee, error) {
	q := r.conn(ctx).Model(&feeRecord{})
	if filter.StudentID != "" {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.Paid != nil {
		q = q.Where("paid = ?", *filter.Paid)
	}
	if filter.Overdue != nil {
		if *filter.Overdue {
			q = q.Where("paid = ? AND due_date < ?", false, today.Time)
		} else {
			q = q.Where("(paid = ? OR due_date >= ?)", true, today.Time)
		}
	}

	var recs []feeRecord
	if err := order(q, ordering, "due_date, id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "querying fees")
	}
	fees := make([]fee.Fee, 0, len(recs))
	for _, rec := range recs {
		fees = append(fees, rec.toFee())
	}
	return fees, nil
}

func (r *FeeRepository) UpdateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	rec := fromFee(f)
	res := r.conn(ctx).Model(&rec).Select("amount", "due_date", "paid").Updates(&rec)
	if res.Error != nil {
		return fee.Fee{}, errors.Wrap(res.Error, "updating fee")
	}
	if res.RowsAffected == 0 {
		return fee.Fee{}, fee.ErrNotFound
	}
	return rec.toFee(), nil
}

func (r *FeeRepository) DeleteFee(ctx context.Context, id string) error {
	res := r.conn(ctx).Where("id = ?", id).Delete(&feeRecord{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting fee")
	}
	if res.RowsAffected == 0 {
		return fee.ErrNotFound
	}
	return nil
}
