package gormrepos_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/fee"
	"github.com/trezcool/muziki/storage/database/gormrepos"
	"github.com/trezcool/muziki/testutil"
)

func TestFeeRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	repo := gormrepos.NewFeeRepository(db)

	johannes := testutil.CreateStudent(t, db, "Johannes", "johannes", "")
	aaron := testutil.CreateStudent(t, db, "Aaron", "aaron", "")
	overdue := testutil.CreateFee(t, db, johannes.UserID, "120.50", "2026-09-01", false)
	settled := testutil.CreateFee(t, db, johannes.UserID, "80", "2026-08-01", true)
	upcoming := testutil.CreateFee(t, db, aaron.UserID, "99.99", "2026-11-01", false)

	got, err := repo.GetFee(ctx, overdue.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("120.5").Equal(got.Amount))
	assert.Equal(t, "2026-09-01", got.DueDate.String())
	assert.False(t, got.Paid)
	_, err = repo.GetFee(ctx, "nope")
	assert.Equal(t, fee.ErrNotFound, err)

	today, err := fee.ParseDate("2026-10-19")
	require.NoError(t, err)
	yes, no := true, false
	tests := []struct {
		name     string
		filter   fee.Filter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all by due date", want: []string{settled.ID, overdue.ID, upcoming.ID}},
		{name: "student", filter: fee.Filter{StudentID: aaron.UserID}, want: []string{upcoming.ID}},
		{name: "paid", filter: fee.Filter{Paid: &yes}, want: []string{settled.ID}},
		{name: "unpaid", filter: fee.Filter{Paid: &no}, want: []string{overdue.ID, upcoming.ID}},
		{name: "overdue", filter: fee.Filter{Overdue: &yes}, want: []string{overdue.ID}},
		{name: "not overdue", filter: fee.Filter{Overdue: &no}, want: []string{settled.ID, upcoming.ID}},
		{name: "by amount", ordering: []core.DBOrdering{{Field: "amount", Ascending: false}}, want: []string{overdue.ID, upcoming.ID, settled.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fees, err := repo.QueryFees(ctx, tc.filter, today, tc.ordering)
			require.NoError(t, err)
			ids := make([]string, 0, len(fees))
			for _, f := range fees {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}

	got.Paid = true
	_, err = repo.UpdateFee(ctx, got)
	require.NoError(t, err)
	got, err = repo.GetFee(ctx, overdue.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)

	require.NoError(t, repo.DeleteFee(ctx, overdue.ID))
	assert.Equal(t, fee.ErrNotFound, repo.DeleteFee(ctx, overdue.ID))
	_, err = repo.UpdateFee(ctx, got)
	assert.Equal(t, fee.ErrNotFound, err)
}
