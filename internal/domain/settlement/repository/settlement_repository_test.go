package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestEligibilityScope(t *testing.T) {
	t.Run("Only cancelled and refunded orders are excluded", func(t *testing.T) {
		// 驳回退款 (refund_rejected) 与处理中的退款申请不得出局，
		// 否则品牌在这些订单上的营收会凭空消失
		assert.Contains(t, settlementSummaryQuery, "o.lifecycle_status NOT IN ('cancelled', 'refunded')")
		assert.NotContains(t, settlementSummaryQuery, "= 'completed'")
	})

	t.Run("Query sent to the database carries the exclusion predicate", func(t *testing.T) {
		sdb, mock := newMockDB(t)
		repo := &settlementRepository{sdb: sdb}

		from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)

		rows := sqlmock.NewRows([]string{"brand_id", "brand_name", "revenue", "eligible_orders"}).
			AddRow("brand-1", "Maison Nord", "1500.00", 2)

		mock.ExpectQuery(`lifecycle_status NOT IN \('cancelled', 'refunded'\)`).
			WithArgs(from, to).
			WillReturnRows(rows)

		result, err := repo.SettlementSummary(from, to)

		assert.NoError(t, err)
		assert.Len(t, result, 1)
		assert.True(t, result[0].Revenue.Equal(decimal.NewFromInt(1500)))
		assert.Equal(t, int64(2), result[0].EligibleOrders)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Brand-scoped query keeps the same predicate", func(t *testing.T) {
		sdb, mock := newMockDB(t)
		repo := &settlementRepository{sdb: sdb}

		from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)

		rows := sqlmock.NewRows([]string{"brand_id", "brand_name", "revenue", "eligible_orders"}).
			AddRow("brand-1", "Maison Nord", "1500.00", 2)

		mock.ExpectQuery(`o\.brand_id = \$3\s+AND o\.lifecycle_status NOT IN \('cancelled', 'refunded'\)`).
			WithArgs(from, to, "brand-1").
			WillReturnRows(rows)

		row, err := repo.BrandSummary("brand-1", from, to)

		assert.NoError(t, err)
		assert.True(t, row.Revenue.Equal(decimal.NewFromInt(1500)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Net revenue sums totals minus refunds", func(t *testing.T) {
		assert.Contains(t, settlementSummaryQuery, "SUM(o.total_amount - o.refunded_amount)")
	})
}

func TestSettlementSummary(t *testing.T) {
	sdb, mock := newMockDB(t)
	repo := &settlementRepository{sdb: sdb}

	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	t.Run("Aggregates per brand", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"brand_id", "brand_name", "revenue", "eligible_orders"}).
			AddRow("brand-1", "Maison Nord", "100000.00", 50).
			AddRow("brand-2", "Atelier Kö", "2400.50", 3)

		mock.ExpectQuery(`SELECT\s+o\.brand_id`).
			WithArgs(from, to).
			WillReturnRows(rows)

		result, err := repo.SettlementSummary(from, to)

		assert.NoError(t, err)
		assert.Len(t, result, 2)
		assert.Equal(t, "brand-1", result[0].BrandID)
		assert.True(t, result[0].Revenue.Equal(decimal.NewFromInt(100000)))
		assert.Equal(t, int64(50), result[0].EligibleOrders)
		assert.True(t, result[1].Revenue.Equal(decimal.RequireFromString("2400.50")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty period yields empty slice", func(t *testing.T) {
		mock.ExpectQuery(`SELECT\s+o\.brand_id`).
			WithArgs(from, to).
			WillReturnRows(sqlmock.NewRows([]string{"brand_id", "brand_name", "revenue", "eligible_orders"}))

		result, err := repo.SettlementSummary(from, to)

		assert.NoError(t, err)
		assert.Empty(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBrandSummary(t *testing.T) {
	sdb, mock := newMockDB(t)
	repo := &settlementRepository{sdb: sdb}

	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	t.Run("Filters by brand", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"brand_id", "brand_name", "revenue", "eligible_orders"}).
			AddRow("brand-1", "Maison Nord", "100000.00", 50)

		mock.ExpectQuery(`o\.brand_id = \$3`).
			WithArgs(from, to, "brand-1").
			WillReturnRows(rows)

		row, err := repo.BrandSummary("brand-1", from, to)

		assert.NoError(t, err)
		assert.Equal(t, "brand-1", row.BrandID)
		assert.Equal(t, int64(50), row.EligibleOrders)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
