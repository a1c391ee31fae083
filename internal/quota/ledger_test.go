package quota

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func newMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l := NewLedger(db, slog.Default())
	l.clock = func() time.Time { return time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC) }
	return l, mock
}

func quotaRows(total, used string, lastReset time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "extension_id", "quota_id", "total_amount", "used_amount", "last_reset"}).
		AddRow("uq1", "ext1", nil, total, used, lastReset)
}

func TestDeductBalanceSuccess(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM user_quotas`).
		WithArgs("ext1").
		WillReturnRows(quotaRows("100.00", "10.00", time.Now()))
	mock.ExpectExec(`UPDATE user_quotas`).
		WithArgs("ext1", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := l.DeductBalance(context.Background(), "ext1", dec("25.00")); err != nil {
		t.Fatalf("DeductBalance: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeductBalanceInsufficient(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM user_quotas`).
		WithArgs("ext1").
		WillReturnRows(quotaRows("100.00", "90.00", time.Now()))
	mock.ExpectRollback()

	err := l.DeductBalance(context.Background(), "ext1", dec("25.00"))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeductBalanceRejectsNonPositive(t *testing.T) {
	l, _ := newMockLedger(t)

	for _, amt := range []decimal.Decimal{decimal.Zero, dec("-5")} {
		if err := l.DeductBalance(context.Background(), "ext1", amt); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: err = %v, want ErrInvalidAmount", amt, err)
		}
	}
}

func TestAddCustomBalanceRejectsNonPositive(t *testing.T) {
	l, _ := newMockLedger(t)

	_, err := l.AddCustomBalance(context.Background(), "ext1", decimal.Zero, "admin", "owner", "topup")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestAddCustomBalanceRecordsAdjustment(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM user_quotas`).
		WithArgs("ext1").
		WillReturnRows(quotaRows("100.00", "10.00", time.Now()))
	mock.ExpectExec(`UPDATE user_quotas`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO quota_adjustments`).
		WithArgs(sqlmock.AnyArg(), "ext1", "admin", "owner", sqlmock.AnyArg(), "topup", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	uq, err := l.AddCustomBalance(context.Background(), "ext1", dec("50.00"), "admin", "owner", "topup")
	if err != nil {
		t.Fatalf("AddCustomBalance: %v", err)
	}
	if !uq.TotalAmount.Equal(dec("150.00")) {
		t.Fatalf("total = %s, want 150.00", uq.TotalAmount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyDeltaDebitAndCredit(t *testing.T) {
	l, mock := newMockLedger(t)

	// Debit path.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM user_quotas`).
		WithArgs("ext1").
		WillReturnRows(quotaRows("100.00", "10.00", time.Now()))
	mock.ExpectExec(`UPDATE user_quotas`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := l.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	res, err := l.ApplyDelta(context.Background(), tx, "ext1", dec("1.50"))
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if res.Insufficient || res.Reset {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.Quota.UsedAmount.Equal(dec("11.50")) {
		t.Fatalf("used = %s, want 11.50", res.Quota.UsedAmount)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Credit path (cost reduced on edit).
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM user_quotas`).
		WithArgs("ext1").
		WillReturnRows(quotaRows("100.00", "11.50", time.Now()))
	mock.ExpectExec(`UPDATE user_quotas`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err = l.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	res, err = l.ApplyDelta(context.Background(), tx, "ext1", dec("-0.50"))
	if err != nil {
		t.Fatalf("ApplyDelta credit: %v", err)
	}
	if !res.Quota.TotalAmount.Equal(dec("100.50")) {
		t.Fatalf("total = %s, want 100.50", res.Quota.TotalAmount)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyDeltaInsufficientLeavesBalance(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM user_quotas`).
		WithArgs("ext1").
		WillReturnRows(quotaRows("100.00", "99.00", time.Now()))
	mock.ExpectExec(`UPDATE user_quotas`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := l.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	res, err := l.ApplyDelta(context.Background(), tx, "ext1", dec("5.00"))
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if !res.Insufficient {
		t.Fatalf("expected Insufficient, got %+v", res)
	}
	if !res.Quota.UsedAmount.Equal(dec("99.00")) {
		t.Fatalf("used mutated on insufficient debit: %s", res.Quota.UsedAmount)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}
