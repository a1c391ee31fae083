package quota

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"cdr-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger provides the prepaid balance operations for user quotas.
//
// Money invariants:
//   - Every operation locks the user_quotas row before reading it, so two
//     concurrent calls for the same extension cannot lose updates.
//   - A debit that would overdraw leaves state unchanged and reports
//     ErrInsufficientBalance; it never drives UsedAmount past TotalAmount.
//   - A lazy period reset always runs before a delta is applied; the reset
//     wins over a stale cycle regardless of which caller triggered the check.
type Ledger struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

func NewLedger(db *sql.DB, log *slog.Logger) *Ledger {
	return &Ledger{db: db, log: log, clock: time.Now}
}

var (
	ErrNotFound            = errors.New("quota not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPolicy       = errors.New("invalid policy")
)

// DeltaResult describes what ApplyDelta did to the balance.
type DeltaResult struct {
	Reset        bool
	Insufficient bool
	Quota        UserQuota
}

// Get returns the current balance row with its policy joined.
func (l *Ledger) Get(ctx context.Context, extensionID string) (UserQuota, error) {
	return getUserQuota(ctx, l.db, extensionID)
}

// Policy returns a quota policy by ID.
func (l *Ledger) Policy(ctx context.Context, id string) (Quota, error) {
	return getPolicy(ctx, l.db, id)
}

// CreatePolicy registers a new quota policy for a company.
func (l *Ledger) CreatePolicy(ctx context.Context, companyID, name string, amount decimal.Decimal, freq Frequency) (Quota, error) {
	if companyID == "" || name == "" || amount.IsNegative() || !ValidFrequency(freq) {
		return Quota{}, ErrInvalidPolicy
	}
	now := l.clock().UTC()
	p := Quota{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Name:      name,
		Amount:    amount,
		Frequency: freq,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := insertPolicy(ctx, l.db, p); err != nil {
		return Quota{}, err
	}
	return p, nil
}

// ListPolicies returns a company's quota policies.
func (l *Ledger) ListPolicies(ctx context.Context, companyID string) ([]Quota, error) {
	return listPolicies(ctx, l.db, companyID)
}

// Provision creates the balance row for a new extension, seeded from the
// given policy (nil for no policy). Called explicitly by the directory when
// an extension is created; idempotent on the extension.
func (l *Ledger) Provision(ctx context.Context, tx *sql.Tx, extensionID string, policy *Quota) error {
	uq := UserQuota{
		ID:          uuid.NewString(),
		ExtensionID: extensionID,
		TotalAmount: decimal.Zero,
		UsedAmount:  decimal.Zero,
		LastReset:   l.clock().UTC(),
	}
	if policy != nil {
		uq.QuotaID = &policy.ID
		uq.TotalAmount = policy.Amount
	}
	return insertUserQuota(ctx, tx, uq)
}

// ApplyDelta adjusts the balance by the cost difference computed for a call
// record: positive deltas debit, negative deltas credit, zero is a no-op
// beyond the reset check. It runs inside the caller's transaction so the
// adjustment commits atomically with the record that caused it.
//
// Insufficient balance is a business condition, not an error: the delta is
// skipped, the fact is logged and reported in the result.
func (l *Ledger) ApplyDelta(ctx context.Context, tx *sql.Tx, extensionID string, delta decimal.Decimal) (DeltaResult, error) {
	uq, err := lockUserQuota(ctx, tx, extensionID)
	if err != nil {
		return DeltaResult{}, err
	}

	res := DeltaResult{}
	now := l.clock().UTC()
	if uq.resetDue(now) {
		l.resetLocked(&uq, now)
		res.Reset = true
	}

	switch {
	case delta.IsPositive():
		if uq.RemainingBalance().LessThan(delta) {
			l.log.Warn("quota exceeded, debit skipped",
				"extension_id", extensionID,
				"delta", delta.String(),
				"remaining", uq.RemainingBalance().String())
			res.Insufficient = true
		} else {
			uq.UsedAmount = uq.UsedAmount.Add(delta)
		}
	case delta.IsNegative():
		uq.TotalAmount = uq.TotalAmount.Add(delta.Neg())
	}

	if err := saveUserQuota(ctx, tx, uq); err != nil {
		return DeltaResult{}, err
	}
	res.Quota = uq
	return res, nil
}

// CheckAndResetIfNeeded applies a pending period reset, if any. No-op for
// quotas without a policy or with frequency "none".
func (l *Ledger) CheckAndResetIfNeeded(ctx context.Context, extensionID string) (bool, error) {
	var reset bool
	err := utils.WithTx(ctx, l.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		uq, err := lockUserQuota(ctx, tx, extensionID)
		if err != nil {
			return err
		}
		now := l.clock().UTC()
		if !uq.resetDue(now) {
			return nil
		}
		l.resetLocked(&uq, now)
		reset = true
		return saveUserQuota(ctx, tx, uq)
	})
	return reset, err
}

// DeductBalance debits amount from the extension's balance. The debit
// succeeds only if the remaining balance covers it.
func (l *Ledger) DeductBalance(ctx context.Context, extensionID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return utils.WithTx(ctx, l.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		uq, err := lockUserQuota(ctx, tx, extensionID)
		if err != nil {
			return err
		}
		if uq.RemainingBalance().LessThan(amount) {
			return ErrInsufficientBalance
		}
		uq.UsedAmount = uq.UsedAmount.Add(amount)
		return saveUserQuota(ctx, tx, uq)
	})
}

// AddBalance credits amount onto the granted total.
func (l *Ledger) AddBalance(ctx context.Context, extensionID string, amount decimal.Decimal) error {
	return utils.WithTx(ctx, l.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		uq, err := lockUserQuota(ctx, tx, extensionID)
		if err != nil {
			return err
		}
		uq.TotalAmount = uq.TotalAmount.Add(amount)
		return saveUserQuota(ctx, tx, uq)
	})
}

// AddCustomBalance is the manual top-up path: it validates the amount and
// records a QuotaAdjustment audit row alongside the credit.
func (l *Ledger) AddCustomBalance(ctx context.Context, extensionID string, amount decimal.Decimal, actorUserID, actorRole, reason string) (UserQuota, error) {
	if !amount.IsPositive() {
		return UserQuota{}, ErrInvalidAmount
	}

	var out UserQuota
	err := utils.WithTx(ctx, l.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		uq, err := lockUserQuota(ctx, tx, extensionID)
		if err != nil {
			return err
		}
		uq.TotalAmount = uq.TotalAmount.Add(amount)
		if err := saveUserQuota(ctx, tx, uq); err != nil {
			return err
		}
		if err := insertAdjustment(ctx, tx, QuotaAdjustment{
			ID:          uuid.NewString(),
			ExtensionID: extensionID,
			ActorUserID: actorUserID,
			ActorRole:   actorRole,
			Amount:      amount,
			Reason:      reason,
			CreatedAt:   l.clock().UTC(),
		}); err != nil {
			return err
		}
		out = uq
		return nil
	})
	return out, err
}

// ResetDue sweeps all policy-backed quotas and resets the ones whose period
// has elapsed. Returns the number of quotas reset.
func (l *Ledger) ResetDue(ctx context.Context) (int, error) {
	ids, err := listQuotaExtensionIDs(ctx, l.db)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		reset, err := l.CheckAndResetIfNeeded(ctx, id)
		if err != nil {
			l.log.Error("quota reset sweep failed for extension", "extension_id", id, "err", err)
			continue
		}
		if reset {
			count++
		}
	}
	return count, nil
}

// LowBalanceScan returns policy-backed quotas whose remaining balance is at
// or below half of the policy amount, for the administrative alert path.
func (l *Ledger) LowBalanceScan(ctx context.Context) ([]UserQuota, error) {
	return listLowBalance(ctx, l.db)
}

func (l *Ledger) resetLocked(uq *UserQuota, now time.Time) {
	l.log.Info("resetting quota",
		"extension_id", uq.ExtensionID,
		"old_total", uq.TotalAmount.String(),
		"policy_amount", uq.Policy.Amount.String())
	uq.TotalAmount = uq.Policy.Amount
	uq.UsedAmount = decimal.Zero
	uq.LastReset = now
}
