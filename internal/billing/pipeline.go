package billing

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cdr-platform/internal/cdr"
	"cdr-platform/internal/directory"
	"cdr-platform/internal/pattern"
	"cdr-platform/internal/quota"
	"cdr-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Classifier maps a callee number to a geography/type label.
type Classifier interface {
	Classify(raw string) string
}

// PatternSource supplies a company's call patterns.
type PatternSource interface {
	ListForCompany(ctx context.Context, companyID string) ([]pattern.CallPattern, error)
}

// ExtensionFinder resolves the calling extension for quota debiting.
type ExtensionFinder interface {
	FindExtension(ctx context.Context, number, companyID string) (directory.Extension, error)
}

// QuotaLedger applies cost deltas inside the pipeline's transaction.
type QuotaLedger interface {
	ApplyDelta(ctx context.Context, tx *sql.Tx, extensionID string, delta decimal.Decimal) (quota.DeltaResult, error)
}

// AlertSink receives quota threshold alerts. Fire-and-forget.
type AlertSink interface {
	QuotaAlert(ctx context.Context, ext directory.Extension, uq quota.UserQuota)
}

// Pipeline prices call records and keeps prepaid quotas in sync.
//
// Every Process call runs as one transaction: classify, match patterns,
// compute cost, persist, apply the cost delta to the caller's quota. The
// delta is new total minus the previously persisted total, so re-processing
// an edited record never double-charges.
//
// Ordering invariant: the previous record row and the quota row are both
// locked inside the transaction, so two concurrent Process calls for the
// same record or the same extension serialize.
type Pipeline struct {
	db         *sql.DB
	classifier Classifier
	patterns   PatternSource
	extensions ExtensionFinder
	ledger     QuotaLedger
	alerts     AlertSink
	log        *slog.Logger
	clock      func() time.Time
}

func NewPipeline(db *sql.DB, classifier Classifier, patterns PatternSource, extensions ExtensionFinder, ledger QuotaLedger, alerts AlertSink, log *slog.Logger) *Pipeline {
	return &Pipeline{
		db:         db,
		classifier: classifier,
		patterns:   patterns,
		extensions: extensions,
		ledger:     ledger,
		alerts:     alerts,
		log:        log,
		clock:      time.Now,
	}
}

// FromDraft builds a new CallRecord from a parsed wire record for the given
// company (nil companyID for records without a resolved tenant).
func FromDraft(d cdr.Draft, companyID *string) CallRecord {
	return CallRecord{
		CompanyID:        companyID,
		Caller:           d.Caller,
		Callee:           d.Callee,
		CallTime:         d.CallTime,
		ExternalNumber:   d.Callee,
		DurationSeconds:  d.DurationSeconds,
		TimeAnswered:     d.TimeAnswered,
		TimeEnd:          d.TimeEnd,
		ReasonTerminated: d.ReasonTerminated,
		ReasonChanged:    d.ReasonChanged,
		MissedQueueCalls: d.MissedQueueCalls,
		FromNo:           d.FromNo,
		FromType:         d.FromType,
		FromDispname:     d.FromDispname,
		ToNo:             d.ToNo,
		ToDN:             d.ToDN,
		ToType:           d.ToType,
		ToDispname:       d.ToDispname,
		FinalNumber:      d.FinalNumber,
		FinalDN:          d.FinalDN,
		FinalType:        d.FinalType,
		FinalDispname:    d.FinalDispname,
	}
}

// Process prices rec and persists it. A record with an empty ID is inserted;
// otherwise this is an edit and the stored row is updated in place, with the
// quota adjusted by the cost difference.
func (p *Pipeline) Process(ctx context.Context, rec CallRecord) (CallRecord, error) {
	isEdit := rec.ID != ""
	now := p.clock().UTC()
	if !isEdit {
		rec.ID = uuid.NewString()
		rec.CreatedAt = now
	}

	var alertExt directory.Extension
	var alertQuota *quota.UserQuota

	err := utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		prevCost := decimal.Zero
		if isEdit {
			old, err := lockRecord(ctx, tx, rec.ID)
			if err != nil {
				return err
			}
			prevCost = old.TotalCost
			rec.CreatedAt = old.CreatedAt
		}

		rec.Country = p.classifier.Classify(rec.Callee)

		var pats []pattern.CallPattern
		if rec.CompanyID != nil {
			var err error
			pats, err = p.patterns.ListForCompany(ctx, *rec.CompanyID)
			if err != nil {
				return err
			}
		}
		m := pattern.MatchCallee(p.log, rec.Callee, pats)
		rec.CallCategory = m.CallType
		rec.CallRate = m.Rate
		rec.TotalCost = TotalCostFor(rec.DurationSeconds, rec.CallRate)
		rec.UpdatedAt = now

		if isEdit {
			if err := updateRecord(ctx, tx, rec); err != nil {
				return err
			}
		} else {
			if err := insertRecord(ctx, tx, rec); err != nil {
				return err
			}
		}

		ext, uq, err := p.applyQuotaDelta(ctx, tx, rec, prevCost)
		if err != nil {
			return err
		}
		if uq != nil {
			alertExt, alertQuota = ext, uq
		}
		return nil
	})
	if err != nil {
		p.log.Error("call record processing failed",
			"record_id", rec.ID, "caller", rec.Caller, "callee", rec.Callee, "err", err)
		return CallRecord{}, err
	}

	if alertQuota != nil && alertQuota.ShouldSendAlert() && p.alerts != nil {
		p.alerts.QuotaAlert(ctx, alertExt, *alertQuota)
	}
	return rec, nil
}

// applyQuotaDelta debits or credits the caller's quota by the cost change.
// A zero delta still reaches the ledger so the lazy reset check runs on
// every processed record. Missing extension or quota configuration degrades
// to a warning: billing accuracy is best-effort relative to record
// durability.
func (p *Pipeline) applyQuotaDelta(ctx context.Context, tx *sql.Tx, rec CallRecord, prevCost decimal.Decimal) (directory.Extension, *quota.UserQuota, error) {
	delta := rec.TotalCost.Sub(prevCost)
	if rec.CompanyID == nil {
		return directory.Extension{}, nil, nil
	}

	ext, err := p.extensions.FindExtension(ctx, rec.Caller, *rec.CompanyID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			p.log.Warn("no extension for caller, quota not adjusted",
				"caller", rec.Caller, "record_id", rec.ID)
			return directory.Extension{}, nil, nil
		}
		return directory.Extension{}, nil, err
	}

	res, err := p.ledger.ApplyDelta(ctx, tx, ext.ID, delta)
	if err != nil {
		if errors.Is(err, quota.ErrNotFound) {
			p.log.Warn("no quota configured for extension, quota not adjusted",
				"extension", ext.Number, "record_id", rec.ID)
			return directory.Extension{}, nil, nil
		}
		// A storage failure here has already poisoned the transaction;
		// there is nothing left to degrade to.
		return directory.Extension{}, nil, err
	}
	if res.Insufficient {
		p.log.Warn("quota exceeded for extension",
			"extension", ext.Number, "record_id", rec.ID, "delta", delta.String())
	}
	return ext, &res.Quota, nil
}

// Reprocess re-runs the pipeline for a stored record, e.g. after a pattern
// change. Delta accounting makes this idempotent.
func (p *Pipeline) Reprocess(ctx context.Context, recordID string) (CallRecord, error) {
	rec, err := getRecord(ctx, p.db, recordID)
	if err != nil {
		return CallRecord{}, err
	}
	return p.Process(ctx, rec)
}

// RecategorizeCompany re-prices a company's records whose callee matches the
// given pattern text; used after a pattern is created or edited. Returns the
// number of records reprocessed.
func (p *Pipeline) RecategorizeCompany(ctx context.Context, companyID, patternText string) (int, error) {
	prefix := strings.ReplaceAll(patternText, "x", "")
	switch patternText {
	case "+", "00":
		prefix = patternText
	case `^\d{4}$`:
		// Shape token: no useful prefix, re-check every record.
		prefix = ""
	}

	ids, err := listRecordIDsMatchingPrefix(ctx, p.db, companyID, prefix)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		if _, err := p.Reprocess(ctx, id); err != nil {
			p.log.Error("recategorization failed for record", "record_id", id, "err", err)
			continue
		}
		count++
	}
	return count, nil
}

// Record returns one stored call record.
func (p *Pipeline) Record(ctx context.Context, id string) (CallRecord, error) {
	return getRecord(ctx, p.db, id)
}

// ListRecords pages a company's records, newest first.
func (p *Pipeline) ListRecords(ctx context.Context, companyID string, limit, offset int) ([]CallRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return listRecords(ctx, p.db, companyID, limit, offset)
}
