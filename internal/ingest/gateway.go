package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cdr-platform/internal/billing"
	"cdr-platform/internal/cdr"
	"cdr-platform/internal/directory"
)

// AckMessage is the fixed response a PBX receives once its record is
// persisted. 3CX installations match on this string, so it never changes.
const AckMessage = "CDR received and processed"

// Processor persists and prices a draft call record.
type Processor interface {
	Process(ctx context.Context, rec billing.CallRecord) (billing.CallRecord, error)
}

// CompanyResolver maps an inbound listening port to its tenant.
type CompanyResolver interface {
	CompanyByPort(ctx context.Context, port int) (directory.Company, error)
}

// Gateway converts one raw PBX payload into a persisted call record.
// Both the TCP supervisor and the HTTP handler funnel through it, so the
// two protocols cannot drift apart on parse or tenant-resolution rules.
type Gateway struct {
	pipeline  Processor
	companies CompanyResolver
	log       *slog.Logger

	clock func() time.Time
}

func NewGateway(pipeline Processor, companies CompanyResolver, log *slog.Logger) *Gateway {
	return &Gateway{
		pipeline:  pipeline,
		companies: companies,
		log:       log,
		clock:     time.Now,
	}
}

// Submit parses one raw payload received on port and runs it through the
// pricing pipeline. Parse failures come back wrapping cdr.ErrInvalidRecord
// so callers can distinguish bad input from persistence trouble.
func (g *Gateway) Submit(ctx context.Context, port int, raw string) (billing.CallRecord, error) {
	draft, err := cdr.Parse(raw, g.clock().UTC())
	if err != nil {
		g.log.Warn("rejecting malformed CDR payload", "port", port, "err", err)
		return billing.CallRecord{}, err
	}

	var companyID *string
	company, err := g.companies.CompanyByPort(ctx, port)
	if err != nil {
		// Tenant resolution creates the default company on demand, so an
		// error here is storage trouble, not configuration.
		return billing.CallRecord{}, fmt.Errorf("resolve company for port %d: %w", port, err)
	}
	companyID = &company.ID

	rec, err := g.pipeline.Process(ctx, billing.FromDraft(draft, companyID))
	if err != nil {
		return billing.CallRecord{}, fmt.Errorf("process CDR: %w", err)
	}

	g.log.Info("CDR ingested",
		"record_id", rec.ID,
		"company", company.Name,
		"caller", rec.Caller,
		"callee", rec.Callee,
		"country", rec.Country,
		"total_cost", rec.TotalCost)
	return rec, nil
}
