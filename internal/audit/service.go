package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CompanyID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records a generic admin action (including hidden roles).
func (s *Service) LogAdminAction(ctx context.Context, companyID, actorUserID, actorRole, ip, message, metadata string) error {
	return s.Append(ctx, Event{
		CompanyID:   companyID,
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogPatternChange records a billing pattern create/delete/recompute.
func (s *Service) LogPatternChange(ctx context.Context, companyID, actorUserID, actorRole, ip, patternID, message string) error {
	return s.Append(ctx, Event{
		CompanyID:   companyID,
		Type:        EventTypePatternChange,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		PatternID:   patternID,
		Message:     message,
	})
}

// LogRecordEdit records an admin edit of a stored call record.
func (s *Service) LogRecordEdit(ctx context.Context, companyID, actorUserID, actorRole, ip, recordID, metadata string) error {
	return s.Append(ctx, Event{
		CompanyID:   companyID,
		Type:        EventTypeRecordEdit,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		RecordID:    recordID,
		Message:     "call record edited",
		Metadata:    metadata,
	})
}

// LogQuotaTopUp records a manual balance grant against an extension.
func (s *Service) LogQuotaTopUp(ctx context.Context, companyID, actorUserID, actorRole, ip, extensionID, message string) error {
	return s.Append(ctx, Event{
		CompanyID:   companyID,
		Type:        EventTypeQuotaTopUp,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		ExtensionID: extensionID,
		Message:     message,
	})
}
