package notify

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cdr-platform/internal/directory"
	"cdr-platform/internal/quota"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sink delivers one notification. Implementations are expected to be
// fire-and-forget from the caller's point of view; the Service logs and
// swallows delivery errors.
type Sink interface {
	Send(ctx context.Context, recipient, subject, message string) error
}

// LogSink writes notifications to the structured log instead of an email
// or SMS provider. It is the default delivery path until a real provider
// is configured.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Send(_ context.Context, recipient, subject, message string) error {
	s.Log.Info("notification",
		"recipient", recipient,
		"subject", subject,
		"message", message)
	return nil
}

// BalanceSource lists user quotas at or below the low-balance threshold.
type BalanceSource interface {
	LowBalanceScan(ctx context.Context) ([]quota.UserQuota, error)
}

// ExtensionDirectory resolves the extension a quota row belongs to.
type ExtensionDirectory interface {
	ExtensionByID(ctx context.Context, id string) (directory.Extension, error)
}

// Config tunes the notification service.
type Config struct {
	// AdminRecipient receives low-balance alerts and stands in when an
	// extension has no email on file.
	AdminRecipient string

	// Cooldown suppresses repeat alerts for the same extension. Zero
	// disables suppression (every trigger sends).
	Cooldown time.Duration
}

// Service produces quota and low-balance alerts, records each one in the
// notifications table, and rate-limits repeats through redis. All alert
// paths are fire-and-forget: failures are logged, never propagated into
// the billing transaction that triggered them.
type Service struct {
	db         *sql.DB
	sink       Sink
	rdb        *redis.Client
	extensions ExtensionDirectory
	balances   BalanceSource
	log        *slog.Logger
	cfg        Config

	clock func() time.Time
}

func NewService(db *sql.DB, sink Sink, rdb *redis.Client, extensions ExtensionDirectory, balances BalanceSource, log *slog.Logger, cfg Config) *Service {
	return &Service{
		db:         db,
		sink:       sink,
		rdb:        rdb,
		extensions: extensions,
		balances:   balances,
		log:        log,
		cfg:        cfg,
		clock:      time.Now,
	}
}

// QuotaAlert notifies an extension that it has used 90% or more of its
// quota. Called by the billing pipeline after a record commits.
func (s *Service) QuotaAlert(ctx context.Context, ext directory.Extension, uq quota.UserQuota) {
	if !s.acquireCooldown(ctx, "quota", ext.ID) {
		return
	}

	recipient := ext.Email
	if recipient == "" {
		recipient = s.cfg.AdminRecipient
	}
	subject := fmt.Sprintf("Quota Alert for Extension %s", ext.Number)
	message := fmt.Sprintf(
		"Extension %s has used 90%% or more of its quota.\nRemaining balance: %s\nQuota amount: %s",
		ext.Number, uq.RemainingBalance(), policyAmount(uq))

	s.deliver(ctx, recipient, subject, message)
}

// LowBalanceAlert notifies the administrator that an extension's remaining
// balance has dropped to half of its quota or below.
func (s *Service) LowBalanceAlert(ctx context.Context, ext directory.Extension, uq quota.UserQuota) {
	if !s.acquireCooldown(ctx, "balance", ext.ID) {
		return
	}

	subject := fmt.Sprintf("Low Balance Alert for Extension %s", ext.Number)
	message := fmt.Sprintf(
		"The remaining balance for extension %s is at or below 50%% of its quota.\nQuota amount: %s\nRemaining balance: %s",
		ext.Number, policyAmount(uq), uq.RemainingBalance())

	s.deliver(ctx, s.cfg.AdminRecipient, subject, message)
}

// LowBalanceSweep scans all user quotas and alerts the administrator for
// each one at or below the threshold. Returns the number of alerts sent.
func (s *Service) LowBalanceSweep(ctx context.Context) (int, error) {
	quotas, err := s.balances.LowBalanceScan(ctx)
	if err != nil {
		return 0, fmt.Errorf("low balance scan: %w", err)
	}

	sent := 0
	for _, uq := range quotas {
		ext, err := s.extensions.ExtensionByID(ctx, uq.ExtensionID)
		if err != nil {
			s.log.Warn("skipping low-balance alert, extension lookup failed",
				"extension_id", uq.ExtensionID, "err", err)
			continue
		}
		s.LowBalanceAlert(ctx, ext, uq)
		sent++
	}
	return sent, nil
}

// Recent lists the most recently recorded notifications.
func (s *Service) Recent(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return listNotifications(ctx, s.db, limit)
}

func (s *Service) deliver(ctx context.Context, recipient, subject, message string) {
	if recipient == "" {
		s.log.Warn("dropping notification without recipient", "subject", subject)
		return
	}

	if err := s.sink.Send(ctx, recipient, subject, message); err != nil {
		s.log.Error("notification delivery failed", "recipient", recipient, "subject", subject, "err", err)
		return
	}

	n := Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Subject:   subject,
		Message:   message,
		CreatedAt: s.clock().UTC(),
	}
	if err := insertNotification(ctx, s.db, n); err != nil {
		s.log.Error("notification record insert failed", "recipient", recipient, "err", err)
	}
}

// acquireCooldown reports whether an alert for this extension may go out
// now. Redis being down fails open: better a duplicate email than none.
func (s *Service) acquireCooldown(ctx context.Context, kind, extensionID string) bool {
	if s.rdb == nil || s.cfg.Cooldown <= 0 {
		return true
	}
	key := fmt.Sprintf("cdr:alert:%s:%s", kind, extensionID)
	ok, err := s.rdb.SetNX(ctx, key, 1, s.cfg.Cooldown).Result()
	if err != nil {
		s.log.Warn("alert cooldown check failed", "key", key, "err", err)
		return true
	}
	if !ok {
		s.log.Debug("alert suppressed by cooldown", "key", key)
	}
	return ok
}

func policyAmount(uq quota.UserQuota) string {
	if uq.Policy == nil {
		return uq.TotalAmount.String()
	}
	return uq.Policy.Amount.String()
}
