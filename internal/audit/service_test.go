package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresCompanyAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdminAction}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{CompanyID: "c"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogQuotaTopUp(context.Background(), "c1", "u", "super_admin", "1.2.3.4", "ext1", "granted 50"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeQuotaTopUp {
		t.Fatalf("expected quota_topup")
	}
	if evs[0].ExtensionID != "ext1" || evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("event not normalized: %+v", evs[0])
	}
}
