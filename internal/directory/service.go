package directory

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"cdr-platform/internal/quota"
	"cdr-platform/pkg/utils"

	"github.com/google/uuid"
)

// Service is the company/extension directory. It owns tenant resolution for
// the ingest gateway and explicit extension provisioning: creating an
// extension also creates its user quota, seeded with the company's default
// policy. No save hooks, the causal chain is a plain call.
type Service struct {
	db     *sql.DB
	ledger *quota.Ledger
	log    *slog.Logger
	clock  func() time.Time
}

func NewService(db *sql.DB, ledger *quota.Ledger, log *slog.Logger) *Service {
	return &Service{db: db, ledger: ledger, log: log, clock: time.Now}
}

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// CompanyByPort resolves the tenant for an inbound PBX connection. When no
// company owns the port, the synthetic default tenant is returned, created
// on demand, so ingestion never blocks on missing configuration.
func (s *Service) CompanyByPort(ctx context.Context, port int) (Company, error) {
	c, err := getCompanyByPort(ctx, s.db, port)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Company{}, err
	}

	s.log.Warn("no company for port, using default company", "port", port)
	return s.defaultCompany(ctx)
}

func (s *Service) defaultCompany(ctx context.Context) (Company, error) {
	c, err := getCompanyByName(ctx, s.db, DefaultCompanyName)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Company{}, err
	}

	now := s.clock().UTC()
	c = Company{
		ID:        uuid.NewString(),
		Name:      DefaultCompanyName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := insertCompany(ctx, s.db, c); err != nil {
		// Lost a create race; the row exists now.
		if existing, gerr := getCompanyByName(ctx, s.db, DefaultCompanyName); gerr == nil {
			return existing, nil
		}
		return Company{}, err
	}
	return c, nil
}

// CreateCompany registers a new tenant.
func (s *Service) CreateCompany(ctx context.Context, name, address, phone string, listeningPort *int) (Company, error) {
	if name == "" {
		return Company{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	c := Company{
		ID:            uuid.NewString(),
		Name:          name,
		Address:       address,
		Phone:         phone,
		ListeningPort: listeningPort,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := insertCompany(ctx, s.db, c); err != nil {
		return Company{}, err
	}
	return c, nil
}

func (s *Service) Company(ctx context.Context, id string) (Company, error) {
	return getCompany(ctx, s.db, id)
}

func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	return listCompanies(ctx, s.db)
}

// ListeningPorts returns every distinct configured PBX feed port.
func (s *Service) ListeningPorts(ctx context.Context) ([]int, error) {
	return listListeningPorts(ctx, s.db)
}

// CreateExtension creates an extension and provisions its user quota in the
// same transaction, seeded from the company's first quota policy if one
// exists.
func (s *Service) CreateExtension(ctx context.Context, companyID, number, firstName, lastName, email string) (Extension, error) {
	if companyID == "" || number == "" {
		return Extension{}, ErrInvalidArgument
	}

	fullName := firstName
	if lastName != "" {
		if fullName != "" {
			fullName += " "
		}
		fullName += lastName
	}

	var policy *quota.Quota
	policyID, err := firstCompanyQuotaID(ctx, s.db, companyID)
	switch {
	case err == nil:
		p, err := s.ledger.Policy(ctx, policyID)
		if err != nil {
			return Extension{}, err
		}
		policy = &p
	case errors.Is(err, ErrNotFound):
		// Company has no quota policy; the extension starts unmetered.
	default:
		return Extension{}, err
	}

	now := s.clock().UTC()
	e := Extension{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Number:    number,
		FirstName: firstName,
		LastName:  lastName,
		FullName:  fullName,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertExtensionTx(ctx, tx, e); err != nil {
			return err
		}
		return s.ledger.Provision(ctx, tx, e.ID, policy)
	})
	if err != nil {
		return Extension{}, err
	}
	return e, nil
}

// FindExtension looks up an extension by dialed number within a company.
func (s *Service) FindExtension(ctx context.Context, number, companyID string) (Extension, error) {
	if number == "" || companyID == "" {
		return Extension{}, ErrInvalidArgument
	}
	return findExtension(ctx, s.db, number, companyID)
}

func (s *Service) ExtensionByID(ctx context.Context, id string) (Extension, error) {
	return getExtension(ctx, s.db, id)
}

func (s *Service) ListExtensions(ctx context.Context, companyID string) ([]Extension, error) {
	return listExtensions(ctx, s.db, companyID)
}
