package directory

import "time"

// Company is the tenant root. Everything billable hangs off a company:
// extensions, call patterns, quota policies, call records.
type Company struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Address string `json:"address,omitempty" db:"address"`
	Phone   string `json:"phone,omitempty" db:"phone"`

	// ListeningPort routes inbound PBX socket connections to this tenant
	// when several feeds share one host. Nil means the company has no
	// dedicated feed.
	ListeningPort *int `json:"listening_port,omitempty" db:"listening_port"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultCompanyName is the synthetic tenant used when an inbound feed
// arrives on a port no company owns. Ingestion never blocks on missing
// configuration.
const DefaultCompanyName = "Default Company"

// Extension is an internal phone endpoint belonging to a company.
// Each extension owns exactly one user quota, provisioned on creation.
type Extension struct {
	ID        string `json:"id" db:"id"`
	CompanyID string `json:"company_id" db:"company_id"`

	// Number is the extension number as dialed, e.g. "1001".
	Number string `json:"number" db:"number"`

	FirstName string `json:"first_name,omitempty" db:"first_name"`
	LastName  string `json:"last_name,omitempty" db:"last_name"`
	FullName  string `json:"full_name,omitempty" db:"full_name"`
	Email     string `json:"email,omitempty" db:"email"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
