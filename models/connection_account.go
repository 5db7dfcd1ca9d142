package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Connection account statuses. A transition into StatusSync is mutually
// exclusive per account; it is the per-account run lock.
const (
	StatusPending = "pending"
	StatusSync    = "sync"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Sync frequencies.
const (
	FrequencyDaily  = "DAILY"
	FrequencyWeekly = "WEEKLY"
)

// ConfigurationState is the user-managed half of a connection account.
// Credentials are encrypted in place before persistence; Settings hold
// user-visible selections (projects, groups, organizations, ...).
type ConfigurationState struct {
	Credentials       map[string]any `json:"credentials"`
	Settings          map[string]any `json:"settings"`
	LastSuccessfulRun int64          `json:"last_successful_run"`
	Frequency         string         `json:"frequency"`
	LaunchedOauth     bool           `json:"launchedOauth"`
}

// ConnectionAccount is a single authenticated link between an organization
// and a vendor. (OrganizationID, Vendor, Alias) is unique.
type ConnectionAccount struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Vendor         string    `json:"vendor"`
	Alias          string    `json:"alias"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`

	// Authentication is opaque auth state: access_token, refresh_token,
	// token_expiration, prefetch_<field> lists, site, cache.
	Authentication map[string]any     `json:"authentication"`
	Configuration  ConfigurationState `json:"configuration_state"`

	// Result holds free-form metrics from the last run.
	Result map[string]any `json:"result"`

	PeopleAmount           int `json:"people_amount"`
	DiscoveredPeopleAmount int `json:"discovered_people_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TestMode reports whether the account is flagged as a test connection;
// store writes for test connections are a no-op.
func (a *ConnectionAccount) TestMode() bool {
	if a.Configuration.Settings == nil {
		return false
	}
	v, ok := a.Configuration.Settings["testMode"].(bool)
	return ok && v
}

// PrefetchKey returns the authentication key under which option lists for
// a configuration field are cached.
func PrefetchKey(field string) string {
	return "prefetch_" + field
}

// SetPrefetchedOptions caches field options on the account so the UI can
// render selects without another vendor round trip.
func (a *ConnectionAccount) SetPrefetchedOptions(field string, options []FieldOption) {
	if a.Authentication == nil {
		a.Authentication = map[string]any{}
	}
	a.Authentication[PrefetchKey(field)] = options
}

// FieldOption is a single pickable value for a configuration field.
type FieldOption struct {
	ID    string         `json:"id"`
	Value map[string]any `json:"value"`
}

// ConnectionAccountRepository manages connection account persistence.
// BeginSync is the atomic pending->sync check-and-set; implementations
// must guarantee that exactly one caller wins when racing for the same
// account and the rest receive ErrAccountSyncing.
type ConnectionAccountRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ConnectionAccount, error)
	Create(ctx context.Context, account *ConnectionAccount) error
	Update(ctx context.Context, account *ConnectionAccount) error

	// Delete removes the account and cascades to its objects. It fails
	// with ErrAccountSyncing while a run is in flight.
	Delete(ctx context.Context, id uuid.UUID) error

	BeginSync(ctx context.Context, id uuid.UUID) error

	// FinishSync leaves the sync state, persisting status, error code and
	// run result in a single write.
	FinishSync(ctx context.Context, account *ConnectionAccount) error

	// Siblings returns the other accounts of the same vendor inside the
	// organization, used by the duplicate connection guard.
	Siblings(ctx context.Context, account *ConnectionAccount) ([]ConnectionAccount, error)

	// ListSchedulable returns all accounts belonging to ACTIVE
	// organizations together with their updated_at timestamps.
	ListSchedulable(ctx context.Context) ([]ConnectionAccount, error)
}
