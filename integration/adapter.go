package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/objectstore"
)

// RunContext is everything an adapter gets for one sync invocation.
type RunContext struct {
	Account  *models.ConnectionAccount
	Run      *objectstore.Run
	Resolver *objectspec.Resolver
	Stats    *Stats
	Logger   *zap.Logger
}

// Adapter is one vendor's sync implementation. Run fetches everything the
// credentials reach, upserts it through the run's object store session and
// cleans up what it no longer sees.
type Adapter interface {
	Vendor() string
	Metadata() models.Metadata
	Run(ctx context.Context, rc *RunContext) error
}

// Connector validates credentials and prefetches field options when a
// connection is first saved. Token-based adapters implement it.
type Connector interface {
	Connect(ctx context.Context, account *models.ConnectionAccount) error
}

// CallbackHandler finishes an OAuth handshake. The params map carries the
// callback query string; a missing "code" key is a denial of consent.
type CallbackHandler interface {
	Callback(ctx context.Context, account *models.ConnectionAccount, params map[string]string) error
}

// TokenRefresher renews a stored OAuth token ahead of a run. A vendor
// handing back an empty token is logged and ignored, keeping the stored
// one; only a failed exchange is an error.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, account *models.ConnectionAccount) error
}

// FieldOptionsProvider serves pickable values for a configuration field,
// e.g. Jira projects or GitHub organizations.
type FieldOptionsProvider interface {
	FieldOptions(ctx context.Context, account *models.ConnectionAccount, field string) ([]models.FieldOption, error)
}

// Registry holds the known adapters keyed by vendor name. Lookups are
// case-insensitive; URLs and task payloads spell vendors differently.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register panics on a duplicate vendor; registration happens once at
// startup and a collision is a wiring bug.
func (r *Registry) Register(a Adapter) {
	key := strings.ToLower(a.Vendor())
	if _, ok := r.adapters[key]; ok {
		panic(fmt.Sprintf("integration: adapter %q registered twice", a.Vendor()))
	}
	r.adapters[key] = a
}

func (r *Registry) Get(vendor string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(vendor)]
	if !ok {
		return nil, fmt.Errorf("integration: unknown vendor %q", vendor)
	}
	return a, nil
}

// Vendors returns the registered vendor names, sorted.
func (r *Registry) Vendors() []string {
	out := make([]string, 0, len(r.adapters))
	for v := range r.adapters {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
