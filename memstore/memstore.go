// Package memstore provides in-memory implementations of the model
// repositories. The engine tests run against these; the web runner can
// also use them for a database-free demo mode.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/laikahq/sync-engine/models"
)

// Stores bundles one in-memory instance of every repository sharing a
// single lock, which keeps cross-repository invariants (cascade delete)
// simple.
type Stores struct {
	mu sync.RWMutex

	orgs       map[uuid.UUID]*models.Organization
	accounts   map[uuid.UUID]*models.ConnectionAccount
	types      map[uuid.UUID]*models.ObjectType
	objects    map[uuid.UUID]*models.LaikaObject
	people     map[uuid.UUID]*models.Person
	candidates map[uuid.UUID]*models.VendorCandidate
}

func New() *Stores {
	return &Stores{
		orgs:       make(map[uuid.UUID]*models.Organization),
		accounts:   make(map[uuid.UUID]*models.ConnectionAccount),
		types:      make(map[uuid.UUID]*models.ObjectType),
		objects:    make(map[uuid.UUID]*models.LaikaObject),
		people:     make(map[uuid.UUID]*models.Person),
		candidates: make(map[uuid.UUID]*models.VendorCandidate),
	}
}

func (s *Stores) Organizations() models.OrganizationRepository      { return (*orgRepo)(s) }
func (s *Stores) Accounts() models.ConnectionAccountRepository     { return (*accountRepo)(s) }
func (s *Stores) ObjectTypes() models.ObjectTypeRepository         { return (*typeRepo)(s) }
func (s *Stores) Objects() models.LaikaObjectRepository            { return (*objectRepo)(s) }
func (s *Stores) People() models.PersonRepository                  { return (*personRepo)(s) }
func (s *Stores) VendorCandidates() models.VendorCandidateRepository { return (*candidateRepo)(s) }

type orgRepo Stores

func (r *orgRepo) Get(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, ok := r.orgs[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	cp := *org
	return &cp, nil
}

func (r *orgRepo) Create(_ context.Context, org *models.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orgs[org.ID]; ok {
		return models.ErrAlreadyExists
	}

	cp := *org
	r.orgs[org.ID] = &cp

	return nil
}

func (r *orgRepo) ListByState(_ context.Context, state string) ([]models.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Organization
	for _, org := range r.orgs {
		if org.State == state {
			out = append(out, *org)
		}
	}

	return out, nil
}

type accountRepo Stores

func (r *accountRepo) Get(_ context.Context, id uuid.UUID) (*models.ConnectionAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	cp := cloneAccount(account)
	return cp, nil
}

func (r *accountRepo) Create(_ context.Context, account *models.ConnectionAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.OrganizationID == account.OrganizationID &&
			existing.Vendor == account.Vendor && existing.Alias == account.Alias {
			return models.ErrAlreadyExists
		}
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Status == "" {
		account.Status = models.StatusPending
	}

	r.accounts[account.ID] = cloneAccount(account)

	return nil
}

func (r *accountRepo) Update(_ context.Context, account *models.ConnectionAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; !ok {
		return models.ErrNotFound
	}

	account.UpdatedAt = time.Now().UTC()
	r.accounts[account.ID] = cloneAccount(account)

	return nil
}

func (r *accountRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return models.ErrNotFound
	}

	if account.Status == models.StatusSync {
		return models.ErrAccountSyncing
	}

	delete(r.accounts, id)

	// Cascade: the account exclusively owns its objects and people.
	for oid, object := range r.objects {
		if object.ConnectionAccountID == id {
			delete(r.objects, oid)
		}
	}
	for pid, person := range r.people {
		if person.ConnectionAccountID == id {
			delete(r.people, pid)
		}
	}

	return nil
}

func (r *accountRepo) BeginSync(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return models.ErrNotFound
	}

	if account.Status == models.StatusSync {
		return models.ErrAccountSyncing
	}

	account.Status = models.StatusSync
	account.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *accountRepo) FinishSync(_ context.Context, account *models.ConnectionAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; !ok {
		return models.ErrNotFound
	}

	account.UpdatedAt = time.Now().UTC()
	r.accounts[account.ID] = cloneAccount(account)

	return nil
}

func (r *accountRepo) Siblings(_ context.Context, account *models.ConnectionAccount) ([]models.ConnectionAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ConnectionAccount
	for _, existing := range r.accounts {
		if existing.ID == account.ID {
			continue
		}
		if existing.OrganizationID == account.OrganizationID && existing.Vendor == account.Vendor {
			out = append(out, *cloneAccount(existing))
		}
	}

	return out, nil
}

func (r *accountRepo) ListSchedulable(_ context.Context) ([]models.ConnectionAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ConnectionAccount
	for _, account := range r.accounts {
		org, ok := r.orgs[account.OrganizationID]
		if !ok || org.State != models.OrgStateActive {
			continue
		}
		out = append(out, *cloneAccount(account))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })

	return out, nil
}

type typeRepo Stores

func (r *typeRepo) GetByTypeName(_ context.Context, orgID uuid.UUID, typeName string) (*models.ObjectType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.types {
		if t.OrganizationID == orgID && t.TypeName == typeName {
			cp := cloneType(t)
			return cp, nil
		}
	}

	return nil, models.ErrNotFound
}

func (r *typeRepo) Create(_ context.Context, objectType *models.ObjectType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.types {
		if t.OrganizationID == objectType.OrganizationID && t.TypeName == objectType.TypeName {
			return models.ErrAlreadyExists
		}
	}

	r.types[objectType.ID] = cloneType(objectType)

	return nil
}

func (r *typeRepo) ReplaceAttributes(_ context.Context, objectTypeID uuid.UUID, attrs []models.ObjectAttribute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.types[objectTypeID]
	if !ok {
		return models.ErrNotFound
	}

	t.Attributes = append([]models.ObjectAttribute(nil), attrs...)

	return nil
}

type objectRepo Stores

func (r *objectRepo) Get(_ context.Context, id uuid.UUID) (*models.LaikaObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	object, ok := r.objects[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	return cloneObject(object), nil
}

func (r *objectRepo) Create(_ context.Context, object *models.LaikaObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.objects[object.ID]; ok {
		return models.ErrAlreadyExists
	}

	r.objects[object.ID] = cloneObject(object)

	return nil
}

func (r *objectRepo) Update(_ context.Context, object *models.LaikaObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.objects[object.ID]; !ok {
		return models.ErrNotFound
	}

	r.objects[object.ID] = cloneObject(object)

	return nil
}

// FindByData considers soft-deleted rows too; a reappearing record must
// revive its old row. A live row wins over a deleted one.
func (r *objectRepo) FindByData(_ context.Context, objectTypeID, accountID uuid.UUID, keys map[string]any) (*models.LaikaObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var deleted *models.LaikaObject

	for _, object := range r.objects {
		if object.ObjectTypeID != objectTypeID || object.ConnectionAccountID != accountID {
			continue
		}

		match := true
		for k, v := range keys {
			if fmt.Sprintf("%v", object.Data[k]) != fmt.Sprintf("%v", v) {
				match = false
				break
			}
		}
		if !match {
			continue
		}

		if object.DeletedAt == nil {
			return cloneObject(object), nil
		}
		if deleted == nil {
			deleted = object
		}
	}

	if deleted != nil {
		return cloneObject(deleted), nil
	}

	return nil, models.ErrNotFound
}

func (r *objectRepo) LoadIDIndex(_ context.Context, objectTypeID, accountID uuid.UUID, key string) (map[string]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Deleted rows are indexed too so an upsert can revive them, but a
	// live row always claims the key.
	index := make(map[string]uuid.UUID)
	for _, object := range r.objects {
		if object.ObjectTypeID != objectTypeID || object.ConnectionAccountID != accountID {
			continue
		}

		value := fmt.Sprintf("%v", object.Data[key])
		if object.DeletedAt == nil {
			index[value] = object.ID
			continue
		}
		if _, ok := index[value]; !ok {
			index[value] = object.ID
		}
	}

	return index, nil
}

func (r *objectRepo) SoftDeleteExcept(_ context.Context, objectTypeID, accountID uuid.UUID, keep []uuid.UUID, lookup *models.DataLookup) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keepSet := make(map[uuid.UUID]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	now := time.Now().UTC()

	var deleted int64
	for _, object := range r.objects {
		if object.ObjectTypeID != objectTypeID || object.ConnectionAccountID != accountID || object.DeletedAt != nil {
			continue
		}
		if _, ok := keepSet[object.ID]; ok {
			continue
		}
		if lookup != nil && !matchLookup(object.Data, lookup) {
			continue
		}

		object.DeletedAt = &now
		deleted++
	}

	return deleted, nil
}

func (r *objectRepo) CountByAccount(_ context.Context, accountID uuid.UUID) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, object := range r.objects {
		if object.ConnectionAccountID != accountID || object.DeletedAt != nil {
			continue
		}
		if t, ok := r.types[object.ObjectTypeID]; ok {
			counts[t.TypeName]++
		}
	}

	return counts, nil
}

func (r *objectRepo) RewriteData(_ context.Context, objectTypeID uuid.UUID, fn func(map[string]any) map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, object := range r.objects {
		if object.ObjectTypeID != objectTypeID {
			continue
		}
		object.Data = fn(object.Data)
	}

	return nil
}

type personRepo Stores

func (r *personRepo) GetByExternalID(_ context.Context, accountID uuid.UUID, externalID string) (*models.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.people {
		if p.ConnectionAccountID == accountID && p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}

	return nil, models.ErrNotFound
}

func (r *personRepo) Upsert(_ context.Context, person *models.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	for _, existing := range r.people {
		if existing.ConnectionAccountID == person.ConnectionAccountID && existing.ExternalID == person.ExternalID {
			person.ID = existing.ID
			person.CreatedAt = existing.CreatedAt
			person.UpdatedAt = now
			cp := *person
			r.people[existing.ID] = &cp
			return nil
		}
	}

	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}
	person.CreatedAt = now
	person.UpdatedAt = now

	cp := *person
	r.people[person.ID] = &cp

	return nil
}

func (r *personRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]models.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Person
	for _, p := range r.people {
		if p.ConnectionAccountID == accountID {
			out = append(out, *p)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })

	return out, nil
}

func (r *personRepo) SetManager(_ context.Context, personID, managerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.people[personID]
	if !ok {
		return models.ErrNotFound
	}

	id := managerID
	p.ManagerID = &id

	return nil
}

type candidateRepo Stores

func (r *candidateRepo) GetByName(_ context.Context, orgID uuid.UUID, name string) (*models.VendorCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.candidates {
		if c.OrganizationID == orgID && strings.EqualFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}

	return nil, models.ErrNotFound
}

func (r *candidateRepo) Upsert(_ context.Context, candidate *models.VendorCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	for _, existing := range r.candidates {
		if existing.OrganizationID == candidate.OrganizationID && strings.EqualFold(existing.Name, candidate.Name) {
			candidate.ID = existing.ID
			candidate.CreatedAt = existing.CreatedAt
			candidate.UpdatedAt = now
			cp := *candidate
			r.candidates[existing.ID] = &cp
			return nil
		}
	}

	if candidate.ID == uuid.Nil {
		candidate.ID = uuid.New()
	}
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	cp := *candidate
	r.candidates[candidate.ID] = &cp

	return nil
}

func (r *candidateRepo) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]models.VendorCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.VendorCandidate
	for _, c := range r.candidates {
		if c.OrganizationID == orgID {
			out = append(out, *c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func matchLookup(data map[string]any, lookup *models.DataLookup) bool {
	cmp, ok := compareValues(data[lookup.Key], lookup.Value)
	if !ok {
		return false
	}

	switch lookup.Op {
	case "gt":
		return cmp > 0
	case "gte":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "lte":
		return cmp <= 0
	case "eq":
		return cmp == 0
	default:
		return false
	}
}

func compareValues(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}

func cloneAccount(a *models.ConnectionAccount) *models.ConnectionAccount {
	cp := *a
	cp.Authentication = cloneMap(a.Authentication)
	cp.Result = cloneMap(a.Result)
	cp.Configuration.Credentials = cloneMap(a.Configuration.Credentials)
	cp.Configuration.Settings = cloneMap(a.Configuration.Settings)
	return &cp
}

func cloneType(t *models.ObjectType) *models.ObjectType {
	cp := *t
	cp.Attributes = append([]models.ObjectAttribute(nil), t.Attributes...)
	return &cp
}

func cloneObject(o *models.LaikaObject) *models.LaikaObject {
	cp := *o
	cp.Data = cloneMap(o.Data)
	if o.DeletedAt != nil {
		ts := *o.DeletedAt
		cp.DeletedAt = &ts
	}
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
