// Package web exposes the connection wizard surface: OAuth callbacks,
// credential submission, field option lookups and manual sync triggers.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/redis/tasks"
)

// Enqueuer pushes tasks onto the queue. Satisfied by redis.Client.
type Enqueuer interface {
	EnqueueTask(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error
}

type Server struct {
	registry  *integration.Registry
	accounts  models.ConnectionAccountRepository
	catalogue *alerts.Catalogue
	queue     Enqueuer
	logger    *zap.Logger
}

func NewServer(registry *integration.Registry, accounts models.ConnectionAccountRepository, catalogue *alerts.Catalogue, queue Enqueuer, logger *zap.Logger) *Server {
	return &Server{
		registry:  registry,
		accounts:  accounts,
		catalogue: catalogue,
		queue:     queue,
		logger:    logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/oauth/callback/{vendor}", s.handleOAuthCallback).Methods(http.MethodGet)
	r.HandleFunc("/integrations/{vendor}/connect", s.handleConnect).Methods(http.MethodPost)
	r.HandleFunc("/integrations/{vendor}/fields/{field}", s.handleFieldOptions).Methods(http.MethodGet)
	r.HandleFunc("/integrations/accounts/{id}/sync", s.handleManualSync).Methods(http.MethodPost)
	return r
}

// handleOAuthCallback finishes an OAuth handshake. The state parameter
// carries the connection account id minted when the wizard launched the
// consent screen.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	vendor := mux.Vars(r)["vendor"]

	adapter, err := s.registry.Get(vendor)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown vendor"})
		return
	}
	handler, ok := adapter.(integration.CallbackHandler)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "vendor does not use oauth"})
		return
	}

	accountID, err := uuid.Parse(r.URL.Query().Get("state"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid state"})
		return
	}

	account, err := s.accounts.Get(r.Context(), accountID)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown account"})
		return
	}

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if err := handler.Callback(r.Context(), account, params); err != nil {
		s.writeWizardError(w, vendor, err)
		return
	}

	if err := s.accounts.Update(r.Context(), account); err != nil {
		s.logger.Error("persist account after callback", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "persist failed"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "connected",
		"account_id": account.ID,
	})
}

type connectRequest struct {
	OrganizationID uuid.UUID      `json:"organization_id"`
	Alias          string         `json:"alias"`
	Frequency      string         `json:"frequency"`
	Settings       map[string]any `json:"settings"`
	Credentials    map[string]any `json:"credentials"`
}

// handleConnect saves a token-based connection. The adapter validates
// the credentials before anything is persisted.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	vendor := mux.Vars(r)["vendor"]

	adapter, err := s.registry.Get(vendor)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown vendor"})
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	frequency := req.Frequency
	if frequency == "" {
		frequency = models.FrequencyDaily
	}

	// Credentials live in configuration state where the adapters read
	// them and the vault encrypts them; authentication is reserved for
	// tokens the vendor hands back.
	account := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		Vendor:         vendor,
		Alias:          req.Alias,
		Status:         models.StatusPending,
		Configuration: models.ConfigurationState{
			Credentials: req.Credentials,
			Settings:    req.Settings,
			Frequency:   frequency,
		},
	}

	if connector, ok := adapter.(integration.Connector); ok {
		if err := connector.Connect(r.Context(), account); err != nil {
			s.writeWizardError(w, vendor, err)
			return
		}
	}

	if err := s.accounts.Create(r.Context(), account); err != nil {
		s.logger.Error("persist new account", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "persist failed"})
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"status":     "connected",
		"account_id": account.ID,
	})
}

// handleFieldOptions serves the pickable values for a configuration
// field, e.g. GitHub organizations or Jira projects.
func (s *Server) handleFieldOptions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vendor, field := vars["vendor"], vars["field"]

	adapter, err := s.registry.Get(vendor)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown vendor"})
		return
	}
	provider, ok := adapter.(integration.FieldOptionsProvider)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "vendor has no configurable fields"})
		return
	}

	accountID, err := uuid.Parse(r.URL.Query().Get("account_id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid account_id"})
		return
	}
	account, err := s.accounts.Get(r.Context(), accountID)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown account"})
		return
	}

	options, err := provider.FieldOptions(r.Context(), account, field)
	if err != nil {
		s.writeWizardError(w, vendor, err)
		return
	}
	if options == nil {
		options = []models.FieldOption{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"options": options})
}

// handleManualSync enqueues an immediate sync on the critical queue so
// it jumps the scheduled backlog.
func (s *Server) handleManualSync(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid account id"})
		return
	}

	account, err := s.accounts.Get(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown account"})
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "load failed"})
		return
	}

	task, err := tasks.CreateIntegrationSyncTask(account.ID, account.Vendor)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "task build failed"})
		return
	}
	if err := s.queue.EnqueueTask(r.Context(), task, asynq.Queue(tasks.QueueCritical), asynq.Unique(time.Minute)); err != nil {
		s.logger.Error("enqueue manual sync", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "enqueue failed"})
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}

// writeWizardError translates a connection failure into the payload the
// wizard renders next to the form.
func (s *Server) writeWizardError(w http.ResponseWriter, vendor string, err error) {
	entry := s.catalogue.Translate(vendor, err)

	s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error": map[string]any{
			"code":    entry.Code,
			"message": entry.WizardMessage,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("write response", zap.Error(err))
	}
}
