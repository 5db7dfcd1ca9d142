package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeIntegrationSync = "integration:sync"
	TypeHealthCheck     = "health:check"
)

// Queue names, in priority order.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// IntegrationSyncPayload identifies the connection account a worker
// should sync. The vendor rides along so the worker can pick the adapter
// without loading the account first.
type IntegrationSyncPayload struct {
	ConnectionAccountID uuid.UUID `json:"connection_account_id"`
	Vendor              string    `json:"vendor"`
}

// CreateIntegrationSyncTask builds a sync task for the given account.
func CreateIntegrationSyncTask(accountID uuid.UUID, vendor string) (*asynq.Task, error) {
	payload := IntegrationSyncPayload{
		ConnectionAccountID: accountID,
		Vendor:              vendor,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal sync payload: %w", err)
	}
	return asynq.NewTask(TypeIntegrationSync, data), nil
}
