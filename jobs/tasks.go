package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogSync upserts the built-in roles and permissions.
	TaskCatalogSync = "rbac:catalog_sync"
)

// CatalogSyncPayload carries scheduling metadata.
type CatalogSyncPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewCatalogSyncTask constructs an Asynq task for the catalog sync.
func NewCatalogSyncTask(reason string, at time.Time) (*asynq.Task, error) {
	if reason == "" {
		reason = "scheduled"
	}
	body, err := json.Marshal(CatalogSyncPayload{Reason: reason, RequestedAt: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogSync, body, asynq.Queue(QueueDefault)), nil
}
