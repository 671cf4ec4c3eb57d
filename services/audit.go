package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func newSystemLog(action, entityType string, entityID *uuid.UUID, details models.LogDetails, at time.Time) *models.SystemLog {
	entry := &models.SystemLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		Details:    details,
		Timestamp:  at,
	}
	if entityID != nil {
		id := entityID.String()
		entry.EntityID = &id
	}
	return entry
}

const maxSourceLength = 50

// validateBatch checks the batch envelope before any record is looked at
func validateBatch(count int, source, serviceName, operation string) error {
	if count == 0 {
		return shared.NewValidationError("EMPTY_BATCH", "Batch must contain at least one record", serviceName, operation)
	}
	if len(source) > maxSourceLength {
		return shared.NewValidationError("INVALID_SOURCE",
			fmt.Sprintf("Source must be at most %d characters", maxSourceLength), serviceName, operation)
	}
	return nil
}

// recordLog appends an audit row through store, which is usually the
// transaction the mutation ran in
func recordLog(ctx context.Context, store database.Store, entry *models.SystemLog) error {
	if err := store.InsertSystemLog(ctx, entry); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"source":      entry.Details.Source,
		"batch_id":    entry.Details.BatchID,
	}).Info("Mutation recorded")
	return nil
}

// recordFailure appends an error audit row outside any transaction. It is
// best effort: a failure to write it is only logged.
func recordFailure(ctx context.Context, store database.Store, entry *models.SystemLog, cause error) {
	if entry.Details.Metadata == nil {
		entry.Details.Metadata = map[string]interface{}{}
	}
	entry.Details.Metadata["error"] = cause.Error()

	fields := logrus.Fields{
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"error":       cause.Error(),
	}

	// the request context may already be cancelled
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := store.InsertSystemLog(writeCtx, entry); err != nil {
		fields["log_error"] = err.Error()
	}
	logrus.WithFields(fields).Warn("Mutation failed")
}
