// Package stream provides DynamoDB Streams handlers that finish cascading
// deletes out-of-band.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/weft/engine"
)

// Handler sweeps descendant records after a collection or account entity
// row is removed. The synchronous cascade normally empties a collection
// before its entity goes away; the sweeper repairs interrupted cascades
// and entity rows removed out-of-band (console, TTL). Idempotent, so a
// retried stream batch is harmless.
type Handler struct {
	records *engine.Records
	cols    *engine.Collections
	logger  *slog.Logger
}

// NewHandler creates a stream handler.
func NewHandler(records *engine.Records, cols *engine.Collections, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		records: records,
		cols:    cols,
		logger:  logger,
	}
}

// HandleSweep processes DynamoDB stream events from the collections and
// accounts tables. Designed to be used as an AWS Lambda handler.
func (h *Handler) HandleSweep(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord handles a single stream record. Only REMOVE events matter;
// the removed image tells us which entity kind disappeared.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	image := record.Change.OldImage
	name := getStringAttr(image, "name")
	account := getStringAttr(image, "account")

	switch {
	case account != "":
		// Collection entity row: drop whatever records are left in it.
		col := engine.Collection{Account: account, Name: name}
		h.logger.Info("sweeping collection", "account", account, "collection", name)
		if err := h.records.DeleteAll(ctx, col); err != nil {
			return fmt.Errorf("sweep collection %s/%s: %w", account, name, err)
		}
	case name != "":
		// Account entity row: wipe every remaining collection.
		h.logger.Info("sweeping account", "account", name)
		if err := h.cols.Wipe(ctx, name); err != nil {
			return fmt.Errorf("sweep account %s: %w", name, err)
		}
	}
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
