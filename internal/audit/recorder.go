// Package audit records and exports the audit trail.
package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// Format is an export format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnknownFormat is returned by Export for formats other than json and csv.
var ErrUnknownFormat = errors.New("unknown export format")

// CSVHeader is the first row of a CSV export.
var CSVHeader = []string{"ID", "Action", "Severity", "User", "Resource Type", "Resource ID", "Timestamp", "Success"}

// Recorder appends to the audit trail. Recording never fails the caller; storage errors are
// logged. A nil Recorder discards entries.
type Recorder struct {
	store  db.AuditStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(store db.AuditStore, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

// Record stores the entry, filling in id, timestamp and severity when unset.
func (r *Recorder) Record(ctx context.Context, entry models.AuditLog) {
	if r == nil || r.store == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
		if !entry.Success {
			entry.Severity = models.SeverityWarning
		}
	}
	if err := r.store.AppendAudit(ctx, &entry); err != nil {
		r.logger.Error().Err(err).
			Str("action", entry.Action).
			Str("resource_id", entry.ResourceID).
			Msg("Failed to record audit entry")
	}
}

// Export writes the entries matching the filter to w.
func (r *Recorder) Export(ctx context.Context, w io.Writer, filter db.AuditFilter, format Format) error {
	switch format {
	case FormatJSON, FormatCSV:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	entries, err := r.store.ListAudit(ctx, filter)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}
	if entries == nil {
		entries = []*models.AuditLog{}
	}

	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return writeCSV(w, entries)
}

func writeCSV(w io.Writer, entries []*models.AuditLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.ID,
			e.Action,
			string(e.Severity),
			e.UserID,
			e.ResourceType,
			e.ResourceID,
			e.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatBool(e.Success),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
