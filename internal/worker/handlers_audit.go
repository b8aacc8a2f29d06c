package worker

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/thebtf/faqlearn/internal/audit"
	"github.com/thebtf/faqlearn/internal/db"
)

// handleAuditExport handles GET /api/audit/export?format=json|csv.
// Filters: action, resourceType, resourceId, userId, from, to (RFC 3339), limit.
func (s *Service) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	format := audit.Format(v.Get("format"))
	if format == "" {
		format = audit.FormatJSON
	}

	filter := db.AuditFilter{
		Action:       v.Get("action"),
		ResourceType: v.Get("resourceType"),
		ResourceID:   v.Get("resourceId"),
		UserID:       v.Get("userId"),
	}
	var err error
	if filter.From, err = optionalTime(v, "from"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.To, err = optionalTime(v, "to"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if raw := v.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil || filter.Limit < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", ErrBadRequest))
			return
		}
	}

	// Buffered so a failed export still gets a proper status code.
	var buf bytes.Buffer
	if err := s.deps.Audit.Export(r.Context(), &buf, filter, format); err != nil {
		s.writeError(w, r, err)
		return
	}

	if format == audit.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write audit export")
	}
}
