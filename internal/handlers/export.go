package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coursesnap/coursesnap/internal/export"
)

// HandleExport streams the session's current records as an .xlsx attachment
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	records := sess.Records()
	if len(records) == 0 {
		h.writeError(w, "No records to export", http.StatusConflict)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, records); err != nil {
		h.writeError(w, "Failed to build spreadsheet: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(r.URL.Query().Get("filename"))))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func exportFilename(requested string) string {
	name := filepath.Base(strings.TrimSpace(requested))
	if name == "" || name == "." || name == "/" {
		return export.DefaultFilename
	}
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}
