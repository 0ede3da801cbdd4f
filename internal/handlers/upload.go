package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coursesnap/coursesnap/internal/images"
	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/coursesnap/coursesnap/internal/session"
)

const maxMultipartMemory = 32 << 20

// maxJSONUploadBytes bounds a JSON submission before it is decoded
var maxJSONUploadBytes int64 = 32 << 20

// uploadRequest is the JSON form of an image submission
type uploadRequest struct {
	Images    []string `json:"images"`     // data URLs or bare base64
	ImageURLs []string `json:"image_urls"` // remote images to download first
	Mode      string   `json:"mode"`
}

// HandleUpload starts a batch over the submitted images. The batch runs in
// the background; clients poll the session for progress.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var (
		imgs    []models.Image
		modeArg = r.URL.Query().Get("mode")
		err     error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req uploadRequest
		body := http.MaxBytesReader(w, r.Body, maxJSONUploadBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.writeError(w, fmt.Sprintf("Upload exceeds %dMB", tooLarge.Limit>>20), http.StatusRequestEntityTooLarge)
				return
			}
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if modeArg == "" {
			modeArg = req.Mode
		}
		imgs, err = h.jsonImages(r.Context(), req)
	} else {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			h.writeError(w, "Failed to read upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		if modeArg == "" {
			modeArg = r.FormValue("mode")
		}
		imgs, err = h.multipartImages(r)
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode, err := models.ParseMode(modeArg)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The batch must outlive this request.
	_, err = sess.Submit(context.Background(), h.orchestrator, imgs, mode)
	switch {
	case errors.Is(err, session.ErrBatchInProgress):
		h.writeError(w, "A batch is already being processed for this session", http.StatusConflict)
		return
	case errors.Is(err, session.ErrNoImages):
		h.writeError(w, "No images to process", http.StatusBadRequest)
		return
	case err != nil:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Batch submitted", "session_id", sess.ID, "images", len(imgs), "mode", mode)
	h.writeJSONStatus(w, http.StatusAccepted, newSessionResponse(sess.Snapshot()))
}

// multipartImages reads the "files" (or "file") parts, dropping anything
// that is not an image.
func (h *Handler) multipartImages(r *http.Request) ([]models.Image, error) {
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}

	var out []models.Image
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", header.Filename, err)
		}
		img, err := images.ReadUpload(header.Filename, file)
		file.Close()
		if errors.Is(err, images.ErrNotImage) {
			slog.Debug("Dropping non-image upload", "filename", header.Filename)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", header.Filename, err)
		}
		out = append(out, img)
	}
	return out, nil
}

func (h *Handler) jsonImages(ctx context.Context, req uploadRequest) ([]models.Image, error) {
	var out []models.Image
	for i, s := range req.Images {
		img, err := images.FromDataURL(fmt.Sprintf("image-%d", i+1), s)
		if errors.Is(err, images.ErrNotImage) {
			slog.Debug("Dropping non-image payload", "position", i+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	for _, url := range req.ImageURLs {
		img, err := h.fetcher.Fetch(ctx, url)
		if errors.Is(err, images.ErrNotImage) {
			slog.Debug("Dropping non-image URL", "url", url)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("Failed to process image URL: %w", err)
		}
		out = append(out, img)
	}
	return out, nil
}
