package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/store"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// DriveURLSetter records the Google Drive link for a run.
// store.RunStore satisfies it.
type DriveURLSetter interface {
	SetDriveURL(ctx context.Context, runID, url string) error
}

// DriveCallback is the body the automation posts once the PDF has been
// copied to Google Drive. The link may arrive under any of the three names.
type DriveCallback struct {
	RunID          string `json:"runId"`
	GoogleDriveURL string `json:"googleDriveUrl,omitempty"`
	DriveURL       string `json:"driveUrl,omitempty"`
	URL            string `json:"url,omitempty"`
}

// Link returns the first non-empty drive link field.
func (c DriveCallback) Link() string {
	for _, v := range []string{c.GoogleDriveURL, c.DriveURL, c.URL} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// DriveHandler accepts signed Drive callbacks and records the link against
// the run.
type DriveHandler struct {
	runs   DriveURLSetter
	secret string
}

// NewDriveHandler creates a callback handler. An empty secret disables
// signature verification.
func NewDriveHandler(runs DriveURLSetter, secret string) *DriveHandler {
	return &DriveHandler{runs: runs, secret: secret}
}

func (h *DriveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Drive callback: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	if h.secret != "" {
		signature := r.Header.Get(SignatureHeader)
		if signature == "" {
			log.Warn().Msg("Drive callback: missing signature header")
			http.Error(w, "missing signature", http.StatusForbidden)
			return
		}
		if !Verify(h.secret, body, signature) {
			log.Warn().Msg("Drive callback: invalid signature")
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	var cb DriveCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	link := cb.Link()
	if strings.TrimSpace(cb.RunID) == "" || link == "" {
		http.Error(w, "runId and googleDriveUrl are required", http.StatusBadRequest)
		return
	}

	if err := h.runs.SetDriveURL(r.Context(), cb.RunID, link); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("run_id", cb.RunID).Msg("Drive callback: failed to record link")
		http.Error(w, "failed to record link", http.StatusInternalServerError)
		return
	}

	log.Info().Str("run_id", cb.RunID).Str("drive_url", link).Msg("Drive link recorded")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
