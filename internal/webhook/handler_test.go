package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/store"
)

const testSecret = "my_test_webhook_secret"

func newTestHandler(t *testing.T) (*DriveHandler, *store.MemoryStore) {
	t.Helper()
	runs := store.NewMemoryStore()
	if err := runs.PutRun(context.Background(), &store.Run{ID: "run-1", Status: store.StatusCompleted}); err != nil {
		t.Fatal(err)
	}
	return NewDriveHandler(runs, testSecret), runs
}

func post(h http.Handler, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/drive", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Signature Tests ---

func TestVerify(t *testing.T) {
	body := []byte(`{"a":1}`)
	valid := Sign(testSecret, body)

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"valid", valid, true},
		{"wrong secret", Sign("other", body), false},
		{"missing prefix", strings.TrimPrefix(valid, "sha256="), false},
		{"prefix only", "sha256=", false},
		{"bad hex", "sha256=not-hex-at-all", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(testSecret, body, tt.header); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Callback (POST) Tests ---

func TestDriveCallback_Valid(t *testing.T) {
	h, runs := newTestHandler(t)
	payload := `{"runId":"run-1","googleDriveUrl":"https://drive.google.com/file/d/abc"}`

	rr := post(h, payload, Sign(testSecret, []byte(payload)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	run, _ := runs.GetRun(context.Background(), "run-1")
	if run.GoogleDriveURL != "https://drive.google.com/file/d/abc" {
		t.Errorf("GoogleDriveURL = %q", run.GoogleDriveURL)
	}
}

func TestDriveCallback_AlternateFieldNames(t *testing.T) {
	for _, field := range []string{"driveUrl", "url"} {
		t.Run(field, func(t *testing.T) {
			h, runs := newTestHandler(t)
			payload := `{"runId":"run-1","` + field + `":"https://drive/x"}`

			rr := post(h, payload, Sign(testSecret, []byte(payload)))

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			run, _ := runs.GetRun(context.Background(), "run-1")
			if run.GoogleDriveURL != "https://drive/x" {
				t.Errorf("GoogleDriveURL = %q", run.GoogleDriveURL)
			}
		})
	}
}

func TestDriveCallback_InvalidSignature(t *testing.T) {
	h, _ := newTestHandler(t)
	payload := `{"runId":"run-1","url":"https://drive/x"}`

	rr := post(h, payload, Sign("wrong_secret", []byte(payload)))

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestDriveCallback_MissingSignature(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := post(h, `{"runId":"run-1","url":"https://drive/x"}`, "")

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestDriveCallback_NoSecretSkipsVerification(t *testing.T) {
	runs := store.NewMemoryStore()
	runs.PutRun(context.Background(), &store.Run{ID: "run-1"})
	h := NewDriveHandler(runs, "")

	rr := post(h, `{"runId":"run-1","url":"https://drive/x"}`, "")

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestDriveCallback_BadRequests(t *testing.T) {
	tests := map[string]string{
		"empty body":   "",
		"invalid json": "{not json",
		"missing run":  `{"url":"https://drive/x"}`,
		"missing link": `{"runId":"run-1"}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			rr := post(h, payload, Sign(testSecret, []byte(payload)))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestDriveCallback_UnknownRun(t *testing.T) {
	h, _ := newTestHandler(t)
	payload := `{"runId":"run-404","url":"https://drive/x"}`

	rr := post(h, payload, Sign(testSecret, []byte(payload)))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestDriveCallback_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/drive", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rr.Code)
	}
}
