package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method     string
		wantStatus int
		wantBody   bool
	}{
		{method: http.MethodGet, wantStatus: http.StatusOK, wantBody: true},
		{method: http.MethodHead, wantStatus: http.StatusOK},
		{method: http.MethodPost, wantStatus: http.StatusMethodNotAllowed},
		{method: http.MethodDelete, wantStatus: http.StatusMethodNotAllowed},
	}

	h := NewHealthHandler("v1.2.3", func() int { return 6 })

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !tt.wantBody {
				if w.Body.Len() != 0 {
					t.Errorf("body = %q, want empty", w.Body.String())
				}
				return
			}

			var body healthResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Status != "ok" || body.Version != "v1.2.3" || body.Tools != 6 {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestNewHealthHandler_NilCounterPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewHealthHandler("", nil)
}
