package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gen "github.com/kailas-cloud/askfolio/internal/transport/generated"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		method  string
		path    string
		header  string
		want    int
		wantMsg string
	}{
		{name: "no keys", keys: nil, path: "/chat", want: http.StatusOK},
		{name: "blank keys", keys: []string{"", "  "}, path: "/chat", want: http.StatusOK},
		{name: "missing header", keys: []string{"secret"}, path: "/chat", want: http.StatusUnauthorized,
			wantMsg: "missing authorization header"},
		{name: "basic scheme", keys: []string{"secret"}, path: "/chat", header: "Basic dXNlcjpwYXNz",
			want: http.StatusUnauthorized, wantMsg: "authorization header must use Bearer scheme"},
		{name: "empty token", keys: []string{"secret"}, path: "/chat", header: "Bearer ",
			want: http.StatusUnauthorized, wantMsg: "authorization header must use Bearer scheme"},
		{name: "wrong key", keys: []string{"secret"}, path: "/chat", header: "Bearer wrong",
			want: http.StatusUnauthorized, wantMsg: "invalid api key"},
		{name: "valid key", keys: []string{"secret"}, path: "/chat", header: "Bearer secret", want: http.StatusOK},
		{name: "scheme is case-insensitive", keys: []string{"secret"}, path: "/sessions", header: "bearer secret",
			want: http.StatusOK},
		{name: "second key", keys: []string{"k1", "k2"}, path: "/chat", header: "Bearer k2", want: http.StatusOK},
		{name: "health is public", keys: []string{"secret"}, path: "/health", want: http.StatusOK},
		{name: "metrics is public", keys: []string{"secret"}, path: "/metrics", want: http.StatusOK},
		{name: "root is public", keys: []string{"secret"}, path: "/", want: http.StatusOK},
		{name: "preflight", keys: []string{"secret"}, method: http.MethodOptions, path: "/chat", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			APIKeyAuth(tt.keys)(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
			var resp gen.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Code != gen.ErrorResponseCodeUnauthorized || resp.Message != tt.wantMsg {
				t.Errorf("error = %+v, want %s/%q", resp, gen.ErrorResponseCodeUnauthorized, tt.wantMsg)
			}
		})
	}
}
