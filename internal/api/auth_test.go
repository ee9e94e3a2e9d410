package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authProbe(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	const key = "test-api-key-12345678"

	tests := []struct {
		name       string
		enabled    bool
		path       string
		sendKey    string
		wantCalled bool
		wantStatus int
		wantCode   string
	}{
		{
			name:       "disabled passes everything through",
			enabled:    false,
			path:       "/v1/dialects",
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid key",
			enabled:    true,
			path:       "/v1/normalize",
			sendKey:    key,
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key",
			enabled:    true,
			path:       "/v1/normalize",
			wantCalled: false,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "wrong key",
			enabled:    true,
			path:       "/v1/normalize",
			sendKey:    "wrong-api-key",
			wantCalled: false,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "root stays public",
			enabled:    true,
			path:       "/",
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "health stays public",
			enabled:    true,
			path:       "/health",
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			handler := AuthMiddleware(AuthConfig{Enabled: tc.enabled, APIKey: key}, authProbe(&called))

			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.sendKey != "" {
				req.Header.Set("X-API-Key", tc.sendKey)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if called != tc.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tc.wantCalled)
			}
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.wantCode != "" {
				apiResp := decodeResponse(t, w)
				if apiResp.Error == nil || apiResp.Error.Code != tc.wantCode {
					t.Errorf("error = %+v, want code %s", apiResp.Error, tc.wantCode)
				}
			}
		})
	}
}

func TestIsPublicEndpoint(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/", true},
		{"/health", true},
		{"/v1/dialects", false},
		{"/v1/normalize", false},
		{"/v1/jobs", false},
		{"/v1/runs", false},
		{"/ws", false},
	}

	for _, tc := range tests {
		if got := isPublicEndpoint(tc.path); got != tc.expected {
			t.Errorf("isPublicEndpoint(%q) = %v, want %v", tc.path, got, tc.expected)
		}
	}
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  AuthConfig
		wantErr bool
	}{
		{
			name:   "disabled auth",
			config: AuthConfig{Enabled: false, APIKey: ""},
		},
		{
			name:   "enabled with valid key",
			config: AuthConfig{Enabled: true, APIKey: "valid-api-key-16char"},
		},
		{
			name:   "enabled with long key",
			config: AuthConfig{Enabled: true, APIKey: "very-long-api-key-with-many-characters-for-security"},
		},
		{
			name:    "enabled without key",
			config:  AuthConfig{Enabled: true, APIKey: ""},
			wantErr: true,
		},
		{
			name:    "enabled with short key",
			config:  AuthConfig{Enabled: true, APIKey: "short"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAuthConfig(tc.config)
			if tc.wantErr && err == nil {
				t.Error("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestKeysMatch(t *testing.T) {
	tests := []struct {
		a, b     string
		expected bool
	}{
		{"same-key", "same-key", true},
		{"key-one", "key-two", false},
		{"short", "longer-key", false},
		{"", "", true},
		{"key", "", false},
	}

	for _, tc := range tests {
		if got := keysMatch(tc.a, tc.b); got != tc.expected {
			t.Errorf("keysMatch(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.expected)
		}
	}
}
