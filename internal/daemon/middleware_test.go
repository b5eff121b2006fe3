package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/thand-io/relay/internal/models"
)

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		pattern string
		want    bool
	}{
		{"exact match", "https://portal.example.com", "https://portal.example.com", true},
		{"wildcard subdomain", "https://sales.portal.example.com", "https://*.portal.example.com", true},
		{"wildcard with hyphens", "https://eu-west.portal.example.com", "https://*.portal.example.com", true},
		{"nested subdomain", "https://a.b.portal.example.com", "https://*.portal.example.com", true},
		{"wildcard with port", "https://sales.portal.example.com:8443", "https://*.portal.example.com:8443", true},
		{"different domain", "https://sales.evil.com", "https://*.portal.example.com", false},
		{"different suffix", "https://sales.portal.example.org", "https://*.portal.example.com", false},
		{"missing subdomain", "https://portal.example.com", "https://*.portal.example.com", false},
		{"glued suffix", "https://evilexample.com", "https://*example.com", false},
		{"scheme mismatch", "http://sales.portal.example.com", "https://*.portal.example.com", false},
		{"empty origin", "", "https://*.portal.example.com", false},
		{"allow all", "https://anything.test", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchOrigin(tt.origin, tt.pattern))
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name             string
		origin           string
		method           string
		allowedOrigins   []string
		allowCredentials bool
		wantStatus       int
		wantAllowOrigin  string
	}{
		{
			name:            "default allows any origin",
			origin:          "https://embed.example.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "*",
		},
		{
			name:             "wildcard pattern",
			origin:           "https://sales.portal.example.com",
			method:           http.MethodGet,
			allowedOrigins:   []string{"https://*.portal.example.com"},
			allowCredentials: true,
			wantStatus:       http.StatusOK,
			wantAllowOrigin:  "https://sales.portal.example.com",
		},
		{
			name:            "second pattern matches",
			origin:          "https://bi.example.org",
			method:          http.MethodGet,
			allowedOrigins:  []string{"https://*.portal.example.com", "https://bi.example.org"},
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://bi.example.org",
		},
		{
			name:           "origin rejected",
			origin:         "https://evil.com",
			method:         http.MethodGet,
			allowedOrigins: []string{"https://*.portal.example.com"},
			wantStatus:     http.StatusForbidden,
		},
		{
			name:            "preflight",
			origin:          "https://sales.portal.example.com",
			method:          http.MethodOptions,
			allowedOrigins:  []string{"https://*.portal.example.com"},
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "https://sales.portal.example.com",
		},
		{
			name:           "preflight rejected",
			origin:         "https://evil.com",
			method:         http.MethodOptions,
			allowedOrigins: []string{"https://*.portal.example.com"},
			wantStatus:     http.StatusForbidden,
		},
		{
			name:           "no origin header",
			method:         http.MethodGet,
			allowedOrigins: []string{"https://*.portal.example.com"},
			wantStatus:     http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware(models.CORSConfig{
				AllowedOrigins:   tt.allowedOrigins,
				AllowCredentials: tt.allowCredentials,
			}))
			router.GET("/gettoken/:username", func(c *gin.Context) {
				c.String(http.StatusOK, "tok")
			})

			req := httptest.NewRequest(tt.method, "/gettoken/alice", nil)
			if len(tt.origin) > 0 {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowOrigin, w.Header().Get("Access-Control-Allow-Origin"))

			if tt.allowCredentials && len(tt.wantAllowOrigin) > 0 {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
			if tt.method == http.MethodGet && len(tt.wantAllowOrigin) > 0 {
				assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), CorrelationHeader)
			}
		})
	}
}
