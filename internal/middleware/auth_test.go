package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/internal/model"
	"ucode_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef"}}
}

func token(t *testing.T, cfg *config.Config, staff bool, tokenType string, ttl time.Duration) string {
	t.Helper()
	user := &model.User{Username: "alice", IsStaff: staff}
	user.ID = 3
	signed, _, err := util.GenerateJWT(user, cfg.JWT.Secret, tokenType, ttl)
	require.NoError(t, err)
	return signed
}

func newRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	whoami := func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			c.String(http.StatusOK, "guest")
			return
		}
		c.String(http.StatusOK, claims.Username)
	}
	r.GET("/me", AuthMiddleware(cfg), whoami)
	r.GET("/maybe", TryAuthMiddleware(cfg), whoami)
	r.GET("/staff", AuthMiddleware(cfg), StaffMiddleware(), whoami)
	return r
}

func get(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	r := newRouter(cfg)
	access := token(t, cfg, false, util.TokenTypeAccess, time.Minute)

	cases := []struct {
		name string
		path string
		auth string
		code int
	}{
		{"bearer header", "/me", "Bearer " + access, http.StatusOK},
		{"query token", "/me?token=" + access, "", http.StatusOK},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"empty bearer", "/me", "Bearer ", http.StatusUnauthorized},
		{"garbage", "/me", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "/me", "Bearer " + token(t, cfg, false, util.TokenTypeRefresh, time.Minute), http.StatusUnauthorized},
		{"expired", "/me", "Bearer " + token(t, cfg, false, util.TokenTypeAccess, -time.Minute), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, tc.path, tc.auth)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "alice", w.Body.String())
			}
		})
	}
}

func TestTryAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	r := newRouter(cfg)

	assert.Equal(t, "guest", get(r, "/maybe", "").Body.String())
	assert.Equal(t, "guest", get(r, "/maybe", "Bearer nope").Body.String())
	assert.Equal(t, "alice", get(r, "/maybe", "Bearer "+token(t, cfg, false, util.TokenTypeAccess, time.Minute)).Body.String())
}

func TestStaffMiddleware(t *testing.T) {
	cfg := testConfig()
	r := newRouter(cfg)

	w := get(r, "/staff", "Bearer "+token(t, cfg, false, util.TokenTypeAccess, time.Minute))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(r, "/staff", "Bearer "+token(t, cfg, true, util.TokenTypeAccess, time.Minute))
	assert.Equal(t, http.StatusOK, w.Code)
}
