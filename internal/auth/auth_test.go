package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIssuer = Issuer{Name: "classroll-test", Key: "secret", AccessTTL: time.Minute, RefreshTTL: time.Hour}

func TestIssueParse(t *testing.T) {
	pair, err := testIssuer.Issue(7, "teacher")
	require.NoError(t, err)

	claims, err := Parse(pair.AccessToken, "secret", "classroll-test")
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "teacher", claims.Role)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "user-7", claims.Marker())

	_, err = Parse(pair.AccessToken, "other", "classroll-test")
	assert.Error(t, err)
	_, err = Parse(pair.AccessToken, "secret", "someone-else")
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	pair, err := testIssuer.Issue(3, "admin")
	require.NoError(t, err)

	next, err := testIssuer.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	claims, err := Parse(next.AccessToken, "secret", "classroll-test")
	require.NoError(t, err)
	assert.Equal(t, 3, claims.UserID)

	_, err = testIssuer.Refresh(pair.AccessToken)
	assert.Error(t, err, "access tokens cannot be refreshed")
}

func TestExpiredToken(t *testing.T) {
	expired := Issuer{Name: "classroll-test", Key: "secret", AccessTTL: -time.Minute, RefreshTTL: -time.Minute}
	pair, err := expired.Issue(1, "admin")
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, "secret", "")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireAuth("secret", "classroll-test"), RequireRole("admin"), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Marker())
	})

	admin, err := testIssuer.Issue(1, "admin")
	require.NoError(t, err)
	teacher, err := testIssuer.Issue(2, "teacher")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "Bearer " + admin.RefreshToken, http.StatusUnauthorized},
		{"wrong role", "Bearer " + teacher.AccessToken, http.StatusForbidden},
		{"admin", "Bearer " + admin.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "user-1", w.Body.String())
			}
		})
	}
}
