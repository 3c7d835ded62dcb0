package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(), Identity(testSecret))
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := CurrentUser(c)
		if !ok {
			c.String(http.StatusOK, "guest")
			return
		}
		c.String(http.StatusOK, id.String())
	})
	r.GET("/mine", RequireUser(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/staff", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentity(t *testing.T) {
	r := newRouter()
	userID := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()

	w := do(r, "/whoami", "")
	assert.Equal(t, "guest", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(r, "/whoami", signed(t, jwt.MapClaims{"sub": userID.String(), "exp": exp}, testSecret))
	assert.Equal(t, userID.String(), w.Body.String())

	w = do(r, "/whoami", signed(t, jwt.MapClaims{"sub": userID.String(), "exp": exp}, "other-secret"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/whoami", signed(t, jwt.MapClaims{"sub": userID.String(), "exp": time.Now().Add(-time.Minute).Unix()}, testSecret))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/whoami", signed(t, jwt.MapClaims{"sub": "not-a-uuid", "exp": exp}, testSecret))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireUserAndStaff(t *testing.T) {
	r := newRouter()
	exp := time.Now().Add(time.Hour).Unix()
	buyer := signed(t, jwt.MapClaims{"sub": uuid.NewString(), "exp": exp}, testSecret)
	staff := signed(t, jwt.MapClaims{"sub": uuid.NewString(), "exp": exp, "role": RoleStaff}, testSecret)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/mine", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/mine", buyer).Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/staff", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/staff", buyer).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/staff", staff).Code)
}

func TestEmptySecretRejectsEveryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(""))
	r.GET("/whoami", func(c *gin.Context) { c.String(http.StatusOK, "guest") })
	r.GET("/staff", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	forged := signed(t, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": RoleStaff,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, "")

	assert.Equal(t, http.StatusUnauthorized, do(r, "/staff", forged).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/whoami", forged).Code)

	w := do(r, "/whoami", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest", w.Body.String())
}
