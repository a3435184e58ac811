package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/staffrewards/config"
	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "test-secret", AdminUsernames: []string{"Root"}, RateLimitPerMinute: 2})
	os.Exit(m.Run())
}

type fakeUsers struct {
	user *models.User
	err  error
	seen store.Identity
}

func (f *fakeUsers) EnsureUser(ctx context.Context, id store.Identity) (*models.User, error) {
	f.seen = id
	return f.user, f.err
}

func bearer(t *testing.T, claims utils.Claims) string {
	t.Helper()
	token, err := utils.GenerateToken(claims, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func newRouter(users UserResolver, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthRequired(users)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetUint(ContextUserIDKey),
			"role":       c.GetString(ContextRoleKey),
			"company_id": c.GetString(ContextCompanyIDKey),
		})
	})
	r.GET("/ping", handlers...)
	return r
}

func do(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	users := &fakeUsers{user: &models.User{ID: 4, Username: "dana", CompanyID: "acme", Role: models.RoleStaff, Active: true}}
	r := newRouter(users)

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer not-a-jwt").Code)

	w := do(r, bearer(t, utils.Claims{Username: "dana", RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-4"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":4,"role":"staff","company_id":"acme"}`, w.Body.String())
	assert.Equal(t, "default", users.seen.CompanyID, "tokens without a company claim fall back to the default company")
	assert.Equal(t, "sub-4", users.seen.Subject)
}

func TestAuthRequiredRejectsDisabledAndFailures(t *testing.T) {
	token := bearer(t, utils.Claims{Username: "dana", CompanyID: "acme", RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-4"}})

	disabled := newRouter(&fakeUsers{user: &models.User{ID: 4, Active: false}})
	assert.Equal(t, http.StatusForbidden, do(disabled, token).Code)

	broken := newRouter(&fakeUsers{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, do(broken, token).Code)
}

func TestAdminRequired(t *testing.T) {
	staff := &models.User{ID: 4, Username: "dana", CompanyID: "acme", Role: models.RoleStaff, Active: true}
	r := newRouter(&fakeUsers{user: staff}, AdminRequired())

	plain := bearer(t, utils.Claims{Username: "dana", RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-4"}})
	assert.Equal(t, http.StatusForbidden, do(r, plain).Code)

	byClaim := bearer(t, utils.Claims{Username: "dana", Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-4"}})
	assert.Equal(t, http.StatusOK, do(r, byClaim).Code)

	root := &models.User{ID: 1, Username: "root", CompanyID: "acme", Role: models.RoleStaff, Active: true}
	byName := newRouter(&fakeUsers{user: root}, AdminRequired())
	assert.Equal(t, http.StatusOK, do(byName, plain).Code, "configured admin usernames match case-insensitively")
}

func TestRateLimitPerUser(t *testing.T) {
	r := newRouter(&fakeUsers{user: &models.User{ID: 77, Username: "erin", CompanyID: "acme", Active: true}}, RateLimitMiddleware())
	token := bearer(t, utils.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-77"}})

	// RateLimitPerMinute=2 gives a burst of one.
	assert.Equal(t, http.StatusOK, do(r, token).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, token).Code)
}

func TestMetricsLabelsMatchedRoute(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/9", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
