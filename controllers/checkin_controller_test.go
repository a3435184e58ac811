package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/config"
	"github.com/cppla/staffrewards/middleware"
	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/services"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "test-secret"})
	os.Exit(m.Run())
}

type fakeService struct {
	resp *services.CheckInResponse
	err  error
	got  services.CheckInRequest
}

func (f *fakeService) CheckIn(ctx context.Context, req services.CheckInRequest) (*services.CheckInResponse, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeService) Status(ctx context.Context, userID uint, companyID string) (*services.StatusResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.StatusResponse{Day: "2024-03-13", CheckedIn: true}, nil
}

func (f *fakeService) History(ctx context.Context, userID uint, page, size int) ([]models.CheckIn, int64, error) {
	return []models.CheckIn{{ID: 1, Day: "2024-03-13"}}, 41, f.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, svc CheckInService, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	c := NewCheckInController(svc)
	r := gin.New()
	r.Use(func(ctx *gin.Context) {
		ctx.Set(middleware.ContextUserIDKey, uint(7))
		ctx.Set(middleware.ContextCompanyIDKey, "acme")
	})
	r.POST("/checkins", c.CheckIn)
	r.GET("/checkins/status", c.Status)
	r.GET("/checkins/history", c.History)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestCheckInStatusMapping(t *testing.T) {
	existing := &models.CheckIn{ID: 42, Day: "2024-03-13"}

	tests := []struct {
		name       string
		svc        *fakeService
		wantStatus int
		wantCode   int
	}{
		{
			name: "accepted",
			svc: &fakeService{resp: &services.CheckInResponse{
				Result: &checkin.Result{Classification: checkin.Early, BasePoints: 2, TotalPoints: 2, StreakDay: 1, Message: "Early check-in: +2 points. Streak day 1."},
				Record: &models.CheckIn{ID: 1},
			}},
			wantStatus: http.StatusOK,
			wantCode:   0,
		},
		{
			name: "already checked in",
			svc: &fakeService{resp: &services.CheckInResponse{
				Rejection: &checkin.Rejection{Kind: checkin.AlreadyCheckedIn, Reason: "already checked in today"},
				Record:    existing,
			}},
			wantStatus: http.StatusConflict,
			wantCode:   40930,
		},
		{
			name: "outside window",
			svc: &fakeService{resp: &services.CheckInResponse{
				Rejection: &checkin.Rejection{Kind: checkin.OutsideWindow, Reason: "closed", Window: "06:00-09:00 America/Denver", LocalTime: "09:00"},
			}},
			wantStatus: http.StatusForbidden,
			wantCode:   40331,
		},
		{
			name: "invalid code",
			svc: &fakeService{resp: &services.CheckInResponse{
				Rejection: &checkin.Rejection{Kind: checkin.InvalidCode, Reason: "bad code"},
			}},
			wantStatus: http.StatusForbidden,
			wantCode:   40332,
		},
		{
			name:       "busy",
			svc:        &fakeService{err: services.ErrCheckInBusy},
			wantStatus: http.StatusConflict,
			wantCode:   40931,
		},
		{
			name:       "invalid config",
			svc:        &fakeService{err: fmt.Errorf("%w: window_start fails", checkin.ErrInvalidConfig)},
			wantStatus: http.StatusInternalServerError,
			wantCode:   50032,
		},
		{
			name:       "persistence failure",
			svc:        &fakeService{err: fmt.Errorf("%w: deadlock", services.ErrPersistence)},
			wantStatus: http.StatusInternalServerError,
			wantCode:   50033,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := serve(t, tt.svc, http.MethodPost, "/checkins", "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.Equal(t, uint(7), tt.svc.got.UserID)
			assert.Equal(t, "acme", tt.svc.got.CompanyID)
		})
	}
}

func TestCheckInResponseBodies(t *testing.T) {
	t.Run("already checked in returns the existing record", func(t *testing.T) {
		svc := &fakeService{resp: &services.CheckInResponse{
			Rejection: &checkin.Rejection{Kind: checkin.AlreadyCheckedIn, Reason: "already checked in today"},
			Record:    &models.CheckIn{ID: 42, Day: "2024-03-13"},
		}}
		_, env := serve(t, svc, http.MethodPost, "/checkins", "")
		var data struct {
			CheckIn models.CheckIn `json:"check_in"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, uint(42), data.CheckIn.ID)
	})

	t.Run("outside window reports window and local time", func(t *testing.T) {
		svc := &fakeService{resp: &services.CheckInResponse{
			Rejection: &checkin.Rejection{Kind: checkin.OutsideWindow, Reason: "closed", Window: "06:00-09:00 America/Denver", LocalTime: "09:00"},
		}}
		_, env := serve(t, svc, http.MethodPost, "/checkins", "")
		assert.JSONEq(t, `{"window":"06:00-09:00 America/Denver","local_time":"09:00"}`, string(env.Data))
	})

	t.Run("code is forwarded", func(t *testing.T) {
		svc := &fakeService{resp: &services.CheckInResponse{Rejection: &checkin.Rejection{Kind: checkin.InvalidCode}}}
		serve(t, svc, http.MethodPost, "/checkins", `{"code":"ABC123"}`)
		assert.Equal(t, "ABC123", svc.got.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w, env := serve(t, &fakeService{}, http.MethodPost, "/checkins", `{"code":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40030, env.Code)
	})
}

func TestStatusAndHistory(t *testing.T) {
	w, env := serve(t, &fakeService{}, http.MethodGet, "/checkins/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"checked_in":true`)

	w, env = serve(t, &fakeService{}, http.MethodGet, "/checkins/history?page=2&page_size=20", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Pagination map[string]int `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 3, data.Pagination["total_pages"])
	assert.Equal(t, 2, data.Pagination["page"])
}
