package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/services"
	"github.com/cppla/staffrewards/utils"
)

// CheckInService is the part of services.CheckInService the HTTP layer uses.
type CheckInService interface {
	CheckIn(ctx context.Context, req services.CheckInRequest) (*services.CheckInResponse, error)
	Status(ctx context.Context, userID uint, companyID string) (*services.StatusResponse, error)
	History(ctx context.Context, userID uint, page, size int) ([]models.CheckIn, int64, error)
}

// CheckInController handles the daily check-in endpoints.
type CheckInController struct {
	svc CheckInService
}

func NewCheckInController(svc CheckInService) *CheckInController {
	return &CheckInController{svc: svc}
}

// CheckIn records today's check-in. The body is optional and only carries the office code.
func (c *CheckInController) CheckIn(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Code string `json:"code" binding:"max=64"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	resp, err := c.svc.CheckIn(ctx.Request.Context(), services.CheckInRequest{
		UserID:    userID,
		CompanyID: getCompanyID(ctx),
		Code:      req.Code,
	})
	if err != nil {
		respondCheckInError(ctx, err)
		return
	}

	if r := resp.Rejection; r != nil {
		switch r.Kind {
		case checkin.AlreadyCheckedIn:
			utils.Respond(ctx, http.StatusConflict, 40930, r.Reason, gin.H{"check_in": resp.Record})
		case checkin.OutsideWindow:
			utils.Respond(ctx, http.StatusForbidden, 40331, r.Reason, gin.H{"window": r.Window, "local_time": r.LocalTime})
		case checkin.InvalidCode:
			utils.Error(ctx, http.StatusForbidden, 40332, r.Reason)
		default:
			utils.Error(ctx, http.StatusForbidden, 40330, r.Reason)
		}
		return
	}

	utils.Respond(ctx, http.StatusOK, 0, resp.Result.Message, gin.H{
		"result":   resp.Result,
		"check_in": resp.Record,
		"badges":   resp.Badges,
	})
}

// Status returns today's record, the window state and the caller's counters.
func (c *CheckInController) Status(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	st, err := c.svc.Status(ctx.Request.Context(), userID, getCompanyID(ctx))
	if err != nil {
		respondCheckInError(ctx, err)
		return
	}
	utils.Success(ctx, st)
}

// History lists the caller's check-ins, newest first.
func (c *CheckInController) History(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	items, total, err := c.svc.History(ctx.Request.Context(), userID, page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to load check-in history")
		return
	}
	utils.Success(ctx, gin.H{
		"items":      items,
		"pagination": utils.Pagination(page, pageSize, total),
	})
}

func respondCheckInError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, checkin.ErrInvalidConfig):
		utils.Error(ctx, http.StatusInternalServerError, 50032, "check-in settings are invalid, contact an administrator")
	case errors.Is(err, services.ErrCheckInBusy):
		utils.Error(ctx, http.StatusConflict, 40931, services.ErrCheckInBusy.Error())
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50033, services.ErrPersistence.Error())
	}
}
