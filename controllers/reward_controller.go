package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

// RewardController serves the reward catalogue and redemptions.
type RewardController struct {
	rewards *store.RewardStore
}

func NewRewardController(rewards *store.RewardStore) *RewardController {
	return &RewardController{rewards: rewards}
}

type rewardRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description" binding:"omitempty,max=4000"`
	PointsCost  *int    `json:"points_cost" binding:"omitempty,gt=0"`
	Stock       *int    `json:"stock" binding:"omitempty,gte=-1"`
	Active      *bool   `json:"active"`
}

// ListRewards shows active rewards to staff.
func (r *RewardController) ListRewards(ctx *gin.Context) {
	items, err := r.rewards.List(ctx.Request.Context(), getCompanyID(ctx), true)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load rewards")
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// Redeem spends the caller's points on a reward.
func (r *RewardController) Redeem(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	rewardID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid reward id")
		return
	}

	red, err := r.rewards.Redeem(ctx.Request.Context(), userID, getCompanyID(ctx), rewardID)
	if err != nil {
		respondRewardError(ctx, err)
		return
	}
	utils.Success(ctx, red)
}

// MyRedemptions lists the caller's redemptions.
func (r *RewardController) MyRedemptions(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	items, total, err := r.rewards.ListRedemptions(ctx.Request.Context(), store.RedemptionFilter{UserID: userID}, page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to load redemptions")
		return
	}
	utils.Success(ctx, gin.H{"items": items, "pagination": utils.Pagination(page, pageSize, total)})
}

// CancelRedemption withdraws one of the caller's pending redemptions.
func (r *RewardController) CancelRedemption(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40051, "invalid redemption id")
		return
	}
	red, err := r.rewards.Cancel(ctx.Request.Context(), userID, id)
	if err != nil {
		respondRewardError(ctx, err)
		return
	}
	utils.Success(ctx, red)
}

// AdminListRewards includes inactive rewards.
func (r *RewardController) AdminListRewards(ctx *gin.Context) {
	items, err := r.rewards.List(ctx.Request.Context(), getCompanyID(ctx), false)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load rewards")
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

func (r *RewardController) CreateReward(ctx *gin.Context) {
	var req rewardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Title == nil || req.PointsCost == nil {
		utils.Error(ctx, http.StatusBadRequest, 40052, "title and points_cost are required")
		return
	}
	title := utils.SanitizePlain(*req.Title)
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40053, "title cannot be empty")
		return
	}

	reward := models.Reward{
		CompanyID:  getCompanyID(ctx),
		Title:      title,
		PointsCost: *req.PointsCost,
		Stock:      -1,
		Active:     true,
	}
	if req.Description != nil {
		reward.Description = utils.Sanitize(strings.TrimSpace(*req.Description))
	}
	if req.Stock != nil {
		reward.Stock = *req.Stock
	}
	if req.Active != nil {
		reward.Active = *req.Active
	}

	if err := r.rewards.Create(ctx.Request.Context(), &reward); err != nil {
		utils.Logger.Error("create reward failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to create reward")
		return
	}
	utils.Success(ctx, reward)
}

func (r *RewardController) UpdateReward(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid reward id")
		return
	}
	var req rewardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40054, "invalid request payload")
		return
	}

	patch := store.RewardPatch{PointsCost: req.PointsCost, Stock: req.Stock, Active: req.Active}
	if req.Title != nil {
		title := utils.SanitizePlain(*req.Title)
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40053, "title cannot be empty")
			return
		}
		patch.Title = &title
	}
	if req.Description != nil {
		desc := utils.Sanitize(strings.TrimSpace(*req.Description))
		patch.Description = &desc
	}

	reward, err := r.rewards.Update(ctx.Request.Context(), getCompanyID(ctx), id, patch)
	if err != nil {
		respondRewardError(ctx, err)
		return
	}
	utils.Success(ctx, reward)
}

// DeleteReward removes a reward, or retires it when it has been redeemed before.
func (r *RewardController) DeleteReward(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid reward id")
		return
	}
	deleted, err := r.rewards.Delete(ctx.Request.Context(), getCompanyID(ctx), id)
	if err != nil {
		respondRewardError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": deleted, "deactivated": !deleted})
}

// AdminListRedemptions lists the company's redemptions, optionally by status.
func (r *RewardController) AdminListRedemptions(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	filter := store.RedemptionFilter{CompanyID: getCompanyID(ctx), Status: strings.TrimSpace(ctx.Query("status"))}
	items, total, err := r.rewards.ListRedemptions(ctx.Request.Context(), filter, page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to load redemptions")
		return
	}
	utils.Success(ctx, gin.H{"items": items, "pagination": utils.Pagination(page, pageSize, total)})
}

func (r *RewardController) ApproveRedemption(ctx *gin.Context) {
	r.handleRedemption(ctx, r.rewards.Approve)
}

// RejectRedemption declines a pending redemption and refunds the points.
func (r *RewardController) RejectRedemption(ctx *gin.Context) {
	r.handleRedemption(ctx, r.rewards.Reject)
}

type settleFunc func(ctx context.Context, companyID string, id, adminID uint, note string) (*models.Redemption, error)

func (r *RewardController) handleRedemption(ctx *gin.Context, settle settleFunc) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40051, "invalid redemption id")
		return
	}
	var req struct {
		Note string `json:"note" binding:"max=255"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(ctx, http.StatusBadRequest, 40054, "invalid request payload")
		return
	}
	adminID, _ := getUserID(ctx)

	red, err := settle(ctx.Request.Context(), getCompanyID(ctx), id, adminID, utils.SanitizePlain(req.Note))
	if err != nil {
		respondRewardError(ctx, err)
		return
	}
	utils.Logger.Info("redemption handled", zap.Uint("redemption_id", red.ID), zap.String("status", red.Status), zap.Uint("admin_id", adminID))
	utils.Success(ctx, red)
}

func respondRewardError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40450, "not found")
	case errors.Is(err, store.ErrInsufficientPoints):
		utils.Error(ctx, http.StatusConflict, 40950, err.Error())
	case errors.Is(err, store.ErrRewardUnavailable):
		utils.Error(ctx, http.StatusConflict, 40951, err.Error())
	case errors.Is(err, store.ErrRedemptionState):
		utils.Error(ctx, http.StatusConflict, 40952, err.Error())
	default:
		utils.Logger.Error("reward operation failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50053, "reward operation failed, please try again")
	}
}
