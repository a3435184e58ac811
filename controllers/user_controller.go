package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

// UserController serves profiles, badges, the leaderboard and admin user management.
type UserController struct {
	users  *store.UserStore
	badges *store.BadgeStore
}

func NewUserController(users *store.UserStore, badges *store.BadgeStore) *UserController {
	return &UserController{users: users, badges: badges}
}

// Me returns the current authenticated user's information.
func (u *UserController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	user, err := u.users.Get(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to load user")
		return
	}
	utils.Success(ctx, gin.H{"user": user, "is_admin": isAdmin(ctx)})
}

// MyBadges lists earned badges alongside every badge that can be earned.
func (u *UserController) MyBadges(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	earned, err := u.badges.ForUser(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to load badges")
		return
	}
	all, err := u.badges.List(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to load badges")
		return
	}
	utils.Success(ctx, gin.H{"earned": earned, "available": all})
}

// Leaderboard ranks the caller's company by points (default) or streak.
func (u *UserController) Leaderboard(ctx *gin.Context) {
	by := ctx.DefaultQuery("by", "points")
	if by != "points" && by != "streak" {
		utils.Error(ctx, http.StatusBadRequest, 40060, "by must be points or streak")
		return
	}
	_, limit := parsePagination("1", ctx.Query("limit"))
	entries, err := u.users.Leaderboard(ctx.Request.Context(), getCompanyID(ctx), by, limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to load leaderboard")
		return
	}
	utils.Success(ctx, gin.H{"by": by, "items": entries})
}

// ListUsers returns the company's users, paginated.
func (u *UserController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	users, total, err := u.users.List(ctx.Request.Context(), getCompanyID(ctx), ctx.Query("q"), page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50063, "failed to retrieve users")
		return
	}
	utils.Success(ctx, gin.H{
		"items":      users,
		"pagination": utils.Pagination(page, pageSize, total),
	})
}

// UpdateUser changes a user's role or disables the account.
func (u *UserController) UpdateUser(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40061, "invalid user id")
		return
	}
	var req struct {
		Role   *string `json:"role" binding:"omitempty,oneof=staff admin"`
		Active *bool   `json:"active"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40062, "invalid request payload")
		return
	}
	if self, _ := getUserID(ctx); self == id && ((req.Active != nil && !*req.Active) || (req.Role != nil && *req.Role != models.RoleAdmin)) {
		utils.Error(ctx, http.StatusBadRequest, 40063, "admins cannot demote or disable themselves")
		return
	}

	user, err := u.users.Update(ctx.Request.Context(), getCompanyID(ctx), id, store.UserPatch{Role: req.Role, Active: req.Active})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50064, "failed to update user")
		return
	}
	utils.Success(ctx, user)
}
