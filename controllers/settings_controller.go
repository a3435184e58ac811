package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/config"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

// SettingsController lets admins edit their company's check-in rules and rotate the office code.
type SettingsController struct {
	settings *store.SettingsStore
	codes    utils.CheckInCodes
}

func NewSettingsController(settings *store.SettingsStore) *SettingsController {
	return &SettingsController{settings: settings}
}

// GetSettings returns the settings in effect, stored or default.
func (s *SettingsController) GetSettings(ctx *gin.Context) {
	settings, err := s.settings.GetActiveConfig(ctx.Request.Context(), getCompanyID(ctx))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load settings")
		return
	}
	resp := gin.H{"settings": settings, "valid": true}
	if cfg, err := checkin.Compile(settings); err != nil {
		resp["valid"] = false
		resp["error"] = err.Error()
	} else {
		resp["window"] = cfg.Window()
	}
	utils.Success(ctx, resp)
}

// UpdateSettings replaces the company's settings after validation.
func (s *SettingsController) UpdateSettings(ctx *gin.Context) {
	var req checkin.Settings
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	adminID, _ := getUserID(ctx)
	companyID := getCompanyID(ctx)

	saved, err := s.settings.SaveConfig(ctx.Request.Context(), companyID, req, adminID)
	if err != nil {
		if errors.Is(err, checkin.ErrInvalidConfig) {
			utils.Error(ctx, http.StatusBadRequest, 40041, err.Error())
			return
		}
		utils.Logger.Error("save check-in settings failed", zap.String("company_id", companyID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to save settings")
		return
	}
	utils.Logger.Info("check-in settings updated", zap.String("company_id", companyID), zap.Uint("admin_id", adminID))
	utils.Success(ctx, saved)
}

// RotateCode issues a fresh office code, invalidating the previous one.
func (s *SettingsController) RotateCode(ctx *gin.Context) {
	ttl := time.Duration(config.Get().CheckInCodeTTLMinutes) * time.Minute
	code, err := s.codes.Rotate(ctx.Request.Context(), getCompanyID(ctx), ttl)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to rotate check-in code")
		return
	}
	utils.Success(ctx, code)
}

// CurrentCode shows the active office code and when it expires.
func (s *SettingsController) CurrentCode(ctx *gin.Context) {
	code, ok, err := s.codes.Current(ctx.Request.Context(), getCompanyID(ctx))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load check-in code")
		return
	}
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40440, "no active check-in code")
		return
	}
	utils.Success(ctx, code)
}
