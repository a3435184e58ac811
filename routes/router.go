package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cppla/staffrewards/config"
	"github.com/cppla/staffrewards/controllers"
	"github.com/cppla/staffrewards/middleware"
	"github.com/cppla/staffrewards/services"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		utils.Sugar.Warnf("gin access log disabled: %v", err)
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// Credentials cannot be combined with a wildcard origin.
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	r.Use(middleware.Metrics())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	checkInStore := store.NewCheckInStore(db)
	settingsStore := store.NewSettingsStore(db, store.DefaultSettings(cfg.CheckIn))
	userStore := store.NewUserStore(db)
	rewardStore := store.NewRewardStore(db)
	badgeStore := store.NewBadgeStore(db)

	checkInService := services.NewCheckInService(checkInStore, settingsStore, utils.KeyLocker{}, utils.CheckInCodes{})

	checkInController := controllers.NewCheckInController(checkInService)
	settingsController := controllers.NewSettingsController(settingsStore)
	rewardController := controllers.NewRewardController(rewardStore)
	userController := controllers.NewUserController(userStore, badgeStore)
	statsController := controllers.NewStatsController(checkInStore, settingsStore, userStore, rewardStore)

	api := r.Group("/api/v1")

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(userStore), middleware.RateLimitMiddleware())

	protected.POST("/checkins", checkInController.CheckIn)
	protected.GET("/checkins/status", checkInController.Status)
	protected.GET("/checkins/history", checkInController.History)

	protected.GET("/me", userController.Me)
	protected.GET("/me/badges", userController.MyBadges)
	protected.GET("/leaderboard", userController.Leaderboard)

	protected.GET("/rewards", rewardController.ListRewards)
	protected.POST("/rewards/:id/redeem", rewardController.Redeem)
	protected.GET("/redemptions/me", rewardController.MyRedemptions)
	protected.POST("/redemptions/:id/cancel", rewardController.CancelRedemption)

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminRequired())

	admin.GET("/settings", settingsController.GetSettings)
	admin.PUT("/settings", settingsController.UpdateSettings)
	admin.POST("/checkin-code", settingsController.RotateCode)
	admin.GET("/checkin-code", settingsController.CurrentCode)

	admin.GET("/users", userController.ListUsers)
	admin.PATCH("/users/:id", userController.UpdateUser)

	admin.GET("/rewards", rewardController.AdminListRewards)
	admin.POST("/rewards", rewardController.CreateReward)
	admin.PUT("/rewards/:id", rewardController.UpdateReward)
	admin.DELETE("/rewards/:id", rewardController.DeleteReward)

	admin.GET("/redemptions", rewardController.AdminListRedemptions)
	admin.POST("/redemptions/:id/approve", rewardController.ApproveRedemption)
	admin.POST("/redemptions/:id/reject", rewardController.RejectRedemption)

	admin.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
