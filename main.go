package main

import (
	"context"
	"time"

	// Timezone rules ship with the binary so check-in windows work on minimal images.
	_ "time/tzdata"

	"github.com/cppla/staffrewards/config"
	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/routes"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(
		&models.User{},
		&models.CheckIn{},
		&models.CheckInSetting{},
		&models.Reward{},
		&models.Redemption{},
		&models.Badge{},
		&models.UserBadge{},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.NewBadgeStore(db).SeedDefaults(ctx); err != nil {
		utils.Sugar.Warnf("seeding default badges failed: %v", err)
	}
	cancel()

	r := routes.SetupRouter(db)

	srv := utils.NewGracefulServer(":"+cfg.AppPort, r, utils.ServerOptions{})
	srv.OnShutdown(func(context.Context) error {
		utils.CloseRedis()
		return nil
	})
	srv.OnShutdown(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := srv.Run(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
