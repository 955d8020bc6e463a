package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cppla/ygportal/config"
	"github.com/cppla/ygportal/models"
	"github.com/cppla/ygportal/routes"
	"github.com/cppla/ygportal/services"
	"github.com/cppla/ygportal/storage"
	"github.com/cppla/ygportal/utils"
)

func main() {
	seed := flag.Bool("seed", false, "insert the sample posts when the table is empty, then exit")
	hash := flag.String("hash-password", "", "print the bcrypt hash for an admin password, then exit")
	flag.Parse()

	if *hash != "" {
		h, err := utils.HashPassword(*hash)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}

	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.Post{}, &models.OrphanAttachment{})

	if *seed {
		n, err := services.SeedPosts(context.Background(), db, time.Now())
		if err != nil {
			utils.Sugar.Fatalf("seed failed: %v", err)
		}
		utils.Sugar.Infof("seeded %d posts", n)
		return
	}

	r, err := routes.SetupRouter(db, utils.GetRedis())
	if err != nil {
		utils.Sugar.Fatalf("router setup failed: %v", err)
	}

	store, err := storage.NewLocalStore(cfg.StorageRoot)
	if err != nil {
		utils.Sugar.Fatalf("attachment store: %v", err)
	}
	// Retry attachment deletions that failed inline
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	services.NewOrphanSweeper(db, store, utils.Logger).Start(sweepCtx, time.Duration(cfg.OrphanSweepMinutes)*time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, stopSweeper); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
