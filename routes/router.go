package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cppla/ygportal/config"
	"github.com/cppla/ygportal/controllers"
	"github.com/cppla/ygportal/evaluation"
	"github.com/cppla/ygportal/middleware"
	"github.com/cppla/ygportal/services"
	"github.com/cppla/ygportal/storage"
	"github.com/cppla/ygportal/utils"
)

// SetupRouter wires routes, middlewares, and controllers. rdb may be nil, in
// which case caching is disabled and drafts live in process memory.
func SetupRouter(db *gorm.DB, rdb *redis.Client) (*gin.Engine, error) {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.NewLocalStore(cfg.StorageRoot)
	if err != nil {
		return nil, err
	}
	postService := services.NewPostService(db, store, cfg.StoragePublicBase, utils.Logger)

	r := gin.New()
	r.MaxMultipartMemory = 16 << 20
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		utils.Sugar.Warnf("gin access log disabled: %v", err)
		r.Use(utils.RecoveryWithZap(utils.Logger, false))
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		// Credentials (the evaluation cookie) cannot be combined with a literal "*"
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static(cfg.StoragePublicBase, cfg.StorageRoot)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	blacklist := utils.NewTokenBlacklist(rdb)
	guard := utils.NewLoginGuard(rdb, cfg.LoginMaxFailuresPerHour, time.Duration(cfg.LoginBanMinutes)*time.Minute)
	var responseCache *utils.ResponseCache
	if rdb != nil {
		responseCache = utils.NewResponseCache(rdb, time.Hour)
	}

	authController := controllers.NewAuthController(blacklist, guard)
	postController := controllers.NewPostController(postService, responseCache)
	statsController := controllers.NewStatsController(postService)
	configController := controllers.NewConfigController()
	evaluationController := controllers.NewEvaluationController(draftStorage(rdb), utils.Logger)

	adminOnly := middleware.AdminRequired(blacklist)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", adminOnly, authController.Logout)
	authGroup.GET("/me", adminOnly, authController.Me)

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/:id", postController.GetPost)

	api.GET("/config/site", configController.GetSite)
	api.GET("/config/evaluation", configController.GetEvaluation)

	evalGroup := api.Group("/evaluation")
	evalGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute * 5))
	evalGroup.GET("/draft", evaluationController.GetDraft)
	evalGroup.PUT("/draft", evaluationController.SaveDraft)
	evalGroup.DELETE("/draft", evaluationController.ClearDraft)
	evalGroup.PUT("/draft/answers/:question", evaluationController.SetAnswer)
	evalGroup.DELETE("/draft/answers/:question", evaluationController.RemoveAnswer)
	evalGroup.POST("/validate", evaluationController.Validate)

	admin := api.Group("/admin")
	admin.Use(adminOnly, middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	admin.GET("/stats", statsController.GetStats)
	admin.GET("/posts", postController.AdminListPosts)
	admin.POST("/posts", postController.CreatePost)
	admin.GET("/posts/:id", postController.AdminGetPost)
	admin.PUT("/posts/:id", postController.UpdatePost)
	admin.PATCH("/posts/:id/status", postController.ChangeStatus)
	admin.DELETE("/posts/:id", postController.DeletePost)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r, nil
}

// maxMemoryDrafts bounds the in-process draft pool used without Redis.
const maxMemoryDrafts = 10000

// draftStorage keys evaluation drafts by client id, in Redis when available.
func draftStorage(rdb *redis.Client) controllers.StorageFactory {
	if rdb != nil {
		return func(client string) evaluation.Storage {
			return evaluation.NewRedisStorage(rdb, "evaluation:"+client+":", evaluation.MaxAge)
		}
	}
	pool := evaluation.NewMemoryPool(evaluation.MaxAge, maxMemoryDrafts)
	return func(client string) evaluation.Storage {
		return pool.For(client)
	}
}
