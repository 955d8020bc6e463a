package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ygportal/services"
	"github.com/cppla/ygportal/utils"
)

// StatsController provides the admin dashboard counters.
type StatsController struct {
	posts *services.PostService
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(posts *services.PostService) *StatsController {
	return &StatsController{posts: posts}
}

// GetStats returns post counts per status and category.
func (s *StatsController) GetStats(ctx *gin.Context) {
	stats, err := s.posts.Stats(ctx.Request.Context())
	if err != nil {
		utils.Sugar.Errorw("failed to compute stats", "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to compute stats")
		return
	}
	utils.Success(ctx, stats)
}
