package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/ygportal/config"
	"github.com/cppla/ygportal/evaluation"
	"github.com/cppla/ygportal/models"
	"github.com/cppla/ygportal/utils"
)

// ImagePlaceholder is shown by clients for posts without an image.
const ImagePlaceholder = "/images/no-image-placeholder.jpg"

// ConfigController serves static UI configuration.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetSite returns what clients need to render post lists.
func (c *ConfigController) GetSite(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"storage_base":      cfg.StoragePublicBase,
		"image_placeholder": ImagePlaceholder,
		"statuses":          models.Statuses,
	})
}

// GetEvaluation returns the question groups and thresholds of the evaluation gate.
func (c *ConfigController) GetEvaluation(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"storage_key":      evaluation.StorageKey,
		"max_age_hours":    int(evaluation.MaxAge.Hours()),
		"submit_threshold": evaluation.SubmitThreshold,
		"sections": gin.H{
			"rrhh":  evaluation.HRSection,
			"legal": evaluation.LegalSection,
		},
	})
}
