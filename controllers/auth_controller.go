package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ygportal/config"
	"github.com/cppla/ygportal/middleware"
	"github.com/cppla/ygportal/utils"
)

const tokenTTL = 72 * time.Hour

// AuthController handles admin sign-in against the configured account.
type AuthController struct {
	blacklist *utils.TokenBlacklist
	guard     *utils.LoginGuard
}

// NewAuthController creates an AuthController. guard may be nil.
func NewAuthController(blacklist *utils.TokenBlacklist, guard *utils.LoginGuard) *AuthController {
	return &AuthController{blacklist: blacklist, guard: guard}
}

// Login verifies the admin credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	ip := ctx.ClientIP()
	if a.guard.IsBanned(ctx.Request.Context(), ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42902, "too many failed attempts, try again later")
		return
	}

	cfg := config.Get()
	email := strings.TrimSpace(req.Email)
	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" ||
		!strings.EqualFold(email, cfg.AdminEmail) ||
		!utils.CheckPassword(cfg.AdminPasswordHash, req.Password) {
		a.guard.RecordFailure(ctx.Request.Context(), ip)
		utils.Sugar.Infow("admin login rejected", "ip", ip)
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
		return
	}

	token, err := utils.GenerateToken(cfg.AdminEmail, utils.RoleAdmin, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_in": int(tokenTTL.Seconds()),
		"user":       gin.H{"email": cfg.AdminEmail, "role": utils.RoleAdmin},
	})
}

// Logout revokes the current token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	claims, ok := currentClaims(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	expiresAt := time.Now().Add(tokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	a.blacklist.Revoke(ctx.Request.Context(), claims.ID, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated admin identity.
func (a *AuthController) Me(ctx *gin.Context) {
	claims, ok := currentClaims(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	utils.Success(ctx, gin.H{"email": claims.Email, "role": claims.Role})
}

func currentClaims(ctx *gin.Context) (*utils.Claims, bool) {
	v, exists := ctx.Get(middleware.ContextClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}
