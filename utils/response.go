package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Notice  string      `json:"notice,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, 0, "success", data)
}

// SuccessWithNotice returns a success response carrying a user-facing notice.
func SuccessWithNotice(ctx *gin.Context, status int, notice string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    0,
		Message: "success",
		Notice:  notice,
		Data:    data,
	})
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// ValidationFailed answers 422 with the per-field messages under data.errors.
func ValidationFailed(ctx *gin.Context, code int, fields map[string]string) {
	Respond(ctx, http.StatusUnprocessableEntity, code, "validation failed", gin.H{"errors": fields})
}
