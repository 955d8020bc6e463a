package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ygportal/services"
	"github.com/cppla/ygportal/utils"
)

const (
	cacheListPrefix   = "cache:posts:list:"
	cacheDetailPrefix = "cache:post:detail:"
)

// PostController serves the admin post management API and the guest reading API.
type PostController struct {
	posts *services.PostService
	cache *utils.ResponseCache
}

// NewPostController creates a new PostController instance. cache may be nil.
func NewPostController(posts *services.PostService, cache *utils.ResponseCache) *PostController {
	return &PostController{posts: posts, cache: cache}
}

// AdminListPosts returns one page of posts filtered by category, status and title search.
func (p *PostController) AdminListPosts(ctx *gin.Context) {
	filter := services.PostFilter{
		Category: ctx.Query("category"),
		Status:   ctx.Query("status"),
		Search:   ctx.Query("search"),
	}.Normalize()

	res, err := p.posts.List(ctx.Request.Context(), filter, parsePage(ctx.Query("page")))
	if err != nil {
		p.fail(ctx, err, 50021, "failed to list posts")
		return
	}
	utils.Success(ctx, listPayload(res, filter))
}

// AdminGetPost returns a post in any status.
func (p *PostController) AdminGetPost(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	post, err := p.posts.Get(ctx.Request.Context(), id)
	if err != nil {
		p.fail(ctx, err, 50023, "failed to load post")
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// CreatePost stores a new post from a multipart submission.
func (p *PostController) CreatePost(ctx *gin.Context) {
	in, err := bindPostInput(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	post, err := p.posts.Create(ctx.Request.Context(), in)
	if err != nil {
		p.fail(ctx, err, 50020, "failed to create post")
		return
	}

	p.invalidate(ctx)
	utils.SuccessWithNotice(ctx, http.StatusCreated, "Post created successfully.", gin.H{"post": post})
}

// UpdatePost replaces the post fields; attachments are only replaced when re-uploaded.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	in, err := bindPostInput(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	post, err := p.posts.Update(ctx.Request.Context(), id, in)
	if err != nil {
		p.fail(ctx, err, 50024, "failed to update post")
		return
	}

	p.invalidate(ctx)
	utils.SuccessWithNotice(ctx, http.StatusOK, "Post updated successfully.", gin.H{"post": post})
}

// ChangeStatus moves a post between draft, published and deleted.
func (p *PostController) ChangeStatus(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" form:"status"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	post, err := p.posts.ChangeStatus(ctx.Request.Context(), id, req.Status)
	if err != nil {
		p.fail(ctx, err, 50025, "failed to change post status")
		return
	}

	p.invalidate(ctx)
	utils.SuccessWithNotice(ctx, http.StatusOK, "Post status updated.", gin.H{"post": post})
}

// DeletePost removes the post and its attachments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := p.posts.Destroy(ctx.Request.Context(), id); err != nil {
		p.fail(ctx, err, 50026, "failed to delete post")
		return
	}

	p.invalidate(ctx)
	utils.SuccessWithNotice(ctx, http.StatusOK, "Post deleted successfully.", gin.H{"id": id})
}

// ListPosts returns published posts for guests.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page := parsePage(ctx.Query("page"))
	filter := services.PostFilter{
		Category: ctx.Query("category"),
		Search:   ctx.Query("search"),
	}.Normalize()

	// Cache category lists only when no search term to avoid cache key explosion
	cacheKey := ""
	if filter.Search == "" {
		cacheKey = fmt.Sprintf("%scat=%s:page=%d", cacheListPrefix, filter.Category, page)
		if b, ok := p.cache.GetBytes(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	res, err := p.posts.ListPublished(ctx.Request.Context(), filter, page)
	if err != nil {
		p.fail(ctx, err, 50021, "failed to list posts")
		return
	}

	payload := listPayload(res, filter)
	if cacheKey != "" {
		p.cache.SetJSON(ctx.Request.Context(), cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload})
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single published post.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	cacheKey := cacheDetailPrefix + strconv.FormatUint(uint64(id), 10)
	if b, ok := p.cache.GetBytes(ctx.Request.Context(), cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	post, err := p.posts.GetPublished(ctx.Request.Context(), id)
	if err != nil {
		p.fail(ctx, err, 50023, "failed to load post")
		return
	}

	payload := gin.H{"post": post, "display_image": post.ImageURLOr(ImagePlaceholder)}
	p.cache.SetJSON(ctx.Request.Context(), cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload})
	utils.Success(ctx, payload)
}

func (p *PostController) invalidate(ctx *gin.Context) {
	p.cache.InvalidateByPrefix(ctx.Request.Context(), cacheListPrefix)
	p.cache.InvalidateByPrefix(ctx.Request.Context(), cacheDetailPrefix)
}

func (p *PostController) fail(ctx *gin.Context, err error, code int, message string) {
	var verr *services.ValidationError
	var serr *services.StorageWriteError
	switch {
	case errors.As(err, &verr):
		utils.ValidationFailed(ctx, 42201, verr.Fields)
	case errors.Is(err, services.ErrPostNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
	case errors.As(err, &serr):
		utils.Sugar.Errorw("attachment write failed", "field", serr.Field, "error", serr.Err)
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to store "+serr.Field)
	default:
		utils.Sugar.Errorw(message, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, code, message)
	}
}

func listPayload(res *services.PagedResult, filter services.PostFilter) gin.H {
	return gin.H{
		"items": res.Items,
		"pagination": gin.H{
			"page":        res.Page,
			"page_size":   res.PageSize,
			"total":       res.Total,
			"total_pages": res.TotalPages,
		},
		"filters": filter,
	}
}

// bindPostInput reads the multipart (or urlencoded) post form.
func bindPostInput(ctx *gin.Context) (services.PostInput, error) {
	if strings.HasPrefix(ctx.ContentType(), "multipart/") {
		if _, err := ctx.MultipartForm(); err != nil {
			return services.PostInput{}, err
		}
	}

	in := services.PostInput{
		Title:    ctx.PostForm("title"),
		Content:  ctx.PostForm("content"),
		Category: ctx.PostForm("category"),
		Status:   ctx.PostForm("status"),
	}
	if v, ok := ctx.GetPostForm("subscription"); ok {
		in.Subscription = &v
	} else if v, ok := ctx.GetPostForm("subscriptionFlag"); ok {
		in.Subscription = &v
	}

	var err error
	if in.Image, err = formUpload(ctx, "image"); err != nil {
		return in, err
	}
	if in.File, err = formUpload(ctx, "file"); err != nil {
		return in, err
	}
	return in, nil
}

func formUpload(ctx *gin.Context, field string) (*services.Upload, error) {
	fh, err := ctx.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return uploadFromHeader(fh), nil
}

func uploadFromHeader(fh *multipart.FileHeader) *services.Upload {
	return &services.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open:     func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func parseID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return 0, false
	}
	return uint(id), true
}

func parsePage(pageStr string) int {
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		return p
	}
	return 1
}
