package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/ygportal/config"
	"github.com/cppla/ygportal/controllers"
	"github.com/cppla/ygportal/models"
	"github.com/cppla/ygportal/utils"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Notice  string          `json:"notice"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	hash, err := utils.HashPassword("secret")
	require.NoError(t, err)
	config.Set(config.AppConfig{
		JWTSecret:         "test-secret",
		GinMode:           "test",
		GinPath:           filepath.Join(dir, "logs", "gin.log"),
		StorageRoot:       filepath.Join(dir, "public"),
		StoragePublicBase: "/storage",
		AdminEmail:        "admin@example.com",
		AdminPasswordHash: hash,
	})

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Post{}, &models.OrphanAttachment{}))

	r, err := SetupRouter(db, nil)
	require.NoError(t, err)
	return &testServer{t: t, router: r}
}

func (s *testServer) do(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	if s.token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) doJSON(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *testServer) doForm(method, path string, fields map[string]string, files map[string][]byte) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".png")
		require.NoError(s.t, err)
		_, err = fw.Write(data)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func (s *testServer) login() {
	w, env := s.doJSON(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "admin@example.com", "password": "secret"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	s.token = data.Token
}

type postData struct {
	Post         models.Post `json:"post"`
	DisplayImage string      `json:"display_image"`
}

type listData struct {
	Items      []models.Post `json:"items"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
	Filters map[string]string `json:"filters"`
}

func TestLogin(t *testing.T) {
	s := setupServer(t)

	w, _ := s.doJSON(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "admin@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.doJSON(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.login()
	w, env := s.doJSON(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "admin@example.com")

	w, _ = s.doJSON(http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.doJSON(http.MethodGet, "/api/v1/admin/posts", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := setupServer(t)
	w, env := s.doJSON(http.MethodGet, "/api/v1/admin/posts", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, env.Code)
}

func TestPostLifecycle(t *testing.T) {
	s := setupServer(t)
	s.login()

	// validation errors are reported per field
	w, env := s.doForm(http.MethodPost, "/api/v1/admin/posts", map[string]string{"status": "archived"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var verr struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &verr))
	assert.Contains(t, verr.Errors, "title")
	assert.Contains(t, verr.Errors, "content")
	assert.Contains(t, verr.Errors, "category")
	assert.Contains(t, verr.Errors, "status")

	// create with an image
	w, env = s.doForm(http.MethodPost, "/api/v1/admin/posts", map[string]string{
		"title": "T", "content": "C", "category": "Legal", "status": "draft", "subscription": "on",
	}, map[string][]byte{"image": pngBytes})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Post created successfully.", env.Notice)
	var created postData
	require.NoError(t, json.Unmarshal(env.Data, &created))
	post := created.Post
	assert.True(t, post.Subscription)
	require.NotNil(t, post.ImageURL)
	assert.True(t, strings.HasPrefix(*post.ImageURL, "/storage/posts/images/"))
	assert.Nil(t, post.FileURL)

	w, _ = s.do(httptest.NewRequest(http.MethodGet, *post.ImageURL, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// admin listing echoes filters
	w, env = s.doJSON(http.MethodGet, "/api/v1/admin/posts?category=Legal&status=draft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list listData
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, post.ID, list.Items[0].ID)
	assert.Equal(t, "Legal", list.Filters["category"])
	assert.Equal(t, "draft", list.Filters["status"])

	// drafts stay hidden from guests
	w, env = s.doJSON(http.MethodGet, "/api/v1/posts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = listData{}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Items)
	guestPath := fmt.Sprintf("/api/v1/posts/%d", post.ID)
	w, _ = s.doJSON(http.MethodGet, guestPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// publish, with the status literal in any casing
	statusPath := fmt.Sprintf("/api/v1/admin/posts/%d/status", post.ID)
	w, env = s.doJSON(http.MethodPatch, statusPath, gin.H{"status": "Published"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Post status updated.", env.Notice)

	w, env = s.doJSON(http.MethodGet, guestPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var guest postData
	require.NoError(t, json.Unmarshal(env.Data, &guest))
	assert.Equal(t, *post.ImageURL, guest.DisplayImage)

	w, _ = s.doJSON(http.MethodPatch, statusPath, gin.H{"status": "archived"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// update keeps the image when none is uploaded
	adminPath := fmt.Sprintf("/api/v1/admin/posts/%d", post.ID)
	w, env = s.doForm(http.MethodPut, adminPath, map[string]string{
		"title": "T2", "content": "C", "category": "RRHH", "status": "published",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated postData
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "T2", updated.Post.Title)
	assert.Equal(t, post.ImagePath, updated.Post.ImagePath)
	assert.True(t, updated.Post.Subscription)

	// stats
	w, env = s.doJSON(http.MethodGet, "/api/v1/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"published":1`)

	// destroy removes the row and the blob
	w, env = s.doJSON(http.MethodDelete, adminPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Post deleted successfully.", env.Notice)
	w, _ = s.doJSON(http.MethodGet, adminPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = s.do(httptest.NewRequest(http.MethodGet, *post.ImageURL, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidPostID(t *testing.T) {
	s := setupServer(t)
	w, env := s.doJSON(http.MethodGet, "/api/v1/posts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40030, env.Code)
}

func TestEvaluationDraft(t *testing.T) {
	s := setupServer(t)

	w, env := s.doJSON(http.MethodPut, "/api/v1/evaluation/draft", gin.H{
		"answers":     gin.H{"1": "Ana", "15": 12, "12": []string{"contracts"}},
		"showResults": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, controllers.EvaluationClientCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	withCookie := func(req *http.Request) *http.Request {
		req.AddCookie(cookies[0])
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	w, env = s.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/v1/evaluation/draft", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	var draft struct {
		Answers     map[string]any `json:"answers"`
		ShowResults bool           `json:"showResults"`
		Status      struct {
			HR struct {
				Answered int `json:"answered"`
			} `json:"rrhh"`
			Legal struct {
				Answered int `json:"answered"`
			} `json:"legal"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &draft))
	assert.Equal(t, "Ana", draft.Answers["1"])
	assert.True(t, draft.ShowResults)
	assert.Equal(t, 2, draft.Status.HR.Answered)
	assert.Equal(t, 1, draft.Status.Legal.Answered)

	// another client sees nothing
	w, env = s.doJSON(http.MethodGet, "/api/v1/evaluation/draft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"answers":{}`)

	w, env = s.do(withCookie(httptest.NewRequest(http.MethodPut, "/api/v1/evaluation/draft/answers/5", strings.NewReader(`"a"`))))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), "at least 2 characters")

	w, _ = s.do(withCookie(httptest.NewRequest(http.MethodPut, "/api/v1/evaluation/draft/answers/5", strings.NewReader(`{"x":1}`))))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(withCookie(httptest.NewRequest(http.MethodDelete, "/api/v1/evaluation/draft/answers/5", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), `"5"`)

	w, _ = s.do(withCookie(httptest.NewRequest(http.MethodDelete, "/api/v1/evaluation/draft", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/v1/evaluation/draft", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"answers":{}`)
}

func TestEvaluationValidate(t *testing.T) {
	s := setupServer(t)
	w, env := s.doJSON(http.MethodPost, "/api/v1/evaluation/validate", gin.H{"answers": gin.H{"15": 60}})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Status struct {
			CanSubmit bool `json:"canSubmit"`
			Format    struct {
				Errors []string `json:"errors"`
			} `json:"format"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.False(t, data.Status.CanSubmit)
	require.Len(t, data.Status.Format.Errors, 1)
	assert.Contains(t, data.Status.Format.Errors[0], "0 and 50")
}

func TestConfigEndpoints(t *testing.T) {
	s := setupServer(t)
	w, env := s.doJSON(http.MethodGet, "/api/v1/config/evaluation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"storage_key":"evaluation_answers_yg","max_age_hours":24,"submit_threshold":80,
		"sections":{"rrhh":[1,2,3,4,5,6,7,15,16],"legal":[8,9,10,11,12,13,14]}}`, string(env.Data))

	w, env = s.doJSON(http.MethodGet, "/api/v1/config/site", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "no-image-placeholder")

	w, env = s.doJSON(http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, env.Code)
}

func TestDraftStorageWithoutRedis(t *testing.T) {
	storageFor := draftStorage(nil)
	ctx := context.Background()

	require.NoError(t, storageFor("a").Set(ctx, "k", "v"))
	v, ok, err := storageFor("a").Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok, err = storageFor("b").Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
