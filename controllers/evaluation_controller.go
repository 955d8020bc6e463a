package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/ygportal/evaluation"
	"github.com/cppla/ygportal/utils"
)

// EvaluationClientCookie identifies the browser owning a draft.
const EvaluationClientCookie = "evaluation_client"

// StorageFactory returns the draft slot store for one client.
type StorageFactory func(clientID string) evaluation.Storage

// EvaluationController keeps per-client questionnaire drafts and evaluates the submission gate.
type EvaluationController struct {
	storageFor StorageFactory
	logger     *zap.Logger
}

func NewEvaluationController(storageFor StorageFactory, logger *zap.Logger) *EvaluationController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationController{storageFor: storageFor, logger: logger}
}

type draftRequest struct {
	Answers     map[int]evaluation.Answer `json:"answers"`
	ShowResults bool                      `json:"showResults"`
}

// GetDraft returns the saved draft, or an empty one when nothing valid is stored.
func (e *EvaluationController) GetDraft(ctx *gin.Context) {
	cache := e.cacheFor(ctx)
	utils.Success(ctx, draftPayload(cache.Load(ctx.Request.Context())))
}

// SaveDraft replaces the whole draft.
func (e *EvaluationController) SaveDraft(ctx *gin.Context) {
	var req draftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid evaluation payload")
		return
	}

	snap := e.mutate(ctx, func(s *evaluation.State) {
		s.ReplaceAnswers(req.Answers)
		if s.Snapshot().ShowResults != req.ShowResults {
			s.SetShowResults(req.ShowResults)
		}
	})
	utils.Success(ctx, draftPayload(snap))
}

// SetAnswer records the answer to one question.
func (e *EvaluationController) SetAnswer(ctx *gin.Context) {
	id, ok := parseQuestion(ctx)
	if !ok {
		return
	}
	raw, err := ctx.GetRawData()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid evaluation payload")
		return
	}
	var answer evaluation.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, err.Error())
		return
	}

	snap := e.mutate(ctx, func(s *evaluation.State) { s.SetAnswer(id, answer) })
	utils.Success(ctx, draftPayload(snap))
}

// RemoveAnswer forgets the answer to one question.
func (e *EvaluationController) RemoveAnswer(ctx *gin.Context) {
	id, ok := parseQuestion(ctx)
	if !ok {
		return
	}
	snap := e.mutate(ctx, func(s *evaluation.State) { s.RemoveAnswer(id) })
	utils.Success(ctx, draftPayload(snap))
}

// ClearDraft removes the stored draft.
func (e *EvaluationController) ClearDraft(ctx *gin.Context) {
	e.cacheFor(ctx).Clear(ctx.Request.Context())
	utils.Success(ctx, draftPayload(evaluation.Snapshot{Answers: map[int]evaluation.Answer{}}))
}

// Validate evaluates the submission gate over the posted answers without storing them.
func (e *EvaluationController) Validate(ctx *gin.Context) {
	var req draftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid evaluation payload")
		return
	}
	utils.Success(ctx, gin.H{"status": evaluation.Evaluate(req.Answers)})
}

// mutate hydrates the client's state, applies fn with auto-save attached and
// returns the resulting snapshot.
func (e *EvaluationController) mutate(ctx *gin.Context, fn func(*evaluation.State)) evaluation.Snapshot {
	reqCtx := context.WithoutCancel(ctx.Request.Context())
	cache := e.cacheFor(ctx)

	state := evaluation.NewState()
	state.Restore(cache.Load(reqCtx))
	stop := evaluation.AutoSave(reqCtx, state, cache)
	defer stop()

	fn(state)
	return state.Snapshot()
}

func (e *EvaluationController) cacheFor(ctx *gin.Context) *evaluation.Cache {
	client := clientID(ctx)
	return evaluation.NewCache(e.storageFor(client), e.logger.With(zap.String("client", client)))
}

// clientID reads the client cookie, issuing a fresh id when absent or malformed.
func clientID(ctx *gin.Context) string {
	if v, err := ctx.Cookie(EvaluationClientCookie); err == nil {
		if _, err := uuid.Parse(v); err == nil {
			return v
		}
	}
	id := uuid.NewString()
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(EvaluationClientCookie, id, int(evaluation.MaxAge.Seconds()), "/", "", false, true)
	return id
}

func draftPayload(s evaluation.Snapshot) gin.H {
	if s.Answers == nil {
		s.Answers = map[int]evaluation.Answer{}
	}
	return gin.H{
		"answers":     s.Answers,
		"showResults": s.ShowResults,
		"status":      evaluation.Evaluate(s.Answers),
	}
}

func parseQuestion(ctx *gin.Context) (int, bool) {
	id, err := strconv.Atoi(ctx.Param("question"))
	if err != nil || id <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid question id")
		return 0, false
	}
	return id, true
}
