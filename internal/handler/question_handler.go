package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/service"
	"github.com/oneceylon/oneceylon/pkg/response"
	pkgvalidator "github.com/oneceylon/oneceylon/pkg/validator"
)

type AskQuestionRequest struct {
	Title  string   `json:"title" validate:"required,min=10,max=255"`
	Body   string   `json:"body" validate:"required,min=20"`
	TagIDs []string `json:"tag_ids" validate:"required,min=1,max=5,dive,uuid"`
}

type AnswerRequest struct {
	Body string `json:"body" validate:"required,min=20"`
}

type EditQuestionRequest struct {
	Body string `json:"body" validate:"required,min=20"`
}

type CloseVoteRequest struct {
	ReasonKey string `json:"reason_key" validate:"required"`
	Details   string `json:"details" validate:"omitempty,max=2000"`
}

type QuestionHandler struct {
	qaService      service.QAService
	closureService service.ClosureService
	qualityService service.QualityService
	validate       *validator.Validate
}

func NewQuestionHandler(qaService service.QAService, closureService service.ClosureService, qualityService service.QualityService) *QuestionHandler {
	return &QuestionHandler{
		qaService:      qaService,
		closureService: closureService,
		qualityService: qualityService,
		validate:       validator.New(),
	}
}

func (h *QuestionHandler) AskQuestion(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgvalidator.FormatValidationError(err)})
		return
	}

	tagIDs := make([]uuid.UUID, 0, len(req.TagIDs))
	for _, raw := range req.TagIDs {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
			return
		}
		tagIDs = append(tagIDs, tagID)
	}

	question, err := h.qaService.AskQuestion(c.Request.Context(), userID, req.Title, req.Body, tagIDs)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": question})
}

func (h *QuestionHandler) AnswerQuestion(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgvalidator.FormatValidationError(err)})
		return
	}

	answer, err := h.qaService.AnswerQuestion(c.Request.Context(), userID, questionID, req.Body)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": answer})
}

func (h *QuestionHandler) EditQuestion(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	var req EditQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgvalidator.FormatValidationError(err)})
		return
	}

	if err := h.qaService.EditQuestion(c.Request.Context(), userID, questionID, req.Body); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "question updated"})
}

func (h *QuestionHandler) AcceptAnswer(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	answerID, err := uuid.Parse(c.Param("answer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid answer id"})
		return
	}

	if err := h.qaService.AcceptAnswer(c.Request.Context(), userID, answerID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "answer accepted"})
}

func (h *QuestionHandler) CastCloseVote(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	var req CloseVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgvalidator.FormatValidationError(err)})
		return
	}

	result, err := h.closureService.CastCloseVote(c.Request.Context(), questionID, userID, req.ReasonKey, req.Details)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *QuestionHandler) CastReopenVote(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	result, err := h.closureService.CastReopenVote(c.Request.Context(), questionID, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ClosureStatus reports whether a question is closed and how its pending
// close or reopen vote pool stands.
func (h *QuestionHandler) ClosureStatus(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	status, err := h.closureService.Status(c.Request.Context(), questionID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

// ReopenQuestion reopens a closed question directly, bypassing the community
// vote threshold. Reserved for moderators via route middleware.
func (h *QuestionHandler) ReopenQuestion(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}

	if err := h.closureService.ReopenQuestion(c.Request.Context(), questionID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "question reopened"})
}

// BanStatus lets a user check their own question-ban standing.
func (h *QuestionHandler) BanStatus(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	status, err := h.qualityService.CheckQualityBan(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}
