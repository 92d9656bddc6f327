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

type VoteRequest struct {
	VotableType string `json:"votable_type" validate:"required,oneof=question answer"`
	VotableID   string `json:"votable_id" validate:"required,uuid"`
	VoteType    string `json:"vote_type" validate:"required,oneof=up down"`
}

type VoteHandler struct {
	service  service.VoteService
	validate *validator.Validate
}

func NewVoteHandler(service service.VoteService) *VoteHandler {
	return &VoteHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *VoteHandler) CastVote(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgvalidator.FormatValidationError(err)})
		return
	}

	votableID, err := uuid.Parse(req.VotableID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid votable id"})
		return
	}

	result, err := h.service.CastVote(c.Request.Context(), userID, req.VotableType, votableID, req.VoteType)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
