package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/service"
	"github.com/oneceylon/oneceylon/pkg/response"
)

type BadgeHandler struct {
	badgeService    service.BadgeService
	tagBadgeService service.TagBadgeService
}

func NewBadgeHandler(badgeService service.BadgeService, tagBadgeService service.TagBadgeService) *BadgeHandler {
	return &BadgeHandler{
		badgeService:    badgeService,
		tagBadgeService: tagBadgeService,
	}
}

func (h *BadgeHandler) MyBadges(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	badges, err := h.badgeService.ListUserBadges(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": badges})
}

func (h *BadgeHandler) MyTagBadges(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	tagID, err := uuid.Parse(c.Param("tag_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
		return
	}

	badges, err := h.tagBadgeService.ListUserBadgesForTag(c.Request.Context(), userID, tagID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": badges})
}

// ReactivateTagBadge re-checks an inactive gold badge on demand.
func (h *BadgeHandler) ReactivateTagBadge(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	tagID, err := uuid.Parse(c.Param("tag_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
		return
	}

	reactivated, err := h.tagBadgeService.ReactivateInactiveBadge(c.Request.Context(), userID, tagID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reactivated": reactivated})
}
