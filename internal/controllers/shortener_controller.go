package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"snaplink/internal/models"
	"snaplink/internal/service"
)

type ShortenerController struct {
	linkService service.LinkService
	log         *logrus.Logger
}

func NewShortenerController(linkService service.LinkService, log *logrus.Logger) *ShortenerController {
	return &ShortenerController{
		linkService: linkService,
		log:         log,
	}
}

// ownerFrom reads the optional owner identity set by the upstream edge.
// Absent header means an anonymous link.
func ownerFrom(c *gin.Context) *string {
	if owner := c.GetHeader("X-Owner-Id"); owner != "" {
		return &owner
	}
	return nil
}

// CreateShortLink handles POST /api/v1/shorten
func (sc *ShortenerController) CreateShortLink(c *gin.Context) {
	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	response, err := sc.linkService.Create(c.Request.Context(), &req, ownerFrom(c))
	if err != nil {
		sc.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// RedirectToURL handles GET /:code - redirects to the destination URL
func (sc *ShortenerController) RedirectToURL(c *gin.Context) {
	code := c.Param("code")

	longURL, err := sc.linkService.Resolve(c.Request.Context(), code)
	if err != nil {
		sc.renderError(c, err)
		return
	}

	// 302, not 301: expiry and deletion mean a mapping is not permanent, and
	// browsers cache 301 forever.
	c.Redirect(http.StatusFound, longURL)
}

// GetLinkStats handles GET /api/v1/url/:code/stats
func (sc *ShortenerController) GetLinkStats(c *gin.Context) {
	code := c.Param("code")

	stats, err := sc.linkService.Stats(c.Request.Context(), code)
	if err != nil {
		sc.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetOwnerLinks handles GET /api/v1/urls - lists links for the calling owner
func (sc *ShortenerController) GetOwnerLinks(c *gin.Context) {
	owner := ownerFrom(c)
	if owner == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "X-Owner-Id header required",
		})
		return
	}

	links, err := sc.linkService.ListByOwner(c.Request.Context(), *owner)
	if err != nil {
		sc.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, links)
}

// DeleteLink handles DELETE /api/v1/url/:code
func (sc *ShortenerController) DeleteLink(c *gin.Context) {
	code := c.Param("code")

	if err := sc.linkService.Delete(c.Request.Context(), code); err != nil {
		sc.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Link deleted",
	})
}
