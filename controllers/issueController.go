package controllers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fixmycity-be/errs"
	"fixmycity-be/models"
)

// sniffLen matches the number of bytes mimetype inspects by default.
const sniffLen = 3072

// IssueService is the subset of services.IssueService the handlers use.
type IssueService interface {
	Submit(ctx context.Context, sub models.IssueSubmission) (int64, error)
	ListIssues(ctx context.Context) ([]models.Issue, error)
	OpenImage(ctx context.Context, id int64) (io.ReadCloser, string, error)
	Ping(ctx context.Context) error
}

// IssueController exposes issues over HTTP.
type IssueController struct {
	service IssueService
	log     *logrus.Entry
}

func NewIssueController(service IssueService, log *logrus.Entry) *IssueController {
	return &IssueController{service: service, log: log.WithField("component", "issue_controller")}
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	var input models.IssueSubmission
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	id, err := ic.service.Submit(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrDecode):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			ic.log.WithError(err).Error("Failed to create issue")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create issue"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "issue_id": id})
}

// GetAllIssues returns every issue, newest first
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	issues, err := ic.service.ListIssues(c.Request.Context())
	if err != nil {
		ic.log.WithError(err).Error("Failed to retrieve issues")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}
	if issues == nil {
		issues = []models.Issue{}
	}

	c.JSON(http.StatusOK, issues)
}

// GetIssueImage streams the photo attached to an issue
func (ic *IssueController) GetIssueImage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}

	rc, path, err := ic.service.OpenImage(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			ic.log.WithError(err).WithField("issue_id", id).Error("Failed to open image")
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	defer rc.Close()

	// Sniff the type from the head of the file and stream the rest.
	br := bufio.NewReaderSize(rc, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		ic.log.WithError(err).WithField("path", path).Error("Failed to read image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read image"})
		return
	}

	c.DataFromReader(http.StatusOK, -1, mimetype.Detect(head).String(), br, nil)
}

// Health reports whether the issue store is reachable
func (ic *IssueController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := ic.service.Ping(ctx); err != nil {
		ic.log.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
