package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fixmycity-be/controllers"
)

// IssueRoutes sets up the issue routes. submitGuards run before CreateIssue.
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController, submitGuards ...gin.HandlerFunc) {
	issues := r.Group("/api/issues")
	{
		issues.GET("", ic.GetAllIssues)
		issues.POST("", append(submitGuards, ic.CreateIssue)...)
		issues.GET("/:id/image", ic.GetIssueImage)
	}

	r.GET("/healthz", ic.Health)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}
