package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gogotex/gogotex/backend/autosave/internal/models"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/service"
	"github.com/gogotex/gogotex/backend/autosave/pkg/logger"
	"github.com/gogotex/gogotex/backend/autosave/pkg/middleware"
)

// ClaimsUpserter records the authenticated caller as a user.
type ClaimsUpserter interface {
	UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error)
}

type saveRequest struct {
	Type     revision.DocumentType `json:"type" binding:"required"`
	Document revision.Revision     `json:"document"`
}

// RegisterRevisionRoutes mounts the autosave API on r. users may be nil, in
// which case snapshots are stored with the authors the client sent.
func RegisterRevisionRoutes(r gin.IRouter, svc *service.Service, users ClaimsUpserter) {
	r.POST("/api/revisions", func(c *gin.Context) {
		var req saveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Type != revision.TypePost && req.Type != revision.TypePage {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type must be post or page"})
			return
		}
		if len(req.Document.Authors) == 0 && users != nil {
			if ref, ok := callerAuthor(c, users); ok {
				req.Document.Authors = []revision.AuthorRef{ref}
			}
		}

		svc.ScheduleSave(req.Type, req.Document)

		resp := gin.H{"scheduled": true}
		if fireAt, pending := svc.PendingSave(); pending && !fireAt.IsZero() {
			resp["fireAt"] = fireAt.UTC()
		}
		c.JSON(http.StatusAccepted, resp)
	})

	r.GET("/api/revisions", func(c *gin.Context) {
		all, err := svc.FindAll(c.Request.Context(), c.Query("prefix"))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, all)
	})

	r.GET("/api/revisions/summaries", func(c *gin.Context) {
		groups, err := svc.ListSummaries(c.Request.Context())
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, groups)
	})

	r.GET("/api/revisions/:key", func(c *gin.Context) {
		rev, err := svc.Find(c.Request.Context(), c.Param("key"))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rev)
	})

	r.DELETE("/api/revisions/:key", func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), c.Param("key")); err != nil {
			writeErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.DELETE("/api/revisions", func(c *gin.Context) {
		if err := svc.Clear(c.Request.Context()); err != nil {
			writeErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/api/revisions/:key/restore", func(c *gin.Context) {
		doc, err := svc.Restore(c.Request.Context(), c.Param("key"))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	})
}

// callerAuthor turns the verified claims of the request into an author reference.
func callerAuthor(c *gin.Context, users ClaimsUpserter) (revision.AuthorRef, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		return revision.AuthorRef{}, false
	}
	u, err := users.UpsertFromClaims(c.Request.Context(), claims)
	if err != nil {
		logger.Warnf("record revision author: %v", err)
		return revision.AuthorRef{}, false
	}
	if u == nil {
		return revision.AuthorRef{}, false
	}
	return revision.AuthorRef{ID: u.ID, Name: u.Name, Slug: u.Slug}, true
}

func writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrAuthorResolution), errors.Is(err, service.ErrCorrupt):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoHost):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
