package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/autosave/internal/document"
	"github.com/gogotex/gogotex/backend/autosave/internal/document/service"
)

func RegisterDocumentRoutes(r gin.IRouter, svc service.Service) {
	r.GET("/api/documents", func(c *gin.Context) {
		f := document.Filter{Status: c.Query("status"), Type: c.Query("type")}
		list, err := svc.List(c.Request.Context(), f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]map[string]interface{}, 0, len(list))
		for _, d := range list {
			out = append(out, map[string]interface{}{"id": d.ID, "title": d.Title, "type": d.Type, "status": d.Status, "updatedAt": d.UpdatedAt})
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/api/documents", func(c *gin.Context) {
		var req struct {
			Title   string         `json:"title"`
			Slug    string         `json:"slug"`
			Type    string         `json:"type"`
			Content string         `json:"content"`
			Tags    []document.Tag `json:"tags"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d := &document.Document{Title: req.Title, Slug: req.Slug, Type: req.Type, Content: req.Content, Tags: req.Tags}
		id, err := svc.Create(c.Request.Context(), d)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "title": d.Title})
	})

	r.GET("/api/documents/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.PATCH("/api/documents/:id", func(c *gin.Context) {
		id := c.Param("id")
		var req struct {
			Title   *string `json:"title,omitempty"`
			Content string  `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Update(c.Request.Context(), id, req.Content, req.Title); err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	r.DELETE("/api/documents/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			writeErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func writeErr(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
