package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the autosave service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>gogotex-autosave - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "gogotex-autosave", "version": "v0.1.0" },
  "paths": {
    "/api/revisions": {
      "post": {
        "summary": "Schedule a throttled snapshot of an in-progress edit",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["type"],"properties":{"type":{"type":"string","enum":["post","page"]},"document":{"$ref":"#/components/schemas/Revision"}}}}}},
        "responses": { "202": { "description": "scheduled" }, "400": { "description": "invalid payload" } }
      },
      "get": {
        "summary": "List stored revisions keyed by storage key",
        "parameters": [{ "name": "prefix", "in": "query", "schema": {"type":"string"} }],
        "responses": { "200": { "description": "map of key to revision" } }
      },
      "delete": { "summary": "Remove every revision", "responses": { "204": { "description": "cleared" } } }
    },
    "/api/revisions/summaries": {
      "get": { "summary": "Revisions grouped by title, newest first", "responses": { "200": { "description": "grouped listing" } } }
    },
    "/api/revisions/{key}": {
      "get": { "summary": "Get one revision", "parameters": [{ "name": "key", "in": "path", "required": true, "schema": {"type":"string"} }], "responses": { "200": { "description": "revision" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Remove one revision", "parameters": [{ "name": "key", "in": "path", "required": true, "schema": {"type":"string"} }], "responses": { "204": { "description": "removed" } } }
    },
    "/api/revisions/{key}/restore": {
      "post": { "summary": "Create a new draft document from a revision", "parameters": [{ "name": "key", "in": "path", "required": true, "schema": {"type":"string"} }], "responses": { "201": { "description": "document created" }, "404": { "description": "unknown revision" }, "422": { "description": "author could not be resolved" } } }
    },
    "/api/documents": {
      "get": { "summary": "List documents", "responses": { "200": { "description": "documents" } } },
      "post": { "summary": "Create a document", "responses": { "201": { "description": "created" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document", "parameters": [{ "name": "id", "in": "path", "required": true, "schema": {"type":"string"} }], "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  },
  "components": {
    "schemas": {
      "Revision": {
        "type": "object",
        "properties": {
          "id": {"type":"string"},
          "title": {"type":"string"},
          "body": {"type":"string"},
          "excerpt": {"type":"string"},
          "featureImage": {"type":"string"},
          "status": {"type":"string"},
          "slug": {"type":"string"},
          "authors": {"type":"array","items":{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"},"slug":{"type":"string"}}}},
          "tags": {"type":"array","items":{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"},"slug":{"type":"string"}}}}
        }
      }
    }
  }
}`
