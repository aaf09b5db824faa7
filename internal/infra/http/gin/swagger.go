package ginserver

import (
	_ "embed"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const swaggerSpecPath = "/swagger/doc.json"

var (
	//go:embed swagger/openapi.json
	swaggerSpec []byte

	//go:embed swagger/index.html
	swaggerTemplate string

	swaggerPage = []byte(strings.ReplaceAll(swaggerTemplate, "{{SPEC_URL}}", swaggerSpecPath))
)

// registerSwaggerRoutes serves the embedded booking API document and its viewer.
func registerSwaggerRoutes(router gin.IRoutes) {
	router.GET(swaggerSpecPath, func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "application/json", swaggerSpec)
	})
	router.GET("/swagger", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", swaggerPage)
	})
}
