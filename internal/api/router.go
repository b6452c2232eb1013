// api/router.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	apiGroup := r.Group("/api", s.requireAccess())
	{
		r.GET("/api/meta", s.requireAccess(), s.metaList)
		r.GET("/api/meta/:module/:entity", s.requireAccess(), s.metaEntity)

		apiGroup.POST("/admin/reload", s.adminReload)

		apiGroup.POST("/:module/:entity/:id/_file/:field", s.uploadFile)
		apiGroup.GET("/attachments/:id/download", s.downloadAttachment)

		// обычные CRUD
		apiGroup.POST("/:module/:entity", s.create)
		apiGroup.GET("/:module/:entity", s.list)
		apiGroup.GET("/:module/:entity/:id", s.getOne)
		apiGroup.PUT("/:module/:entity/:id", s.update)
		apiGroup.DELETE("/:module/:entity/:id", s.remove)
	}

	return r
}

func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

// requireAccess закрывает API, пока контроллер не пускает в основной вид.
func (s *Server) requireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Access != nil && !s.Access.CanAccessMainView() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed"})
			return
		}
		c.Next()
	}
}
