package web

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminUser is the basic auth user for write endpoints.
const AdminUser = "admin"

// adminOnly requires basic auth when the admin password is enabled.
func (s *Server) adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.deps.Admin {
			c.Next()
			return
		}
		user, pass, ok := c.Request.BasicAuth()
		if !ok || user != AdminUser || subtle.ConstantTimeCompare([]byte(pass), []byte(s.deps.Password)) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="bytelevel"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
