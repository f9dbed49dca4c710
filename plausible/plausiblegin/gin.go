// Package plausiblegin mounts a plausible.Interceptor on a gin engine
package plausiblegin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DockYard/plausible-proxy/plausible"
)

// Middleware returns a gin handler running interceptor in front of the
// rest of the chain. Relayed requests are aborted once answered so later
// handlers don't run, other requests continue with c.Next.
func Middleware(interceptor *plausible.Interceptor) gin.HandlerFunc {
	return func(c *gin.Context) {
		passedThrough := false

		interceptor.ServeHTTP(c.Writer, c.Request, func(w http.ResponseWriter, r *http.Request) {
			passedThrough = true
			c.Request = r
			c.Next()
		})

		if !passedThrough {
			c.Abort()
		}
	}
}
