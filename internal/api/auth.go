// Bearer-token authentication for the job endpoints.
//
// RESYNTH_API_TOKEN gates every route that can submit or inspect a
// resynthesis pass; when unset the engine runs open, which is only
// acceptable for local development. The websocket progress stream stays
// public so dashboards can watch a pass without holding the token.
package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates `Authorization: Bearer <RESYNTH_API_TOKEN>`
// on the job surface. An empty token disables the check; in
// GIN_MODE=release that leaves every pass endpoint open, so it is
// called out loudly at startup.
func AuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("RESYNTH_API_TOKEN")

	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[SECURITY WARNING] RESYNTH_API_TOKEN is not set in release mode; " +
			"anyone who can reach this engine can submit resynthesis jobs. " +
			"Set RESYNTH_API_TOKEN to enforce authentication.")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		presented, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed Authorization header",
				"hint":  "use: Authorization: Bearer <RESYNTH_API_TOKEN>",
			})
			c.Abort()
			return
		}

		// Constant-time comparison so response timing leaks nothing about
		// how much of a guessed token matched.
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// bearerToken extracts the credential from an Authorization header.
func bearerToken(header string) (string, bool) {
	scheme, cred, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || cred == "" {
		return "", false
	}
	return cred, true
}
