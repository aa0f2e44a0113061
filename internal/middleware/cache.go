package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig controls the Cache-Control headers attached to GET
// responses. Everything served here is personal data, so the defaults
// are private and short-lived.
type CacheConfig struct {
	MaxAge         int
	Private        bool
	NoStore        bool
	MustRevalidate bool
	Vary           []string
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:         60,
		Private:        true,
		MustRevalidate: true,
		Vary:           []string{"Accept", "Authorization"},
	}
}

// Cache adds cache control headers to responses.
func Cache(config CacheConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}

		directives := make([]string, 0, 4)

		if config.NoStore {
			directives = append(directives, "no-store")
		} else {
			if config.Private {
				directives = append(directives, "private")
			} else {
				directives = append(directives, "public")
			}
			if config.MaxAge > 0 {
				directives = append(directives, "max-age="+strconv.Itoa(config.MaxAge))
			}
			if config.MustRevalidate {
				directives = append(directives, "must-revalidate")
			}
		}

		c.Header("Cache-Control", strings.Join(directives, ", "))

		if len(config.Vary) > 0 {
			c.Header("Vary", strings.Join(config.Vary, ", "))
		}

		c.Next()
	}
}
