package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are route patterns reachable without credentials.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/api/v1/auth/login": true,
	"/api/v1/certificates/verify/:document_id": true,
}

// AuthSkipper returns true for requests whose matched route is public.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the route pattern is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
