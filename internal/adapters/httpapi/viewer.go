package httpapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"kincore/internal/apperror"
	"kincore/pkg/domain"
)

// Viewer identity is asserted by the upstream auth proxy.
const (
	HeaderOwner = "X-Kincore-Owner"
	HeaderAdmin = "X-Kincore-Admin"
)

const viewerKey = "kincore.viewer"

// RequireViewer rejects requests without an owner header and stores the
// parsed domain.Viewer on the context.
func RequireViewer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			owner := strings.TrimSpace(c.Request().Header.Get(HeaderOwner))
			if owner == "" {
				return apperror.ErrUnauthorized.WithMessage("missing " + HeaderOwner + " header")
			}
			viewer := domain.Viewer{OwnerID: owner}
			if raw := c.Request().Header.Get(HeaderAdmin); raw != "" {
				admin, err := strconv.ParseBool(raw)
				if err != nil {
					return apperror.NewBadRequest("invalid " + HeaderAdmin + " header")
				}
				viewer.IsAdmin = admin
			}
			c.Set(viewerKey, viewer)
			return next(c)
		}
	}
}

// ViewerFrom returns the viewer stored by RequireViewer.
func ViewerFrom(c echo.Context) (domain.Viewer, bool) {
	v, ok := c.Get(viewerKey).(domain.Viewer)
	return v, ok
}
