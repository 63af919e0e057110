package httpapi

import "github.com/labstack/echo/v4"

// RegisterRoutes registers person, tree and export routes. Every route
// requires a viewer.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/v1")
	g.Use(RequireViewer())

	g.GET("/persons", h.ListPersons)
	g.POST("/persons", h.CreatePerson)
	g.GET("/persons/:id", h.GetPerson)
	g.PUT("/persons/:id", h.UpdatePerson)
	g.DELETE("/persons/:id", h.DeletePerson)
	g.PUT("/persons/:id/spouse", h.SetSpouse)

	// Tree rooted at :id, labelled relative to ?reference (defaults to :id)
	g.GET("/persons/:id/tree", h.Tree)
	g.POST("/persons/:id/tree/exports", h.ExportTree)

	g.GET("/reference", h.DefaultReference)
	g.GET("/exports", h.ListExports)
}
