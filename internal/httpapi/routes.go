package httpapi

import "github.com/gofiber/fiber/v2"

// RegisterRoutes wires the job lifecycle API onto app, guarding the
// mutation endpoints with jwtSecret.
func RegisterRoutes(app *fiber.App, h *Handlers, jwtSecret string) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	jobs := v1.Group("/jobs")

	jobs.Post("/", JWTGuard(jwtSecret), h.Submit)
	jobs.Get("/:id", h.Status)
	jobs.Get("/:id/result", h.Result)
	jobs.Get("/:id/events", h.StreamEvents)
	jobs.Post("/:id/cancel", JWTGuard(jwtSecret), h.Cancel)

	annotations := jobs.Group("/:id/annotations/:annotation_id")
	annotations.Post("/promote", JWTGuard(jwtSecret), h.Promote)
	annotations.Post("/reject", JWTGuard(jwtSecret), h.Reject)
	annotations.Post("/restore", JWTGuard(jwtSecret), h.Restore)
	annotations.Get("/lineage", h.Lineage)

	jobs.Post("/:id/cascade_promote", JWTGuard(jwtSecret), h.CascadePromote)
	jobs.Post("/:id/bulk_reject", JWTGuard(jwtSecret), h.BulkReject)
}
