package router

import (
	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/middleware"
	"github.com/akabemail-hash/asutkosks/internal/permission"
)

// Logical paths checked by RequirePermission for non-admin callers.
const (
	PathDashboard = "/dashboard"
	PathVisitForm = "/visit-form"
	PathReports   = "/admin/reports"
)

// RegisterVisits mounts the routes field users reach: recording visits, the
// report, their dashboard and the visit-type list.
func RegisterVisits(api *echo.Group, d Deps) {
	admin := middleware.RequireRole(permission.AdminRole)
	form := middleware.RequirePermission(PathVisitForm)

	visits := api.Group("/visits")
	visits.POST("", d.Visits.Create, form)
	visits.GET("/form-options", d.Visits.FormOptions, form)
	visits.GET("/my-visits", d.Visits.MyVisits, form)
	visits.GET("/report", d.Visits.Report, middleware.RequirePermission(PathReports))
	visits.GET("", d.Visits.Report, admin)
	visits.GET("/:id", d.Visits.Get, admin)
	visits.PUT("/:id", d.Visits.Update, admin)
	visits.DELETE("/:id", d.Visits.Delete, admin)

	types := api.Group("/visit-types")
	types.GET("", d.Taxonomy.ListVisitTypes)
	types.POST("", d.Taxonomy.CreateVisitType, admin)
	types.PUT("/:id", d.Taxonomy.UpdateVisitType, admin)
	types.DELETE("/:id", d.Taxonomy.DeleteVisitType, admin)

	api.GET("/stats/user", d.Stats.User, middleware.RequirePermission(PathDashboard))
}
