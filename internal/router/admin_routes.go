package router

import (
	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/middleware"
	"github.com/akabemail-hash/asutkosks/internal/permission"
)

// RegisterAdmin mounts the admin-only management routes.  Account, role and
// bulk kiosk operations also require a token issued for the caller's
// current role.
func RegisterAdmin(api *echo.Group, d Deps) {
	admin := middleware.RequireRole(permission.AdminRole)
	fresh := middleware.RequireFreshRole(d.Accounts)

	users := api.Group("/users", admin, fresh)
	users.GET("", d.Users.List)
	users.POST("", d.Users.Create)
	users.PUT("/:id", d.Users.Update)
	users.DELETE("/:id", d.Users.Delete)

	roles := api.Group("/roles", admin, fresh)
	roles.GET("", d.Roles.List)
	roles.POST("", d.Roles.Create)
	roles.PUT("/:id", d.Roles.Update)
	roles.DELETE("/:id", d.Roles.Delete)

	kiosks := api.Group("/kiosks", admin)
	kiosks.GET("", d.Kiosks.List)
	kiosks.POST("", d.Kiosks.Create)
	kiosks.GET("/geocode", d.Kiosks.Geocode)
	kiosks.POST("/import", d.Kiosks.Import, fresh)
	kiosks.DELETE("/all", d.Kiosks.DeleteAll, fresh)
	kiosks.GET("/:id", d.Kiosks.Get)
	kiosks.PUT("/:id", d.Kiosks.Update)
	kiosks.DELETE("/:id", d.Kiosks.Delete)

	problems := api.Group("/problem-types", admin)
	problems.GET("", d.Taxonomy.ListProblemTypes)
	problems.POST("", d.Taxonomy.CreateProblemType)
	problems.PUT("/:id", d.Taxonomy.UpdateProblemType)
	problems.DELETE("/:id", d.Taxonomy.DeleteProblemType)

	api.GET("/stats/admin", d.Stats.Admin, admin)
}
