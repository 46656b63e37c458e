package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Route is implemented by every service handler that mounts endpoints on the
// shared gin engine.
type Route interface {
	RegisterRoutes(r gin.IRouter)
}

// AsRoute annotates a handler constructor so its result joins the "routes"
// value group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Route)),
		fx.ResultTags(`group:"routes"`),
	)
}
