package app

import (
	"github.com/osvaldoandrade/jobgate/internal/controllers"
	"github.com/osvaldoandrade/jobgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	app.Engine.POST("/submit-job",
		middleware.RateLimitSubmit(app.RateLimiter),
		controllers.NewSubmitJobController(app.Gateway, app.Config.MaxUploadBytes).Handle,
	)
	app.Engine.GET("/healthz", controllers.NewHealthController().Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
