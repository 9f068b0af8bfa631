package app

import (
	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/curation-backend/internal/http"
	httpH "github.com/yungbote/curation-backend/internal/http/handlers"
	httpMW "github.com/yungbote/curation-backend/internal/http/middleware"
	"github.com/yungbote/curation-backend/internal/observability"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Curation *httpH.CurationHandler
	Job      *httpH.JobHandler
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireHandlers(log *logger.Logger, services Services, db httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Curation: httpH.NewCurationHandler(log, services.Curation),
		Job:      httpH.NewJobHandler(services.JobService),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	mw := Middleware{Auth: httpMW.NewAuthMiddleware(log, cfg.AuthJWTSecret)}
	if !mw.Auth.Enabled() {
		log.Warn("AUTH_JWT_SECRET not set; API requests are not authenticated")
	}
	return mw
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.ServiceName,
		AuthMiddleware:  middleware.Auth,
		CurationHandler: handlers.Curation,
		JobHandler:      handlers.Job,
		HealthHandler:   handlers.Health,
	})
}
