// README: API surface; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"riderhub/internal/http/handlers"
	"riderhub/internal/http/middleware"
	"riderhub/internal/modules/dispatch"
)

type ServerDeps struct {
	Dispatch  *dispatch.Service
	JWTSecret string
	Log       zerolog.Logger
}

type Server struct {
	dispatch  *dispatch.Service
	jwtSecret string
	log       zerolog.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{dispatch: deps.Dispatch, jwtSecret: deps.JWTSecret, log: deps.Log}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery(s.log), middleware.Logging(s.log))

	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	riderHandler := handlers.NewRiderHandler(s.dispatch)
	dispatchHandler := handlers.NewDispatchHandler(s.dispatch)

	api := engine.Group("/api/v1", middleware.Auth(s.jwtSecret))

	riderAPI := api.Group("/rider")
	riderAPI.PUT("/availability", riderHandler.UpdateAvailability)
	riderAPI.PUT("/dispatchable", riderHandler.UpdateDispatchable)
	riderAPI.GET("/status", riderHandler.Status)
	riderAPI.GET("/acceptance-rate", riderHandler.AcceptanceRate)
	riderAPI.POST("/dispatch-response", dispatchHandler.RecordResponse)
	riderAPI.POST("/delivery-state", dispatchHandler.RecordDeliveryState)
	riderAPI.GET("/dispatch-requests/detail", dispatchHandler.Details)

	staffAPI := api.Group("", middleware.RequireRole(middleware.RoleStaff))
	staffAPI.POST("/rider/ban", dispatchHandler.Ban)
	staffAPI.POST("/webhooks/dispatch", dispatchHandler.CreateDispatch)
	staffAPI.POST("/webhooks/order-cancelled", dispatchHandler.Cancel)

	return engine
}
