package main

import (
	"agri-ivr/internal/auth"
	"agri-ivr/internal/config"
	"agri-ivr/internal/httpapi"
	"agri-ivr/internal/rbac"
	"agri-ivr/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	cfg        config.Config
	controller telephony.TurnHandler
	health     httpapi.Health
	api        httpapi.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", d.health.Live)
	r.GET("/readyz", d.health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gateway webhooks. Each dialect answers non-POST methods itself.
	gather := telephony.GatherOptions{
		Timeout:  d.cfg.IVR.GatherTimeout,
		Language: d.cfg.IVR.Language,
	}
	{
		h := telephony.VoiceHandler{
			Controller:    d.controller,
			Dialect:       telephony.Twilio,
			Gather:        gather,
			PublicBaseURL: d.cfg.App.PublicBaseURL,
		}
		if d.cfg.Twilio.AuthToken != "" {
			h.Signature = telephony.NewSignatureValidator(d.cfg.Twilio.AuthToken, d.cfg.App.PublicBaseURL)
		}
		r.Any("/webhooks/twilio/voice", h.Handle)
	}
	{
		h := telephony.VoiceHandler{
			Controller:    d.controller,
			Dialect:       telephony.Exotel,
			Gather:        gather,
			PublicBaseURL: d.cfg.App.PublicBaseURL,
		}
		r.Any("/webhooks/exotel/voice", h.Handle)
	}

	// Operator API. Disabled unless ADMIN_API_KEY is configured.
	if d.api.Auth == nil {
		return
	}
	v1 := r.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/login", d.api.Login)
		authGroup.POST("/refresh", d.api.Refresh)
	}

	admin := v1.Group("/admin")
	admin.Use(auth.RequireAccessToken(d.api.Auth))
	admin.Use(rbac.RequireOperator())
	{
		admin.GET("/sessions/:call_id", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor), d.api.GetSession)
		admin.DELETE("/sessions/:call_id", rbac.RequireAnyRole(rbac.RoleSupervisor), d.api.ResetSession)
		admin.GET("/calls/:call_id/audit", rbac.RequireAnyRole(rbac.RoleSupervisor), d.api.ListAudit)
	}
}
