package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"agri-ivr/internal/audit"
	"agri-ivr/internal/auth"
	"agri-ivr/internal/rbac"
	"agri-ivr/internal/session"
	"agri-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuditLister reads the audit trail of one call.
type AuditLister interface {
	ListByCall(ctx context.Context, callID string) ([]audit.Event, error)
}

// Handlers groups operator API handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth   *auth.Manager
	APIKey string

	Sessions session.Store
	Locks    session.Locker

	Audit     *audit.Service
	AuditList AuditLister

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
	APIKey     string `json:"api_key"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges the shared operator API key for a JWT pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.APIKey == "" {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "operator api disabled"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.APIKey)) != 1 {
		logger.FromGin(c).Warn("operator login rejected", "operator_id", req.OperatorID)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if req.Role == "" {
		req.Role = rbac.RoleAgent
	}
	if req.OperatorID == "" || !rbac.IsLoginRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operator_id and role (agent or supervisor) required"})
		return
	}
	h.issue(c, req.OperatorID, req.Role)
}

// Refresh trades a valid refresh token for a new pair.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "operator api disabled"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	h.issue(c, claims.OperatorID, claims.Role)
}

func (h Handlers) issue(c *gin.Context, operatorID, role string) {
	pair, err := h.Auth.IssuePair(h.now(), operatorID, role)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Sessions ---

// GetSession returns the live session of a call without creating one.
// RBAC: agent, supervisor.
func (h Handlers) GetSession(c *gin.Context) {
	callID := c.Param("call_id")
	s, ok, err := h.Sessions.Lookup(c.Request.Context(), callID)
	if err != nil {
		logger.FromGin(c).Error("session lookup failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// ResetSession deletes a call's session so its next webhook starts over.
// It takes the call lock so it cannot interleave with a running turn.
// RBAC: supervisor.
func (h Handlers) ResetSession(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()
	callID := c.Param("call_id")

	if h.Locks != nil {
		unlock, err := h.Locks.Lock(ctx, callID)
		if err != nil {
			log.Error("session lock failed", "call_id", callID, "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "call busy"})
			return
		}
		defer unlock()
	}

	_, existed, err := h.Sessions.Lookup(ctx, callID)
	if err != nil {
		log.Error("session lookup failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
		return
	}
	if err := h.Sessions.Delete(ctx, callID); err != nil {
		log.Error("session delete failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session reset failed"})
		return
	}

	if h.Audit != nil {
		operatorID, _ := auth.OperatorID(ctx)
		role, _ := auth.Role(ctx)
		if err := h.Audit.LogSessionReset(ctx, callID, operatorID, role, c.ClientIP()); err != nil {
			log.Warn("audit append failed", "call_id", callID, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID, "existed": existed})
}

// ListAudit returns the audit trail for a call.
// RBAC: supervisor.
func (h Handlers) ListAudit(c *gin.Context) {
	if h.AuditList == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "audit store not configured"})
		return
	}
	callID := c.Param("call_id")
	events, err := h.AuditList.ListByCall(c.Request.Context(), callID)
	if err != nil {
		logger.FromGin(c).Error("audit list failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit list failed"})
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID, "events": events})
}
