// Package handler exposes the assignment HTTP endpoints.
package handler

import (
	"context"
	"net/http"

	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/service"
	"leadflow_backend/internal/assignment/transport"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Sweeper triggers one acceptance sweep on demand. Implemented by the
// acceptance monitor.
type Sweeper interface {
	RunTick(ctx context.Context) error
}

type Handler struct {
	svc     *service.Service
	sweeper Sweeper
	val     *validator.Validator
}

func New(svc *service.Service, sweeper Sweeper, val *validator.Validator) *Handler {
	return &Handler{svc: svc, sweeper: sweeper, val: val}
}

// RegisterLeadRoutes mounts the per-lead assignment operations. Assigning
// is a dispatcher action gated by managerOnly; accepting and declining are
// open to any authenticated user since the service enforces that only the
// current assignee may respond.
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup, managerOnly gin.HandlerFunc) {
	rg.GET("/pending", h.ListPending)
	rg.POST("/:id/assign", managerOnly, h.Assign)
	rg.POST("/:id/accept", h.Accept)
	rg.POST("/:id/decline", h.Decline)
	rg.GET("/:id/audit", h.AuditTrail)
}

// RegisterPoolRoutes mounts the facility pool management operations.
func (h *Handler) RegisterPoolRoutes(rg *gin.RouterGroup) {
	rg.GET("/:facilityId/pool", h.ListPool)
	rg.PUT("/:facilityId/pool/reorder", h.ReorderPool)
	rg.PATCH("/:facilityId/pool/:entryId", h.SetEntryEnabled)
}

// RegisterAdminRoutes mounts the manual sweep trigger.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/assignments/sweep", h.Sweep)
}

func (h *Handler) Assign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Assign(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Accept(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	ident := httpkit.MustGetIdentity(c)
	if ident == nil {
		return
	}

	lead, err := h.svc.Accept(c.Request.Context(), id, ident.UserID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Decline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	ident := httpkit.MustGetIdentity(c)
	if ident == nil {
		return
	}

	// The body is optional: declining without a reason is allowed.
	var req transport.DeclineLeadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	lead, err := h.svc.Decline(c.Request.Context(), id, ident.UserID(), req.Reason)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// ListPending returns leads awaiting acceptance. Sellers see their own
// queue; managers and admins see the full set.
func (h *Handler) ListPending(c *gin.Context) {
	ident := httpkit.MustGetIdentity(c)
	if ident == nil {
		return
	}

	var assignee *uuid.UUID
	if !ident.HasRole(repository.RoleManager) && !ident.HasRole(repository.RoleAdmin) {
		id := ident.UserID()
		assignee = &id
	}

	leads, err := h.svc.PendingAcceptance(c.Request.Context(), assignee)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) AuditTrail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	entries, err := h.svc.AuditTrail(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToAuditEntryResponses(entries))
}

func (h *Handler) ListPool(c *gin.Context) {
	facilityID, err := uuid.Parse(c.Param("facilityId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	members, err := h.svc.ListPool(c.Request.Context(), facilityID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToPoolEntryResponses(members))
}

func (h *Handler) ReorderPool(c *gin.Context) {
	facilityID, err := uuid.Parse(c.Param("facilityId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ReorderPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	updates := make([]repository.PositionUpdate, len(req.Entries))
	for i, entry := range req.Entries {
		updates[i] = repository.PositionUpdate{EntryID: entry.EntryID, SortPosition: entry.SortPosition}
	}

	members, err := h.svc.ReorderPool(c.Request.Context(), facilityID, updates)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToPoolEntryResponses(members))
}

func (h *Handler) SetEntryEnabled(c *gin.Context) {
	facilityID, err := uuid.Parse(c.Param("facilityId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SetEntryEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	entry, err := h.svc.SetPoolEntryEnabled(c.Request.Context(), facilityID, entryID, *req.Enabled)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{
		"id":           entry.ID,
		"facilityId":   entry.FacilityID,
		"sellerId":     entry.SellerID,
		"enabled":      entry.Enabled,
		"sortPosition": entry.SortPosition,
	})
}

// Sweep runs one acceptance sweep immediately instead of waiting for the
// next monitor interval.
func (h *Handler) Sweep(c *gin.Context) {
	if h.sweeper == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "sweep not available", nil)
		return
	}
	if err := h.sweeper.RunTick(c.Request.Context()); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.SweepResponse{Status: "completed"})
}
