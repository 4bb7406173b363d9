// Package assignment provides the lead assignment bounded context module:
// round-robin distribution over facility seller pools, the accept/decline
// lifecycle and the acceptance escalation monitor.
package assignment

import (
	"leadflow_backend/internal/assignment/handler"
	"leadflow_backend/internal/assignment/monitor"
	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/service"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the assignment bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	monitor *monitor.Monitor
}

// NewModule creates and initializes the assignment module. The notifier may
// be nil in processes that never send outbound notifications.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger, notifier service.Notifier) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, notifier, eventBus, log)
	mon := monitor.New(repo, svc, notifier, cfg, log)
	h := handler.New(svc, mon, val)

	return &Module{
		handler: h,
		service: svc,
		monitor: mon,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignment"
}

// Service returns the assignment service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Monitor returns the acceptance monitor so the composition root can start
// and stop the sweep loop.
func (m *Module) Monitor() *monitor.Monitor {
	return m.monitor
}

// RegisterRoutes mounts assignment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	managerOnly := httpkit.RequireAnyRole(repository.RoleManager, repository.RoleAdmin)

	leads := ctx.Protected.Group("/leads")
	m.handler.RegisterLeadRoutes(leads, managerOnly)

	facilities := ctx.Protected.Group("/facilities")
	facilities.Use(managerOnly)
	m.handler.RegisterPoolRoutes(facilities)

	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
