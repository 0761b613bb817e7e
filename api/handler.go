// Package api exposes the module over HTTP. The conversational endpoint is
// the primary surface; the admin group drives the background passes by hand.
// The caller is identified by the X-User-ID header; authentication itself is
// expected to happen in front of this service.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/custodian-sh/custodian/core/catalog"
	"github.com/custodian-sh/custodian/core/conversation"
	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/reconcile"
	"github.com/custodian-sh/custodian/core/resource"
)

// CallerHeader names the header carrying the caller's user identity.
const CallerHeader = "X-User-ID"

type Handler struct {
	machine *conversation.Machine
	catalog *catalog.Service
	engine  *reconcile.Engine
	users   identity.Store
}

func NewHandler(machine *conversation.Machine, svc *catalog.Service, engine *reconcile.Engine, users identity.Store) *Handler {
	return &Handler{machine: machine, catalog: svc, engine: engine, users: users}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/command", h.HandleCommand)
	g.GET("/resources", h.HandleListResources)
	g.GET("/resources/:id", h.HandleGetResource)

	admin := g.Group("/admin")
	admin.Use(h.AdminMiddleware)
	admin.POST("/reconcile", h.HandleReconcile)
	admin.POST("/sweep", h.HandleSweep)
	admin.POST("/rewrite-keys", h.HandleRewriteKeys)
	admin.POST("/users/:id/role", h.HandleChangeRole)
	admin.POST("/users/:id/deactivate", h.HandleDeactivateUser)
	admin.DELETE("/users/:id", h.HandleDeleteUser)
}

// caller extracts and validates the calling user.
func (h *Handler) caller(c echo.Context) (*identity.User, error) {
	id := c.Request().Header.Get(CallerHeader)
	if id == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing "+CallerHeader+" header")
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unknown caller")
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, echo.NewHTTPError(http.StatusForbidden, "caller is inactive")
	}
	return user, nil
}

// AdminMiddleware restricts a route group to admin-or-better callers.
func (h *Handler) AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := h.caller(c)
		if err != nil {
			return err
		}
		if !user.Role.AtLeast(identity.RoleAdmin) {
			return echo.NewHTTPError(http.StatusForbidden, "admin required")
		}
		c.Set("caller", user)
		return next(c)
	}
}

func (h *Handler) HandleCommand(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return err
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	result, err := h.machine.Handle(c.Request().Context(), user.ID, body.Text)
	if err != nil {
		return h.domainError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleListResources(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return err
	}

	items, err := h.catalog.ListVisible(c.Request().Context(), user.ID)
	if err != nil {
		return h.domainError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) HandleGetResource(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return err
	}

	item, err := h.catalog.GetResource(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return h.domainError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) HandleReconcile(c echo.Context) error {
	var body struct {
		Purge        bool   `json:"purge"`
		Continuation string `json:"continuation"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	report, err := h.engine.Reconcile(c.Request().Context(), reconcile.Options{
		Purge:        body.Purge,
		Continuation: body.Continuation,
	})
	if err != nil {
		// An aborted pass still reports progress and a resume token.
		if report != nil {
			return c.JSON(http.StatusBadGateway, report)
		}
		return h.domainError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) HandleSweep(c echo.Context) error {
	report, err := h.engine.SweepGhosts(c.Request().Context())
	if err != nil {
		if report != nil {
			return c.JSON(http.StatusBadGateway, report)
		}
		return h.domainError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) HandleRewriteKeys(c echo.Context) error {
	report, err := h.engine.RewriteLegacyKeys(c.Request().Context())
	if err != nil {
		if report != nil {
			return c.JSON(http.StatusBadGateway, report)
		}
		return h.domainError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) HandleChangeRole(c echo.Context) error {
	user := c.Get("caller").(*identity.User)

	var body struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	role, err := identity.ParseRole(body.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role")
	}

	if err := h.catalog.ChangeRole(c.Request().Context(), user.ID, c.Param("id"), role); err != nil {
		return h.domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleDeactivateUser(c echo.Context) error {
	user := c.Get("caller").(*identity.User)

	if err := h.catalog.DeactivateUser(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return h.domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleDeleteUser(c echo.Context) error {
	user := c.Get("caller").(*identity.User)

	if err := h.catalog.DeleteUser(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return h.domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// domainError maps domain sentinels onto HTTP statuses.
func (h *Handler) domainError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, "permission denied")
	case errors.Is(err, identity.ErrNotFound), errors.Is(err, resource.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, catalog.ErrNoVisibilityFlag), errors.Is(err, identity.ErrUnknownRole), errors.Is(err, resource.ErrUnknownCategory):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
