package handlers

import (
	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/gofiber/fiber/v2"
)

// IPOHandler serves the public read routes
type IPOHandler struct {
	Queries services.Queries
}

func NewIPOHandler(queries services.Queries) *IPOHandler {
	return &IPOHandler{Queries: queries}
}

func (h *IPOHandler) GetDashboard(c *fiber.Ctx) error {
	ipos, err := h.Queries.GetDashboardData(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, ipos)
}

func (h *IPOHandler) GetLiveIPOs(c *fiber.Ctx) error {
	ipos, err := h.Queries.GetLiveIPOs(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, ipos)
}

func (h *IPOHandler) GetListedIPOs(c *fiber.Ctx) error {
	ipos, err := h.Queries.GetListedIPOs(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, ipos)
}

// GetIPOByID returns one IPO with its snapshots and recent history
func (h *IPOHandler) GetIPOByID(c *fiber.Ctx) error {
	id, err := ipoIDParam(c, "GetIPOByID")
	if err != nil {
		return respondError(c, err)
	}
	detail, err := h.Queries.GetIPOByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, detail)
}

func (h *IPOHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.Queries.GetDashboardStats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, stats)
}

func (h *IPOHandler) GetCounts(c *fiber.Ctx) error {
	counts, err := h.Queries.GetStatusCounts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, counts)
}

// GetSystemLogs lists audit entries, newest first
func (h *IPOHandler) GetSystemLogs(c *fiber.Ctx) error {
	limit, err := intQuery(c, "limit", "GetSystemLogs")
	if err != nil {
		return respondError(c, err)
	}
	logs, err := h.Queries.GetSystemLogs(c.UserContext(), limit, c.Query("action"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, logs)
}
