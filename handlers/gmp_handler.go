package handlers

import (
	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/gofiber/fiber/v2"
)

// GMPHandler serves grey market and subscription reads
type GMPHandler struct {
	Queries services.Queries
}

func NewGMPHandler(queries services.Queries) *GMPHandler {
	return &GMPHandler{Queries: queries}
}

// GetGMPAggregator lists IPOs with both snapshots, optionally narrowed to
// SME or Mainline
func (h *GMPHandler) GetGMPAggregator(c *fiber.Ctx) error {
	ipos, err := h.Queries.GetGMPAggregatorData(c.UserContext(), c.Query("filter"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, ipos)
}

func (h *GMPHandler) GetSubscriptions(c *fiber.Ctx) error {
	ipos, err := h.Queries.GetSubscriptionAggregatorData(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, ipos)
}

// GetGMPHistory returns observations oldest first. days=0 means all of them.
func (h *GMPHandler) GetGMPHistory(c *fiber.Ctx) error {
	id, err := ipoIDParam(c, "GetGMPHistory")
	if err != nil {
		return respondError(c, err)
	}
	days, err := intQuery(c, "days", "GetGMPHistory")
	if err != nil {
		return respondError(c, err)
	}

	history, err := h.Queries.GetGMPHistory(c.UserContext(), id, days, c.Query("source"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, history)
}

func (h *GMPHandler) GetSubscriptionTrends(c *fiber.Ctx) error {
	id, err := ipoIDParam(c, "GetSubscriptionTrends")
	if err != nil {
		return respondError(c, err)
	}
	hours, err := intQuery(c, "hours", "GetSubscriptionTrends")
	if err != nil {
		return respondError(c, err)
	}

	trends, err := h.Queries.GetSubscriptionTrends(c.UserContext(), id, hours)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, trends)
}
