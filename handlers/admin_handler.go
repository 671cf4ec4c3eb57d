package handlers

import (
	"context"

	"github.com/fenilmodi00/ipo-dalal/jobs"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// JobRunner triggers registered background jobs by name
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
	Jobs() []jobs.JobStatus
}

// AdminHandler serves the authenticated write routes
type AdminHandler struct {
	IPOService          *services.IPOService
	GMPService          *services.GMPService
	SubscriptionService *services.SubscriptionService
	SeedService         *services.SeedService
	Jobs                JobRunner
}

func NewAdminHandler(
	ipoService *services.IPOService,
	gmpService *services.GMPService,
	subscriptionService *services.SubscriptionService,
	seedService *services.SeedService,
	jobRunner JobRunner,
) *AdminHandler {
	return &AdminHandler{
		IPOService:          ipoService,
		GMPService:          gmpService,
		SubscriptionService: subscriptionService,
		SeedService:         seedService,
		Jobs:                jobRunner,
	}
}

// CreateOrUpdateIPO upserts an IPO keyed by company name
func (h *AdminHandler) CreateOrUpdateIPO(c *fiber.Ctx) error {
	var input models.IPOInput
	if err := bindJSON(c, &input, "CreateOrUpdateIPO"); err != nil {
		return respondError(c, err)
	}

	result, err := h.IPOService.CreateOrUpdateIPO(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	if result.Action == models.ActionCreated {
		return respondCreated(c, result)
	}
	return respondOK(c, result)
}

func (h *AdminHandler) UpdateListingDetails(c *fiber.Ctx) error {
	id, err := ipoIDParam(c, "UpdateListingDetails")
	if err != nil {
		return respondError(c, err)
	}
	var details models.ListingDetails
	if err := bindJSON(c, &details, "UpdateListingDetails"); err != nil {
		return respondError(c, err)
	}

	if err := h.IPOService.UpdateIPOListingDetails(c.UserContext(), id, details); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"ipo_id": id})
}

func (h *AdminHandler) InsertGMPBatch(c *fiber.Ctx) error {
	var req GMPBatchRequest
	if err := bindJSON(c, &req, "InsertGMPBatch"); err != nil {
		return respondError(c, err)
	}

	result, err := h.GMPService.InsertGMPBatch(c.UserContext(), req.Records, sourceOrManual(req.Source), req.Metadata)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, result)
}

func (h *AdminHandler) InsertSubscriptionBatch(c *fiber.Ctx) error {
	var req SubscriptionBatchRequest
	if err := bindJSON(c, &req, "InsertSubscriptionBatch"); err != nil {
		return respondError(c, err)
	}

	result, err := h.SubscriptionService.InsertSubscriptionBatch(c.UserContext(), req.Records, sourceOrManual(req.Source))
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, result)
}

func sourceOrManual(source string) string {
	if source == "" {
		return "manual"
	}
	return source
}

func (h *AdminHandler) SeedIPOs(c *fiber.Ctx) error {
	result, err := h.SeedService.SeedIPOs(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}

func (h *AdminHandler) SeedGMPHistory(c *fiber.Ctx) error {
	result, err := h.SeedService.SeedGMPHistory(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}

func (h *AdminHandler) SeedSubscriptionHistory(c *fiber.Ctx) error {
	result, err := h.SeedService.SeedSubscriptionHistory(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}

func (h *AdminHandler) SeedAll(c *fiber.Ctx) error {
	result, err := h.SeedService.SeedAll(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}

// ClearAllData wipes IPOs and their history. System logs are kept.
func (h *AdminHandler) ClearAllData(c *fiber.Ctx) error {
	logrus.WithField("subject", c.Locals(localsSubject)).Warn("Clearing all IPO data via admin endpoint")
	result, err := h.SeedService.ClearAllData(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, result)
}

func (h *AdminHandler) ListJobs(c *fiber.Ctx) error {
	return respondOK(c, h.Jobs.Jobs())
}

// RunJob runs a job synchronously and reports how it finished
func (h *AdminHandler) RunJob(c *fiber.Ctx) error {
	name := c.Params("name")
	logrus.WithField("job", name).Info("Manual job run triggered via admin endpoint")

	if err := h.Jobs.RunNow(c.UserContext(), name); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"job": name, "status": "completed"})
}
