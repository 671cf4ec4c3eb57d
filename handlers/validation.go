package handlers

import (
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/gofiber/fiber/v2"
)

// GMPBatchRequest is the body of POST /admin/gmp/batch. Records are
// validated by the GMP service so rejected batches still leave an audit row.
type GMPBatchRequest struct {
	Records  []models.GMPRecord    `json:"records"`
	Source   string                `json:"source"`
	Metadata *models.BatchMetadata `json:"metadata,omitempty"`
}

// SubscriptionBatchRequest is the body of POST /admin/subscriptions/batch
type SubscriptionBatchRequest struct {
	Records []models.SubscriptionRecord `json:"records"`
	Source  string                      `json:"source"`
}

// TokenRequest exchanges the bootstrap admin secret for a JWT
type TokenRequest struct {
	AdminToken string `json:"admin_token" validate:"required"`
}

// bindJSON only decodes the body. Mutation handlers use it and leave field
// validation to the service, which records the failure.
func bindJSON(c *fiber.Ctx, dest interface{}, operation string) error {
	if err := c.BodyParser(dest); err != nil {
		return badRequest("INVALID_BODY", "Invalid request body", operation)
	}
	return nil
}

// bindAndValidate decodes the JSON body into dest and runs its struct tags
func bindAndValidate(c *fiber.Ctx, dest interface{}, operation string) error {
	if err := bindJSON(c, dest, operation); err != nil {
		return err
	}
	return shared.ValidateStruct(dest, "HTTP_API", operation)
}
