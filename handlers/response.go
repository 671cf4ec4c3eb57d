package handlers

import (
	"errors"
	"strconv"

	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func respondOK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondCreated(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// respondError maps err onto the failure envelope. Service errors expose
// their message and code; anything else is logged and reported as is.
func respondError(c *fiber.Ctx, err error) error {
	status := shared.HTTPStatus(err)
	body := fiber.Map{"success": false, "error": err.Error()}

	var serviceErr *shared.ServiceError
	if errors.As(err, &serviceErr) {
		body["error"] = serviceErr.Message
		body["code"] = serviceErr.Code
		if serviceErr.Category == shared.ErrorCategoryValidation && serviceErr.Details != nil {
			body["details"] = serviceErr.Details
		}
	}

	if status >= fiber.StatusInternalServerError {
		if serviceErr != nil {
			serviceErr.LogError()
		} else {
			logrus.WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).WithError(err).Error("Request failed")
		}
	}
	return c.Status(status).JSON(body)
}

func badRequest(code, message, operation string) error {
	return shared.NewValidationError(code, message, "HTTP_API", operation)
}

// ipoIDParam parses the :id route parameter
func ipoIDParam(c *fiber.Ctx, operation string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, badRequest("INVALID_ID", "Invalid IPO ID format", operation)
	}
	return id, nil
}

// intQuery reads a non-negative integer query parameter, 0 when absent
func intQuery(c *fiber.Ctx, key, operation string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("INVALID_QUERY", key+" must be a non-negative integer", operation)
	}
	return v, nil
}
