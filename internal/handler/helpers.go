package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/syncboard-api/internal/service"
)

func parseIDParam(c *fiber.Ctx) (uint, error) {
	value := strings.TrimSpace(c.Params("id"))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	actor := service.Actor{}

	if v := c.Locals("user_id"); v != nil {
		switch id := v.(type) {
		case uint:
			actor.ID = id
		case int:
			if id > 0 {
				actor.ID = uint(id)
			}
		case float64:
			if id > 0 {
				actor.ID = uint(id)
			}
		}
	}

	if v := c.Locals("username"); v != nil {
		if name, ok := v.(string); ok {
			actor.Name = name
		}
	}

	return actor
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
