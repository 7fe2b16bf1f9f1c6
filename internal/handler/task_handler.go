package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syncboard-api/internal/dto"
	"github.com/noah-isme/syncboard-api/internal/service"
	"github.com/noah-isme/syncboard-api/internal/utils"
)

// TaskHandler wires the task mutation and query endpoints.
type TaskHandler struct {
	service service.TaskService
	logger  zerolog.Logger
}

// NewTaskHandler creates a task handler instance.
func NewTaskHandler(service service.TaskService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register binds task routes under the provided router group.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.remove)
	router.Put("/:id/smart-assign", h.smartAssign)
}

func (h *TaskHandler) list(c *fiber.Ctx) error {
	tasks, err := h.service.List(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}

	return utils.SendSuccess(c, "tasks retrieved", tasks)
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}

	return utils.SendSuccess(c, "task retrieved", task)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	var payload dto.TaskCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	task, err := h.service.Create(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return h.respondError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", task)
}

func (h *TaskHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var payload dto.TaskUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	task, err := h.service.Update(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return h.respondError(c, err)
	}

	return utils.SendSuccess(c, "task updated", task)
}

func (h *TaskHandler) remove(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	if err := h.service.Delete(c.UserContext(), actorFromContext(c), id); err != nil {
		return h.respondError(c, err)
	}

	return utils.SendSuccess(c, "task removed", nil)
}

func (h *TaskHandler) smartAssign(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, reassigned, err := h.service.SmartAssign(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return h.respondError(c, err)
	}

	message := "task smart assigned"
	if !reassigned {
		message = "task already assigned to the least loaded user"
	}

	return utils.SendSuccess(c, message, task)
}

// respondError maps service errors onto HTTP statuses. A version conflict
// gets its dedicated payload carrying both sides, so the session can run its
// resolution flow.
func (h *TaskHandler) respondError(c *fiber.Ctx, err error) error {
	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(dto.ConflictResponse{
			Message:       "Conflict: task has been updated by another user. Please resolve.",
			ServerTask:    conflict.ServerTask,
			ClientAttempt: conflict.ClientAttempt,
		})
	}

	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrTitleTaken):
		return utils.SendError(c, fiber.StatusBadRequest, "task title must be unique per board")
	case errors.Is(err, service.ErrTitleReserved):
		return utils.SendError(c, fiber.StatusBadRequest, "task title cannot match a column name")
	case errors.Is(err, service.ErrAssigneeUnknown):
		return utils.SendError(c, fiber.StatusBadRequest, "assigned user does not exist")
	case errors.Is(err, service.ErrNoUsersAvailable):
		return utils.SendError(c, fiber.StatusInternalServerError, "no users available for smart assignment")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("task request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
