package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syncboard-api/internal/dto"
	"github.com/noah-isme/syncboard-api/internal/models"
	"github.com/noah-isme/syncboard-api/internal/service"
)

type stubTaskService struct {
	listFn        func() ([]dto.TaskResponse, error)
	getFn         func(id uint) (dto.TaskResponse, error)
	createFn      func(actor service.Actor, payload dto.TaskCreateRequest) (dto.TaskResponse, error)
	updateFn      func(actor service.Actor, id uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error)
	deleteFn      func(actor service.Actor, id uint) error
	smartAssignFn func(actor service.Actor, id uint) (dto.TaskResponse, bool, error)
}

func (s *stubTaskService) List(_ context.Context) ([]dto.TaskResponse, error) {
	return s.listFn()
}

func (s *stubTaskService) Get(_ context.Context, id uint) (dto.TaskResponse, error) {
	return s.getFn(id)
}

func (s *stubTaskService) Create(_ context.Context, actor service.Actor, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	return s.createFn(actor, payload)
}

func (s *stubTaskService) Update(_ context.Context, actor service.Actor, id uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error) {
	return s.updateFn(actor, id, payload)
}

func (s *stubTaskService) Delete(_ context.Context, actor service.Actor, id uint) error {
	return s.deleteFn(actor, id)
}

func (s *stubTaskService) SmartAssign(_ context.Context, actor service.Actor, id uint) (dto.TaskResponse, bool, error) {
	return s.smartAssignFn(actor, id)
}

func newTaskApp(stub *stubTaskService) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(1))
		c.Locals("username", "maya")
		return c.Next()
	})

	NewTaskHandler(stub, zerolog.Nop()).Register(app.Group("/api/tasks"))
	return app
}

func sampleTask() dto.TaskResponse {
	return dto.TaskResponse{
		ID:               1,
		Title:            "Wire payment flow",
		AssignedUser:     2,
		AssignedUsername: "omar",
		Status:           models.StatusTodo,
		Priority:         models.PriorityMedium,
		Version:          2,
		LastModifiedAt:   time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestUpdateConflictReturnsBothSides(t *testing.T) {
	priority := models.PriorityHigh
	stub := &stubTaskService{
		updateFn: func(_ service.Actor, _ uint, _ dto.TaskUpdateRequest) (dto.TaskResponse, error) {
			return dto.TaskResponse{}, &service.ConflictError{
				ServerTask:    sampleTask(),
				ClientAttempt: dto.TaskAttempt{Priority: &priority},
			}
		},
	}
	app := newTaskApp(stub)

	resp := doJSON(t, app, http.MethodPut, "/api/tasks/1", map[string]interface{}{
		"priority":      priority,
		"clientVersion": 1,
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var payload struct {
		Message       string            `json:"message"`
		ServerTask    dto.TaskResponse  `json:"serverTask"`
		ClientAttempt map[string]string `json:"clientAttempt"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))

	require.Contains(t, payload.Message, "Conflict")
	require.Equal(t, int64(2), payload.ServerTask.Version)
	require.Equal(t, models.PriorityHigh, payload.ClientAttempt["priority"])
}

func TestUpdatePassesActorAndPayload(t *testing.T) {
	var gotActor service.Actor
	var gotPayload dto.TaskUpdateRequest
	stub := &stubTaskService{
		updateFn: func(actor service.Actor, _ uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error) {
			gotActor = actor
			gotPayload = payload
			return sampleTask(), nil
		},
	}
	app := newTaskApp(stub)

	resp := doJSON(t, app, http.MethodPut, "/api/tasks/1", map[string]interface{}{
		"status":        models.StatusDone,
		"dragged":       true,
		"clientVersion": 1,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(1), gotActor.ID)
	require.Equal(t, "maya", gotActor.Name)
	require.True(t, gotPayload.Dragged)
	require.NotNil(t, gotPayload.Status)
	require.Equal(t, models.StatusDone, *gotPayload.Status)
	require.Equal(t, int64(1), gotPayload.ClientVersion)
}

func TestCreateReturns201(t *testing.T) {
	stub := &stubTaskService{
		createFn: func(_ service.Actor, _ dto.TaskCreateRequest) (dto.TaskResponse, error) {
			return sampleTask(), nil
		},
	}
	app := newTaskApp(stub)

	resp := doJSON(t, app, http.MethodPost, "/api/tasks/", map[string]interface{}{
		"title":        "Wire payment flow",
		"assignedUser": 2,
		"status":       models.StatusTodo,
		"priority":     models.PriorityMedium,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestCreateDuplicateTitleMapsTo400(t *testing.T) {
	stub := &stubTaskService{
		createFn: func(_ service.Actor, _ dto.TaskCreateRequest) (dto.TaskResponse, error) {
			return dto.TaskResponse{}, service.ErrTitleTaken
		},
	}
	app := newTaskApp(stub)

	resp := doJSON(t, app, http.MethodPost, "/api/tasks/", map[string]interface{}{
		"title": "Wire payment flow",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetUnknownTaskMapsTo404(t *testing.T) {
	stub := &stubTaskService{
		getFn: func(_ uint) (dto.TaskResponse, error) {
			return dto.TaskResponse{}, service.ErrTaskNotFound
		},
	}
	app := newTaskApp(stub)

	resp := doJSON(t, app, http.MethodGet, "/api/tasks/42", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpdateInvalidIDMapsTo400(t *testing.T) {
	app := newTaskApp(&stubTaskService{})

	resp := doJSON(t, app, http.MethodPut, "/api/tasks/not-a-number", map[string]interface{}{
		"clientVersion": 1,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSmartAssignNoOpMessage(t *testing.T) {
	stub := &stubTaskService{
		smartAssignFn: func(_ service.Actor, _ uint) (dto.TaskResponse, bool, error) {
			return sampleTask(), false, nil
		},
	}
	app := newTaskApp(stub)

	resp := doJSON(t, app, http.MethodPut, "/api/tasks/1/smart-assign", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Success)
	require.Contains(t, payload.Message, "already assigned")
}
