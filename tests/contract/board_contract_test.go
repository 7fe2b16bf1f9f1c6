package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syncboard-api/internal/dto"
	"github.com/noah-isme/syncboard-api/internal/handler"
	"github.com/noah-isme/syncboard-api/internal/models"
	"github.com/noah-isme/syncboard-api/internal/service"
)

type stubTaskService struct {
	task     dto.TaskResponse
	conflict *service.ConflictError
}

func (s stubTaskService) List(context.Context) ([]dto.TaskResponse, error) {
	return []dto.TaskResponse{s.task}, nil
}

func (s stubTaskService) Get(context.Context, uint) (dto.TaskResponse, error) {
	return s.task, nil
}

func (s stubTaskService) Create(context.Context, service.Actor, dto.TaskCreateRequest) (dto.TaskResponse, error) {
	return s.task, nil
}

func (s stubTaskService) Update(context.Context, service.Actor, uint, dto.TaskUpdateRequest) (dto.TaskResponse, error) {
	if s.conflict != nil {
		return dto.TaskResponse{}, s.conflict
	}
	return s.task, nil
}

func (s stubTaskService) Delete(context.Context, service.Actor, uint) error {
	return nil
}

func (s stubTaskService) SmartAssign(context.Context, service.Actor, uint) (dto.TaskResponse, bool, error) {
	return s.task, true, nil
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func sampleTask() dto.TaskResponse {
	modifier := uint(2)
	return dto.TaskResponse{
		ID:               7,
		Title:            "Wire payment flow",
		Description:      "Hook up the provider callbacks",
		AssignedUser:     2,
		AssignedUsername: "omar",
		Status:           models.StatusInProgress,
		Priority:         models.PriorityHigh,
		CreatedBy:        1,
		LastModifiedBy:   &modifier,
		LastModifiedAt:   time.Now().UTC(),
		Version:          3,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
}

func newBoardApp(stub stubTaskService) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(1))
		c.Locals("username", "maya")
		return c.Next()
	})
	handler.NewTaskHandler(stub, zerolog.Nop()).Register(app.Group("/api/tasks"))
	return app
}

func TestTaskResponseContract(t *testing.T) {
	schema := compileSchema(t, "task.schema.json")
	app := newBoardApp(stubTaskService{task: sampleTask()})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/7", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestConflictResponseContract(t *testing.T) {
	schema := compileSchema(t, "conflict.schema.json")

	priority := models.PriorityLow
	stub := stubTaskService{
		task: sampleTask(),
		conflict: &service.ConflictError{
			ServerTask:    sampleTask(),
			ClientAttempt: dto.TaskAttempt{Priority: &priority},
		},
	}
	app := newBoardApp(stub)

	body, err := json.Marshal(map[string]interface{}{
		"priority":      priority,
		"clientVersion": 1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/tasks/7", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, schema.Validate(payload))
}
