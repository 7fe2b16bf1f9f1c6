package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/syncboard-api/internal/dto"
	"github.com/noah-isme/syncboard-api/internal/models"
	"github.com/noah-isme/syncboard-api/internal/observability"
	"github.com/noah-isme/syncboard-api/internal/repository"
)

// Task service errors surfaced to callers.
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTitleTaken       = errors.New("task title must be unique")
	ErrTitleReserved    = errors.New("task title matches a column name")
	ErrAssigneeUnknown  = errors.New("assigned user does not exist")
	ErrNoUsersAvailable = errors.New("no users available for smart assignment")
)

// smartAssignActor tags automated reassignments in the activity trail,
// distinguishing them from manual ones.
const smartAssignActor = "Smart Assign"

// ConflictError carries the authoritative record alongside the caller's
// attempted values. Resolution is always a client decision; the server never
// merges silently.
type ConflictError struct {
	ServerTask    dto.TaskResponse
	ClientAttempt dto.TaskAttempt
}

func (e *ConflictError) Error() string {
	return "task has been updated by another user"
}

// Actor identifies the authenticated user a mutation runs on behalf of. The
// credential gate upstream already verified it; the service trusts it as-is.
type Actor struct {
	ID   uint
	Name string
}

// TaskService owns the canonical task records: every mutation flows through
// it, guarded by per-record optimistic versioning.
type TaskService interface {
	List(ctx context.Context) ([]dto.TaskResponse, error)
	Get(ctx context.Context, id uint) (dto.TaskResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.TaskCreateRequest) (dto.TaskResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	SmartAssign(ctx context.Context, actor Actor, id uint) (dto.TaskResponse, bool, error)
}

type taskService struct {
	tasks     repository.TaskRepository
	users     repository.UserRepository
	activity  ActivityRecorder
	publisher EventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewTaskService builds the task service.
func NewTaskService(tasks repository.TaskRepository, users repository.UserRepository, activity ActivityRecorder, publisher EventPublisher, validate *validator.Validate, logger zerolog.Logger) TaskService {
	return &taskService{
		tasks:     tasks,
		users:     users,
		activity:  activity,
		publisher: publisher,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "task_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/syncboard-api/internal/service/task"),
		now:       time.Now,
	}
}

func (s *taskService) List(ctx context.Context) ([]dto.TaskResponse, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}

	names, err := s.usernameIndex(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, dto.NewTaskResponse(task, names[task.AssignedUser]))
	}

	return responses, nil
}

func (s *taskService) Get(ctx context.Context, id uint) (dto.TaskResponse, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, ErrTaskNotFound
		}
		return dto.TaskResponse{}, err
	}

	return dto.NewTaskResponse(task, s.usernameOf(ctx, task.AssignedUser)), nil
}

func (s *taskService) Create(ctx context.Context, actor Actor, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	payload.Title = strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	payload.Description = strings.TrimSpace(s.sanitizer.Sanitize(payload.Description))

	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	if err := s.checkTitle(ctx, payload.Title, 0); err != nil {
		return dto.TaskResponse{}, err
	}

	assignee, err := s.users.GetByID(ctx, payload.AssignedUser)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, ErrAssigneeUnknown
		}
		return dto.TaskResponse{}, err
	}

	actorID := actor.ID
	now := s.now().UTC()
	task := models.Task{
		Title:          payload.Title,
		Description:    payload.Description,
		AssignedUser:   payload.AssignedUser,
		Status:         payload.Status,
		Priority:       payload.Priority,
		CreatedBy:      actorID,
		LastModifiedBy: &actorID,
		LastModifiedAt: now,
		Version:        1,
	}

	spanCtx, span := s.mutationSpan(ctx, "create", 0)
	defer span.End()

	if err := s.tasks.Create(spanCtx, &task); err != nil {
		span.RecordError(err)
		observability.TaskMutations().WithLabelValues("create", "error").Inc()
		return dto.TaskResponse{}, err
	}

	s.activity.Record(spanCtx, ActivityEntry{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    models.ActionTaskCreated,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Details:   models.ActionDetails{AssignedTo: assignee.Username},
	})

	response := dto.NewTaskResponse(task, assignee.Username)
	s.publisher.Publish(BoardEvent{Type: EventTaskCreated, Payload: response})
	observability.TaskMutations().WithLabelValues("create", "ok").Inc()

	s.logger.Info().Uint("task_id", task.ID).Uint("actor_id", actor.ID).Msg("task created")

	return response, nil
}

func (s *taskService) Update(ctx context.Context, actor Actor, id uint, payload dto.TaskUpdateRequest) (dto.TaskResponse, error) {
	if payload.Title != nil {
		clean := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
		payload.Title = &clean
	}
	if payload.Description != nil {
		clean := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
		payload.Description = &clean
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	before, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, ErrTaskNotFound
		}
		return dto.TaskResponse{}, err
	}

	if CompareVersions(before.Version, payload.ClientVersion) != VersionAccepted {
		observability.VersionConflicts().Inc()
		return dto.TaskResponse{}, s.conflict(ctx, before, payload.Attempt())
	}

	after := before
	if payload.Title != nil && *payload.Title != before.Title {
		if err := s.checkTitle(ctx, *payload.Title, before.ID); err != nil {
			return dto.TaskResponse{}, err
		}
		after.Title = *payload.Title
	}
	if payload.Description != nil {
		after.Description = *payload.Description
	}
	if payload.Status != nil {
		after.Status = *payload.Status
	}
	if payload.Priority != nil {
		after.Priority = *payload.Priority
	}

	beforeAssignee := s.usernameOf(ctx, before.AssignedUser)
	afterAssignee := beforeAssignee
	if payload.AssignedUser != nil && *payload.AssignedUser != before.AssignedUser {
		user, err := s.users.GetByID(ctx, *payload.AssignedUser)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.TaskResponse{}, ErrAssigneeUnknown
			}
			return dto.TaskResponse{}, err
		}
		after.AssignedUser = user.ID
		afterAssignee = user.Username
	}

	actorID := actor.ID
	after.LastModifiedBy = &actorID
	after.LastModifiedAt = s.monotonicNow(before.LastModifiedAt)

	spanCtx, span := s.mutationSpan(ctx, "update", id)
	defer span.End()

	if err := s.tasks.UpdateVersioned(spanCtx, &after, before.Version); err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			// Lost the race between our read and the guarded write.
			observability.VersionConflicts().Inc()
			current, fetchErr := s.tasks.GetByID(ctx, id)
			if fetchErr != nil {
				if errors.Is(fetchErr, gorm.ErrRecordNotFound) {
					return dto.TaskResponse{}, ErrTaskNotFound
				}
				return dto.TaskResponse{}, fetchErr
			}
			return dto.TaskResponse{}, s.conflict(ctx, current, payload.Attempt())
		}
		span.RecordError(err)
		observability.TaskMutations().WithLabelValues("update", "error").Inc()
		return dto.TaskResponse{}, err
	}

	for _, change := range ComputeChanges(before, after, beforeAssignee, afterAssignee, payload.Dragged) {
		s.activity.Record(spanCtx, ActivityEntry{
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Action:    change.Action,
			TaskID:    after.ID,
			TaskTitle: after.Title,
			Details:   change.Details,
		})
	}

	response := dto.NewTaskResponse(after, afterAssignee)
	s.publisher.Publish(BoardEvent{Type: EventTaskUpdated, Payload: response})
	observability.TaskMutations().WithLabelValues("update", "ok").Inc()

	s.logger.Info().
		Uint("task_id", after.ID).
		Uint("actor_id", actor.ID).
		Int64("version", after.Version).
		Msg("task updated")

	return response, nil
}

func (s *taskService) Delete(ctx context.Context, actor Actor, id uint) error {
	snapshot, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	spanCtx, span := s.mutationSpan(ctx, "delete", id)
	defer span.End()

	if err := s.tasks.Delete(spanCtx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		span.RecordError(err)
		observability.TaskMutations().WithLabelValues("delete", "error").Inc()
		return err
	}

	s.activity.Record(spanCtx, ActivityEntry{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    models.ActionTaskDeleted,
		TaskID:    snapshot.ID,
		TaskTitle: snapshot.Title,
	})

	s.publisher.Publish(BoardEvent{Type: EventTaskDeleted, Payload: map[string]uint{"id": id}})
	observability.TaskMutations().WithLabelValues("delete", "ok").Inc()

	s.logger.Info().Uint("task_id", id).Uint("actor_id", actor.ID).Msg("task deleted")

	return nil
}

// SmartAssign moves the task to the user with the fewest not-yet-done tasks.
// The returned bool reports whether a reassignment actually happened; the
// no-op case leaves the record untouched. The aggregate scan and the write
// are deliberately not atomic as a unit: two concurrent invocations may pick
// the same user, which is an accepted transient imbalance.
func (s *taskService) SmartAssign(ctx context.Context, actor Actor, id uint) (dto.TaskResponse, bool, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, false, ErrTaskNotFound
		}
		return dto.TaskResponse{}, false, err
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return dto.TaskResponse{}, false, err
	}
	if len(users) == 0 {
		return dto.TaskResponse{}, false, ErrNoUsersAvailable
	}

	loads, err := s.tasks.ActiveCounts(ctx)
	if err != nil {
		return dto.TaskResponse{}, false, err
	}
	counts := make(map[uint]int64, len(loads))
	for _, load := range loads {
		counts[load.UserID] = load.ActiveTasks
	}

	// Users arrive ordered by id, so the first minimum wins ties
	// deterministically on the lowest user id.
	winner := users[0]
	for _, user := range users[1:] {
		if counts[user.ID] < counts[winner.ID] {
			winner = user
		}
	}

	if winner.ID == task.AssignedUser {
		return dto.NewTaskResponse(task, winner.Username), false, nil
	}

	previousAssignee := s.usernameOf(ctx, task.AssignedUser)

	before := task
	actorID := actor.ID
	task.AssignedUser = winner.ID
	task.LastModifiedBy = &actorID
	task.LastModifiedAt = s.monotonicNow(before.LastModifiedAt)

	spanCtx, span := s.mutationSpan(ctx, "smart_assign", id)
	defer span.End()

	if err := s.tasks.UpdateVersioned(spanCtx, &task, before.Version); err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			observability.VersionConflicts().Inc()
			current, fetchErr := s.tasks.GetByID(ctx, id)
			if fetchErr != nil {
				if errors.Is(fetchErr, gorm.ErrRecordNotFound) {
					return dto.TaskResponse{}, false, ErrTaskNotFound
				}
				return dto.TaskResponse{}, false, fetchErr
			}
			assignedUser := winner.ID
			return dto.TaskResponse{}, false, s.conflict(ctx, current, dto.TaskAttempt{AssignedUser: &assignedUser})
		}
		span.RecordError(err)
		observability.TaskMutations().WithLabelValues("smart_assign", "error").Inc()
		return dto.TaskResponse{}, false, err
	}

	s.activity.Record(spanCtx, ActivityEntry{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    models.ActionTaskAssigned,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Details: models.ActionDetails{
			From:       previousAssignee,
			To:         winner.Username,
			AssignedBy: smartAssignActor,
		},
	})

	response := dto.NewTaskResponse(task, winner.Username)
	s.publisher.Publish(BoardEvent{Type: EventTaskUpdated, Payload: response})
	observability.TaskMutations().WithLabelValues("smart_assign", "ok").Inc()

	s.logger.Info().
		Uint("task_id", task.ID).
		Uint("assigned_to", winner.ID).
		Msg("task smart assigned")

	return response, true, nil
}

func (s *taskService) checkTitle(ctx context.Context, title string, excludeID uint) error {
	if models.ReservedTitle(title) {
		return ErrTitleReserved
	}

	taken, err := s.tasks.TitleExists(ctx, title, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrTitleTaken
	}

	return nil
}

func (s *taskService) conflict(ctx context.Context, server models.Task, attempt dto.TaskAttempt) error {
	return &ConflictError{
		ServerTask:    dto.NewTaskResponse(server, s.usernameOf(ctx, server.AssignedUser)),
		ClientAttempt: attempt,
	}
}

// monotonicNow guarantees lastModifiedAt strictly increases even when the
// clock and the previous write land in the same instant.
func (s *taskService) monotonicNow(previous time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(previous) {
		now = previous.Add(time.Millisecond)
	}
	return now
}

func (s *taskService) usernameOf(ctx context.Context, id uint) string {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "Unknown"
	}
	return user.Username
}

func (s *taskService) usernameIndex(ctx context.Context) (map[uint]string, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[uint]string, len(users))
	for _, user := range users {
		names[user.ID] = user.Username
	}

	return names, nil
}

func (s *taskService) mutationSpan(ctx context.Context, action string, id uint) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "board.mutate", trace.WithAttributes(
		attribute.String("task.action", action),
		attribute.Int64("task.id", int64(id)),
	))
}
