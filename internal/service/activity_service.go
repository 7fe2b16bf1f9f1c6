package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syncboard-api/internal/dto"
	"github.com/noah-isme/syncboard-api/internal/models"
	"github.com/noah-isme/syncboard-api/internal/observability"
	"github.com/noah-isme/syncboard-api/internal/repository"
)

// activityFeedLimit caps how many entries the feed ever exposes, regardless
// of total history size.
const activityFeedLimit = 20

const activityCacheKey = "board:actions:latest:v1"

// ActivityEntry captures the snapshot data required to persist a log entry.
// ActorName and TaskTitle are copied values, frozen at entry time.
type ActivityEntry struct {
	ActorID   uint
	ActorName string
	Action    string
	TaskID    uint
	TaskTitle string
	Details   models.ActionDetails
}

// ActivityRecorder is the write side of the board activity trail.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

// ActivityService exposes the append-only activity trail. Record is
// best-effort: a persistence failure is logged and swallowed so it can never
// fail or roll back the task mutation that triggered it.
type ActivityService interface {
	ActivityRecorder
	Latest(ctx context.Context) ([]dto.ActionLogResponse, error)
}

type activityService struct {
	repo      repository.ActivityLogRepository
	cache     *redis.Client
	publisher EventPublisher
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewActivityService constructs the activity log service. The redis client
// and publisher are optional; without a cache every read goes to the
// repository, without a publisher no feed events are announced.
func NewActivityService(repo repository.ActivityLogRepository, cache *redis.Client, publisher EventPublisher, ttl time.Duration, logger zerolog.Logger) ActivityService {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &activityService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		ttl:       ttl,
		logger:    logger.With().Str("component", "activity_service").Logger(),
		now:       time.Now,
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) {
	model := models.ActionLog{
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		ActionType: entry.Action,
		TaskID:     entry.TaskID,
		TaskTitle:  entry.TaskTitle,
		Details:    entry.Details.JSON(),
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		observability.ActivityAppendFailures().Inc()
		s.logger.Error().Err(err).
			Str("action", entry.Action).
			Uint("task_id", entry.TaskID).
			Msg("failed to persist activity entry")
		return
	}

	s.invalidate(ctx)

	if s.publisher != nil {
		s.publisher.Publish(BoardEvent{
			Type:    EventActivityLogged,
			Payload: dto.NewActionLogResponse(model),
		})
	}
}

func (s *activityService) Latest(ctx context.Context) ([]dto.ActionLogResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, activityCacheKey).Result(); err == nil && cached != "" {
			var responses []dto.ActionLogResponse
			if err := json.Unmarshal([]byte(cached), &responses); err == nil {
				observability.ActivityFeedRequests().WithLabelValues("hit").Inc()
				return responses, nil
			}
		}
	}

	entries, err := s.repo.Latest(ctx, activityFeedLimit)
	if err != nil {
		observability.ActivityFeedRequests().WithLabelValues("error").Inc()
		return nil, err
	}

	responses := dto.NewActionLogResponseSlice(entries)

	if s.cache != nil {
		if payload, err := json.Marshal(responses); err == nil {
			if err := s.cache.Set(ctx, activityCacheKey, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write activity feed cache")
			}
		}
	}

	observability.ActivityFeedRequests().WithLabelValues("miss").Inc()

	return responses, nil
}

func (s *activityService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, activityCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate activity feed cache")
	}
}
