package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/syncboard-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Task{}, &models.ActionLog{}))

	return db
}

func seedTask(t *testing.T, repo TaskRepository, title string, assignee uint, status string) models.Task {
	t.Helper()

	task := models.Task{
		Title:          title,
		AssignedUser:   assignee,
		Status:         status,
		Priority:       models.PriorityMedium,
		CreatedBy:      1,
		LastModifiedAt: time.Now().UTC(),
		Version:        1,
	}
	require.NoError(t, repo.Create(context.Background(), &task))
	return task
}

func TestUpdateVersionedExactlyOneWriterWins(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	task := seedTask(t, repo, "Wire payment flow", 1, models.StatusTodo)

	first := task
	first.Status = models.StatusInProgress
	require.NoError(t, repo.UpdateVersioned(context.Background(), &first, 1))
	require.Equal(t, int64(2), first.Version)

	// A second writer still holding version 1 loses the race.
	second := task
	second.Priority = models.PriorityHigh
	err := repo.UpdateVersioned(context.Background(), &second, 1)
	require.ErrorIs(t, err, ErrVersionMismatch)

	stored, err := repo.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stored.Version)
	require.Equal(t, models.StatusInProgress, stored.Status)
	require.Equal(t, models.PriorityMedium, stored.Priority)
}

func TestUpdateVersionedBumpsByExactlyOne(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	task := seedTask(t, repo, "Wire payment flow", 1, models.StatusTodo)

	for expected := int64(1); expected <= 3; expected++ {
		task.Description = fmt.Sprintf("pass %d", expected)
		require.NoError(t, repo.UpdateVersioned(context.Background(), &task, expected))
		require.Equal(t, expected+1, task.Version)
	}

	stored, err := repo.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), stored.Version)
}

func TestUpdateVersionedMissingRow(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))

	ghost := models.Task{ID: 42, Title: "Ghost"}
	err := repo.UpdateVersioned(context.Background(), &ghost, 1)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDeleteMissingRow(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))

	err := repo.Delete(context.Background(), 42)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTitleExistsExcludesSelf(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))
	task := seedTask(t, repo, "Wire payment flow", 1, models.StatusTodo)

	taken, err := repo.TitleExists(context.Background(), "Wire payment flow", 0)
	require.NoError(t, err)
	require.True(t, taken)

	taken, err = repo.TitleExists(context.Background(), "Wire payment flow", task.ID)
	require.NoError(t, err)
	require.False(t, taken)

	taken, err = repo.TitleExists(context.Background(), "Something else", 0)
	require.NoError(t, err)
	require.False(t, taken)
}

func TestActiveCountsSkipDoneTasks(t *testing.T) {
	repo := NewTaskRepository(newTestDB(t))

	seedTask(t, repo, "Card A", 1, models.StatusTodo)
	seedTask(t, repo, "Card B", 1, models.StatusInProgress)
	seedTask(t, repo, "Card C", 1, models.StatusDone)
	seedTask(t, repo, "Card D", 2, models.StatusDone)

	loads, err := repo.ActiveCounts(context.Background())
	require.NoError(t, err)

	counts := make(map[uint]int64, len(loads))
	for _, load := range loads {
		counts[load.UserID] = load.ActiveTasks
	}

	require.Equal(t, int64(2), counts[1])
	require.Zero(t, counts[2])
}

func TestActivityLogLatestOrdering(t *testing.T) {
	repo := NewActivityLogRepository(newTestDB(t))

	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := models.ActionLog{
			ActorID:    1,
			ActorName:  "maya",
			ActionType: models.ActionTaskCreated,
			TaskID:     uint(i + 1),
			TaskTitle:  "Card",
			Details:    models.ActionDetails{}.JSON(),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(context.Background(), &entry))
	}

	entries, err := repo.Latest(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint(5), entries[0].TaskID)
	require.Equal(t, uint(4), entries[1].TaskID)
	require.Equal(t, uint(3), entries[2].TaskID)
}
