package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/syncboard-api/internal/models"
)

// ErrVersionMismatch indicates a guarded update matched no row because the
// stored version moved underneath the caller (or the row is gone).
var ErrVersionMismatch = errors.New("task version mismatch")

// UserTaskLoad pairs a user with their count of not-yet-done tasks.
type UserTaskLoad struct {
	UserID      uint
	ActiveTasks int64
}

// TaskRepository persists board tasks. UpdateVersioned must behave as a
// single compare-and-set: the write commits only if the stored version still
// equals the expected one.
type TaskRepository interface {
	List(ctx context.Context) ([]models.Task, error)
	GetByID(ctx context.Context, id uint) (models.Task, error)
	TitleExists(ctx context.Context, title string, excludeID uint) (bool, error)
	Create(ctx context.Context, task *models.Task) error
	UpdateVersioned(ctx context.Context, task *models.Task, expectedVersion int64) error
	Delete(ctx context.Context, id uint) error
	ActiveCounts(ctx context.Context) ([]UserTaskLoad, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository instantiates a GORM-backed repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) List(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func (r *taskRepository) TitleExists(ctx context.Context, title string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{}).Where("title = ?", title)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// UpdateVersioned writes the mutable fields guarded by the expected version.
// The version bump happens inside the same statement, so two concurrent
// writers racing on the same expected version resolve in the database:
// exactly one matches the WHERE clause, the other sees ErrVersionMismatch.
func (r *taskRepository) UpdateVersioned(ctx context.Context, task *models.Task, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND version = ?", task.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":            task.Title,
			"description":      task.Description,
			"assigned_user":    task.AssignedUser,
			"status":           task.Status,
			"priority":         task.Priority,
			"last_modified_by": task.LastModifiedBy,
			"last_modified_at": task.LastModifiedAt,
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionMismatch
	}

	task.Version = expectedVersion + 1
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Task{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepository) ActiveCounts(ctx context.Context) ([]UserTaskLoad, error) {
	var loads []UserTaskLoad
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Select("assigned_user AS user_id, COUNT(*) AS active_tasks").
		Where("status <> ?", models.StatusDone).
		Group("assigned_user").
		Scan(&loads).Error
	if err != nil {
		return nil, err
	}

	return loads, nil
}
