// Package reconcile implements the client-side half of the board's
// optimistic concurrency protocol. A Session tracks the authoritative task
// snapshots a client has received, overlays at most one in-flight optimistic
// edit, and walks that edit through the accept/conflict/resolve lifecycle.
package reconcile

import (
	"errors"
	"sync"
	"time"
)

// Session errors surfaced to callers.
var (
	ErrUnknownTask   = errors.New("task not present in session")
	ErrEditInFlight  = errors.New("another edit is already pending")
	ErrNoPendingEdit = errors.New("no pending edit for task")
	ErrNotConflicted = errors.New("pending edit is not in conflict")
)

// EditState is the lifecycle phase of the session's pending edit.
type EditState int

const (
	// StateIdle means no edit is in flight.
	StateIdle EditState = iota
	// StateOptimisticPending means an edit has been staged locally and is
	// awaiting the server verdict.
	StateOptimisticPending
	// StateConflicted means the server rejected the edit with a newer
	// authoritative record; the client must resolve before retrying.
	StateConflicted
)

// TaskView is the client-side snapshot of a task record.
type TaskView struct {
	ID               uint
	Title            string
	Description      string
	AssignedUser     uint
	AssignedUsername string
	Status           string
	Priority         string
	Version          int64
	LastModifiedAt   time.Time
}

// Patch holds the fields an edit intends to change. Nil fields are left
// untouched.
type Patch struct {
	Title        *string
	Description  *string
	AssignedUser *uint
	Status       *string
	Priority     *string
	Dragged      bool
}

// Resolution is the client's decision for a conflicted edit.
type Resolution int

const (
	// ResolutionDiscard drops the local edit and adopts the server record.
	ResolutionDiscard Resolution = iota
	// ResolutionOverwrite resubmits every locally edited field on top of the
	// server record.
	ResolutionOverwrite
	// ResolutionMerge resubmits only the fields the original patch touched,
	// keeping the server's values everywhere else.
	ResolutionMerge
)

type pendingEdit struct {
	taskID      uint
	patch       Patch
	baseVersion int64
	speculative TaskView
	state       EditState
	serverTask  TaskView
}

// Session reconciles a single client's board state. All methods are safe for
// concurrent use.
type Session struct {
	mu      sync.Mutex
	tasks   map[uint]TaskView
	pending *pendingEdit
}

// NewSession creates an empty reconciliation session.
func NewSession() *Session {
	return &Session{tasks: make(map[uint]TaskView)}
}

// Load replaces the authoritative snapshot wholesale, as after an initial
// fetch or a resync. Any pending edit is abandoned.
func (s *Session) Load(tasks []TaskView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[uint]TaskView, len(tasks))
	for _, task := range tasks {
		s.tasks[task.ID] = task
	}
	s.pending = nil
}

// State reports the lifecycle phase of the session's pending edit.
func (s *Session) State() EditState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return StateIdle
	}
	return s.pending.state
}

// Stage records an optimistic edit against the task's current snapshot. The
// returned view already shows the edit applied; the caller submits the patch
// with the returned base version as its claimed version. Only one edit may be
// in flight at a time.
func (s *Session) Stage(taskID uint, patch Patch) (TaskView, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return TaskView{}, 0, ErrEditInFlight
	}

	base, ok := s.tasks[taskID]
	if !ok {
		return TaskView{}, 0, ErrUnknownTask
	}

	speculative := applyPatch(base, patch)
	s.pending = &pendingEdit{
		taskID:      taskID,
		patch:       patch,
		baseVersion: base.Version,
		speculative: speculative,
		state:       StateOptimisticPending,
	}

	return speculative, base.Version, nil
}

// View returns the task as the client should render it: the authoritative
// snapshot with the pending edit overlaid when one targets this task.
func (s *Session) View(taskID uint) (TaskView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return TaskView{}, false
	}
	if s.pending != nil && s.pending.taskID == taskID && s.pending.state != StateConflicted {
		return s.pending.speculative, true
	}
	return task, true
}

// Tasks returns every task in render order input, pending overlay included.
func (s *Session) Tasks() []TaskView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]TaskView, 0, len(s.tasks))
	for id, task := range s.tasks {
		if s.pending != nil && s.pending.taskID == id && s.pending.state != StateConflicted {
			views = append(views, s.pending.speculative)
			continue
		}
		views = append(views, task)
	}
	return views
}

// ApplyCreated folds a broadcast task creation into the snapshot.
func (s *Session) ApplyCreated(task TaskView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// ApplyUpdated folds a broadcast task update into the snapshot. A pending
// edit on the same task is kept; the server decides its fate when the edit
// lands.
func (s *Session) ApplyUpdated(task TaskView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// ApplyDeleted folds a broadcast deletion into the snapshot. A pending edit
// on the deleted task is abandoned since there is nothing left to resolve
// against.
func (s *Session) ApplyDeleted(taskID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, taskID)
	if s.pending != nil && s.pending.taskID == taskID {
		s.pending = nil
	}
}

// Confirm records the server's acceptance of the pending edit. The returned
// record is authoritative and supersedes the speculative overlay.
func (s *Session) Confirm(task TaskView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.taskID != task.ID {
		return ErrNoPendingEdit
	}

	s.tasks[task.ID] = task
	s.pending = nil
	return nil
}

// Conflict records the server's rejection of the pending edit. The server
// record becomes the authoritative snapshot and the resolution baseline; the
// speculative overlay stops rendering.
func (s *Session) Conflict(server TaskView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.taskID != server.ID {
		return ErrNoPendingEdit
	}

	s.tasks[server.ID] = server
	s.pending.serverTask = server
	s.pending.state = StateConflicted
	return nil
}

// ServerTask returns the authoritative record attached to a conflicted edit.
func (s *Session) ServerTask() (TaskView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.state != StateConflicted {
		return TaskView{}, ErrNotConflicted
	}
	return s.pending.serverTask, nil
}

// Resolve applies the chosen resolution to the conflicted edit. For discard
// it adopts the server record and returns no patch. For overwrite and merge
// it returns the patch to resubmit together with the server version to claim
// as the new baseline, and re-enters the pending state.
func (s *Session) Resolve(resolution Resolution) (Patch, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.state != StateConflicted {
		return Patch{}, 0, false, ErrNotConflicted
	}

	server := s.pending.serverTask

	switch resolution {
	case ResolutionDiscard:
		s.tasks[server.ID] = server
		s.pending = nil
		return Patch{}, 0, false, nil

	case ResolutionOverwrite:
		patch := fullPatch(s.pending.speculative)
		s.rebase(patch, server)
		return patch, server.Version, true, nil

	case ResolutionMerge:
		patch := s.pending.patch
		s.rebase(patch, server)
		return patch, server.Version, true, nil

	default:
		return Patch{}, 0, false, ErrNotConflicted
	}
}

// rebase restages the patch on top of the server record.
func (s *Session) rebase(patch Patch, server TaskView) {
	s.pending.patch = patch
	s.pending.baseVersion = server.Version
	s.pending.speculative = applyPatch(server, patch)
	s.pending.state = StateOptimisticPending
}

func applyPatch(base TaskView, patch Patch) TaskView {
	view := base
	if patch.Title != nil {
		view.Title = *patch.Title
	}
	if patch.Description != nil {
		view.Description = *patch.Description
	}
	if patch.AssignedUser != nil {
		view.AssignedUser = *patch.AssignedUser
		view.AssignedUsername = ""
	}
	if patch.Status != nil {
		view.Status = *patch.Status
	}
	if patch.Priority != nil {
		view.Priority = *patch.Priority
	}
	return view
}

// fullPatch turns a speculative view into a patch carrying every mutable
// field, for the overwrite resolution.
func fullPatch(view TaskView) Patch {
	title := view.Title
	description := view.Description
	assigned := view.AssignedUser
	status := view.Status
	priority := view.Priority
	return Patch{
		Title:        &title,
		Description:  &description,
		AssignedUser: &assigned,
		Status:       &status,
		Priority:     &priority,
	}
}
