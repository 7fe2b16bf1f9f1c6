package contract_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

type openAPISpec struct {
	Paths      map[string]map[string]json.RawMessage `json:"paths"`
	Components struct {
		Schemas map[string]json.RawMessage `json:"schemas"`
	} `json:"components"`
}

func TestBoardSpecificationIncludesAllEndpoints(t *testing.T) {
	spec := loadSpec(t, "docs/api/board.json")

	requiredPaths := []string{
		"/api/auth/register",
		"/api/auth/login",
		"/api/auth/all",
		"/api/tasks",
		"/api/tasks/{id}",
		"/api/tasks/{id}/smart-assign",
		"/api/actions/latest",
		"/api/board/ws",
	}

	for _, path := range requiredPaths {
		if _, ok := spec.Paths[path]; !ok {
			t.Fatalf("expected board spec to contain path %s", path)
		}
	}

	for _, schema := range []string{"Task", "TaskAttempt", "ConflictResponse", "ActionLog", "BoardEvent", "User"} {
		if _, ok := spec.Components.Schemas[schema]; !ok {
			t.Fatalf("expected board spec to contain schema %s", schema)
		}
	}
}

func loadSpec(t *testing.T, relative string) openAPISpec {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("failed to resolve caller")
	}
	base := filepath.Join(filepath.Dir(filename), "..", "..")
	fullPath := filepath.Join(base, relative)

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		t.Fatalf("failed to read %s: %v", fullPath, err)
	}
	var spec openAPISpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		t.Fatalf("failed to unmarshal %s: %v", fullPath, err)
	}
	return spec
}
