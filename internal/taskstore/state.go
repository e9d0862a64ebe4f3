package taskstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type completionState struct {
	CompletedTaskIDs []string `json:"completed_task_ids"`
}

// SaveCompletion persists the ids of done tasks, replacing the file
// atomically.
func (s *Store) SaveCompletion(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.tasks))
	for id, t := range s.tasks {
		if t.IsDone() {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	payload, err := json.MarshalIndent(completionState{CompletedTaskIDs: ids}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(payload, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCompletion marks every task listed in a saved state file as done and
// returns how many were applied. Unknown ids are ignored.
func (s *Store) LoadCompletion(path string) (int, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return 0, nil
	}
	var state completionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return 0, err
	}

	applied := 0
	for _, id := range state.CompletedTaskIDs {
		if _, err := s.MarkDone(id); err == nil {
			applied++
		}
	}
	return applied, nil
}
