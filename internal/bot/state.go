package bot

import "sync"

// Step is the pending answer a chat is expected to send next.
type Step string

const (
	StepNone          Step = ""
	StepPassword      Step = "password"
	StepTaskCode      Step = "task_code"
	StepDeleteHandles Step = "delete_handles"
	StepSolutionCode  Step = "solution_code"
	StepScore         Step = "score"
	StepAddOrganizer  Step = "add_organizer"
)

// StateManager keeps per-chat conversation steps in memory.
type StateManager struct {
	mu    sync.RWMutex
	steps map[string]Step
}

func NewStateManager() *StateManager {
	return &StateManager{steps: make(map[string]Step)}
}

func (m *StateManager) Get(id string) Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.steps[id]
}

func (m *StateManager) Set(id string, step Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if step == StepNone {
		delete(m.steps, id)
		return
	}
	m.steps[id] = step
}

// Take returns the pending step and clears it.
func (m *StateManager) Take(id string) Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	step := m.steps[id]
	delete(m.steps, id)
	return step
}

func (m *StateManager) Clear(id string) {
	m.Set(id, StepNone)
}
