// Package catalog provides an in-memory challenge catalog for local development and tests.
package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"

	"example.com/challenges/internal/domain"
)

// Memory is a domain.Catalog backed by maps.
type Memory struct {
	mu         sync.RWMutex
	challenges map[string]domain.Challenge
	tasks      map[string][]domain.Task
	order      []string
}

// NewMemory constructs an empty catalog.
func NewMemory() *Memory {
	return &Memory{
		challenges: make(map[string]domain.Challenge),
		tasks:      make(map[string][]domain.Task),
	}
}

// Put stores a challenge and replaces its task list. Tasks keep the given order.
func (m *Memory) Put(challenge domain.Challenge, tasks ...domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.challenges[challenge.ID]; !ok {
		m.order = append(m.order, challenge.ID)
	}
	m.challenges[challenge.ID] = challenge

	stored := make([]domain.Task, len(tasks))
	for i, task := range tasks {
		task.ChallengeID = challenge.ID
		task.Position = i
		stored[i] = task
	}
	m.tasks[challenge.ID] = stored
}

// AddTask appends a task to an existing challenge.
func (m *Memory) AddTask(challengeID string, task domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task.ChallengeID = challengeID
	task.Position = len(m.tasks[challengeID])
	m.tasks[challengeID] = append(m.tasks[challengeID], task)
}

// GetActiveChallenge implements domain.Catalog.
func (m *Memory) GetActiveChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	challenge, ok := m.challenges[challengeID]
	if !ok || challenge.Status != domain.ChallengeStatusActive {
		return nil, nil
	}
	return &challenge, nil
}

// ListTasks implements domain.Catalog.
func (m *Memory) ListTasks(ctx context.Context, challengeID string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.tasks[challengeID]), nil
}

// Challenge returns a challenge definition regardless of status.
func (m *Memory) Challenge(challengeID string) (domain.Challenge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	challenge, ok := m.challenges[challengeID]
	return challenge, ok
}

// Task returns a single task definition.
func (m *Memory) Task(challengeID, taskID string) (domain.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, task := range m.tasks[challengeID] {
		if task.ID == taskID {
			return task, true
		}
	}
	return domain.Task{}, false
}

// ListActiveChallenges implements domain.Catalog with insertion ordering.
func (m *Memory) ListActiveChallenges(ctx context.Context, filter domain.CatalogFilter) ([]domain.Challenge, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matches := make([]domain.Challenge, 0, len(m.order))
	for _, id := range m.order {
		c := m.challenges[id]
		if c.Status != domain.ChallengeStatusActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Title), search) {
			continue
		}
		if filter.CommunityTag != "" && c.CommunityTag != filter.CommunityTag {
			continue
		}
		if filter.Cadence != "" && c.Cadence != filter.Cadence {
			continue
		}
		matches = append(matches, c)
	}

	total := len(matches)
	if filter.PageSize <= 0 {
		return matches, total, nil
	}
	page := max(filter.Page, 1)
	start := min((page-1)*filter.PageSize, total)
	end := min(start+filter.PageSize, total)
	return matches[start:end], total, nil
}
