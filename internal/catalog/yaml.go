package catalog

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/challenges/internal/domain"
)

type fixtureFile struct {
	Challenges []fixtureChallenge `yaml:"challenges"`
}

type fixtureChallenge struct {
	ID                      string        `yaml:"id"`
	Title                   string        `yaml:"title"`
	CommunityTag            string        `yaml:"community_tag"`
	DurationDays            int           `yaml:"duration_days"`
	Cadence                 string        `yaml:"cadence"`
	Visibility              string        `yaml:"visibility"`
	RequireDualConfirmation bool          `yaml:"require_dual_confirmation"`
	Status                  string        `yaml:"status"`
	Tasks                   []fixtureTask `yaml:"tasks"`
}

type fixtureTask struct {
	ID           string `yaml:"id"`
	Cadence      string `yaml:"cadence"`
	DayNumber    *int   `yaml:"day_number"`
	WeekNumber   *int   `yaml:"week_number"`
	Title        string `yaml:"title"`
	Instructions string `yaml:"instructions"`
	IsMilestone  bool   `yaml:"is_milestone"`
}

// LoadYAML reads a catalog fixture. Status defaults to ACTIVE and cadence to DAILY.
func LoadYAML(r io.Reader) (*Memory, error) {
	var file fixtureFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog fixture: %w", err)
	}

	m := NewMemory()
	for _, fc := range file.Challenges {
		if strings.TrimSpace(fc.ID) == "" {
			return nil, fmt.Errorf("catalog fixture: challenge %q has no id", fc.Title)
		}
		if fc.DurationDays < 1 {
			return nil, fmt.Errorf("catalog fixture: challenge %s: duration_days must be >= 1", fc.ID)
		}

		challenge := domain.Challenge{
			ID:                      fc.ID,
			Title:                   fc.Title,
			CommunityTag:            fc.CommunityTag,
			DurationDays:            fc.DurationDays,
			Cadence:                 domain.Cadence(upperOr(fc.Cadence, string(domain.CadenceDaily))),
			Visibility:              fc.Visibility,
			RequireDualConfirmation: fc.RequireDualConfirmation,
			Status:                  domain.ChallengeStatus(upperOr(fc.Status, string(domain.ChallengeStatusActive))),
		}

		tasks := make([]domain.Task, 0, len(fc.Tasks))
		for _, ft := range fc.Tasks {
			if ft.DayNumber != nil && (*ft.DayNumber < 1 || *ft.DayNumber > fc.DurationDays) {
				return nil, fmt.Errorf("catalog fixture: task %s: day_number out of range 1..%d", ft.ID, fc.DurationDays)
			}
			tasks = append(tasks, domain.Task{
				ID:           ft.ID,
				Cadence:      domain.Cadence(upperOr(ft.Cadence, string(domain.CadenceDaily))),
				DayNumber:    ft.DayNumber,
				WeekNumber:   ft.WeekNumber,
				Title:        ft.Title,
				Instructions: ft.Instructions,
				IsMilestone:  ft.IsMilestone,
			})
		}
		m.Put(challenge, tasks...)
	}
	return m, nil
}

func upperOr(value, fallback string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
