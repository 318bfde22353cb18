// Package domain implements enrollment and progress tracking for time-boxed challenges.
package domain

import (
	"log"
	"time"

	"example.com/challenges/internal/observability"
)

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source used by time-sensitive operations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service orchestrates enrollment workflows.
type Service struct {
	repo    Repository
	catalog Catalog
	now     func() time.Time
	logger  *log.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		catalog: catalog,
		now:     time.Now,
		logger:  log.New(log.Writer(), "[enrollment] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) record(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	observability.RecordOperation(operation, outcome)
}
