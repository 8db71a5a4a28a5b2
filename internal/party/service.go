package party

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort defines data access methods for parties.
type RepositoryPort interface {
	Create(ctx context.Context, kind Kind, input CreateInput) (Party, error)
	Get(ctx context.Context, kind Kind, id int64) (Party, error)
	List(ctx context.Context, kind Kind, activeOnly bool) ([]Party, error)
	SetActive(ctx context.Context, kind Kind, id int64, active bool) error
}

// Service manages the customer and supplier registries.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a party after trimming and validating the name.
func (s *Service) Create(ctx context.Context, kind Kind, input CreateInput) (Party, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Party{}, errors.New("party: name required")
	}
	return s.repo.Create(ctx, kind, input)
}

// Get returns one party.
func (s *Service) Get(ctx context.Context, kind Kind, id int64) (Party, error) {
	return s.repo.Get(ctx, kind, id)
}

// List returns parties in name order.
func (s *Service) List(ctx context.Context, kind Kind, activeOnly bool) ([]Party, error) {
	return s.repo.List(ctx, kind, activeOnly)
}

// Deactivate hides a party from pickers while keeping its history.
func (s *Service) Deactivate(ctx context.Context, kind Kind, id int64) error {
	return s.repo.SetActive(ctx, kind, id, false)
}

// Activate re-enables a party.
func (s *Service) Activate(ctx context.Context, kind Kind, id int64) error {
	return s.repo.SetActive(ctx, kind, id, true)
}
