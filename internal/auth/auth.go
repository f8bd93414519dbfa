package auth

import (
	"fmt"
	"sort"
	"time"
)

// Learner is one approved participant of the telegram front-end. A zero
// Added time marks entries seeded from the environment rather than an
// admin command.
type Learner struct {
	ID       int64     `json:"id"`
	Username string    `json:"username,omitempty"`
	Added    time.Time `json:"added,omitempty"`
}

// Repository persists the allowlist between restarts.
type Repository interface {
	Load() ([]Learner, error)
	Save(learners []Learner) error
}

// Service gates the telegram front-end. An empty allowlist means open
// access: anyone can chat until the first learner is added.
type Service struct {
	repo    Repository
	allowed map[int64]Learner
}

// NewWithRepo loads the persisted allowlist and merges the ids provided
// through the environment. A corrupt allowlist file is an error, not a
// silent fresh start, because an empty list opens the gate.
func NewWithRepo(repo Repository, initial []int64) (*Service, error) {
	s := &Service{repo: repo, allowed: make(map[int64]Learner)}
	if repo != nil {
		learners, err := repo.Load()
		if err != nil {
			return nil, fmt.Errorf("load allowlist: %w", err)
		}
		for _, l := range learners {
			s.allowed[l.ID] = l
		}
	}
	for _, id := range initial {
		if _, ok := s.allowed[id]; !ok {
			s.allowed[id] = Learner{ID: id}
		}
	}
	return s, nil
}

func (s *Service) IsAllowed(userID int64) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[userID]
	return ok
}

// Allow grants access and persists the change.
func (s *Service) Allow(l Learner) error {
	if l.Added.IsZero() {
		l.Added = time.Now().UTC()
	}
	s.allowed[l.ID] = l
	return s.persist()
}

// Deny revokes access. Revoking an unknown id still rewrites the file
// and is otherwise a no-op.
func (s *Service) Deny(userID int64) error {
	delete(s.allowed, userID)
	return s.persist()
}

func (s *Service) List() []Learner {
	return s.snapshot()
}

func (s *Service) persist() error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Save(s.snapshot())
}

func (s *Service) snapshot() []Learner {
	out := make([]Learner, 0, len(s.allowed))
	for _, l := range s.allowed {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
