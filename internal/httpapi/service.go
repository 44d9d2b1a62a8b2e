package httpapi

import (
	"context"

	"companiond/internal/manager"
	"companiond/pkg/types"
)

// Session is the conversation surface used by /chat, /cancel and /session.
type Session interface {
	Submit(ctx context.Context, prompt string) (<-chan manager.StreamEvent, error)
	Cancel() error
	Snapshot() manager.SessionSnapshot
}

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Models() types.ModelsResponse
	Status() types.StatusResponse
	Ready() bool
	SelectByName(ctx context.Context, name string) error
	// Session returns the active session or manager.ErrNotSelected.
	Session() (Session, error)
	ResetCurrentSession() error
	Subscribe(buf int) (<-chan manager.Event, func())
}

// managerService adapts *manager.Manager to Service.
type managerService struct {
	*manager.Manager
}

// FromManager exposes m through the HTTP API.
func FromManager(m *manager.Manager) Service { return managerService{m} }

func (s managerService) Session() (Session, error) {
	sess := s.CurrentSession()
	if sess == nil {
		return nil, manager.ErrNotSelected
	}
	return sess, nil
}
