package manager

import (
	"github.com/rs/zerolog"

	"companiond/internal/catalog"
	"companiond/internal/llm"
	"companiond/internal/storage"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Catalog is the list of selectable descriptors for SelectByName.
	Catalog []catalog.Descriptor
	// Store locates model files; nil resolves descriptor paths as given.
	Store storage.Store
	// Runtime loads model files. Required for SelectModel to succeed.
	Runtime llm.Runtime
	// ReservedTokens is the decode offset of each session budget.
	ReservedTokens int
	Logger         zerolog.Logger
	Publisher      EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:    StateUnselected,
		catalog:  append([]catalog.Descriptor(nil), cfg.Catalog...),
		store:    cfg.Store,
		rt:       cfg.Runtime,
		reserved: cfg.ReservedTokens,
		log:      cfg.Logger,
		pub:      cfg.Publisher,
		bus:      NewBroadcaster(),
	}
	if m.reserved <= 0 {
		m.reserved = DefaultReservedTokens
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}
	if m.store == nil {
		m.store = storage.Unrooted()
	}
	m.startTime = timeNow()
	return m
}
