package manager

import (
	"companiond/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{State: m.state, Err: m.err}
	if m.selected != nil {
		snap.Model = m.selected.Name
	}
	if m.handle != nil {
		snap.Path = m.handle.Path()
	}
	return snap
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	snap := m.Snapshot()
	now := timeNow()
	resp := types.StatusResponse{
		State:          string(snap.State),
		Model:          snap.Model,
		Path:           snap.Path,
		Runtime:        m.Runtime(),
		Error:          snap.Err,
		LoadsTotal:     m.loads.Load(),
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	if s := m.CurrentSession(); s != nil {
		sr := SessionReport(s.Snapshot())
		resp.Session = &sr
	}
	return resp
}

// Models lists the catalog with availability and the selected flag.
func (m *Manager) Models() types.ModelsResponse {
	selected, hasSel := m.Selected()
	models := m.ListModels()
	out := types.ModelsResponse{Models: make([]types.ModelInfo, 0, len(models))}
	for _, d := range models {
		path := m.store.Path(d)
		out.Models = append(out.Models, types.ModelInfo{
			Name:      d.Name,
			Path:      path,
			URL:       d.URL,
			Available: m.store.Exists(d),
			Backend:   d.Backend.String(),
			Thinking:  d.Thinking,
			MaxTokens: d.WithDefaults().MaxTokens,
			Selected:  hasSel && selected.Name == d.Name,
		})
	}
	return out
}

// SessionReport converts a session snapshot to its API form.
func SessionReport(snap SessionSnapshot) types.SessionResponse {
	resp := types.SessionResponse{
		ID:      snap.ID,
		Model:   snap.Model,
		State:   snap.State.String(),
		Error:   snap.Err,
		History: make([]types.Turn, 0, len(snap.History)),
		Budget: types.BudgetInfo{
			Max:       snap.Budget.Max,
			Reserved:  snap.Budget.Reserved,
			Consumed:  snap.Budget.Consumed,
			Remaining: snap.Budget.Remaining(),
		},
	}
	for _, t := range snap.History {
		resp.History = append(resp.History, types.Turn{Role: string(t.Role), Text: t.Text})
	}
	return resp
}
