package live

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"strategy-lab/internal/events"
	"strategy-lab/pkg/i18n"
)

// Manager owns the running traders, keyed by instrument and account.
type Manager struct {
	deps Deps

	mu      sync.Mutex
	traders map[string]*Trader

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager builds an empty registry. Close stops every trader.
func NewManager(deps Deps) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:    deps.withDefaults(),
		traders: make(map[string]*Trader),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches a trader, stopping any trader already registered for the
// same instrument and account.
func (m *Manager) Start(req StartRequest) (Status, error) {
	if err := req.validate(); err != nil {
		return Status{}, err
	}
	t := newTrader(req, m.deps)

	m.mu.Lock()
	prev := m.traders[t.key]
	m.traders[t.key] = t
	m.mu.Unlock()

	if prev != nil {
		m.deps.Logger.Info(i18n.Get("TraderReplaced"), zap.String("trader", t.key))
		prev.stop()
	}
	t.start(m.ctx)
	m.publishState()
	return t.Status(), nil
}

// Stop stops and forgets the trader for symbol and account.
func (m *Manager) Stop(symbol, account string) error {
	key := Key(symbol, account)
	m.mu.Lock()
	t, ok := m.traders[key]
	delete(m.traders, key)
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	t.stop()
	m.publishState()
	return nil
}

// Status reports the trader for symbol and account.
func (m *Manager) Status(symbol, account string) (Status, error) {
	t, err := m.get(symbol, account)
	if err != nil {
		return Status{}, err
	}
	return t.Status(), nil
}

// Logs returns the trader's newest log entries.
func (m *Manager) Logs(symbol, account string, limit int) ([]LogEntry, error) {
	t, err := m.get(symbol, account)
	if err != nil {
		return nil, err
	}
	return t.Logs(limit), nil
}

// Chart returns the trader's chart data.
func (m *Manager) Chart(symbol, account string) (Chart, error) {
	t, err := m.get(symbol, account)
	if err != nil {
		return Chart{}, err
	}
	return t.Chart(), nil
}

// List reports every registered trader ordered by key.
func (m *Manager) List() []Status {
	m.mu.Lock()
	traders := make([]*Trader, 0, len(m.traders))
	for _, t := range m.traders {
		traders = append(traders, t)
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(traders))
	for _, t := range traders {
		out = append(out, t.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close stops all traders.
func (m *Manager) Close() {
	m.mu.Lock()
	traders := m.traders
	m.traders = make(map[string]*Trader)
	m.mu.Unlock()

	m.cancel()
	for _, t := range traders {
		t.stop()
	}
	m.publishState()
}

func (m *Manager) get(symbol, account string) (*Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traders[Key(symbol, account)]
	if !ok {
		return nil, ErrNotRunning
	}
	return t, nil
}

func (m *Manager) publishState() {
	if m.deps.Bus == nil {
		return
	}
	m.mu.Lock()
	n := len(m.traders)
	m.mu.Unlock()
	m.deps.Bus.Publish(events.EventTraderState, StateEvent{Running: n})
}
