package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, opt Options) (Result, error)
}

// Engines is the set of OCR engines known to the process. An engine that is
// known but not configured (no credential) is stored as nil.
type Engines struct {
	Default string

	mu   sync.RWMutex
	byID map[string]Engine
}

func NewEngines(def string) *Engines {
	return &Engines{
		Default: strings.ToLower(strings.TrimSpace(def)),
		byID:    make(map[string]Engine),
	}
}

// Register adds e under name. A nil e marks the engine as known but missing
// its credential.
func (e *Engines) Register(name string, eng Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byID[strings.ToLower(strings.TrimSpace(name))] = eng
}

// GetEngine resolves an engine by name, falling back to Default for "".
func (e *Engines) GetEngine(name string) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = e.Default
	}
	e.mu.RLock()
	eng, ok := e.byID[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q; use one of: %s", ErrUnknownEngine, name, strings.Join(e.Names(), ", "))
	}
	if eng == nil {
		return nil, &MissingCredentialError{Engine: name}
	}
	return eng, nil
}

// Names lists every registered engine name.
func (e *Engines) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.byID))
	for k := range e.byID {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Manager remembers a per-chat engine choice on top of a default.
type Manager struct {
	def string
	m   sync.Map // chatID -> engine name
}

func NewManager(defaultEngine string) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) string {
	if v, ok := m.m.Load(chatID); ok {
		return v.(string)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, engine string) {
	m.m.Store(chatID, engine)
}

func (m *Manager) Reset(chatID int64) {
	m.m.Delete(chatID)
}
