package mapping

import (
	"sync"

	"github.com/pkg/errors"
)

// The global message registry. Built once during process startup; all
// registrations, including late-binding resolution, must complete before any
// instance is serialized or parsed. Concurrent registration after startup is
// excluded by construction, not by locking the read paths.
var (
	regMu    sync.Mutex
	messages = map[string]*Map{}
	waiting  = map[string][]func(*Map){}
)

// RegisterMessage publishes a schema under its type name and fires, exactly
// once, every late-binding subscription waiting on that name.
func RegisterMessage(m *Map) error {
	if m.Name == "" {
		return errors.New("cannot register a Map with an empty Name")
	}
	regMu.Lock()
	defer regMu.Unlock()

	if _, ok := messages[m.Name]; ok {
		return errors.Errorf("struct type %q is already registered", m.Name)
	}
	messages[m.Name] = m

	for _, cb := range waiting[m.Name] {
		cb(m)
	}
	delete(waiting, m.Name)
	return nil
}

// MustRegisterMessage is like RegisterMessage but panics on error.
func MustRegisterMessage(m *Map) {
	if err := RegisterMessage(m); err != nil {
		panic(err)
	}
}

// LookupMessage retrieves a registered schema by type name.
func LookupMessage(name string) (*Map, bool) {
	regMu.Lock()
	defer regMu.Unlock()
	m, ok := messages[name]
	return m, ok
}

// subscribe registers cb to fire when name registers. If the type is already
// known the callback fires immediately.
func subscribe(name string, cb func(*Map)) {
	regMu.Lock()
	if m, ok := messages[name]; ok {
		regMu.Unlock()
		cb(m)
		return
	}
	waiting[name] = append(waiting[name], cb)
	regMu.Unlock()
}
