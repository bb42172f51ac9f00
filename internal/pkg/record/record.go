// Package record holds the last known value of every control and monitoring
// point of a linker.
package record

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ohowland/wadf_core/internal/pkg/msg"
)

// Section groups the keys of a Record.
type Section string

// Sections of a device record
const (
	Control    Section = "Control"
	Monitoring Section = "Monitoring"
)

// ErrUnknownKey is returned when a section/key pair was not declared at construction.
var ErrUnknownKey = errors.New("unknown record key")

// ErrNotAccessor is returned by DeriveKey for operations that are neither setters nor getters.
var ErrNotAccessor = errors.New("operation is not a set/get accessor")

// Entry is the last value written to a key and when it was written.
type Entry struct {
	Value     interface{}
	Timestamp time.Time
}

// Update is broadcast to subscribers each time an entry is applied.
type Update struct {
	Linker  string
	Section Section
	Key     string
	Entry   Entry
}

// Layout declares the keys of each section.
type Layout map[Section][]string

// Record is the device record of one linker.
type Record struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	linker    string
	sections  map[Section]map[string]Entry
	broadcast map[uuid.UUID]chan msg.Msg
}

// New returns a Record with every key of layout present and zero valued.
func New(linker string, layout Layout) *Record {
	sections := make(map[Section]map[string]Entry)
	for section, keys := range layout {
		entries := make(map[string]Entry, len(keys))
		for _, key := range keys {
			entries[key] = Entry{}
		}
		sections[section] = entries
	}
	return &Record{
		mux:       &sync.Mutex{},
		pid:       uuid.New(),
		linker:    linker,
		sections:  sections,
		broadcast: make(map[uuid.UUID]chan msg.Msg),
	}
}

// PID is the sender id used on broadcast updates.
func (r *Record) PID() uuid.UUID {
	return r.pid
}

// Linker is the class name of the owning linker.
func (r *Record) Linker() string {
	return r.linker
}

// Has reports whether section/key was declared.
func (r *Record) Has(section Section, key string) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	_, ok := r.sections[section][key]
	return ok
}

// Get returns the entry stored under section/key.
func (r *Record) Get(section Section, key string) (Entry, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	e, ok := r.sections[section][key]
	return e, ok
}

// Set stores value under section/key. Timestamps of a key never go backwards:
// a ts older than the stored one is replaced by the stored one.
func (r *Record) Set(section Section, key string, value interface{}, ts time.Time) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	entries, ok := r.sections[section]
	if !ok {
		return fmt.Errorf("%s/%s: %w", section, key, ErrUnknownKey)
	}
	prev, ok := entries[key]
	if !ok {
		return fmt.Errorf("%s/%s: %w", section, key, ErrUnknownKey)
	}
	if ts.Before(prev.Timestamp) {
		ts = prev.Timestamp
	}
	e := Entry{Value: value, Timestamp: ts}
	entries[key] = e

	update := msg.New(r.pid, msg.Record, Update{
		Linker:  r.linker,
		Section: section,
		Key:     key,
		Entry:   e,
	})
	for _, ch := range r.broadcast {
		select {
		case ch <- update:
		default:
		}
	}
	return nil
}

// Snapshot returns a copy of every section.
func (r *Record) Snapshot() map[Section]map[string]Entry {
	r.mux.Lock()
	defer r.mux.Unlock()
	out := make(map[Section]map[string]Entry, len(r.sections))
	for section, entries := range r.sections {
		cp := make(map[string]Entry, len(entries))
		for k, v := range entries {
			cp[k] = v
		}
		out[section] = cp
	}
	return out
}

// Subscribe returns a read only channel of record updates. The topic must be
// msg.Record; other topics yield a channel that never receives. Subscribing
// an already subscribed pid returns its existing channel.
func (r *Record) Subscribe(pid uuid.UUID, topic msg.Topic) <-chan msg.Msg {
	if topic != msg.Record {
		return make(chan msg.Msg)
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	if ch, ok := r.broadcast[pid]; ok {
		return ch
	}
	ch := make(chan msg.Msg, 16)
	r.broadcast[pid] = ch
	return ch
}

// Unsubscribe closes the broadcast channel associated with pid.
func (r *Record) Unsubscribe(pid uuid.UUID) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if ch, ok := r.broadcast[pid]; ok {
		delete(r.broadcast, pid)
		close(ch)
	}
}

// DeriveKey maps an accessor operation name to its record section and key:
// "<class>_<control|monitoring>_<op[4:]>_arg".
func DeriveKey(class, op string) (Section, string, error) {
	var section Section
	var kind string
	switch {
	case strings.HasPrefix(op, "set"):
		section, kind = Control, "control"
	case strings.HasPrefix(op, "get"):
		section, kind = Monitoring, "monitoring"
	default:
		return "", class + "_Unknown", fmt.Errorf("%q: %w", op, ErrNotAccessor)
	}
	suffix := ""
	if len(op) > 4 {
		suffix = op[4:]
	}
	return section, fmt.Sprintf("%s_%s_%s_arg", class, kind, suffix), nil
}
