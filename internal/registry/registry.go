// Package registry is the single in-memory authority for relay participants.
//
// A Registry maps a case-insensitive display name to a client record holding
// the client's credential, its attached Outbound (when connected), and its
// pending eviction timer (when disconnected and inside the grace period).
// All reads and writes go through one mutex.
package registry

import (
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultGracePeriod is how long a disconnected client survives before it is
// evicted.
const DefaultGracePeriod = 10 * time.Second

const maxCredentialAttempts = 8

// State is the connection state of a client.
type State int

const (
	// StateRegistered means the client has never attached a connection.
	StateRegistered State = iota
	// StateConnected means an Outbound is attached.
	StateConnected
	// StateGrace means the connection dropped and an eviction timer is running.
	StateGrace
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateConnected:
		return "connected"
	case StateGrace:
		return "grace"
	default:
		return "unknown"
	}
}

// Client is a point-in-time view of a registry entry.
type Client struct {
	Name       string
	Credential string
	State      State
	// Outbound is non-nil only when State is StateConnected.
	Outbound *Outbound
}

// Stats counts entries per state.
type Stats struct {
	Registered int
	Connected  int
	Grace      int
}

// Total returns the number of entries.
func (s Stats) Total() int {
	return s.Registered + s.Connected + s.Grace
}

type eviction struct {
	timer      *time.Timer
	generation uint64
}

type entry struct {
	name       string
	key        string
	credential string
	outbound   *Outbound
	eviction   *eviction
}

func (e *entry) state() State {
	switch {
	case e.outbound != nil:
		return StateConnected
	case e.eviction != nil:
		return StateGrace
	default:
		return StateRegistered
	}
}

func (e *entry) view() Client {
	return Client{
		Name:       e.name,
		Credential: e.credential,
		State:      e.state(),
		Outbound:   e.outbound,
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithGracePeriod sets how long a detached client is kept before eviction.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.gracePeriod = d
		}
	}
}

// WithCredentialSource replaces the credential generator.
func WithCredentialSource(source func() string) Option {
	return func(r *Registry) {
		if source != nil {
			r.newCredential = source
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithEvictionHook registers fn to be called, outside the registry lock,
// every time a client is evicted after its grace period.
func WithEvictionHook(fn func(Client)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

// Registry tracks registered clients by normalized name and by credential.
type Registry struct {
	mu           sync.Mutex
	byName       map[string]*entry
	byCredential map[string]*entry
	issued       map[string]struct{}
	generation   uint64
	closed       bool

	gracePeriod   time.Duration
	newCredential func() string
	onEvict       func(Client)
	log           *slog.Logger
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byName:        make(map[string]*entry),
		byCredential:  make(map[string]*entry),
		issued:        make(map[string]struct{}),
		gracePeriod:   DefaultGracePeriod,
		newCredential: NewCredential,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewCredential returns a random 128-bit identifier as 32 lowercase hex
// characters.
func NewCredential() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}

// GracePeriod returns the configured grace period.
func (r *Registry) GracePeriod() time.Duration {
	return r.gracePeriod
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a client under name and returns its freshly issued
// credential. The display casing is kept; uniqueness is case-insensitive.
func (r *Registry) Register(name string) (string, error) {
	display := strings.TrimSpace(name)
	key := normalize(display)
	if key == "" {
		return "", ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[key]; exists {
		return "", ErrNameConflict
	}

	credential, err := r.issueCredentialLocked()
	if err != nil {
		return "", err
	}

	e := &entry{name: display, key: key, credential: credential}
	r.byName[key] = e
	r.byCredential[credential] = e

	r.log.Info("Client registered", "name", display, "total", len(r.byName))
	return credential, nil
}

// issueCredentialLocked returns a credential this registry has never handed
// out before, evicted and removed clients included.
func (r *Registry) issueCredentialLocked() (string, error) {
	for range maxCredentialAttempts {
		credential := r.newCredential()
		if credential == "" {
			continue
		}
		if _, taken := r.issued[credential]; !taken {
			r.issued[credential] = struct{}{}
			return credential, nil
		}
	}
	return "", ErrCredentialExhausted
}

// FindByCredential returns the client holding credential.
func (r *Registry) FindByCredential(credential string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byCredential[credential]
	if !ok {
		return Client{}, ErrNotFound
	}
	return e.view(), nil
}

// FindByName returns the client registered under name, ignoring case.
func (r *Registry) FindByName(name string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byName[normalize(name)]
	if !ok {
		return Client{}, ErrNotFound
	}
	return e.view(), nil
}

// Snapshot returns every client ordered by normalized name.
func (r *Registry) Snapshot() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := lo.Keys(r.byName)
	slices.Sort(keys)
	return lo.Map(keys, func(key string, _ int) Client {
		return r.byName[key].view()
	})
}

// Stats counts the current entries per state.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Stats
	for _, e := range r.byName {
		switch e.state() {
		case StateRegistered:
			s.Registered++
		case StateConnected:
			s.Connected++
		case StateGrace:
			s.Grace++
		}
	}
	return s
}

// Remove deletes the client holding credential. Removing an absent client is
// a no-op.
func (r *Registry) Remove(credential string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byCredential[credential]
	if !ok {
		return
	}
	r.deleteLocked(e)
	r.log.Info("Client removed", "name", e.name, "total", len(r.byName))
}

// deleteLocked drops e from both indexes, stopping its timer and closing its
// outbound.
func (r *Registry) deleteLocked(e *entry) {
	if e.eviction != nil {
		e.eviction.timer.Stop()
		e.eviction = nil
	}
	if e.outbound != nil {
		e.outbound.Close()
		e.outbound = nil
	}
	delete(r.byName, e.key)
	delete(r.byCredential, e.credential)
}

// Close stops every eviction timer and closes every attached outbound so that
// connection pumps wind down. Entries stay resolvable; no new timers start.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for _, e := range r.byName {
		if e.eviction != nil {
			e.eviction.timer.Stop()
			e.eviction = nil
		}
		if e.outbound != nil {
			e.outbound.Close()
			e.outbound = nil
		}
	}
	r.log.Info("Registry closed", "clients", len(r.byName))
}
