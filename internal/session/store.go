package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/LilyAva000/office-work/internal/profile"
)

// Reserved durable-storage keys. Only the session store writes these.
const (
	KeyUserInfo   = "userInfo"
	KeyPersonID   = "personId"
	KeyIsLoggedIn = "isLoggedIn"
)

var (
	// ErrInvalidState is returned by Init when the identity fields are not
	// set together.
	ErrInvalidState = errors.New("invalid session state")

	// ErrUnknownKey is returned by Set/Get for a key outside the reserved set
	// (unless the store was built with WithLenientKeys).
	ErrUnknownKey = errors.New("unknown session key")
)

// Storage is the durable key-value boundary the store persists through.
// Implemented by storage.Store (SQLite) and by in-memory maps in tests.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Session is the authoritative identity + cached profile of the current user.
type Session struct {
	PersonID   string
	IsLoggedIn bool
	Profile    *profile.Document
}

// profileEnvelope is the wire form of the userInfo key: the document plus a
// wrapper recording when it was cached.
type profileEnvelope struct {
	UpdatedAt string           `json:"updated_at"`
	Info      profile.Document `json:"info"`
}

// Store holds the current session in memory, mirrors it to durable storage,
// and notifies subscribers after every successful mutation. Construct one per
// running client and pass it to consumers; there is no package-level instance.
type Store struct {
	storage Storage
	lenient bool
	now     func() time.Time

	mu         sync.Mutex
	personID   string
	isLoggedIn bool
	doc        *profile.Document

	nextToken int
	listeners map[int]func()
}

// Option configures a Store.
type Option func(*Store)

// WithLenientKeys makes Set tolerate unknown keys: it logs a warning and is
// a no-op instead of returning ErrUnknownKey.
func WithLenientKeys() Option {
	return func(s *Store) { s.lenient = true }
}

// New creates a session store over the given durable storage.
func New(st Storage, opts ...Option) *Store {
	s := &Store{
		storage:   st,
		now:       time.Now,
		listeners: make(map[int]func()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load rehydrates in-memory state from durable storage, then notifies
// subscribers. Missing keys leave the corresponding field at its empty
// default.
func (s *Store) Load() error {
	s.mu.Lock()

	if v, ok, err := s.storage.Get(KeyPersonID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("reading %s: %w", KeyPersonID, err)
	} else if ok {
		s.personID = v
	}

	if v, ok, err := s.storage.Get(KeyIsLoggedIn); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("reading %s: %w", KeyIsLoggedIn, err)
	} else if ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("malformed isLoggedIn token in storage, treating as logged out", "value", v)
			b = false
		}
		s.isLoggedIn = b
	}

	if v, ok, err := s.storage.Get(KeyUserInfo); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("reading %s: %w", KeyUserInfo, err)
	} else if ok {
		var env profileEnvelope
		if err := json.Unmarshal([]byte(v), &env); err != nil {
			slog.Warn("malformed userInfo in storage, ignoring", "error", err)
		} else {
			s.doc = &env.Info
		}
	}

	s.mu.Unlock()
	s.notify()
	return nil
}

// Init atomically establishes a logged-in session. PersonID and IsLoggedIn
// must be set together; the profile may arrive later via Set. Storage write
// failures propagate; keys already written before a failure remain written.
func (s *Store) Init(sess Session) error {
	if sess.PersonID == "" || !sess.IsLoggedIn {
		return fmt.Errorf("%w: personId and isLoggedIn must be set together", ErrInvalidState)
	}

	s.mu.Lock()
	if err := s.storage.Set(KeyPersonID, sess.PersonID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persisting %s: %w", KeyPersonID, err)
	}
	if err := s.storage.Set(KeyIsLoggedIn, strconv.FormatBool(sess.IsLoggedIn)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persisting %s: %w", KeyIsLoggedIn, err)
	}
	if sess.Profile != nil {
		if err := s.writeProfileLocked(*sess.Profile); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	s.personID = sess.PersonID
	s.isLoggedIn = sess.IsLoggedIn
	if sess.Profile != nil {
		doc := sess.Profile.Clone()
		s.doc = &doc
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Set updates one reserved key: "personId" takes a string, "isLoggedIn" a
// bool, "userInfo" a profile.Document. The durable write happens before
// listeners are notified, so a listener that re-reads storage sees the new
// value.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()

	switch key {
	case KeyPersonID:
		v, ok := value.(string)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%s: expected string, got %T", key, value)
		}
		if err := s.storage.Set(KeyPersonID, v); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("persisting %s: %w", key, err)
		}
		s.personID = v

	case KeyIsLoggedIn:
		v, ok := value.(bool)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%s: expected bool, got %T", key, value)
		}
		if err := s.storage.Set(KeyIsLoggedIn, strconv.FormatBool(v)); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("persisting %s: %w", key, err)
		}
		s.isLoggedIn = v

	case KeyUserInfo:
		var doc profile.Document
		switch v := value.(type) {
		case profile.Document:
			doc = v
		case *profile.Document:
			doc = *v
		default:
			s.mu.Unlock()
			return fmt.Errorf("%s: expected profile.Document, got %T", key, value)
		}
		if err := s.writeProfileLocked(doc); err != nil {
			s.mu.Unlock()
			return err
		}
		cp := doc.Clone()
		s.doc = &cp

	default:
		s.mu.Unlock()
		if s.lenient {
			slog.Warn("ignoring set on unknown session key", "key", key)
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	s.mu.Unlock()
	s.notify()
	return nil
}

// Get returns the current in-memory value of a reserved key: string for
// "personId", bool for "isLoggedIn", *profile.Document (a copy, nil when
// unset) for "userInfo".
func (s *Store) Get(key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case KeyPersonID:
		return s.personID, nil
	case KeyIsLoggedIn:
		return s.isLoggedIn, nil
	case KeyUserInfo:
		return s.profileCopyLocked(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

// Clear removes all reserved keys from storage and resets in-memory state to
// empty defaults. Idempotent.
func (s *Store) Clear() error {
	s.mu.Lock()
	for _, key := range []string{KeyUserInfo, KeyPersonID, KeyIsLoggedIn} {
		if err := s.storage.Delete(key); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	s.personID = ""
	s.isLoggedIn = false
	s.doc = nil
	s.mu.Unlock()

	s.notify()
	return nil
}

// Subscribe registers a callback invoked synchronously after every successful
// Init, Set, Clear, or Load. The returned function deregisters the listener
// and may be called more than once.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	token := s.nextToken
	s.nextToken++
	s.listeners[token] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, token)
		s.mu.Unlock()
	}
}

// PersonID returns the current person id ("" when logged out).
func (s *Store) PersonID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personID
}

// IsLoggedIn reports whether a login flow has completed.
func (s *Store) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoggedIn
}

// Profile returns a copy of the cached profile document, or nil when no
// profile has been fetched.
func (s *Store) Profile() *profile.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileCopyLocked()
}

func (s *Store) profileCopyLocked() *profile.Document {
	if s.doc == nil {
		return nil
	}
	cp := s.doc.Clone()
	return &cp
}

func (s *Store) writeProfileLocked(doc profile.Document) error {
	env := profileEnvelope{
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
		Info:      doc,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", KeyUserInfo, err)
	}
	if err := s.storage.Set(KeyUserInfo, string(data)); err != nil {
		return fmt.Errorf("persisting %s: %w", KeyUserInfo, err)
	}
	return nil
}

// notify runs all listeners outside the state lock so a listener may call
// back into the store.
func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
