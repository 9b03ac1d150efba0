// Package memory holds the conversation log and user preferences. The
// in-memory history is the source of truth for the live session; SQLite,
// when configured, is a write-behind mirror that seeds the next session.
package memory

import (
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

type Message struct {
	Timestamp time.Time      `json:"timestamp"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
}

// ContextMessage is the reduced projection handed back to the model:
// metadata and timestamps are dropped.
type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Stats struct {
	TotalMessages     int        `json:"total_messages"`
	UserMessages      int        `json:"user_messages"`
	AssistantMessages int        `json:"assistant_messages"`
	OldestMessage     *time.Time `json:"oldest_message"`
	NewestMessage     *time.Time `json:"newest_message"`
	PreferencesCount  int        `json:"preferences_count"`
}

type Options struct {
	MaxContextLength   int
	ContextWindowHours int
	// DBPath enables the durable mirror when non-empty.
	DBPath string
}

// Store is safe for concurrent use; the voice loop and the control socket
// both append turns.
type Store struct {
	maxContextLen int
	window        time.Duration

	mu      sync.Mutex
	history []Message
	prefs   map[string]any

	db *database
}

func NewStore(opts Options) (*Store, error) {
	if opts.MaxContextLength <= 0 {
		opts.MaxContextLength = 10
	}

	s := &Store{
		maxContextLen: opts.MaxContextLength,
		window:        time.Duration(opts.ContextWindowHours) * time.Hour,
		prefs:         make(map[string]any),
	}

	if opts.DBPath != "" {
		db, err := openDatabase(opts.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open memory db: %w", err)
		}
		s.db = db
		s.loadFromDatabase()
	}

	log.Info("Context store initialized", "persistent", s.db != nil)
	return s, nil
}

// loadFromDatabase is the only path by which history survives a restart:
// messages within the context window plus every preference.
func (s *Store) loadFromDatabase() {
	var cutoff time.Time
	if s.window > 0 {
		cutoff = time.Now().Add(-s.window)
	}

	msgs, err := s.db.messagesSince(cutoff)
	if err != nil {
		log.Error("Database load error", "err", err)
	} else {
		s.history = msgs
	}

	prefs, err := s.db.allPreferences()
	if err != nil {
		log.Error("Preference load error", "err", err)
	} else {
		s.prefs = prefs
	}

	log.Info("Loaded context from database", "messages", len(s.history), "preferences", len(s.prefs))
}

// AddMessage appends a turn, mirrors it to the database, then trims the
// in-memory window. Role is caller-supplied and not validated.
func (s *Store) AddMessage(role, content string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	msg := Message{
		Timestamp: time.Now(),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, msg)

	if s.db != nil {
		if err := s.db.insertMessage(msg); err != nil {
			log.Error("Database save error", "err", err)
		}
	}

	s.trim()

	log.Debug("Added message", "role", role, "content", truncate(content, 50))
}

// trim drops messages older than the window from memory only; the database
// log is append-only and never pruned here. Caller holds s.mu.
func (s *Store) trim() {
	if s.window <= 0 {
		return
	}

	cutoff := time.Now().Add(-s.window)
	kept := s.history[:0]
	for _, msg := range s.history {
		if msg.Timestamp.After(cutoff) {
			kept = append(kept, msg)
		}
	}
	s.history = kept
}

// RecentContext returns the last n messages as {role, content} pairs.
// n <= 0 uses the configured max context length.
func (s *Store) RecentContext(n int) []ContextMessage {
	if n <= 0 {
		n = s.maxContextLen
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.history) - n
	if start < 0 {
		start = 0
	}

	out := make([]ContextMessage, 0, len(s.history)-start)
	for _, msg := range s.history[start:] {
		out = append(out, ContextMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func (s *Store) FullHistory() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// SearchHistory matches content case-insensitively and returns up to the
// last limit matches in chronological order.
func (s *Store) SearchHistory(query string, limit int) []Message {
	if limit <= 0 {
		limit = 5
	}

	q := strings.ToLower(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []Message
	for _, msg := range s.history {
		if strings.Contains(strings.ToLower(msg.Content), q) {
			matches = append(matches, msg)
		}
	}

	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches
}

func (s *Store) SetPreference(key string, value any) {
	s.mu.Lock()
	s.prefs[key] = value
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.upsertPreference(key, value); err != nil {
			log.Error("Preference save error", "key", key, "err", err)
		}
	}

	log.Info("Set preference", "key", key)
}

func (s *Store) Preference(key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.prefs[key]; ok {
		return v
	}
	return def
}

func (s *Store) ClearContext() {
	log.Info("Clearing conversation context")
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Save is best-effort: every write already went through, so this only
// reports whether a mirror exists.
func (s *Store) Save() {
	if s.db != nil {
		log.Info("Context saved to database")
	} else {
		log.Info("No persistent storage configured")
	}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.close()
	}
	return nil
}

func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		TotalMessages:    len(s.history),
		PreferencesCount: len(s.prefs),
	}
	if len(s.history) == 0 {
		return st
	}

	for _, msg := range s.history {
		if msg.Role == "user" {
			st.UserMessages++
		}
	}
	// Anything that is not a user turn counts against the assistant.
	st.AssistantMessages = st.TotalMessages - st.UserMessages

	oldest := s.history[0].Timestamp
	newest := s.history[len(s.history)-1].Timestamp
	st.OldestMessage = &oldest
	st.NewestMessage = &newest

	return st
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
