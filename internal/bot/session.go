package bot

import (
	"sync"
	"time"

	"reminder-bot/internal/service"
)

// dialogState tracks where a user is inside a multi-step conversation.
type dialogState int

const (
	stateNone dialogState = iota
	stateAddTitle
	stateAddCategory
	stateAddNewCategoryName
	stateAddStartDate
	stateAddDueTime
	stateAddRepeatType
	stateAddRepeatDays
	stateAddIntervalDays
	stateAddOffset
	stateEditChooseField
	stateEditValue
	stateEditNewCategoryName
	stateCatNewName
	stateCatRenameName
)

// session is the in-flight dialogue of one user: the partially collected
// task plus edit/rename targets. Lives only in memory; a restart drops it.
type session struct {
	state      dialogState
	draft      service.TaskInput
	days       []string // weekly picker accumulation
	taskID     uint     // edit target
	field      string   // edit target field
	categoryID uint     // rename target
	touchedAt  time.Time
}

func (s *session) toggleDay(code string) bool {
	for i, day := range s.days {
		if day == code {
			s.days = append(s.days[:i], s.days[i+1:]...)
			return false
		}
	}
	s.days = append(s.days, code)
	return true
}

// sessionStore keeps dialogue sessions keyed by Telegram user ID with a TTL:
// an abandoned dialogue expires instead of trapping the user's next message.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[int64]*session
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, sessions: make(map[int64]*session)}
}

func (s *sessionStore) get(userID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	if time.Since(sess.touchedAt) > s.ttl {
		delete(s.sessions, userID)
		return nil
	}
	sess.touchedAt = time.Now()
	return sess
}

func (s *sessionStore) put(userID int64, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.touchedAt = time.Now()
	s.sessions[userID] = sess
	s.sweepLocked()
}

func (s *sessionStore) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// sweepLocked drops expired sessions. The map is sized to one deployment's
// active users, so a full scan is fine.
func (s *sessionStore) sweepLocked() {
	for id, sess := range s.sessions {
		if time.Since(sess.touchedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
