package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"livepoll-service/internal/domain"
)

// defaultTimeLimit applies when the moderator omits or zeroes the limit.
const defaultTimeLimit = 60

// SessionStore is the durable record of sessions. Implementations hand out
// value copies; writers hold the per-session lock for the whole
// load-mutate-save cycle.
type SessionStore interface {
	Find(ctx context.Context, sessionID string) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
}

// ChatStore persists the chat side-channel.
type ChatStore interface {
	Append(ctx context.Context, msg domain.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

// Archive keeps closed sessions beyond the primary store's lifetime so the
// history projection survives store eviction. Optional.
type Archive interface {
	Store(ctx context.Context, session domain.Session) error
	Load(ctx context.Context, sessionID string) (domain.Session, error)
}

// Broadcaster is the fan-out primitive: it can address a whole room or a
// single connection, and moves connections in and out of rooms.
type Broadcaster interface {
	JoinRoom(room, connID string)
	LeaveRoom(room, connID string)
	ToRoom(room, event string, payload any)
	ToConn(connID, event string, payload any)
}

// SessionService is the session state machine. It owns session and question
// lifecycle, answer admission, and result aggregation; it persists through
// the store and emits through the broadcaster, in that order.
type SessionService struct {
	store    SessionStore
	chat     ChatStore
	archive  Archive // nil disables archiving
	registry *Registry
	timers   *TimerManager
	fanout   Broadcaster
	locks    *sessionLocks
	now      func() time.Time
	newID    func() string
}

func NewSessionService(store SessionStore, chat ChatStore, archive Archive, registry *Registry, timers *TimerManager, fanout Broadcaster) *SessionService {
	return NewSessionServiceWithClock(store, chat, archive, registry, timers, fanout, time.Now)
}

// NewSessionServiceWithClock allows deterministic timestamps in tests.
func NewSessionServiceWithClock(store SessionStore, chat ChatStore, archive Archive, registry *Registry, timers *TimerManager, fanout Broadcaster, now func() time.Time) *SessionService {
	return &SessionService{
		store:    store,
		chat:     chat,
		archive:  archive,
		registry: registry,
		timers:   timers,
		fanout:   fanout,
		locks:    newSessionLocks(),
		now:      now,
		newID:    uuid.NewString,
	}
}

// Registry exposes the connection registry for collaborators that resolve
// sender identity (chat relay, history authorization).
func (s *SessionService) Registry() *Registry {
	return s.registry
}

// CreateOrAttachModerator creates the session if it does not exist, or
// rebinds its moderator to the new connection on reconnect.
func (s *SessionService) CreateOrAttachModerator(ctx context.Context, sessionID, moderatorName, connID string) error {
	lock := s.locks.acquire(sessionID)
	defer lock.Unlock()

	wasDisconnected := false
	sess, err := s.store.Find(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		sess = domain.Session{
			ID:        sessionID,
			Moderator: domain.Moderator{ConnID: connID, Name: moderatorName},
			Status:    domain.StatusWaiting,
			CreatedAt: s.now(),
		}
	case err != nil:
		return err
	default:
		wasDisconnected = sess.ModeratorDisconnected
		sess.Moderator = domain.Moderator{ConnID: connID, Name: moderatorName}
		sess.ModeratorDisconnected = false
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}

	s.registry.Put(connID, RegistryEntry{Role: domain.RoleModerator, SessionID: sessionID, Name: moderatorName})
	s.fanout.JoinRoom(sessionID, connID)
	s.fanout.ToConn(connID, EventSessionCreated, SessionAckPayload{SessionID: sessionID})
	if wasDisconnected {
		s.fanout.ToRoom(sessionID, EventModeratorBack, NoticePayload{Message: "Moderator reconnected"})
	}
	s.replayChat(ctx, sessionID, connID)
	return nil
}

// ReattachModerator rebinds the stored moderator identity to a fresh
// connection, keeping the previous display name.
func (s *SessionService) ReattachModerator(ctx context.Context, sessionID, connID string) error {
	lock := s.locks.acquire(sessionID)
	defer lock.Unlock()

	sess, err := s.store.Find(ctx, sessionID)
	if err != nil {
		return err
	}
	name := sess.Moderator.Name
	if name == "" {
		name = "Moderator"
	}
	sess.Moderator = domain.Moderator{ConnID: connID, Name: name}
	sess.ModeratorDisconnected = false
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}

	s.registry.Put(connID, RegistryEntry{Role: domain.RoleModerator, SessionID: sessionID, Name: name})
	s.fanout.JoinRoom(sessionID, connID)
	s.fanout.ToRoom(sessionID, EventModeratorBack, NoticePayload{Message: "Moderator reconnected"})
	s.fanout.ToConn(connID, EventModeratorReattached, SessionAckPayload{SessionID: sessionID})
	s.replayChat(ctx, sessionID, connID)
	return nil
}

// JoinAsParticipant adds a named participant to the session and sends the
// joining connection a snapshot of the open question and chat history.
func (s *SessionService) JoinAsParticipant(ctx context.Context, sessionID, connID, displayName string) error {
	lock := s.locks.acquire(sessionID)
	defer lock.Unlock()

	sess, err := s.store.Find(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.HasActiveName(displayName) {
		return domain.ErrNameTaken
	}

	sess.Participants = append(sess.Participants, domain.Participant{
		ConnID:   connID,
		Name:     displayName,
		Active:   true,
		JoinedAt: s.now(),
	})
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}

	s.registry.Put(connID, RegistryEntry{Role: domain.RoleParticipant, SessionID: sessionID, Name: displayName})
	s.fanout.JoinRoom(sessionID, connID)
	s.fanout.ToRoom(sessionID, EventParticipantJoined, PresencePayload{
		ConnID:      connID,
		DisplayName: displayName,
		ActiveCount: sess.ActiveParticipants(),
	})
	s.fanout.ToConn(connID, EventJoinedSession, JoinedSessionPayload{
		SessionID:       sessionID,
		Status:          sess.Status,
		CurrentQuestion: questionView(sess.CurrentQuestion()),
	})
	s.replayChat(ctx, sessionID, connID)
	return nil
}

// OpenQuestion starts a new round. Only the registered moderator may open;
// anyone else gets ErrUnauthorized, which the transport drops silently.
// A second open while one is running is refused with ErrQuestionOpen.
func (s *SessionService) OpenQuestion(ctx context.Context, connID, prompt string, options []domain.Option, timeLimitSeconds int) error {
	entry, ok := s.registry.Get(connID)
	if !ok || entry.Role != domain.RoleModerator {
		return domain.ErrUnauthorized
	}

	lock := s.locks.acquire(entry.SessionID)
	defer lock.Unlock()

	sess, err := s.store.Find(ctx, entry.SessionID)
	if err != nil {
		return err
	}
	if q := sess.CurrentQuestion(); q != nil && q.Open() {
		return domain.ErrQuestionOpen
	}
	if timeLimitSeconds <= 0 {
		timeLimitSeconds = defaultTimeLimit
	}

	question := domain.Question{
		ID:               s.newID(),
		Prompt:           prompt,
		Options:          options,
		TimeLimitSeconds: timeLimitSeconds,
		StartTime:        s.now(),
	}
	sess.Questions = append(sess.Questions, question)
	sess.CurrentQuestionID = question.ID
	sess.Status = domain.StatusActive
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}

	s.fanout.ToRoom(entry.SessionID, EventQuestionOpened, *questionView(&question))

	sessionID, questionID := entry.SessionID, question.ID
	s.timers.Schedule(questionID, time.Duration(timeLimitSeconds)*time.Second, func() {
		if err := s.CloseQuestion(context.Background(), sessionID, questionID); err != nil {
			log.Printf("deadline close of question %s failed: %v", questionID, err)
		}
	})
	return nil
}

// SubmitAnswer records at most one answer per connection for the open
// question. The duplicate check and the early-close trigger run under the
// session lock so racing submissions cannot both pass.
func (s *SessionService) SubmitAnswer(ctx context.Context, connID string, optionID int) error {
	entry, ok := s.registry.Get(connID)
	if !ok || entry.Role != domain.RoleParticipant {
		return domain.ErrUnauthorized
	}

	lock := s.locks.acquire(entry.SessionID)
	defer lock.Unlock()

	sess, err := s.store.Find(ctx, entry.SessionID)
	if err != nil {
		return err
	}
	question := sess.CurrentQuestion()
	if question == nil || !question.Open() {
		return domain.ErrNoOpenQuestion
	}
	if question.HasAnswerFrom(connID) {
		return domain.ErrDuplicateAnswer
	}

	question.Answers = append(question.Answers, domain.Answer{
		ConnID:      connID,
		Name:        entry.Name,
		OptionID:    optionID,
		SubmittedAt: s.now(),
	})
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}

	answered := len(question.Answers)
	active := sess.ActiveParticipants()
	if sess.Moderator.ConnID != "" {
		s.fanout.ToConn(sess.Moderator.ConnID, EventAnswerTally, AnswerTallyPayload{
			DisplayName:   entry.Name,
			OptionID:      optionID,
			AnsweredCount: answered,
			ActiveCount:   active,
		})
	}

	if answered >= active && active > 0 {
		if err := s.closeLocked(ctx, &sess, question.ID); err != nil && !errors.Is(err, domain.ErrQuestionClosed) {
			return err
		}
	}
	return nil
}

// CloseQuestion ends a round. It is invoked by the deadline timer and by the
// early-close path; whichever runs first wins and the loser is a no-op.
func (s *SessionService) CloseQuestion(ctx context.Context, sessionID, questionID string) error {
	lock := s.locks.acquire(sessionID)
	defer lock.Unlock()

	sess, err := s.store.Find(ctx, sessionID)
	if err != nil {
		return err
	}
	err = s.closeLocked(ctx, &sess, questionID)
	if errors.Is(err, domain.ErrQuestionClosed) {
		return nil
	}
	return err
}

// closeLocked performs the close under an already-held session lock: stamp
// the end time, compute results, persist, then broadcast.
func (s *SessionService) closeLocked(ctx context.Context, sess *domain.Session, questionID string) error {
	question := sess.QuestionByID(questionID)
	if question == nil {
		return domain.ErrQuestionNotFound
	}
	if !question.Open() {
		return domain.ErrQuestionClosed
	}

	s.timers.Cancel(questionID)

	end := s.now()
	question.EndTime = &end
	question.Results = computeResults(sess, question)
	sess.Status = domain.StatusCompleted
	if sess.CurrentQuestionID == questionID {
		sess.CurrentQuestionID = ""
	}
	if err := s.store.Save(ctx, *sess); err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.Store(ctx, *sess); err != nil {
			log.Printf("archive of session %s failed: %v", sess.ID, err)
		}
	}

	s.fanout.ToRoom(sess.ID, EventQuestionClosed, QuestionClosedPayload{
		Results:  *question.Results,
		Question: *questionView(question),
	})
	return nil
}

// RemoveParticipant deactivates a participant on the moderator's request and
// detaches their connection from the room.
func (s *SessionService) RemoveParticipant(ctx context.Context, connID, targetConnID string) error {
	entry, ok := s.registry.Get(connID)
	if !ok || entry.Role != domain.RoleModerator {
		return domain.ErrUnauthorized
	}

	lock := s.locks.acquire(entry.SessionID)
	defer lock.Unlock()

	sess, err := s.store.Find(ctx, entry.SessionID)
	if err != nil {
		return err
	}
	target := sess.ParticipantByConn(targetConnID)
	if target == nil || !target.Active {
		return domain.ErrParticipantNotFound
	}
	target.Active = false
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}

	s.fanout.LeaveRoom(entry.SessionID, targetConnID)
	s.fanout.ToConn(targetConnID, EventRemovedNotice, NoticePayload{Message: "You have been removed from the session by the moderator"})
	s.fanout.ToRoom(entry.SessionID, EventParticipantRemoved, PresencePayload{
		ConnID:      targetConnID,
		DisplayName: target.Name,
		ActiveCount: sess.ActiveParticipants(),
	})
	return nil
}

// HandleDisconnect reconciles a dropped connection. Moderator drops keep the
// session live so participants can continue; participant drops are final.
func (s *SessionService) HandleDisconnect(ctx context.Context, connID string) {
	entry, ok := s.registry.Get(connID)
	s.registry.Remove(connID)
	if !ok {
		return
	}

	lock := s.locks.acquire(entry.SessionID)
	defer lock.Unlock()

	sess, err := s.store.Find(ctx, entry.SessionID)
	if err != nil {
		log.Printf("disconnect of %s: load session %s: %v", connID, entry.SessionID, err)
		return
	}

	switch entry.Role {
	case domain.RoleModerator:
		// A stale socket from before a reconnect must not mark the
		// current moderator offline.
		if sess.Moderator.ConnID != connID {
			return
		}
		sess.ModeratorDisconnected = true
		if err := s.store.Save(ctx, sess); err != nil {
			log.Printf("disconnect of moderator %s: save: %v", connID, err)
			return
		}
		s.fanout.ToRoom(entry.SessionID, EventModeratorOffline, NoticePayload{Message: "Moderator disconnected"})
	case domain.RoleParticipant:
		participant := sess.ParticipantByConn(connID)
		if participant == nil || !participant.Active {
			return
		}
		participant.Active = false
		if err := s.store.Save(ctx, sess); err != nil {
			log.Printf("disconnect of participant %s: save: %v", connID, err)
			return
		}
		s.fanout.LeaveRoom(entry.SessionID, connID)
		s.fanout.ToRoom(entry.SessionID, EventParticipantLeft, PresencePayload{
			ConnID:      connID,
			DisplayName: participant.Name,
			ActiveCount: sess.ActiveParticipants(),
		})
	}
}

func (s *SessionService) replayChat(ctx context.Context, sessionID, connID string) {
	msgs, err := s.chat.History(ctx, sessionID)
	if err != nil {
		log.Printf("chat history for session %s: %v", sessionID, err)
		return
	}
	s.fanout.ToConn(connID, EventChatHistory, msgs)
}

// computeResults aggregates the final tally from the current participant and
// answer snapshot. Total counts everyone ever present, active or not.
func computeResults(sess *domain.Session, question *domain.Question) *domain.Results {
	results := &domain.Results{
		TotalParticipants: len(sess.Participants),
		Answered:          len(question.Answers),
		Options:           make(map[int]domain.OptionTally, len(question.Options)),
	}
	for _, opt := range question.Options {
		results.Options[opt.ID] = domain.OptionTally{Text: opt.Text, Correct: opt.Correct}
	}
	for _, answer := range question.Answers {
		tally, ok := results.Options[answer.OptionID]
		if !ok {
			continue
		}
		tally.Count++
		results.Options[answer.OptionID] = tally
	}
	return results
}
