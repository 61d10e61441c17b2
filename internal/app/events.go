package app

import "livepoll-service/internal/domain"

// Wire event names. Inbound event names live in the transport layer; these
// are the ones the services emit.
const (
	EventSessionCreated      = "session-created"
	EventModeratorReattached = "moderator-reattached"
	EventJoinedSession       = "joined-session"
	EventParticipantJoined   = "participant-joined"
	EventParticipantLeft     = "participant-left"
	EventParticipantRemoved  = "participant-removed"
	EventQuestionOpened      = "question-opened"
	EventAnswerTally         = "answer-tally"
	EventQuestionClosed      = "question-closed"
	EventModeratorOffline    = "moderator-offline"
	EventModeratorBack       = "moderator-back"
	EventRemovedNotice       = "removed-notice"
	EventChatMessage         = "chat-message"
	EventChatHistory         = "chat-history"
	EventSessionHistory      = "session-history"
)

// QuestionView is the client-facing shape of a question, used for the open
// broadcast and join snapshots.
type QuestionView struct {
	QuestionID       string          `json:"questionId"`
	Prompt           string          `json:"prompt"`
	Options          []domain.Option `json:"options"`
	TimeLimitSeconds int             `json:"timeLimitSeconds"`
}

// SessionAckPayload acknowledges a moderator attach or reattach.
type SessionAckPayload struct {
	SessionID string `json:"sessionId"`
}

// JoinedSessionPayload is the point-in-time snapshot sent to a joining
// participant. CurrentQuestion is nil when no question is open.
type JoinedSessionPayload struct {
	SessionID       string               `json:"sessionId"`
	Status          domain.SessionStatus `json:"status"`
	CurrentQuestion *QuestionView        `json:"currentQuestion"`
}

// PresencePayload announces a participant joining, leaving, or being
// removed. ConnID lets the moderator address the participant later (kick).
type PresencePayload struct {
	ConnID      string `json:"connId"`
	DisplayName string `json:"displayName"`
	ActiveCount int    `json:"activeCount"`
}

// AnswerTallyPayload is the moderator-only running progress of a question.
type AnswerTallyPayload struct {
	DisplayName   string `json:"displayName"`
	OptionID      int    `json:"optionId"`
	AnsweredCount int    `json:"answeredCount"`
	ActiveCount   int    `json:"activeCount"`
}

// QuestionClosedPayload carries the final results plus the question snapshot.
type QuestionClosedPayload struct {
	Results  domain.Results `json:"results"`
	Question QuestionView   `json:"question"`
}

// NoticePayload is a human-readable room or direct notice.
type NoticePayload struct {
	Message string `json:"message"`
}

func questionView(q *domain.Question) *QuestionView {
	if q == nil {
		return nil
	}
	return &QuestionView{
		QuestionID:       q.ID,
		Prompt:           q.Prompt,
		Options:          q.Options,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
}
