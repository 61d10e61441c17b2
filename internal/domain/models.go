package domain

import "time"

// Role distinguishes the two kinds of connected users.
type Role string

const (
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
)

// SessionStatus tracks the lifecycle of a session.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Moderator identifies the session owner by their last-known connection.
// The connection id changes on reconnect; the name survives.
type Moderator struct {
	ConnID string `json:"connId"`
	Name   string `json:"name"`
}

// Participant is a joined attendee. Participants are deactivated rather than
// removed so historical answers keep their attribution.
type Participant struct {
	ConnID   string    `json:"connId"`
	Name     string    `json:"name"`
	Active   bool      `json:"active"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Option is a possible answer for a question. IDs are numeric and unique
// within the question.
type Option struct {
	ID      int    `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// Answer records one participant's selection. The display name is captured at
// submission time so later changes don't rewrite history.
type Answer struct {
	ConnID      string    `json:"connId"`
	Name        string    `json:"name"`
	OptionID    int       `json:"optionId"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// OptionTally is the per-option slice of a question's results.
type OptionTally struct {
	Text    string `json:"text"`
	Count   int    `json:"count"`
	Correct bool   `json:"isCorrect"`
}

// Results is the aggregate computed when a question closes. It is derived
// once and never mutated afterwards.
type Results struct {
	TotalParticipants int                 `json:"totalParticipants"`
	Answered          int                 `json:"answered"`
	Options           map[int]OptionTally `json:"options"`
}

// Question is one round within a session. EndTime == nil means the question
// is still open; Results stays nil until the question closes.
type Question struct {
	ID               string     `json:"questionId"`
	Prompt           string     `json:"prompt"`
	Options          []Option   `json:"options"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	StartTime        time.Time  `json:"startTime"`
	EndTime          *time.Time `json:"endTime"`
	Answers          []Answer   `json:"answers"`
	Results          *Results   `json:"results"`
}

// Open reports whether the question has not been closed yet.
func (q *Question) Open() bool {
	return q.EndTime == nil
}

// HasAnswerFrom reports whether the connection already answered this question.
func (q *Question) HasAnswerFrom(connID string) bool {
	for _, a := range q.Answers {
		if a.ConnID == connID {
			return true
		}
	}
	return false
}

// Session is one moderated question/answer room. It is owned by the session
// store; services work on a copy and write it back whole.
type Session struct {
	ID                    string        `json:"sessionId"`
	Moderator             Moderator     `json:"moderator"`
	ModeratorDisconnected bool          `json:"moderatorDisconnected"`
	Participants          []Participant `json:"participants"`
	Questions             []Question    `json:"questions"`
	CurrentQuestionID     string        `json:"currentQuestionId"`
	Status                SessionStatus `json:"status"`
	CreatedAt             time.Time     `json:"createdAt"`
}

// CurrentQuestion returns the open question referenced by CurrentQuestionID,
// or nil when no question is open.
func (s *Session) CurrentQuestion() *Question {
	if s.CurrentQuestionID == "" {
		return nil
	}
	return s.QuestionByID(s.CurrentQuestionID)
}

// QuestionByID finds a question in the session, nil if absent.
func (s *Session) QuestionByID(questionID string) *Question {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return &s.Questions[i]
		}
	}
	return nil
}

// ParticipantByConn finds a participant by connection id, nil if absent.
func (s *Session) ParticipantByConn(connID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ConnID == connID {
			return &s.Participants[i]
		}
	}
	return nil
}

// ActiveParticipants counts participants that have not left or been removed.
func (s *Session) ActiveParticipants() int {
	n := 0
	for _, p := range s.Participants {
		if p.Active {
			n++
		}
	}
	return n
}

// HasActiveName reports whether an active participant already holds the name.
func (s *Session) HasActiveName(name string) bool {
	for _, p := range s.Participants {
		if p.Active && p.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores can hand out values without sharing
// slices with callers.
func (s Session) Clone() Session {
	out := s
	out.Participants = append([]Participant(nil), s.Participants...)
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		out.Questions[i] = q.clone()
	}
	return out
}

func (q Question) clone() Question {
	out := q
	out.Options = append([]Option(nil), q.Options...)
	out.Answers = append([]Answer(nil), q.Answers...)
	if q.EndTime != nil {
		end := *q.EndTime
		out.EndTime = &end
	}
	if q.Results != nil {
		res := *q.Results
		res.Options = make(map[int]OptionTally, len(q.Results.Options))
		for k, v := range q.Results.Options {
			res.Options[k] = v
		}
		out.Results = &res
	}
	return out
}

// ChatMessage is a session-scoped chat line. Chat has its own lifecycle and
// is never referenced by question state.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"timestamp"`
}

// HistoryOption annotates an option with its share of the submitted answers.
type HistoryOption struct {
	Text       string `json:"text"`
	Percentage int    `json:"percentage"`
	Correct    bool   `json:"isCorrect"`
}

// QuestionHistory is the read-only projection of one closed question.
type QuestionHistory struct {
	ID       string          `json:"id"`
	Prompt   string          `json:"question"`
	Options  []HistoryOption `json:"options"`
	AskedAt  time.Time       `json:"timestamp"`
	Answered int             `json:"answered"`
}
