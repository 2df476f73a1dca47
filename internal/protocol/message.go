// Package protocol defines the messages exchanged between the control process and displays.
//
// Every message is plain data. Channels serialize messages to JSON at the boundary, so a
// receiver never shares memory with the sender.
package protocol

import "trivia-sync/internal/domain"

// MessageType tags a Message.
type MessageType string

const (
	TypeLoadData           MessageType = "LOAD_DATA"
	TypeStartGame          MessageType = "START_GAME"
	TypeSelectQuestion     MessageType = "SELECT_QUESTION"
	TypeShowAnswer         MessageType = "SHOW_ANSWER"
	TypeNextQuestion       MessageType = "NEXT_QUESTION"
	TypeResetQuestionState MessageType = "RESET_QUESTION_STATE"
	TypeResetGame          MessageType = "RESET_GAME"

	TypeTeamBuzzed    MessageType = "TEAM_BUZZED"
	TypeMarkCorrect   MessageType = "MARK_CORRECT"
	TypeMarkIncorrect MessageType = "MARK_INCORRECT"

	TypeStartTimer  MessageType = "START_TIMER"
	TypeUpdateTimer MessageType = "UPDATE_TIMER"
	TypeTimeExpired MessageType = "TIME_EXPIRED"
	TypeStopTimer   MessageType = "STOP_TIMER"
	TypePauseTimer  MessageType = "PAUSE_TIMER"
	TypeResumeTimer MessageType = "RESUME_TIMER"

	TypeStartBuzzerTimer  MessageType = "START_BUZZER_TIMER"
	TypeUpdateBuzzerTimer MessageType = "UPDATE_BUZZER_TIMER"
	TypeBuzzerTimeExpired MessageType = "BUZZER_TIME_EXPIRED"
	TypeStopBuzzerTimer   MessageType = "STOP_BUZZER_TIMER"

	TypeDisableTeamForQuestion    MessageType = "DISABLE_TEAM_FOR_QUESTION"
	TypeEnableAllTeamsForQuestion MessageType = "ENABLE_ALL_TEAMS_FOR_QUESTION"
	TypeSetDisplayMode            MessageType = "SET_DISPLAY_MODE"
	TypePickFromCategory          MessageType = "PICK_FROM_CATEGORY"

	TypeHello         MessageType = "HELLO"
	TypeStateSnapshot MessageType = "STATE_SNAPSHOT"
	TypeAckSnapshot   MessageType = "ACK_SNAPSHOT"
)

var messageTypes = []MessageType{
	TypeLoadData,
	TypeStartGame,
	TypeSelectQuestion,
	TypeShowAnswer,
	TypeNextQuestion,
	TypeResetQuestionState,
	TypeResetGame,
	TypeTeamBuzzed,
	TypeMarkCorrect,
	TypeMarkIncorrect,
	TypeStartTimer,
	TypeUpdateTimer,
	TypeTimeExpired,
	TypeStopTimer,
	TypePauseTimer,
	TypeResumeTimer,
	TypeStartBuzzerTimer,
	TypeUpdateBuzzerTimer,
	TypeBuzzerTimeExpired,
	TypeStopBuzzerTimer,
	TypeDisableTeamForQuestion,
	TypeEnableAllTeamsForQuestion,
	TypeSetDisplayMode,
	TypePickFromCategory,
	TypeHello,
	TypeStateSnapshot,
	TypeAckSnapshot,
}

// MessageTypes lists the closed set of message types.
func MessageTypes() []MessageType {
	return append([]MessageType(nil), messageTypes...)
}

// Known reports whether t belongs to the vocabulary.
func (t MessageType) Known() bool {
	for _, known := range messageTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Message is the single wire shape. Fields not used by a type are left empty.
type Message struct {
	Type     MessageType `json:"type"`
	Sender   domain.Role `json:"sender"`
	SenderID string      `json:"senderId,omitempty"`
	Version  uint64      `json:"version,omitempty"`

	// ActionID makes non-idempotent commands (score changes) safe to deliver twice.
	ActionID   string `json:"actionId,omitempty"`
	TeamID     string `json:"teamId,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
	Points     *int   `json:"points,omitempty"`

	Deck      []string `json:"deck,omitempty"`
	DeckIndex *int     `json:"deckIndex,omitempty"`

	Mode domain.DisplayMode `json:"mode,omitempty"`

	TimeLimit     int   `json:"timeLimit,omitempty"`
	TimeRemaining int   `json:"timeRemaining,omitempty"`
	StartedAt     int64 `json:"startedAt,omitempty"` // epoch ms
	Deadline      int64 `json:"deadline,omitempty"`  // epoch ms

	Game     *domain.GameData     `json:"game,omitempty"`
	Bank     *domain.QuestionBank `json:"questions,omitempty"`
	Snapshot *Snapshot            `json:"payload,omitempty"`
}

// Missing returns the message types absent from a handler table. Both sides build their
// tables from maps keyed by MessageType; an empty result means the table is exhaustive.
func Missing[H any](table map[MessageType]H) []MessageType {
	var missing []MessageType
	for _, t := range messageTypes {
		if _, ok := table[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}
