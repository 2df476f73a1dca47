package protocol

import "trivia-sync/internal/domain"

// TimerEnvelope carries the absolute times of a running timer in epoch milliseconds.
type TimerEnvelope struct {
	StartedAt int64 `json:"startedAt"`
	Deadline  int64 `json:"deadline"`
}

// Snapshot is a complete copy of session state. Displays replace their mirror with it wholesale.
type Snapshot struct {
	Version uint64            `json:"version"`
	Status  domain.GameStatus `json:"status"`

	Teams      []domain.Team     `json:"teams"`
	Categories []domain.Category `json:"categories"`
	Questions  []domain.Question `json:"questions"`

	CurrentQuestionID string `json:"currentQuestionId,omitempty"`

	TimeRemaining int  `json:"timeRemaining"`
	IsTimerActive bool `json:"isTimerActive"`

	ActiveTeamID        string `json:"activeTeamId,omitempty"`
	HasAnyTeamBuzzed    bool   `json:"hasAnyTeamBuzzed"`
	BuzzerTimeRemaining int    `json:"buzzerTimeRemaining"`
	IsBuzzerTimerActive bool   `json:"isBuzzerTimerActive"`

	DisabledTeamsForQuestion []string `json:"disabledTeamsForQuestion"`

	Settings domain.Settings `json:"settings"`

	GeneralTimer *TimerEnvelope `json:"generalTimer"`
	BuzzerTimer  *TimerEnvelope `json:"buzzerTimer"`

	DisplayMode domain.DisplayMode `json:"displayMode"`

	Deck      []string `json:"deck"`
	DeckIndex int      `json:"deckIndex"`
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Teams = CloneTeams(s.Teams)
	out.Categories = append([]domain.Category{}, s.Categories...)
	out.Questions = append([]domain.Question{}, s.Questions...)
	out.DisabledTeamsForQuestion = append([]string{}, s.DisabledTeamsForQuestion...)
	out.Deck = append([]string{}, s.Deck...)
	if s.GeneralTimer != nil {
		env := *s.GeneralTimer
		out.GeneralTimer = &env
	}
	if s.BuzzerTimer != nil {
		env := *s.BuzzerTimer
		out.BuzzerTimer = &env
	}
	return out
}

// CloneTeams deep-copies teams, including the participation pointer.
func CloneTeams(teams []domain.Team) []domain.Team {
	out := make([]domain.Team, len(teams))
	for i, t := range teams {
		out[i] = t
		if t.Enabled != nil {
			enabled := *t.Enabled
			out[i].Enabled = &enabled
		}
	}
	return out
}
