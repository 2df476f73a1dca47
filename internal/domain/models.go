package domain

// GameStatus is the top-level phase of a session.
type GameStatus string

const (
	StatusLobby    GameStatus = "lobby"
	StatusQuestion GameStatus = "question"
	StatusReview   GameStatus = "review"
	StatusFinished GameStatus = "finished"
)

// DisplayMode is what the audience screen should render. Control sets it per transition,
// so it is not always derivable from GameStatus.
type DisplayMode string

const (
	DisplayWaiting    DisplayMode = "waiting"
	DisplayQuestion   DisplayMode = "question"
	DisplayAnswer     DisplayMode = "answer"
	DisplayScoreboard DisplayMode = "scoreboard"
	DisplayPaused     DisplayMode = "paused"
)

// Valid reports whether m is one of the known display modes.
func (m DisplayMode) Valid() bool {
	switch m {
	case DisplayWaiting, DisplayQuestion, DisplayAnswer, DisplayScoreboard, DisplayPaused:
		return true
	}
	return false
}

// Role identifies which side of the channel a process plays.
type Role string

const (
	RoleControl Role = "control"
	RoleDisplay Role = "display"
)

// Team is a competing team. Score only grows, except on a hard reset.
type Team struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Score   int    `json:"score" yaml:"score"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"` // nil means participating
	Color   string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Participating reports whether the team takes part in the session.
func (t Team) Participating() bool {
	return t.Enabled == nil || *t.Enabled
}

// Category groups questions for display.
type Category struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	Icon  string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Question is immutable once loaded.
type Question struct {
	ID              string `json:"id" yaml:"id"`
	CategoryID      string `json:"categoryId" yaml:"categoryId"`
	Text            string `json:"text" yaml:"text"`
	Answer          string `json:"answer" yaml:"answer"`
	Points          int    `json:"points" yaml:"points"`
	TimeLimit       int    `json:"timeLimit,omitempty" yaml:"timeLimit,omitempty"`             // seconds, 0 = use settings
	BuzzerTimeLimit int    `json:"buzzerTimeLimit,omitempty" yaml:"buzzerTimeLimit,omitempty"` // seconds, 0 = use settings
	Difficulty      string `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
}

// QuestionBank is the external question content consumed by a session.
type QuestionBank struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	Categories []Category `json:"categories" yaml:"categories"`
	Questions  []Question `json:"questions" yaml:"questions"`
}

// QuestionIDs returns the ids of all questions in bank order.
func (b QuestionBank) QuestionIDs() []string {
	ids := make([]string, 0, len(b.Questions))
	for _, q := range b.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// Settings are the recognized game options.
type Settings struct {
	DefaultTimeLimit int  `json:"defaultTimeLimit" yaml:"defaultTimeLimit"` // seconds, 0 disables the general timer
	BuzzerTimeLimit  int  `json:"buzzerTimeLimit" yaml:"buzzerTimeLimit"`   // seconds
	SampleSize       int  `json:"sampleSize" yaml:"sampleSize"`
	SampleRandomized bool `json:"sampleRandomized" yaml:"sampleRandomized"`
}

// DefaultSettings mirrors what a fresh control process starts with.
func DefaultSettings() Settings {
	return Settings{
		DefaultTimeLimit: 30,
		BuzzerTimeLimit:  10,
		SampleSize:       10,
		SampleRandomized: true,
	}
}

// GameData is the game configuration input: who plays and with which options.
type GameData struct {
	Teams    []Team   `json:"teams" yaml:"teams"`
	Settings Settings `json:"settings" yaml:"settings"`
}

// DisplayPresence is the last acknowledgment seen from a display instance.
type DisplayPresence struct {
	DisplayID string `json:"displayId"`
	Version   uint64 `json:"version"`
	AckedAt   int64  `json:"ackedAt"` // epoch ms
}
