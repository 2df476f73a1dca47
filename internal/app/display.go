package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
	"trivia-sync/internal/timer"
)

// DisplayOptions tune a Display. Zero values fall back to defaults.
type DisplayOptions struct {
	Clock         clockwork.Clock
	ID            string
	TickInterval  time.Duration // default 300ms
	HelloInterval time.Duration // default 1s
	// OnChange, when set, receives a copy of the mirror after every applied message.
	OnChange func(protocol.Snapshot)
}

func (o DisplayOptions) withDefaults() DisplayOptions {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.ID == "" {
		o.ID = "display-" + uuid.NewString()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 300 * time.Millisecond
	}
	if o.HelloInterval <= 0 {
		o.HelloInterval = time.Second
	}
	return o
}

type displayHandler func(s *protocol.Snapshot, msg protocol.Message)

// Display keeps a read-only mirror of the control session. The mirror only changes through
// incoming messages; local input is forwarded to control with Send.
type Display struct {
	channel  protocol.Channel
	clock    clockwork.Clock
	opts     DisplayOptions
	handlers map[protocol.MessageType]displayHandler

	mu      sync.Mutex
	state   protocol.Snapshot
	synced  bool
	actions map[string]struct{}
}

func NewDisplay(channel protocol.Channel, opts DisplayOptions) *Display {
	opts = opts.withDefaults()
	return &Display{
		channel:  channel,
		clock:    opts.Clock,
		opts:     opts,
		handlers: displayHandlers(),
		state: protocol.Snapshot{
			Status:      domain.StatusLobby,
			DisplayMode: domain.DisplayWaiting,
			Settings:    domain.DefaultSettings(),
			DeckIndex:   -1,
		},
		actions: make(map[string]struct{}),
	}
}

// ID returns the sender id this display stamps on its messages.
func (d *Display) ID() string {
	return d.opts.ID
}

// Synced reports whether a snapshot has been applied.
func (d *Display) Synced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.synced
}

// State returns a copy of the mirror with countdowns recomputed from their deadlines.
func (d *Display) State() protocol.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshLocked()
	return d.state.Clone()
}

// Apply reconciles one message into the mirror and reports whether it changed anything.
// Snapshots always win; other events at or below the mirrored version are duplicates.
func (d *Display) Apply(ctx context.Context, msg protocol.Message) bool {
	if msg.Sender != domain.RoleControl {
		return false
	}

	d.mu.Lock()
	if msg.Type == protocol.TypeStateSnapshot {
		if msg.Snapshot == nil {
			d.mu.Unlock()
			return false
		}
		d.state = msg.Snapshot.Clone()
		d.synced = true
		version := d.state.Version
		snap := d.changedLocked()
		d.mu.Unlock()

		d.send(ctx, protocol.Message{Type: protocol.TypeAckSnapshot, Version: version})
		d.notify(snap)
		return true
	}

	if msg.Version > 0 && msg.Version <= d.state.Version {
		d.mu.Unlock()
		log.Debug().Str("type", string(msg.Type)).Uint64("version", msg.Version).Msg("stale event dropped")
		return false
	}
	if msg.Type == protocol.TypeMarkCorrect && msg.ActionID != "" {
		if _, dup := d.actions[msg.ActionID]; dup {
			d.mu.Unlock()
			return false
		}
		d.actions[msg.ActionID] = struct{}{}
	}
	handler, ok := d.handlers[msg.Type]
	if !ok {
		d.mu.Unlock()
		log.Warn().Str("type", string(msg.Type)).Msg("no handler for message")
		return false
	}
	handler(&d.state, msg)
	if msg.Version > d.state.Version {
		d.state.Version = msg.Version
	}
	snap := d.changedLocked()
	d.mu.Unlock()

	d.notify(snap)
	return true
}

// Tick recomputes mirrored countdowns. The deadline is the source of truth, so a display
// that missed UPDATE_TIMER events still shows the right value.
func (d *Display) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshLocked()
}

// Hello asks control for a snapshot.
func (d *Display) Hello(ctx context.Context) {
	d.send(ctx, protocol.Message{Type: protocol.TypeHello})
}

// Send forwards a command to control. Score commands get an action id and the current
// question so a duplicate or late delivery cannot be applied twice.
func (d *Display) Send(ctx context.Context, msg protocol.Message) {
	if msg.Type == protocol.TypeMarkCorrect || msg.Type == protocol.TypeMarkIncorrect {
		if msg.ActionID == "" {
			msg.ActionID = uuid.NewString()
		}
		if msg.QuestionID == "" {
			d.mu.Lock()
			msg.QuestionID = d.state.CurrentQuestionID
			d.mu.Unlock()
		}
	}
	d.send(ctx, msg)
}

// Run attaches to the channel, says HELLO until the first snapshot arrives and keeps the
// mirror current until ctx is done.
func (d *Display) Run(ctx context.Context) error {
	msgs, cancel, err := d.channel.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tick := d.clock.NewTicker(d.opts.TickInterval)
	defer tick.Stop()
	hello := d.clock.NewTicker(d.opts.HelloInterval)
	defer hello.Stop()
	helloC := hello.Chan()

	d.Hello(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return domain.ErrChannelClosed
			}
			d.Apply(ctx, msg)
			if helloC != nil && d.Synced() {
				hello.Stop()
				helloC = nil
			}
		case <-tick.Chan():
			d.Tick()
		case <-helloC:
			d.Hello(ctx)
		}
	}
}

func (d *Display) send(ctx context.Context, msg protocol.Message) {
	msg.Sender = domain.RoleDisplay
	msg.SenderID = d.opts.ID
	if err := d.channel.Publish(ctx, msg); err != nil {
		log.Warn().Err(err).Str("type", string(msg.Type)).Msg("publish failed")
	}
}

func (d *Display) refreshLocked() {
	now := d.clock.Now()
	if d.state.IsTimerActive && d.state.GeneralTimer != nil {
		d.state.TimeRemaining = timer.RemainingMillis(d.state.GeneralTimer.Deadline, now)
	}
	if d.state.IsBuzzerTimerActive && d.state.BuzzerTimer != nil {
		d.state.BuzzerTimeRemaining = timer.RemainingMillis(d.state.BuzzerTimer.Deadline, now)
	}
}

func (d *Display) changedLocked() *protocol.Snapshot {
	if d.opts.OnChange == nil {
		return nil
	}
	d.refreshLocked()
	snap := d.state.Clone()
	return &snap
}

func (d *Display) notify(snap *protocol.Snapshot) {
	if snap != nil {
		d.opts.OnChange(*snap)
	}
}

// displayHandlers replays control's transitions on the mirror. Every handler is idempotent
// except MARK_CORRECT, which Apply deduplicates by action id.
func displayHandlers() map[protocol.MessageType]displayHandler {
	noop := func(*protocol.Snapshot, protocol.Message) {}
	return map[protocol.MessageType]displayHandler{
		protocol.TypeLoadData: func(s *protocol.Snapshot, msg protocol.Message) {
			if msg.Game != nil {
				s.Teams = protocol.CloneTeams(msg.Game.Teams)
				s.Settings = msg.Game.Settings
			}
			if msg.Bank != nil {
				s.Categories = append([]domain.Category{}, msg.Bank.Categories...)
				s.Questions = append([]domain.Question{}, msg.Bank.Questions...)
			}
			resetSession(s)
		},
		protocol.TypeStartGame: func(s *protocol.Snapshot, msg protocol.Message) {
			s.Status = domain.StatusQuestion
			s.DisplayMode = domain.DisplayQuestion
			applyDeck(s, msg)
		},
		protocol.TypeSelectQuestion: func(s *protocol.Snapshot, msg protocol.Message) {
			s.CurrentQuestionID = msg.QuestionID
			resetRound(s)
			s.Status = domain.StatusQuestion
			s.DisplayMode = domain.DisplayQuestion
			if msg.DeckIndex != nil {
				s.DeckIndex = *msg.DeckIndex
			}
		},
		protocol.TypeShowAnswer: func(s *protocol.Snapshot, _ protocol.Message) {
			s.Status = domain.StatusReview
			s.DisplayMode = domain.DisplayAnswer
			stopGeneral(s)
			stopBuzzer(s)
		},
		protocol.TypeNextQuestion: func(s *protocol.Snapshot, msg protocol.Message) {
			applyDeck(s, msg)
			if msg.QuestionID == "" {
				stopGeneral(s)
				stopBuzzer(s)
				s.ActiveTeamID = ""
				s.HasAnyTeamBuzzed = false
				s.Status = domain.StatusFinished
				s.DisplayMode = domain.DisplayScoreboard
			}
		},
		protocol.TypeResetQuestionState: func(s *protocol.Snapshot, _ protocol.Message) {
			resetRound(s)
		},
		protocol.TypeResetGame: func(s *protocol.Snapshot, _ protocol.Message) {
			resetSession(s)
			for i := range s.Teams {
				s.Teams[i].Score = 0
			}
		},

		protocol.TypeTeamBuzzed: func(s *protocol.Snapshot, msg protocol.Message) {
			if s.ActiveTeamID != "" || slices.Contains(s.DisabledTeamsForQuestion, msg.TeamID) {
				return
			}
			s.ActiveTeamID = msg.TeamID
			s.HasAnyTeamBuzzed = true
		},
		protocol.TypeMarkCorrect: func(s *protocol.Snapshot, msg protocol.Message) {
			if msg.Points != nil {
				for i := range s.Teams {
					if s.Teams[i].ID == msg.TeamID {
						s.Teams[i].Score += *msg.Points
					}
				}
			}
			stopGeneral(s)
			stopBuzzer(s)
			s.ActiveTeamID = ""
			s.HasAnyTeamBuzzed = false
			s.Status = domain.StatusReview
			s.DisplayMode = domain.DisplayAnswer
		},
		protocol.TypeMarkIncorrect: func(s *protocol.Snapshot, msg protocol.Message) {
			disable(s, msg.TeamID)
			if s.ActiveTeamID == msg.TeamID {
				s.ActiveTeamID = ""
				s.HasAnyTeamBuzzed = false
			}
		},

		protocol.TypeStartTimer:  startGeneral,
		protocol.TypeResumeTimer: startGeneral,
		protocol.TypeUpdateTimer: func(s *protocol.Snapshot, msg protocol.Message) {
			s.TimeRemaining = msg.TimeRemaining
		},
		protocol.TypeTimeExpired: func(s *protocol.Snapshot, _ protocol.Message) {
			stopGeneral(s)
			stopBuzzer(s)
			s.ActiveTeamID = ""
			s.HasAnyTeamBuzzed = false
			s.Status = domain.StatusReview
			s.DisplayMode = domain.DisplayAnswer
		},
		protocol.TypeStopTimer: func(s *protocol.Snapshot, _ protocol.Message) {
			stopGeneral(s)
		},
		protocol.TypePauseTimer: func(s *protocol.Snapshot, msg protocol.Message) {
			s.IsTimerActive = false
			s.GeneralTimer = nil
			s.TimeRemaining = msg.TimeRemaining
		},

		protocol.TypeStartBuzzerTimer: func(s *protocol.Snapshot, msg protocol.Message) {
			s.IsBuzzerTimerActive = true
			s.BuzzerTimer = &protocol.TimerEnvelope{StartedAt: msg.StartedAt, Deadline: msg.Deadline}
			s.BuzzerTimeRemaining = msg.TimeLimit
		},
		protocol.TypeUpdateBuzzerTimer: func(s *protocol.Snapshot, msg protocol.Message) {
			s.BuzzerTimeRemaining = msg.TimeRemaining
		},
		protocol.TypeBuzzerTimeExpired: func(s *protocol.Snapshot, _ protocol.Message) {
			stopBuzzer(s)
		},
		protocol.TypeStopBuzzerTimer: func(s *protocol.Snapshot, _ protocol.Message) {
			stopBuzzer(s)
		},

		protocol.TypeDisableTeamForQuestion: func(s *protocol.Snapshot, msg protocol.Message) {
			disable(s, msg.TeamID)
		},
		protocol.TypeEnableAllTeamsForQuestion: func(s *protocol.Snapshot, _ protocol.Message) {
			s.DisabledTeamsForQuestion = []string{}
		},
		protocol.TypeSetDisplayMode: func(s *protocol.Snapshot, msg protocol.Message) {
			if msg.Mode.Valid() {
				s.DisplayMode = msg.Mode
			}
		},
		protocol.TypePickFromCategory: applyDeck,

		protocol.TypeHello:         noop,
		protocol.TypeStateSnapshot: noop, // handled by Apply
		protocol.TypeAckSnapshot:   noop,
	}
}

func applyDeck(s *protocol.Snapshot, msg protocol.Message) {
	if msg.Deck != nil {
		s.Deck = append([]string{}, msg.Deck...)
	}
	if msg.DeckIndex != nil {
		s.DeckIndex = *msg.DeckIndex
	}
}

func startGeneral(s *protocol.Snapshot, msg protocol.Message) {
	s.IsTimerActive = true
	s.GeneralTimer = &protocol.TimerEnvelope{StartedAt: msg.StartedAt, Deadline: msg.Deadline}
	s.TimeRemaining = msg.TimeLimit
	if msg.TimeRemaining > 0 {
		s.TimeRemaining = msg.TimeRemaining
	}
}

func stopGeneral(s *protocol.Snapshot) {
	s.IsTimerActive = false
	s.GeneralTimer = nil
	s.TimeRemaining = 0
}

func stopBuzzer(s *protocol.Snapshot) {
	s.IsBuzzerTimerActive = false
	s.BuzzerTimer = nil
	s.BuzzerTimeRemaining = 0
}

func disable(s *protocol.Snapshot, teamID string) {
	if teamID != "" && !slices.Contains(s.DisabledTeamsForQuestion, teamID) {
		s.DisabledTeamsForQuestion = append(s.DisabledTeamsForQuestion, teamID)
	}
}

func resetRound(s *protocol.Snapshot) {
	stopGeneral(s)
	stopBuzzer(s)
	s.ActiveTeamID = ""
	s.HasAnyTeamBuzzed = false
	s.DisabledTeamsForQuestion = []string{}
}

func resetSession(s *protocol.Snapshot) {
	resetRound(s)
	s.Status = domain.StatusLobby
	s.DisplayMode = domain.DisplayWaiting
	s.CurrentQuestionID = ""
	s.Deck = []string{}
	s.DeckIndex = -1
}
