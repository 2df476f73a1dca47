package app

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-sync/internal/deck"
	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
	"trivia-sync/internal/timer"
	"trivia-sync/internal/tracker"
)

// BankRepository loads question content (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// PresenceStore records which displays acknowledged which snapshot version.
type PresenceStore interface {
	Touch(ctx context.Context, p domain.DisplayPresence) error
	List(ctx context.Context) ([]domain.DisplayPresence, error)
}

// Options tune a Controller. Zero values fall back to defaults.
type Options struct {
	Clock            clockwork.Clock
	Rand             *rand.Rand
	SenderID         string
	TickInterval     time.Duration // timer polling, default 300ms
	SnapshotInterval time.Duration // periodic snapshot, default 2s
	AdvanceDelay     time.Duration // answer stays visible this long after expiry, default 3s
	PickDebounce     time.Duration // default 300ms
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.SenderID == "" {
		o.SenderID = "control-" + uuid.NewString()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 300 * time.Millisecond
	}
	if o.SnapshotInterval <= 0 {
		o.SnapshotInterval = 2 * time.Second
	}
	if o.AdvanceDelay <= 0 {
		o.AdvanceDelay = 3 * time.Second
	}
	if o.PickDebounce <= 0 {
		o.PickDebounce = 300 * time.Millisecond
	}
	return o
}

type controlHandler func(ctx context.Context, msg protocol.Message)

// Controller owns the authoritative session: game status, buzzer arbitration, both timers
// and the question deck. Every mutation is published on the channel as a discrete event.
//
// All state sits behind one mutex. Timers and auto-advance are driven by Tick, so no
// goroutine other than the caller's ever touches the session.
type Controller struct {
	channel  protocol.Channel
	used     *tracker.Tracker
	presence PresenceStore
	clock    clockwork.Clock
	rnd      *rand.Rand
	opts     Options
	handlers map[protocol.MessageType]controlHandler

	mu         sync.Mutex
	version    uint64
	dirty      bool
	status     domain.GameStatus
	mode       domain.DisplayMode
	teams      []domain.Team
	categories []domain.Category
	questions  []domain.Question
	byID       map[string]int
	settings   domain.Settings

	currentID string
	activeID  string
	disabled  []string
	awarded   bool
	actions   map[string]struct{}

	deck      []string
	deckIndex int

	general   *timer.Countdown
	buzzer    *timer.Countdown
	advanceAt time.Time
	lastPick  map[string]time.Time
}

func NewController(channel protocol.Channel, used *tracker.Tracker, presence PresenceStore, opts Options) *Controller {
	opts = opts.withDefaults()
	c := &Controller{
		channel:   channel,
		used:      used,
		presence:  presence,
		clock:     opts.Clock,
		rnd:       opts.Rand,
		opts:      opts,
		status:    domain.StatusLobby,
		mode:      domain.DisplayWaiting,
		byID:      make(map[string]int),
		settings:  domain.DefaultSettings(),
		actions:   make(map[string]struct{}),
		deckIndex: -1,
		lastPick:  make(map[string]time.Time),
	}
	c.general = timer.NewCountdown(opts.Clock, c.onGeneralExpired)
	c.buzzer = timer.NewCountdown(opts.Clock, c.onBuzzerExpired)
	c.handlers = c.handlerTable()
	return c
}

// LoadData replaces teams, settings and question content and returns the session to the lobby.
func (c *Controller) LoadData(ctx context.Context, game domain.GameData, bank domain.QuestionBank) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teams = protocol.CloneTeams(game.Teams)
	c.settings = game.Settings
	c.categories = append([]domain.Category{}, bank.Categories...)
	c.questions = append([]domain.Question{}, bank.Questions...)
	c.byID = make(map[string]int, len(c.questions))
	for i, q := range c.questions {
		c.byID[q.ID] = i
	}
	c.resetSessionLocked()

	gameCopy := domain.GameData{Teams: protocol.CloneTeams(c.teams), Settings: c.settings}
	bankCopy := domain.QuestionBank{ID: bank.ID, Categories: c.categories, Questions: c.questions}
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeLoadData, Game: &gameCopy, Bank: &bankCopy})
	log.Info().Int("teams", len(c.teams)).Int("questions", len(c.questions)).Msg("game data loaded")
}

// StartGame builds a fresh deck and advances to its first question. It is a no-op without questions.
func (c *Controller) StartGame(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.questions) == 0 {
		log.Warn().Err(domain.ErrEmptyBank).Msg("start game ignored")
		return false
	}
	c.cancelAdvanceLocked()
	c.buildDeckLocked(ctx)
	c.status = domain.StatusQuestion
	c.mode = domain.DisplayQuestion
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeStartGame, Deck: c.deckCopy(), DeckIndex: intPtr(c.deckIndex)})
	c.nextQuestionLocked(ctx)
	return true
}

// SelectQuestion makes id the current question and resets the round around it.
func (c *Controller) SelectQuestion(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[id]; !ok {
		log.Warn().Err(domain.ErrQuestionNotFound).Str("question_id", id).Msg("select ignored")
		return false
	}
	if c.status == domain.StatusFinished {
		return false
	}
	c.selectLocked(ctx, id)
	return true
}

// ShowAnswer closes the current round and reveals the answer regardless of timers.
func (c *Controller) ShowAnswer(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentID == "" || c.status == domain.StatusFinished {
		return false
	}
	c.cancelAdvanceLocked()
	c.stopGeneralLocked(ctx)
	c.stopBuzzerLocked(ctx)
	c.status = domain.StatusReview
	c.mode = domain.DisplayAnswer
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeShowAnswer, QuestionID: c.currentID})
	c.used.Record(ctx, c.currentID)
	return true
}

// NextQuestion advances the deck cursor, finishing the session when the deck is exhausted.
func (c *Controller) NextQuestion(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == domain.StatusFinished || len(c.questions) == 0 {
		return false
	}
	c.nextQuestionLocked(ctx)
	return true
}

// TeamBuzzed gives teamID the floor if nobody holds it and the team may still answer.
func (c *Controller) TeamBuzzed(ctx context.Context, teamID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.StatusQuestion || c.activeID != "" || !c.eligibleLocked(teamID) {
		log.Debug().Str("team_id", teamID).Str("active_team", c.activeID).Msg("buzz ignored")
		return false
	}

	c.activeID = teamID
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeTeamBuzzed, TeamID: teamID})
	if remaining, ok := c.general.Pause(); ok {
		c.emitLocked(ctx, protocol.Message{Type: protocol.TypePauseTimer, TimeRemaining: remaining})
	}
	seconds := c.settings.BuzzerTimeLimit
	if q, ok := c.currentLocked(); ok && q.BuzzerTimeLimit > 0 {
		seconds = q.BuzzerTimeLimit
	}
	env := c.buzzer.Start(seconds)
	c.emitLocked(ctx, protocol.Message{
		Type:      protocol.TypeStartBuzzerTimer,
		TeamID:    teamID,
		TimeLimit: seconds,
		StartedAt: timer.ToMillis(env.StartedAt),
		Deadline:  timer.ToMillis(env.Deadline),
	})
	return true
}

// MarkCorrect awards points (or the question's value when nil) and closes the round.
// It applies at most once per question; actionID additionally absorbs redelivered commands.
func (c *Controller) MarkCorrect(ctx context.Context, teamID string, points *int, actionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seenActionLocked(actionID) || c.currentID == "" || c.awarded || c.status == domain.StatusFinished {
		log.Debug().Str("team_id", teamID).Str("action_id", actionID).Msg("mark correct ignored")
		return false
	}
	idx := c.teamIndexLocked(teamID)
	if idx < 0 {
		log.Warn().Err(domain.ErrTeamNotFound).Str("team_id", teamID).Msg("mark correct ignored")
		return false
	}

	pts := 0
	if points != nil {
		pts = *points
	} else if q, ok := c.currentLocked(); ok {
		pts = q.Points
	}
	if actionID == "" {
		actionID = uuid.NewString()
	}
	c.actions[actionID] = struct{}{}

	c.cancelAdvanceLocked()
	c.stopGeneralLocked(ctx)
	c.stopBuzzerLocked(ctx)
	c.teams[idx].Score += pts
	c.awarded = true
	c.activeID = ""
	c.status = domain.StatusReview
	c.mode = domain.DisplayAnswer
	c.emitLocked(ctx, protocol.Message{
		Type:       protocol.TypeMarkCorrect,
		TeamID:     teamID,
		Points:     &pts,
		ActionID:   actionID,
		QuestionID: c.currentID,
	})
	c.used.Record(ctx, c.currentID)
	return true
}

// MarkIncorrect excludes teamID from the current question and reopens the floor, or closes
// the round when no team is left to answer.
func (c *Controller) MarkIncorrect(ctx context.Context, teamID, actionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seenActionLocked(actionID) || c.status != domain.StatusQuestion || slices.Contains(c.disabled, teamID) {
		log.Debug().Str("team_id", teamID).Str("action_id", actionID).Msg("mark incorrect ignored")
		return false
	}
	if c.teamIndexLocked(teamID) < 0 {
		log.Warn().Err(domain.ErrTeamNotFound).Str("team_id", teamID).Msg("mark incorrect ignored")
		return false
	}
	if actionID != "" {
		c.actions[actionID] = struct{}{}
	}
	c.cancelAdvanceLocked()
	c.rejectLocked(ctx, teamID, actionID, false)
	return true
}

// DisableTeam excludes a team from the current question without adjudicating.
func (c *Controller) DisableTeam(ctx context.Context, teamID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.teamIndexLocked(teamID) < 0 || slices.Contains(c.disabled, teamID) {
		return false
	}
	c.disabled = append(c.disabled, teamID)
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeDisableTeamForQuestion, TeamID: teamID})
	return true
}

// EnableAllTeams clears the per-question exclusions.
func (c *Controller) EnableAllTeams(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disabled = nil
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeEnableAllTeamsForQuestion})
}

// ResetQuestionState clears the buzzer round and both timers, keeping the current question.
func (c *Controller) ResetQuestionState(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelAdvanceLocked()
	c.resetRoundLocked()
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeResetQuestionState})
}

// ResetGame returns to the lobby and zeroes every score.
func (c *Controller) ResetGame(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetSessionLocked()
	for i := range c.teams {
		c.teams[i].Score = 0
	}
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeResetGame})
}

// PauseTimer freezes the general timer.
func (c *Controller) PauseTimer(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining, ok := c.general.Pause()
	if !ok {
		return false
	}
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypePauseTimer, TimeRemaining: remaining})
	return true
}

// ResumeTimer restarts a paused general timer. It is refused while a team holds the floor.
func (c *Controller) ResumeTimer(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeID != "" {
		return false
	}
	return c.resumeGeneralLocked(ctx)
}

// StopTimer cancels the general timer without closing the round.
func (c *Controller) StopTimer(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopGeneralLocked(ctx)
}

// SetDisplayMode overrides what the audience screen renders.
func (c *Controller) SetDisplayMode(ctx context.Context, mode domain.DisplayMode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !mode.Valid() {
		return false
	}
	c.mode = mode
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeSetDisplayMode, Mode: mode})
	return true
}

// PickFromCategory inserts a question from categoryID right after the cursor and plays it.
// A repeat for the same category within the debounce window is dropped.
func (c *Controller) PickFromCategory(ctx context.Context, categoryID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if last, ok := c.lastPick[categoryID]; ok && now.Sub(last) < c.opts.PickDebounce {
		log.Debug().Str("category_id", categoryID).Msg("category pick debounced")
		return false
	}

	if c.status == domain.StatusFinished || len(c.questions) == 0 {
		return false
	}
	if len(c.deck) == 0 {
		c.buildDeckLocked(ctx)
	}
	pick, ok := c.pickCandidateLocked(ctx, categoryID)
	if !ok {
		log.Info().Str("category_id", categoryID).Msg("no question left in category")
		return false
	}

	c.lastPick[categoryID] = now

	displaced := c.currentID
	c.deck, c.deckIndex = deck.Place(c.deck, c.deckIndex, pick, c.settings.SampleSize)
	if displaced != "" && !slices.Contains(c.deck, displaced) {
		// shown but no longer in the deck, so finishing would not record it
		c.used.Record(ctx, displaced)
	}
	c.emitLocked(ctx, protocol.Message{
		Type:       protocol.TypePickFromCategory,
		CategoryID: categoryID,
		QuestionID: pick,
		Deck:       c.deckCopy(),
		DeckIndex:  intPtr(c.deckIndex),
	})
	c.selectLocked(ctx, pick)
	return true
}

// Snapshot returns a deep copy of the authoritative state.
func (c *Controller) Snapshot() protocol.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// BroadcastSnapshot publishes the full state at the current version.
func (c *Controller) BroadcastSnapshot(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcastSnapshotLocked(ctx)
}

// Displays lists the displays that recently acknowledged a snapshot.
func (c *Controller) Displays(ctx context.Context) ([]domain.DisplayPresence, error) {
	if c.presence == nil {
		return nil, nil
	}
	return c.presence.List(ctx)
}

// Tick recomputes both timers, fires expiries, runs a due auto-advance and flushes a
// snapshot when state changed since the last one.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remaining, changed := c.general.Tick(ctx); changed {
		c.emitLocked(ctx, protocol.Message{Type: protocol.TypeUpdateTimer, TimeRemaining: remaining})
	}
	if remaining, changed := c.buzzer.Tick(ctx); changed {
		c.emitLocked(ctx, protocol.Message{Type: protocol.TypeUpdateBuzzerTimer, TimeRemaining: remaining})
	}
	if !c.advanceAt.IsZero() && !c.clock.Now().Before(c.advanceAt) {
		c.advanceAt = time.Time{}
		log.Debug().Str("question_id", c.currentID).Msg("auto-advancing")
		c.nextQuestionLocked(ctx)
	}
	if c.dirty {
		c.broadcastSnapshotLocked(ctx)
	}
}

// Run drives the controller until ctx is done: incoming commands, timer ticks and the
// periodic snapshot.
func (c *Controller) Run(ctx context.Context) error {
	msgs, cancel, err := c.channel.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tick := c.clock.NewTicker(c.opts.TickInterval)
	defer tick.Stop()
	snapshots := c.clock.NewTicker(c.opts.SnapshotInterval)
	defer snapshots.Stop()

	c.BroadcastSnapshot(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return domain.ErrChannelClosed
			}
			c.HandleMessage(ctx, msg)
		case <-tick.Chan():
			c.Tick(ctx)
		case <-snapshots.Chan():
			c.BroadcastSnapshot(ctx)
		}
	}
}

// HandleMessage executes a message received from a display. Control's own events are ignored.
func (c *Controller) HandleMessage(ctx context.Context, msg protocol.Message) {
	if msg.Sender != domain.RoleDisplay {
		return
	}
	handler, ok := c.handlers[msg.Type]
	if !ok {
		log.Warn().Str("type", string(msg.Type)).Msg("no handler for message")
		return
	}
	handler(ctx, msg)
}
