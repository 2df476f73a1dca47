package app

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"trivia-sync/internal/deck"
	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
	"trivia-sync/internal/timer"
)

// Everything in this file expects c.mu to be held.

func (c *Controller) emitLocked(ctx context.Context, msg protocol.Message) {
	c.version++
	c.dirty = true
	msg.Version = c.version
	c.publishLocked(ctx, msg)
}

func (c *Controller) publishLocked(ctx context.Context, msg protocol.Message) {
	msg.Sender = domain.RoleControl
	msg.SenderID = c.opts.SenderID
	if err := c.channel.Publish(ctx, msg); err != nil {
		// the next snapshot repairs whatever the displays missed
		log.Warn().Err(err).Str("type", string(msg.Type)).Uint64("version", msg.Version).Msg("publish failed")
	}
}

func (c *Controller) broadcastSnapshotLocked(ctx context.Context) {
	snap := c.snapshotLocked()
	c.dirty = false
	c.publishLocked(ctx, protocol.Message{Type: protocol.TypeStateSnapshot, Version: c.version, Snapshot: &snap})
}

func (c *Controller) snapshotLocked() protocol.Snapshot {
	snap := protocol.Snapshot{
		Version:                  c.version,
		Status:                   c.status,
		Teams:                    protocol.CloneTeams(c.teams),
		Categories:               append([]domain.Category{}, c.categories...),
		Questions:                append([]domain.Question{}, c.questions...),
		CurrentQuestionID:        c.currentID,
		TimeRemaining:            c.general.Remaining(),
		IsTimerActive:            c.general.State() == timer.Running,
		ActiveTeamID:             c.activeID,
		HasAnyTeamBuzzed:         c.activeID != "",
		BuzzerTimeRemaining:      c.buzzer.Remaining(),
		IsBuzzerTimerActive:      c.buzzer.State() == timer.Running,
		DisabledTeamsForQuestion: append([]string{}, c.disabled...),
		Settings:                 c.settings,
		GeneralTimer:             envelope(c.general),
		BuzzerTimer:              envelope(c.buzzer),
		DisplayMode:              c.mode,
		Deck:                     c.deckCopy(),
		DeckIndex:                c.deckIndex,
	}
	return snap
}

func envelope(cd *timer.Countdown) *protocol.TimerEnvelope {
	env, ok := cd.Envelope()
	if !ok {
		return nil
	}
	return &protocol.TimerEnvelope{StartedAt: timer.ToMillis(env.StartedAt), Deadline: timer.ToMillis(env.Deadline)}
}

func (c *Controller) resetSessionLocked() {
	c.cancelAdvanceLocked()
	c.resetRoundLocked()
	c.status = domain.StatusLobby
	c.mode = domain.DisplayWaiting
	c.currentID = ""
	c.awarded = false
	c.actions = make(map[string]struct{})
	c.deck = nil
	c.deckIndex = -1
}

// resetRoundLocked silences both timers and reopens the floor to every team.
func (c *Controller) resetRoundLocked() {
	c.general.Stop()
	c.buzzer.Stop()
	c.activeID = ""
	c.disabled = nil
}

func (c *Controller) buildDeckLocked(ctx context.Context) {
	res := deck.Build(
		domain.QuestionBank{Questions: c.questions}.QuestionIDs(),
		c.used.Used(ctx),
		c.settings.SampleSize,
		c.settings.SampleRandomized,
		c.rnd,
	)
	if res.ResetUsed {
		log.Info().Msg("question pool exhausted, clearing used history")
		c.used.Reset(ctx)
	}
	c.deck = res.IDs
	c.deckIndex = -1
}

func (c *Controller) nextQuestionLocked(ctx context.Context) {
	c.cancelAdvanceLocked()
	if len(c.deck) == 0 {
		c.buildDeckLocked(ctx)
	}
	next := c.deckIndex + 1
	if next >= len(c.deck) {
		c.finalizeLocked(ctx)
		return
	}
	c.deckIndex = next
	c.emitLocked(ctx, protocol.Message{
		Type:       protocol.TypeNextQuestion,
		QuestionID: c.deck[next],
		Deck:       c.deckCopy(),
		DeckIndex:  intPtr(next),
	})
	c.selectLocked(ctx, c.deck[next])
}

func (c *Controller) finalizeLocked(ctx context.Context) {
	c.stopGeneralLocked(ctx)
	c.stopBuzzerLocked(ctx)
	c.activeID = ""
	c.status = domain.StatusFinished
	c.mode = domain.DisplayScoreboard
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeNextQuestion, Deck: c.deckCopy(), DeckIndex: intPtr(c.deckIndex)})
	c.used.Record(ctx, c.deck...)
	log.Info().Int("questions", len(c.deck)).Msg("game finished")
}

func (c *Controller) selectLocked(ctx context.Context, id string) {
	c.cancelAdvanceLocked()
	c.resetRoundLocked()
	c.currentID = id
	c.awarded = false
	c.status = domain.StatusQuestion
	c.mode = domain.DisplayQuestion
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeSelectQuestion, QuestionID: id, DeckIndex: intPtr(c.deckIndex)})

	limit := c.settings.DefaultTimeLimit
	if q, ok := c.currentLocked(); ok && q.TimeLimit > 0 {
		limit = q.TimeLimit
	}
	if limit > 0 {
		env := c.general.Start(limit)
		c.emitLocked(ctx, protocol.Message{
			Type:      protocol.TypeStartTimer,
			TimeLimit: limit,
			StartedAt: timer.ToMillis(env.StartedAt),
			Deadline:  timer.ToMillis(env.Deadline),
		})
	}
}

// rejectLocked disables teamID for the current question. When it held the floor (or nobody
// did) the floor reopens, or the round closes if no eligible team remains.
func (c *Controller) rejectLocked(ctx context.Context, teamID, actionID string, fromTimer bool) {
	if !slices.Contains(c.disabled, teamID) {
		c.disabled = append(c.disabled, teamID)
	}
	msg := protocol.Message{Type: protocol.TypeMarkIncorrect, TeamID: teamID, ActionID: actionID, QuestionID: c.currentID}
	if c.activeID != "" && c.activeID != teamID {
		c.emitLocked(ctx, msg)
		return
	}

	c.stopBuzzerLocked(ctx)
	c.activeID = ""
	c.emitLocked(ctx, msg)

	if !c.anyEligibleLocked() {
		c.general.Stop()
		c.emitLocked(ctx, protocol.Message{Type: protocol.TypeTimeExpired})
		c.closeRoundLocked(ctx, fromTimer)
		return
	}
	c.resumeGeneralLocked(ctx)
}

// closeRoundLocked moves to review and records the question. autoAdvance schedules the next
// question after the grace delay.
func (c *Controller) closeRoundLocked(ctx context.Context, autoAdvance bool) {
	c.buzzer.Stop()
	c.activeID = ""
	c.status = domain.StatusReview
	c.mode = domain.DisplayAnswer
	c.used.Record(ctx, c.currentID)
	if autoAdvance {
		c.advanceAt = c.clock.Now().Add(c.opts.AdvanceDelay)
	}
}

func (c *Controller) onGeneralExpired(ctx context.Context) {
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeTimeExpired})
	c.closeRoundLocked(ctx, true)
	log.Debug().Str("question_id", c.currentID).Msg("general timer expired")
}

func (c *Controller) onBuzzerExpired(ctx context.Context) {
	team := c.activeID
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeBuzzerTimeExpired, TeamID: team})
	if team == "" {
		return
	}
	log.Debug().Str("team_id", team).Msg("buzzer expired")
	c.rejectLocked(ctx, team, "", true)
}

func (c *Controller) stopGeneralLocked(ctx context.Context) bool {
	if !c.general.Stop() {
		return false
	}
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeStopTimer})
	return true
}

func (c *Controller) stopBuzzerLocked(ctx context.Context) bool {
	if !c.buzzer.Stop() {
		return false
	}
	c.emitLocked(ctx, protocol.Message{Type: protocol.TypeStopBuzzerTimer})
	return true
}

func (c *Controller) resumeGeneralLocked(ctx context.Context) bool {
	env, ok := c.general.Resume(ctx)
	if !ok {
		return false
	}
	c.emitLocked(ctx, protocol.Message{
		Type:          protocol.TypeResumeTimer,
		TimeRemaining: c.general.Remaining(),
		StartedAt:     timer.ToMillis(env.StartedAt),
		Deadline:      timer.ToMillis(env.Deadline),
	})
	return true
}

func (c *Controller) cancelAdvanceLocked() {
	c.advanceAt = time.Time{}
}

func (c *Controller) pickCandidateLocked(ctx context.Context, categoryID string) (string, bool) {
	used := make(map[string]struct{})
	for _, id := range c.used.Used(ctx) {
		used[id] = struct{}{}
	}
	played := c.deck[:max(0, min(c.deckIndex+1, len(c.deck)))]

	var fresh, fallback []string
	for _, q := range c.questions {
		if q.CategoryID != categoryID || q.ID == c.currentID {
			continue
		}
		fallback = append(fallback, q.ID)
		if _, ok := used[q.ID]; ok || slices.Contains(played, q.ID) {
			continue
		}
		fresh = append(fresh, q.ID)
	}
	candidates := fresh
	if len(candidates) == 0 {
		candidates = fallback
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[c.rnd.Intn(len(candidates))], true
}

func (c *Controller) eligibleLocked(teamID string) bool {
	idx := c.teamIndexLocked(teamID)
	return idx >= 0 && c.teams[idx].Participating() && !slices.Contains(c.disabled, teamID)
}

func (c *Controller) anyEligibleLocked() bool {
	for _, t := range c.teams {
		if t.Participating() && !slices.Contains(c.disabled, t.ID) {
			return true
		}
	}
	return false
}

func (c *Controller) teamIndexLocked(teamID string) int {
	return slices.IndexFunc(c.teams, func(t domain.Team) bool { return t.ID == teamID })
}

func (c *Controller) currentLocked() (domain.Question, bool) {
	idx, ok := c.byID[c.currentID]
	if !ok {
		return domain.Question{}, false
	}
	return c.questions[idx], true
}

func (c *Controller) seenActionLocked(actionID string) bool {
	if actionID == "" {
		return false
	}
	_, ok := c.actions[actionID]
	return ok
}

func (c *Controller) deckCopy() []string {
	return append([]string{}, c.deck...)
}

func intPtr(v int) *int {
	return &v
}
