package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
)

// handlerTable maps every message type to what control does when a display sends it.
// Buzzers and host panels attached as displays are dispatchers only, so commands are run
// as if invoked locally. Types only control may emit are dropped.
func (c *Controller) handlerTable() map[protocol.MessageType]controlHandler {
	ignore := func(_ context.Context, msg protocol.Message) {
		log.Debug().Str("type", string(msg.Type)).Str("sender", msg.SenderID).Msg("control-only message from display ignored")
	}
	return map[protocol.MessageType]controlHandler{
		protocol.TypeLoadData:           ignore,
		protocol.TypeStartGame:          func(ctx context.Context, _ protocol.Message) { c.StartGame(ctx) },
		protocol.TypeSelectQuestion:     func(ctx context.Context, msg protocol.Message) { c.SelectQuestion(ctx, msg.QuestionID) },
		protocol.TypeShowAnswer:         func(ctx context.Context, _ protocol.Message) { c.ShowAnswer(ctx) },
		protocol.TypeNextQuestion:       func(ctx context.Context, _ protocol.Message) { c.NextQuestion(ctx) },
		protocol.TypeResetQuestionState: func(ctx context.Context, _ protocol.Message) { c.ResetQuestionState(ctx) },
		protocol.TypeResetGame:          func(ctx context.Context, _ protocol.Message) { c.ResetGame(ctx) },

		protocol.TypeTeamBuzzed:    func(ctx context.Context, msg protocol.Message) { c.TeamBuzzed(ctx, msg.TeamID) },
		protocol.TypeMarkCorrect:   c.handleMarkCorrect,
		protocol.TypeMarkIncorrect: c.handleMarkIncorrect,

		protocol.TypeStartTimer:  ignore,
		protocol.TypeUpdateTimer: ignore,
		protocol.TypeTimeExpired: ignore,
		protocol.TypeStopTimer:   func(ctx context.Context, _ protocol.Message) { c.StopTimer(ctx) },
		protocol.TypePauseTimer:  func(ctx context.Context, _ protocol.Message) { c.PauseTimer(ctx) },
		protocol.TypeResumeTimer: func(ctx context.Context, _ protocol.Message) { c.ResumeTimer(ctx) },

		protocol.TypeStartBuzzerTimer:  ignore,
		protocol.TypeUpdateBuzzerTimer: ignore,
		protocol.TypeBuzzerTimeExpired: ignore,
		protocol.TypeStopBuzzerTimer:   ignore,

		protocol.TypeDisableTeamForQuestion:    func(ctx context.Context, msg protocol.Message) { c.DisableTeam(ctx, msg.TeamID) },
		protocol.TypeEnableAllTeamsForQuestion: func(ctx context.Context, _ protocol.Message) { c.EnableAllTeams(ctx) },
		protocol.TypeSetDisplayMode:            func(ctx context.Context, msg protocol.Message) { c.SetDisplayMode(ctx, msg.Mode) },
		protocol.TypePickFromCategory:          func(ctx context.Context, msg protocol.Message) { c.PickFromCategory(ctx, msg.CategoryID) },

		protocol.TypeHello:         c.handleHello,
		protocol.TypeStateSnapshot: ignore,
		protocol.TypeAckSnapshot:   c.handleAck,
	}
}

// Adjudication commands naming another question are stale and dropped.
func (c *Controller) handleMarkCorrect(ctx context.Context, msg protocol.Message) {
	if c.staleCommand(msg) {
		return
	}
	c.MarkCorrect(ctx, msg.TeamID, msg.Points, msg.ActionID)
}

func (c *Controller) handleMarkIncorrect(ctx context.Context, msg protocol.Message) {
	if c.staleCommand(msg) {
		return
	}
	c.MarkIncorrect(ctx, msg.TeamID, msg.ActionID)
}

func (c *Controller) staleCommand(msg protocol.Message) bool {
	c.mu.Lock()
	current := c.currentID
	c.mu.Unlock()
	if msg.QuestionID != "" && msg.QuestionID != current {
		log.Debug().
			Str("type", string(msg.Type)).
			Str("question_id", msg.QuestionID).
			Str("current", current).
			Msg("command for another question dropped")
		return true
	}
	return false
}

func (c *Controller) handleHello(ctx context.Context, msg protocol.Message) {
	log.Debug().Str("sender", msg.SenderID).Msg("display hello")
	c.BroadcastSnapshot(ctx)
}

func (c *Controller) handleAck(ctx context.Context, msg protocol.Message) {
	if c.presence == nil || msg.SenderID == "" {
		return
	}
	err := c.presence.Touch(ctx, domain.DisplayPresence{
		DisplayID: msg.SenderID,
		Version:   msg.Version,
		AckedAt:   c.clock.Now().UnixMilli(),
	})
	if err != nil {
		log.Warn().Err(err).Str("sender", msg.SenderID).Msg("record display presence failed")
	}
}
