package out

import (
	"context"
	"log/slog"

	"prostop/internal/modules/notify/domain"
	notifyout "prostop/internal/modules/notify/port/out"
)

type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) notifyout.Sink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Name() string { return "log" }

func (s *SlogSink) Deliver(_ context.Context, event domain.Event) error {
	switch event.Kind {
	case domain.KindStateChanged:
		s.logger.Info("activity state changed", "from", event.OldState, "to", event.NewState)
	case domain.KindTimerStarted:
		s.logger.Info("timer started", "type", event.TimerType)
	case domain.KindTimerCompleted:
		s.logger.Info("timer completed", "type", event.TimerType, "next", event.NextTimerType, "autoStarting", event.AutoStarting)
	case domain.KindBlocked:
		s.logger.Info("domain blocked", "domain", event.Domain, "todaySeconds", event.TodaySeconds, "limitMinutes", event.LimitMinutes)
	}
	return nil
}
