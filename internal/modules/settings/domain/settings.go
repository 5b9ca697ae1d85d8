package domain

// Settings is the user-tunable blob shared by the pomodoro timer, the
// blocking evaluator, and notification delivery.
type Settings struct {
	FocusMinutes         int  `yaml:"focus_minutes"`
	ShortBreakMinutes    int  `yaml:"short_break_minutes"`
	LongBreakMinutes     int  `yaml:"long_break_minutes"`
	LongBreakInterval    int  `yaml:"long_break_interval"`
	AutoStartBreaks      bool `yaml:"auto_start_breaks"`
	AutoStartPomodoros   bool `yaml:"auto_start_pomodoros"`
	BlockingEnabled      bool `yaml:"blocking_enabled"`
	NotificationsEnabled bool `yaml:"notifications_enabled"`
}

func Default() Settings {
	return Settings{
		FocusMinutes:         25,
		ShortBreakMinutes:    5,
		LongBreakMinutes:     15,
		LongBreakInterval:    4,
		AutoStartBreaks:      false,
		AutoStartPomodoros:   false,
		BlockingEnabled:      true,
		NotificationsEnabled: true,
	}
}

func (s Settings) Validate() error {
	if s.FocusMinutes <= 0 || s.ShortBreakMinutes <= 0 || s.LongBreakMinutes <= 0 {
		return ErrInvalidDuration
	}
	if s.LongBreakInterval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}
