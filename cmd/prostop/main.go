package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"prostop/internal/bootstrap"
	"prostop/internal/gateway/protocol"
	"prostop/internal/platform/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".prostop"
	}
	return filepath.Join(home, ".prostop")
}

func newRootCmd() *cobra.Command {
	var dataDir string
	var listenAddr string

	root := &cobra.Command{
		Use:           "prostop",
		Short:         "Site time tracking, daily limits, and a pomodoro timer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", defaultDataDir(), "data directory")
	root.PersistentFlags().StringVar(&listenAddr, "listen", "127.0.0.1:7430", "daemon listen address")

	root.AddCommand(newServeCmd(&dataDir, &listenAddr))
	root.AddCommand(newStatusCmd(&listenAddr))
	root.AddCommand(newStatsCmd(&dataDir))
	root.AddCommand(newSitesCmd(&dataDir))
	root.AddCommand(newLimitCmd(&dataDir))
	root.AddCommand(newSettingsCmd(&dataDir))
	root.AddCommand(newOverrideCmd(&listenAddr))
	root.AddCommand(newTimerCmd(&listenAddr))
	root.AddCommand(newResetTodayCmd(&dataDir))
	return root
}

func loadApp(dataDir, listenAddr string, logger *slog.Logger) (*bootstrap.App, error) {
	cfg, err := config.New(dataDir)
	if err != nil {
		return nil, err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	return bootstrap.New(cfg, logger)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newServeCmd(dataDir, listenAddr *string) *cobra.Command {
	var debug bool
	var notifyPlugin string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracking daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cfg, err := config.New(*dataDir)
			if err != nil {
				return err
			}
			cfg.ListenAddr = *listenAddr
			cfg.NotifyPluginPath = notifyPlugin

			app, err := bootstrap.New(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&notifyPlugin, "notify-plugin", "", "path to a notifier plugin binary")
	return cmd
}

// command sends one frame to the running daemon and optionally waits for a
// status or error reply.
func command(addr, msgType string, payload any, wantReply bool) (*protocol.Message, error) {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s: %w", addr, err)
	}
	defer conn.Close()

	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("send %s: %w", msgType, err)
	}
	if !wantReply {
		// Any command error comes back as an error frame; give it a moment.
		conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		if _, raw, err := conn.ReadMessage(); err == nil {
			var reply protocol.Message
			if json.Unmarshal(raw, &reply) == nil && reply.Type == protocol.TypeError {
				return nil, replyError(&reply)
			}
		}
		return nil, nil
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}
		var reply protocol.Message
		if err := json.Unmarshal(raw, &reply); err != nil {
			continue
		}
		switch reply.Type {
		case protocol.TypeError:
			return nil, replyError(&reply)
		case protocol.TypeStatus:
			return &reply, nil
		}
	}
}

func replyError(reply *protocol.Message) error {
	var p protocol.ErrorPayload
	_ = json.Unmarshal(reply.Payload, &p)
	return fmt.Errorf("daemon: %s (%s)", p.Message, p.Code)
}

func printStatus(cmd *cobra.Command, reply *protocol.Message) error {
	var pretty map[string]any
	if err := json.Unmarshal(reply.Payload, &pretty); err != nil {
		return err
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newStatusCmd(listenAddr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reply, err := command(*listenAddr, protocol.TypeStatusGet, nil, true)
			if err != nil {
				return err
			}
			return printStatus(cmd, reply)
		},
	}
}

func newStatsCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <domain>",
		Short: "Show usage statistics for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(*dataDir, "", quietLogger())
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Ledger.Stats(context.Background(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s\n", stats.Domain)
			_, _ = fmt.Fprintf(w, "  today:     %s\n", formatSeconds(stats.TodaySeconds))
			_, _ = fmt.Fprintf(w, "  this week: %s\n", formatSeconds(stats.WeekSeconds))
			_, _ = fmt.Fprintf(w, "  daily avg: %s\n", formatSeconds(stats.AverageDailySeconds))
			_, _ = fmt.Fprintf(w, "  lifetime:  %s\n", formatSeconds(stats.TotalSeconds))
			if stats.TimeLimitMinutes > 0 {
				_, _ = fmt.Fprintf(w, "  limit:     %dm/day\n", stats.TimeLimitMinutes)
			}
			return nil
		},
	}
}

func newSitesCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List tracked sites by today's usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir, "", quietLogger())
			if err != nil {
				return err
			}
			defer app.Close()

			sites, err := app.Ledger.Sites(context.Background())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, site := range sites {
				limit := ""
				if site.TimeLimitMinutes > 0 {
					limit = fmt.Sprintf(" (limit %dm)", site.TimeLimitMinutes)
				}
				_, _ = fmt.Fprintf(w, "%-40s today %-10s total %s%s\n",
					site.Domain, formatSeconds(site.TodaySeconds), formatSeconds(site.TotalSeconds), limit)
			}
			return nil
		},
	}
}

func newLimitCmd(dataDir *string) *cobra.Command {
	limit := &cobra.Command{Use: "limit", Short: "Manage daily time limits"}

	setCmd := &cobra.Command{
		Use:   "set <domain> <minutes>",
		Short: "Set a daily limit for a domain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[1])
			if err != nil || minutes <= 0 {
				return fmt.Errorf("minutes must be a positive integer")
			}
			app, err := loadApp(*dataDir, "", quietLogger())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Ledger.SetLimit(context.Background(), args[0], minutes); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "limit for %s set to %dm/day\n", args[0], minutes)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <domain>",
		Short: "Remove the daily limit for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(*dataDir, "", quietLogger())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Ledger.SetLimit(context.Background(), args[0], 0); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "limit for %s cleared\n", args[0])
			return nil
		},
	}

	limit.AddCommand(setCmd, clearCmd)
	return limit
}

func newSettingsCmd(dataDir *string) *cobra.Command {
	settings := &cobra.Command{Use: "settings", Short: "Manage timer and notification settings"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir, "", quietLogger())
			if err != nil {
				return err
			}
			defer app.Close()

			cfg, err := app.Settings.Load(context.Background())
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	var (
		focus, shortBreak, longBreak, interval             int
		autoBreaks, autoPomodoros, blocking, notifications bool
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only the flags given are changed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir, "", quietLogger())
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := context.Background()
			cfg, err := app.Settings.Load(ctx)
			if err != nil {
				return err
			}
			changed := false
			apply := func(name string, fn func()) {
				if cmd.Flags().Changed(name) {
					fn()
					changed = true
				}
			}
			apply("focus", func() { cfg.FocusMinutes = focus })
			apply("short-break", func() { cfg.ShortBreakMinutes = shortBreak })
			apply("long-break", func() { cfg.LongBreakMinutes = longBreak })
			apply("long-break-interval", func() { cfg.LongBreakInterval = interval })
			apply("auto-start-breaks", func() { cfg.AutoStartBreaks = autoBreaks })
			apply("auto-start-pomodoros", func() { cfg.AutoStartPomodoros = autoPomodoros })
			apply("blocking", func() { cfg.BlockingEnabled = blocking })
			apply("notifications", func() { cfg.NotificationsEnabled = notifications })
			if !changed {
				return fmt.Errorf("no settings given, see --help for the available flags")
			}

			if err := app.Settings.Save(ctx, cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "settings updated")
			return nil
		},
	}
	setCmd.Flags().IntVar(&focus, "focus", 0, "focus duration in minutes")
	setCmd.Flags().IntVar(&shortBreak, "short-break", 0, "short break duration in minutes")
	setCmd.Flags().IntVar(&longBreak, "long-break", 0, "long break duration in minutes")
	setCmd.Flags().IntVar(&interval, "long-break-interval", 0, "focus sessions per long break")
	setCmd.Flags().BoolVar(&autoBreaks, "auto-start-breaks", false, "start breaks automatically")
	setCmd.Flags().BoolVar(&autoPomodoros, "auto-start-pomodoros", false, "start the next focus automatically")
	setCmd.Flags().BoolVar(&blocking, "blocking", false, "enforce daily limits")
	setCmd.Flags().BoolVar(&notifications, "notifications", false, "deliver user-facing notifications")

	settings.AddCommand(showCmd, setCmd)
	return settings
}

func newOverrideCmd(listenAddr *string) *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "override <domain>",
		Short: "Let a blocked domain through for a while",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := command(*listenAddr, protocol.TypeOverrideRequest,
				protocol.OverrideRequestPayload{Domain: args[0], Minutes: minutes}, true)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "override granted for %s (%dm)\n", args[0], minutes)
			return printStatus(cmd, reply)
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 5, "how long the override lasts")
	return cmd
}

func newTimerCmd(listenAddr *string) *cobra.Command {
	timer := &cobra.Command{Use: "timer", Short: "Control the pomodoro timer"}

	startCmd := &cobra.Command{
		Use:   "start [focus|short_break|long_break]",
		Short: "Start a timer session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			timerType := ""
			if len(args) == 1 {
				timerType = args[0]
			}
			_, err := command(*listenAddr, protocol.TypeTimerStart, protocol.TimerStartPayload{Type: timerType}, false)
			return err
		},
	}

	simple := func(use, short, msgType string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(_ *cobra.Command, _ []string) error {
				_, err := command(*listenAddr, msgType, nil, false)
				return err
			},
		}
	}

	timer.AddCommand(
		startCmd,
		simple("pause", "Pause the running timer", protocol.TypeTimerPause),
		simple("resume", "Resume a paused timer", protocol.TypeTimerResume),
		simple("reset", "Stop and clear the timer", protocol.TypeTimerReset),
	)
	return timer
}

func newResetTodayCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-today",
		Short: "Zero today's usage for every domain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir, "", quietLogger())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Ledger.ResetToday(context.Background(), time.Now()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "today's usage reset")
			return nil
		},
	}
}

func formatSeconds(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
