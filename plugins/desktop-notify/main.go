// Reference notifier plugin: renders prostop alerts with notify-send when
// available, falling back to stderr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/hashicorp/go-plugin"

	notifyrpc "prostop/internal/modules/notify/adapter/out/rpc"
	notifydomain "prostop/internal/modules/notify/domain"
)

type desktopNotifier struct{}

func (desktopNotifier) GetMetadata(context.Context, *notifyrpc.Empty) (*notifyrpc.Metadata, error) {
	return &notifyrpc.Metadata{Name: "desktop-notify", Version: "0.1.0"}, nil
}

func (desktopNotifier) Notify(_ context.Context, in *notifyrpc.NotifyRequest) (*notifyrpc.NotifyResponse, error) {
	title, body := render(in.Event)
	if title == "" {
		return &notifyrpc.NotifyResponse{Delivered: false}, nil
	}
	if path, err := exec.LookPath("notify-send"); err == nil {
		if err := exec.Command(path, title, body).Run(); err == nil {
			return &notifyrpc.NotifyResponse{Delivered: true}, nil
		}
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, body)
	return &notifyrpc.NotifyResponse{Delivered: true}, nil
}

func render(event notifydomain.Event) (string, string) {
	switch event.Kind {
	case notifydomain.KindTimerStarted:
		return "Timer started", fmt.Sprintf("%s session is running", event.TimerType)
	case notifydomain.KindTimerCompleted:
		if event.AutoStarting {
			return "Timer completed", fmt.Sprintf("%s finished, starting %s", event.TimerType, event.NextTimerType)
		}
		return "Timer completed", fmt.Sprintf("%s finished, %s is up next", event.TimerType, event.NextTimerType)
	case notifydomain.KindBlocked:
		return "Site blocked", fmt.Sprintf("%s reached its %d minute daily limit", event.Domain, event.LimitMinutes)
	default:
		return "", ""
	}
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: notifyrpc.HandshakeConfig,
		Plugins:         notifyrpc.PluginMap(desktopNotifier{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
