package out

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	notifyrpc "prostop/internal/modules/notify/adapter/out/rpc"
	"prostop/internal/modules/notify/domain"
	notifyout "prostop/internal/modules/notify/port/out"
)

const (
	pluginStartTimeout = 3 * time.Second
	pluginCallTimeout  = 5 * time.Second
)

// PluginSink hands alert events to an out-of-process notifier binary hosted
// over go-plugin. Each delivery runs a short-lived plugin process; the sink
// is only registered for user-facing alerts, so the spawn cost is bounded by
// how often timers complete and tabs get blocked.
type PluginSink struct {
	binary string
}

func NewPluginSink(binary string) notifyout.Sink {
	return &PluginSink{binary: binary}
}

func (s *PluginSink) Name() string { return "plugin:" + s.binary }

func (s *PluginSink) Deliver(ctx context.Context, event domain.Event) error {
	client, closeFn, err := s.connect()
	if err != nil {
		return err
	}
	defer closeFn()

	callCtx, cancel := context.WithTimeout(ctx, pluginCallTimeout)
	defer cancel()
	if _, err := client.Notify(callCtx, &notifyrpc.NotifyRequest{Event: event}); err != nil {
		return fmt.Errorf("notify plugin: %w", err)
	}
	return nil
}

func (s *PluginSink) connect() (notifyrpc.NotifierClient, func(), error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  notifyrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          notifyrpc.PluginMap(nil),
		Cmd:              exec.Command(s.binary),
		Managed:          true,
		StartTimeout:     pluginStartTimeout,
		Logger:           hclog.New(&hclog.LoggerOptions{Output: io.Discard, Level: hclog.NoLevel}),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start notifier plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(notifyrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense notifier plugin: %w", err)
	}
	typed, ok := raw.(notifyrpc.NotifierClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("notifier plugin client type mismatch")
	}
	return typed, closeFn, nil
}
