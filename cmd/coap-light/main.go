// cmd/coap-light/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridlite/coap-light/pkg/client"
	"github.com/gridlite/coap-light/pkg/config"
	"github.com/gridlite/coap-light/pkg/device"
	"github.com/gridlite/coap-light/pkg/metrics"
	"github.com/gridlite/coap-light/pkg/router"
	"github.com/gridlite/coap-light/pkg/server"
	"github.com/gridlite/coap-light/pkg/transport"
)

// Version information
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		press      = flag.Bool("press", false, "run the bridge press sequence against the configured endpoint")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	sugar := log.Sugar()
	sugar.Infow("starting coap-light", "version", Version, "commit", GitCommit)

	if err := run(cfg, sugar, *press); err != nil {
		sugar.Errorw("exiting with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger, press bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counters := metrics.NewCounters()

	conn, err := transport.ListenUDP(cfg.Server.ListenAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	r := router.New()
	light := device.NewLight()
	if err := light.Register(r); err != nil {
		return err
	}

	srv := server.New(conn, r,
		server.WithLogger(log),
		server.WithPollInterval(cfg.Server.PollInterval.Std()),
		server.WithCounters(counters),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()
	log.Infow("light resource server listening", "addr", conn.LocalAddr().String())

	if press {
		if err := pressSequence(ctx, cfg, log, counters); err != nil {
			stop()
			<-serveErr
			return err
		}
		stop()
	}

	err = <-serveErr
	if err == context.Canceled {
		err = nil
	}

	for name, v := range counters.Snapshot() {
		log.Infow("counter", "name", name, "value", v)
	}
	return err
}

// pressSequence replays the bridge sequence: toggle, set the on-time, then
// read back the on/off state. Each step waits for the reply, with a delay
// between steps so the effect of the previous request is observable.
func pressSequence(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, counters *metrics.Counters) error {
	conn, err := transport.DialUDP(cfg.Client.Endpoint)
	if err != nil {
		return err
	}

	sess := client.NewSession(conn,
		client.WithLogger(log),
		client.WithTimeout(cfg.Client.RequestTimeout.Std()),
		client.WithPollInterval(cfg.Client.PollInterval.Std()),
		client.WithCounters(counters),
	)
	defer sess.Close()

	steps := []struct {
		name string
		send func() error
	}{
		{"toggle", sess.PutToggle},
		{"on-time", func() error { return sess.PutOnTime(cfg.Client.OnTimeSeconds) }},
		{"on-off", sess.GetOnOff},
	}

	for i, step := range steps {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Client.StepDelay.Std()):
			}
		}

		if err := step.send(); err != nil {
			return fmt.Errorf("send %s: %w", step.name, err)
		}
		reply, err := sess.Await(ctx)
		if err == client.ErrRequestTimeout {
			log.Warnw("no reply, moving on", "step", step.name)
			continue
		}
		if err != nil {
			return fmt.Errorf("await %s: %w", step.name, err)
		}
		log.Infow("reply received",
			"step", step.name,
			"code", reply.Code.String(),
			"payload", string(reply.Payload),
		)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
