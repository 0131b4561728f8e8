package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	avatarbuilder "github.com/setanarut/avatarbuilder"
	"github.com/setanarut/avatarbuilder/progress"
)

func newBuildCommand() *cobra.Command {
	var (
		items   string
		color   string
		session string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Render every pose for a set of items",
		Example: `  avatarbuilder build --items 4,413,221
  avatarbuilder build --items 413 --color "#ff8800"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := LoggerFromContext(ctx)
			cfg := configFromContext(ctx)

			catalog, err := cfg.LoadCatalog()
			if err != nil {
				return err
			}
			opts := cfg.Options()
			opts.Logger = logger
			opts.Metrics = avatarbuilder.NewMetrics(prometheus.NewRegistry())
			b := avatarbuilder.NewBuilder(catalog, opts)

			s, err := b.Start(ctx, avatarbuilder.Request{Items: items, Color: color, Session: session})
			if err != nil {
				return err
			}

			sink := &logSink{logger: logger}
			if cfg.RedisURL != "" {
				client, err := newRedisClient(ctx, cfg.RedisURL)
				if err != nil {
					logger.Warn("progress publishing disabled", "error", err)
				} else {
					defer client.Close()
					sink.next = progress.NewRedisPublisher(client, cfg.RedisChannel)
				}
			}
			if err := progress.Forward(ctx, s, sink); err != nil {
				logger.Warn("progress publishing stopped", "error", err)
			}

			sum, err := s.Wait()
			if err != nil {
				return err
			}
			dir, _ := filepath.Abs(sum.Dir)
			logger.Info("avatar ready", "fingerprint", sum.Fingerprint, "poses", len(sum.Poses), "cached", sum.Cached)
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&items, "items", "", "Comma-separated item ids")
	cmd.Flags().StringVar(&color, "color", "", "Custom body color as hex, replaces the color item")
	cmd.Flags().StringVar(&session, "session", "", "Session id used to tag progress events")
	_ = cmd.MarkFlagRequired("items")
	return cmd
}

// logSink logs each event and hands it on to next when set.
type logSink struct {
	logger *slog.Logger
	next   progress.Sink
}

func (s *logSink) Publish(ctx context.Context, ev avatarbuilder.Event) error {
	switch ev.Type {
	case avatarbuilder.EventProgress:
		s.logger.Info("pose ready", "pose", ev.Pose, "frame", ev.Frame, "file", ev.File)
	case avatarbuilder.EventError:
		s.logger.Warn("pose skipped", "pose", ev.Pose, "frame", ev.Frame, "error", ev.Error)
	}
	if s.next == nil {
		return nil
	}
	return s.next.Publish(ctx, ev)
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
