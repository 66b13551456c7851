package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/services"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/metrics"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/outbox"
	outboxbus "github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/outbox/dispatchers/eventbus"
	outboxredis "github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/outbox/dispatchers/redis"
)

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Read master change events from the outbox",
	}

	var (
		limit int
		ack   bool
	)
	drain := &cobra.Command{
		Use:   "drain",
		Short: "Print pending change events as JSON lines, optionally marking them published",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return withCode(exitUsage, fmt.Errorf("--limit must be positive"))
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			table, err := outbox.ParseIdentifier(a.conf.Nayose.OutboxTable)
			if err != nil {
				return withCode(exitUsage, err)
			}
			p := outbox.NewPublisher()
			return composables.InTx(a.context(ctx), func(txCtx context.Context) error {
				tx, err := composables.UseTx(txCtx)
				if err != nil {
					return withCode(exitDB, err)
				}
				records, err := p.Pending(txCtx, tx, table, limit)
				if err != nil {
					return withCode(exitDB, err)
				}
				seqs := make([]int64, 0, len(records))
				for _, r := range records {
					if err := writeJSONLine(cmd.OutOrStdout(), r); err != nil {
						return err
					}
					seqs = append(seqs, r.Sequence)
				}
				if !ack {
					return nil
				}
				if _, err := p.Ack(txCtx, tx, table, seqs); err != nil {
					return withCode(exitDBWrite, err)
				}
				return nil
			})
		},
	}
	drain.Flags().IntVar(&limit, "limit", 100, "Maximum events to read")
	drain.Flags().BoolVar(&ack, "ack", false, "Mark the printed events as published")

	cmd.AddCommand(drain)
	cmd.AddCommand(newOutboxRelayCmd())
	return cmd
}

type relayOptions struct {
	to            string
	channelPrefix string
	poll          time.Duration
	batch         int
	maxAttempts   int
	singleActive  bool
	once          bool
	retention     time.Duration
	metricsAddr   string
}

func (o relayOptions) validate() error {
	switch o.to {
	case "stdout", "redis":
	default:
		return fmt.Errorf("--to must be stdout or redis, got %q", o.to)
	}
	if o.poll <= 0 {
		return fmt.Errorf("--poll must be positive")
	}
	if o.batch <= 0 {
		return fmt.Errorf("--batch must be positive")
	}
	if o.maxAttempts <= 0 {
		return fmt.Errorf("--max-attempts must be positive")
	}
	if o.retention < 0 {
		return fmt.Errorf("--retention must not be negative")
	}
	return nil
}

func newOutboxRelayCmd() *cobra.Command {
	opts := relayOptions{}
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Deliver outbox events until interrupted, retrying failures with backoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return withCode(exitUsage, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOutboxRelay(ctx, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.to, "to", "stdout", "Where events go: stdout (JSON lines through the event bus) or redis (pub/sub)")
	cmd.Flags().StringVar(&opts.channelPrefix, "channel-prefix", "", "Prefix of the redis channel, followed by the topic")
	cmd.Flags().DurationVar(&opts.poll, "poll", time.Second, "Polling interval")
	cmd.Flags().IntVar(&opts.batch, "batch", 100, "Events claimed per poll")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 25, "Attempts before an event is left as dead")
	cmd.Flags().BoolVar(&opts.singleActive, "single-active", true, "Relay only while holding the table's advisory lock")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Deliver one batch and exit")
	cmd.Flags().DurationVar(&opts.retention, "retention", 7*24*time.Hour, "Delete published events older than this; 0 keeps them")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while relaying")
	return cmd
}

func runOutboxRelay(ctx context.Context, out io.Writer, opts relayOptions) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	table, err := outbox.ParseIdentifier(a.conf.Nayose.OutboxTable)
	if err != nil {
		return withCode(exitUsage, err)
	}
	queue, err := outbox.NewPostgresQueue(a.pool, table)
	if err != nil {
		return withCode(exitUsage, err)
	}
	log := logrus.NewEntry(a.log).WithField("table", queue.Label())

	var dispatcher outbox.Dispatcher
	if opts.to == "redis" {
		if a.redis == nil {
			a.redis = newRedisClient(a.conf.RedisURL)
		}
		dispatcher = outboxredis.New(a.redis, opts.channelPrefix)
	} else {
		a.bus.Subscribe(func(ev *services.MasterDataChanged) {
			if err := writeJSONLine(out, ev); err != nil {
				log.WithError(err).Warn("outbox: write event")
			}
		})
		dispatcher = outboxbus.New(a.bus).Register(services.TopicMasterDataChanged, services.DecodeMasterDataChanged)
	}

	relayOpts := outbox.RelayOptions{
		PollInterval: opts.poll,
		BatchSize:    opts.batch,
		MaxAttempts:  opts.maxAttempts,
		Logger:       log,
	}
	if opts.singleActive && !opts.once {
		relayOpts.Leader = outbox.NewAdvisoryLeader(a.pool, table)
	}
	relay, err := outbox.NewRelay(queue, dispatcher, relayOpts)
	if err != nil {
		return withCode(exitUsage, err)
	}
	var cleaner *outbox.Cleaner
	if opts.retention > 0 {
		cleaner, err = outbox.NewCleaner(a.pool, table, outbox.CleanerOptions{Retention: opts.retention, Logger: log})
		if err != nil {
			return withCode(exitUsage, err)
		}
	}

	if opts.once {
		n, err := relay.RunOnce(ctx)
		if err != nil {
			return withCode(exitDB, err)
		}
		log.WithField("delivered", n).Info("outbox: batch relayed")
		if cleaner != nil {
			if _, err := cleaner.CleanOnce(ctx); err != nil {
				return withCode(exitDBWrite, err)
			}
		}
		return nil
	}

	if opts.metricsAddr != "" {
		wait := metrics.Serve(ctx, opts.metricsAddr, metrics.NewPrometheusController(a.conf.Prometheus.Path), a.log)
		defer wait()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	if cleaner != nil {
		g.Go(func() error { return cleaner.Run(gctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return withCode(exitDB, err)
	}
	return nil
}
