package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/logistics/internal/service"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that sweeps active loads against their dwell thresholds`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.tracer.Close()
	defer deps.messageBus.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	monitor := service.NewMonitorService(deps.loadRepo, deps.trRepo, deps.cfg.SLA)

	g.Go(func() error {
		log.Info().
			Dur("interval", deps.cfg.SLA.SweepInterval).
			Msg("Starting stale load sweep job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(deps.cfg.SLA.SweepInterval),
			gocron.NewTask(func() {
				stale, err := monitor.SweepStaleLoads(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to sweep stale loads")
					return
				}
				log.Info().Int("stale", len(stale)).Msg("Stale load sweep finished")
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	log.Info().Msg("Shutting down worker")
	return nil
}
