package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"example.com/backstage/services/logistics/config"
	"example.com/backstage/services/logistics/internal/api"
	"example.com/backstage/services/logistics/internal/cache"
	"example.com/backstage/services/logistics/internal/db"
	"example.com/backstage/services/logistics/internal/eventbus"
	"example.com/backstage/services/logistics/internal/messagebus"
	"example.com/backstage/services/logistics/internal/repository"
	"example.com/backstage/services/logistics/internal/search"
	"example.com/backstage/services/logistics/internal/service"
	"example.com/backstage/services/logistics/internal/tracing"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server handling load transitions and trip linking`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

// appDeps holds everything both the API server and the worker need wired.
type appDeps struct {
	cfg         config.Config
	db          *gorm.DB
	cache       cache.CacheClient
	bus         *eventbus.InMemoryBus
	messageBus  messagebus.Client
	tracer      tracing.Tracer
	loadRepo    repository.LoadRepository
	trRepo      repository.TransitionRepository
	transitions service.TransitionService
	trips       service.TripLinkingService
}

// bootstrap loads configuration and wires every collaborator, including the
// event listeners. Optional backends degrade to disabled clients rather than
// failing startup.
func bootstrap() (*appDeps, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, err
	}

	cacheClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		cacheClient, _ = cache.NewRedisClient(config.RedisConfig{Enabled: false})
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search indexing")
		elasticClient, _ = search.NewElasticClient(config.ElasticConfig{Enabled: false})
	}

	busClient, err := messagebus.NewClient(cfg.Azure)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	service.RegisterListeners(service.ListenerDeps{
		Bus:                 bus,
		MessageBus:          busClient,
		Cache:               cacheClient,
		Search:              elasticClient,
		ComplianceQueue:     cfg.Azure.ComplianceQueue,
		CostingQueue:        cfg.Azure.CostingQueue,
		FieldReceptionQueue: cfg.Azure.FieldReceptionQueue,
	})

	loadRepo := repository.NewLoadRepository(gormDB)
	trRepo := repository.NewTransitionRepository(gormDB)
	vehicleRepo := repository.NewVehicleRepository(gormDB)
	facilityRepo := repository.NewFacilityRepository(gormDB)
	distanceRepo := repository.NewDistanceRepository(gormDB)

	transitions := service.NewTransitionService(loadRepo, trRepo, cacheClient, bus)
	trips := service.NewTripLinkingService(loadRepo, vehicleRepo, facilityRepo, distanceRepo, bus)

	return &appDeps{
		cfg:         cfg,
		db:          gormDB,
		cache:       cacheClient,
		bus:         bus,
		messageBus:  busClient,
		tracer:      tracer,
		loadRepo:    loadRepo,
		trRepo:      trRepo,
		transitions: transitions,
		trips:       trips,
	}, nil
}

func runAPI(cmd *cobra.Command, args []string) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.tracer.Close()
	defer deps.messageBus.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	server := api.NewServer(deps.cfg, deps.transitions, deps.trips, deps.tracer)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
