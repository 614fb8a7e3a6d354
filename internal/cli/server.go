package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsio "github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pipeband-quiz-service/internal/app"
	"pipeband-quiz-service/internal/auth"
	"pipeband-quiz-service/internal/catalog"
	"pipeband-quiz-service/internal/config"
	"pipeband-quiz-service/internal/domain"
	"pipeband-quiz-service/internal/infra/memory"
	natsinfra "pipeband-quiz-service/internal/infra/nats"
	"pipeband-quiz-service/internal/infra/postgres"
	infraredis "pipeband-quiz-service/internal/infra/redis"
	"pipeband-quiz-service/internal/playback"
	transport "pipeband-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends are the stores chosen from config, plus how to release them.
type backends struct {
	tracks   app.TrackCatalog
	writer   catalog.TrackWriter
	results  app.ResultStore
	users    app.UserStore
	sessions app.SessionRepository

	invalidatePools       func(context.Context) error
	invalidateLeaderboard func(context.Context) error
	closers               []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		store := postgres.NewStore(pool)
		b.tracks, b.writer, b.results, b.users = store, store, store, store
		log.Info().Msg("using postgres storage")
	} else {
		tracks := memory.SampleCatalog()
		results := memory.NewResultStore()
		b.tracks, b.writer, b.results, b.users = tracks, tracks, results, results
		log.Warn().Msg("postgres url not set, using in-memory storage")
	}

	poolTTL := config.TTLDuration(cfg.Quiz.PoolTTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			b.close()
			_ = client.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })

		pools := infraredis.NewPoolCache(client, b.tracks, poolTTL)
		leaderboard := infraredis.NewLeaderboardCache(client, b.results, config.TTLDuration(cfg.Quiz.LeaderboardTTL, 30*time.Second))
		b.tracks, b.invalidatePools = pools, pools.Invalidate
		b.results, b.invalidateLeaderboard = leaderboard, leaderboard.Invalidate
		b.sessions = infraredis.NewSessionStore(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis caches")
	} else {
		pools := memory.NewPoolCache(b.tracks, poolTTL)
		b.tracks, b.invalidatePools = pools, pools.Invalidate
		b.sessions = memory.NewSessionStore()
	}
	return b, nil
}

func quizSettings(cfg config.Config) app.Settings {
	retry := playback.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Quiz.PlayAttempts
	retry.BaseDelay = config.TTLDuration(cfg.Quiz.PlayRetryBase, playback.DefaultBaseDelay)
	return app.Settings{
		Questions:       cfg.Quiz.Questions,
		QuestionSeconds: cfg.Quiz.QuestionSeconds,
		OptionCount:     cfg.Quiz.OptionCount,
		PlayTimeout:     config.TTLDuration(cfg.Quiz.PlayTimeout, playback.DefaultCommandTimeout),
		SaveTimeout:     config.TTLDuration(cfg.Quiz.SaveTimeout, 15*time.Second),
		Retry:           retry,
	}
}

func connectEvents(cfg config.Config, b *backends) (*natsio.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}
	nc, err := natsinfra.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, err
	}
	if b.invalidateLeaderboard != nil {
		_, err = natsinfra.SubscribeCompleted(nc, cfg.NATS.Subject, func(ev domain.SessionCompleted) {
			if !ev.Saved {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := b.invalidateLeaderboard(ctx); err != nil {
				log.Warn().Err(err).Str("session_id", ev.SessionID).Msg("leaderboard invalidation failed")
			}
		})
		if err != nil {
			nc.Close()
			return nil, err
		}
	}
	return nc, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	if cfg.Auth.SessionSecret == "" {
		return errors.New("session secret not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	opts := []app.Option{app.WithUsers(b.users), app.WithSettings(quizSettings(cfg))}
	nc, err := connectEvents(cfg, b)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Drain()
		opts = append(opts, app.WithPublisher(natsinfra.NewPublisher(nc, cfg.NATS.Subject)))
	}
	service := app.NewQuizService(b.tracks, b.results, b.sessions, opts...)

	provider := auth.NewProvider(auth.ProviderConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURL,
		Scopes:       cfg.Spotify.Scopes,
		APIBaseURL:   cfg.Spotify.APIBaseURL,
	})
	tokens := auth.NewTokenService(cfg.Auth.SessionSecret, config.TTLDuration(cfg.Auth.SessionTTL, 30*24*time.Hour))
	authHandler := transport.NewAuthHandler(provider, tokens, service, cfg.Server.BaseURL, cfg.Auth.SecureCookies)

	importer := catalog.NewImporter(
		catalog.AppClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, "", cfg.Spotify.APIBaseURL),
		b.writer,
	)
	afterImport := func(ctx context.Context) {
		if err := b.invalidatePools(ctx); err != nil {
			log.Warn().Err(err).Msg("pool cache invalidation failed")
		}
	}

	router := transport.NewRouter(transport.Handlers{
		Auth:           authHandler,
		Game:           transport.NewGameHandler(service),
		Admin:          transport.NewAdminHandler(importer, cfg.Spotify.PlaylistID, cfg.Auth.AdminToken, afterImport),
		WS:             transport.NewWSHandler(service, authHandler.Engine, cfg.Server.AllowedOrigins),
		Tokens:         tokens,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	case err := <-errc:
		log.Error().Err(err).Msg("server failed")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	// hijacked sockets outlive server.Shutdown; stop their sessions before stores close
	if serr := service.Shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("quiz sessions did not stop in time")
		if err == nil {
			err = serr
		}
	}
	return err
}
