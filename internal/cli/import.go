package cli

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pipeband-quiz-service/internal/catalog"
	"pipeband-quiz-service/internal/config"
	"pipeband-quiz-service/internal/infra/postgres"
)

// NewImportCmd loads a Spotify playlist into the track catalog.
func NewImportCmd(configPath *string) *cobra.Command {
	var playlist string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a Spotify playlist into the track catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			setupLogger(cfg)
			if playlist == "" {
				playlist = cfg.Spotify.PlaylistID
			}
			return runImport(cmd.Context(), cfg, playlist)
		},
	}
	cmd.Flags().StringVar(&playlist, "playlist", "", "playlist id (defaults to the configured one)")
	return cmd
}

func runImport(ctx context.Context, cfg config.Config, playlist string) error {
	if cfg.Postgres.URL == "" {
		return errors.New("postgres url not configured")
	}
	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		return errors.New("spotify client credentials not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("importing "+playlist),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	importer := catalog.NewImporter(
		catalog.AppClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, "", cfg.Spotify.APIBaseURL),
		postgres.NewStore(pool),
	)
	importer.OnProgress(func(done, total int) {
		if total > 0 {
			bar.ChangeMax(total)
		}
		_ = bar.Set(done)
	})

	n, err := importer.Import(ctx, playlist)
	_ = bar.Finish()
	if err != nil {
		return err
	}
	log.Info().Str("playlist_id", playlist).Int("tracks", n).Msg("import complete")
	return nil
}
