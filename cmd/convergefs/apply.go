package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/convergefs/convergefs/pkg/convergefs/backup"
	"github.com/convergefs/convergefs/pkg/convergefs/config"
	"github.com/convergefs/convergefs/pkg/convergefs/entity"
	"github.com/convergefs/convergefs/pkg/convergefs/filesystem"
	"github.com/convergefs/convergefs/pkg/convergefs/logging"
	"github.com/convergefs/convergefs/pkg/convergefs/metrics"
	"github.com/convergefs/convergefs/pkg/convergefs/source"
)

func newApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [manifest]",
		Short: "Reconcile the filesystem with a manifest",
		Long:  "Load a manifest of file declarations and converge every declared path.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(args[0], false)
		},
	}
}

func newPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [manifest]",
		Short: "Report what apply would change",
		Long:  "Run a reconciliation pass without modifying anything, reporting every out-of-sync entity.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(args[0], true)
		},
	}
}

func runReconcile(manifestPath string, noop bool) error {
	logger := logging.DefaultLogger()
	if level, err := logging.LevelFromString(logLevel); err == nil {
		logger = logging.NewLogger(os.Stderr, level)
	} else {
		logger.Warn().Str("level", logLevel).Msg("unknown log level, using default")
	}

	manifest, err := config.Load(manifestPath)
	if err != nil {
		return err
	}

	fsys := filesystem.NewOSFileSystem()
	resolver := source.NewResolver(afero.NewReadOnlyFs(afero.NewOsFs()), logger)
	registry := backup.NewRegistry(bucketOpener(manifest, fsys))
	backups := backup.NewManager(fsys, registry, logger)
	env := entity.NewEnv(fsys, resolver, backups, logger)

	var roots []*entity.Entity
	for _, decl := range manifest.Files {
		e, err := decl.Build(env)
		if err != nil {
			// A bad declaration aborts that entity only.
			logger.Error().Err(err).Str("path", decl.Path).Msg("invalid declaration")
			continue
		}
		roots = append(roots, e)
	}

	result := entity.NewReconciler(env, noop).Run(roots)
	fmt.Printf("applied %d, skipped %d, failed %d\n",
		result.Applied, result.Skipped, len(result.Failures))
	reportCounters(logger)
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d entities failed to reconcile", len(result.Failures))
	}
	return nil
}

// reportCounters logs the engine's Prometheus counters at the end of a
// pass; a one-shot run has no scrape endpoint to expose them on.
func reportCounters(logger zerolog.Logger) {
	counts, err := metrics.Summary()
	if err != nil {
		logger.Warn().Err(err).Msg("could not gather run counters")
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logger.Info().Str("counter", name).Float64("value", counts[name]).Msg("run counter")
	}
}

// bucketOpener resolves manifest bucket names to stores.
func bucketOpener(manifest *config.Manifest, fsys filesystem.FileSystem) backup.OpenFunc {
	return func(name string) (backup.Store, error) {
		for _, b := range manifest.Buckets {
			if b.Name != name {
				continue
			}
			if b.S3 != nil {
				return backup.NewS3Store(context.Background(), backup.S3Config{
					Endpoint:  b.S3.Endpoint,
					Bucket:    b.S3.Bucket,
					AccessKey: b.S3.AccessKey,
					SecretKey: b.S3.SecretKey,
					Region:    b.S3.Region,
				})
			}
			if b.Dir != "" {
				return backup.NewDirStore(fsys, b.Dir), nil
			}
			return nil, fmt.Errorf("bucket %q has no backing store configured", name)
		}
		return nil, fmt.Errorf("no bucket named %q in manifest", name)
	}
}
