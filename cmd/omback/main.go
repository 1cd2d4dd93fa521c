package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omback/omback/internal/backup"
	"github.com/omback/omback/internal/config"
	"github.com/omback/omback/internal/logging"
	"github.com/omback/omback/internal/storage"
	"github.com/omback/omback/pkg/version"
)

// Global variables for CLI flags
var (
	quiet       bool
	verbose     bool
	force       bool
	backupName  string
	modelRef    string
	versionFlag string
	keepFlag    int
	// Storage flag overrides; env is the source of truth
	storageType  string
	gcsBucket    string
	gcsProject   string
	gcsCredsFile string
	s3Bucket     string
	s3Region     string
	s3Endpoint   string
	s3AccessKey  string
	s3SecretKey  string
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "omback",
		Short:   "Ollama model store backup tool",
		Long:    "omback backs up a local ollama model store into compressed archives with support for local and cloud storage backends",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			applyFlagOverrides()

			logger, err = logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}

			// The version command needs no configuration at all.
			if cmd.Name() == "version" {
				return nil
			}

			return cfg.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet output (no progress bars)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging; overrides LOG_LEVEL")

	// Storage backend overrides
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "", "Storage backend type (local, gcs, s3); overrides OMBACK_STORAGE")
	rootCmd.PersistentFlags().StringVar(&gcsBucket, "gcs-bucket", "", "GCS bucket name")
	rootCmd.PersistentFlags().StringVar(&gcsProject, "gcs-project", "", "GCS project ID")
	rootCmd.PersistentFlags().StringVar(&gcsCredsFile, "gcs-creds", "", "Path to GCS credentials file")
	rootCmd.PersistentFlags().StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket name")
	rootCmd.PersistentFlags().StringVar(&s3Region, "s3-region", "", "S3 region")
	rootCmd.PersistentFlags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3 endpoint (for S3-compatible services)")
	rootCmd.PersistentFlags().StringVar(&s3AccessKey, "s3-access-key", "", "S3 access key")
	rootCmd.PersistentFlags().StringVar(&s3SecretKey, "s3-secret-key", "", "S3 secret key")

	rootCmd.AddCommand(createBackupCommand())
	rootCmd.AddCommand(createListCommand())
	rootCmd.AddCommand(createInfoCommand())
	rootCmd.AddCommand(createVersionsCommand())
	rootCmd.AddCommand(createVerifyCommand())
	rootCmd.AddCommand(createDeleteCommand())
	rootCmd.AddCommand(createPruneCommand())
	rootCmd.AddCommand(createModelsCommand())
	rootCmd.AddCommand(createVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
		os.Exit(1)
	}
}

func applyFlagOverrides() {
	if verbose {
		cfg.LogLevel = "debug"
	}
	if storageType != "" {
		cfg.Storage = storageType
	}
	if gcsBucket != "" {
		cfg.GCSBucket = gcsBucket
	}
	if gcsProject != "" {
		cfg.GCSProject = gcsProject
	}
	if gcsCredsFile != "" {
		cfg.GCSCreds = gcsCredsFile
	}
	if s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
}

func newClient(ctx context.Context) (*backup.Client, error) {
	storageConfig, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}

	backend, err := storage.NewBackend(ctx, storageConfig)
	if err != nil {
		return nil, err
	}

	client := backup.NewClient(cfg, backend, logger)
	client.SetQuiet(quiet)
	return client, nil
}

func createBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of the model store",
		Long:  "Archive the configured model store (or a single model) into a compressed backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := newClient(ctx)
			if err != nil {
				return err
			}

			_, err = client.Run(ctx, backupName, modelRef)
			return err
		},
	}

	cmd.Flags().StringVarP(&backupName, "name", "n", "", "Name for the backup (default: \"models\", or the model reference)")
	cmd.Flags().StringVarP(&modelRef, "model", "m", "", "Back up a single model (name:tag)")

	return cmd
}

func createListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available backups",
		Long:  "List all backups in the configured storage backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := newClient(ctx)
			if err != nil {
				return err
			}

			return client.ListSnapshots(ctx)
		},
	}
}

func createInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <backup-name>",
		Short: "Show detailed information about a backup",
		Long:  "Display metadata of a backup; accepts name or name@version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := newClient(ctx)
			if err != nil {
				return err
			}

			return client.GetSnapshotInfo(ctx, args[0])
		},
	}
}

func createVersionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <backup-name>",
		Short: "List all versions of a backup",
		Long:  "List all versions of a backup with timestamps and sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := newClient(ctx)
			if err != nil {
				return err
			}

			return client.ListSnapshotVersions(ctx, args[0])
		},
	}
}

func createVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <backup-name>",
		Short: "Verify a backup against its checksum manifest",
		Long:  "Decompress every entry of a stored backup and compare checksums; accepts name or name@version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := newClient(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			if versionFlag != "" {
				name = fmt.Sprintf("%s@%s", name, versionFlag)
			}
			return client.Verify(ctx, name)
		},
	}

	cmd.Flags().StringVar(&versionFlag, "version", "", "Specific version to verify (format: YYYYMMDD-HHMMSS)")

	return cmd
}

func createDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <backup-name>",
		Short: "Delete backups by name or specific version",
		Long:  "Delete all versions of a backup, or a specific version if --version is specified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := newClient(ctx)
			if err != nil {
				return err
			}

			name := args[0]
			if versionFlag != "" {
				name = fmt.Sprintf("%s@%s", name, versionFlag)
			}
			return client.DeleteSnapshot(ctx, name, force)
		},
	}

	cmd.Flags().StringVar(&versionFlag, "version", "", "Specific version to delete (format: YYYYMMDD-HHMMSS)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompts")

	return cmd
}

func createPruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune <backup-name>",
		Short: "Delete old versions of a backup",
		Long:  "Delete all but the newest --keep versions of a backup name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := newClient(ctx)
			if err != nil {
				return err
			}

			return client.Prune(ctx, args[0], keepFlag, force)
		},
	}

	cmd.Flags().IntVar(&keepFlag, "keep", 3, "Number of versions to keep")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompts")

	return cmd
}

func createModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models in the source model store",
		Long:  "List all models found under the configured OLLAMA_MODELS directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Listing models needs no storage backend.
			client := backup.NewClient(cfg, nil, logger)
			client.SetQuiet(quiet)

			return client.ListModels()
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Info())
		},
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, config.ErrModelsDirNotSet),
		errors.Is(err, config.ErrBackupPathNotSet),
		errors.Is(err, config.ErrModelsDirMissing),
		errors.Is(err, config.ErrModelsDirNotDir),
		errors.Is(err, config.ErrStorageConfig):
		return "configuration error: " + err.Error()
	default:
		return err.Error()
	}
}
