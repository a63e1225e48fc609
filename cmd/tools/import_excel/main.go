package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"surety-registry-api/internal/config"
	"surety-registry-api/internal/logging"
	"surety-registry-api/internal/store"
	"surety-registry-api/pkg/importer"
)

type importOptions struct {
	file    string
	kind    string
	userID  int64
	mapping string
	dsn     string
	dryRun  bool
}

func main() {
	_ = godotenv.Load()
	if err := newImportCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import_excel",
		Short: "Import hardware, sureties or users from an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Path to the .xlsx workbook (required)")
	cmd.Flags().StringVar(&opts.kind, "kind", importer.KindHardware, "Record kind: hardware, sureties or users")
	cmd.Flags().Int64Var(&opts.userID, "user", 0, "ID of the user the records are imported as (required)")
	cmd.Flags().StringVar(&opts.mapping, "mapping", "", "Header mapping YAML (default: built-in mapping)")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "Database DSN (default: DB_DSN)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Run the import and roll it back")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("user")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		switch opts.kind {
		case importer.KindHardware, importer.KindSureties, importer.KindUsers:
		default:
			return fmt.Errorf("invalid --kind %q", opts.kind)
		}
		if opts.userID <= 0 {
			return fmt.Errorf("invalid --user %d", opts.userID)
		}
		return nil
	}

	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, opts importOptions) error {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx = logging.WithContext(ctx, logger)

	dsn := opts.dsn
	if dsn == "" {
		dsn = cfg.DatabaseDSN
	}
	if dsn == "" {
		return fmt.Errorf("no database: set --dsn or DB_DSN")
	}

	mapping, err := importer.LoadMapping(opts.mapping)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}
	table, err := importer.ReadWorkbook(data, opts.kind, mapping)
	if err != nil {
		return err
	}

	conn, pool, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer pool.Close()

	logger.Info("importing workbook",
		zap.String("file", opts.file),
		zap.String("kind", opts.kind),
		zap.Int64("user", opts.userID),
		zap.Int("records", len(table.Records)),
		zap.Bool("dry_run", opts.dryRun),
	)

	summary, err := importer.New(conn).ImportTable(ctx, opts.kind, table, opts.userID, opts.dryRun)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "IMPORT SUMMARY")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "Kind: %s\n", summary.Kind)
	fmt.Fprintf(out, "Submitted: %d\n", summary.Submitted)
	fmt.Fprintf(out, "Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(out, "Dry run: %v\n", summary.DryRun)
	if len(summary.Skips) > 0 {
		fmt.Fprintln(out, "\nSkipped rows:")
		for _, s := range summary.Skips {
			fmt.Fprintf(out, "  Row %d: %s\n", s.Row, s.Message)
		}
	}
	return nil
}
