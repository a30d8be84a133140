package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/batchsql/cli/internal/config"
	"github.com/satishbabariya/batchsql/cli/internal/ui"
	"github.com/satishbabariya/batchsql/cli/internal/version"
	"github.com/satishbabariya/batchsql/internal/debug"
	"github.com/satishbabariya/batchsql/telemetry"
)

var (
	cfg        *config.Config
	schemaPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "batchsql",
	Short: "Compile navigation queries into single round trip SQL batches",
	Long: `batchsql compiles a query description (YAML) against a Prisma-style
mapping schema into one SQL batch that loads every table the query touches.

EXAMPLES:
    batchsql validate
    batchsql compile query.yaml
    batchsql compile query.yaml --dialect sqlite --graph
    batchsql compile query.yaml --out query.msgpack
    batchsql exec query.msgpack --id 42`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "Path to schema file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log compiler stages to stderr")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = c
	debug.Init(debugMode || c.Debug)
	telemetry.Init(version.Version, c.Telemetry)
	return nil
}

// Execute is the main entry point for the CLI
func Execute() error {
	start := time.Now()
	cmd, err := rootCmd.ExecuteC()
	if cmd != nil {
		telemetry.RecordCommand(cmd.Name(), dialectOf(cmd), time.Since(start), err)
	}
	telemetry.Shutdown(context.Background())

	if err != nil {
		ui.PrintError("%v", err)
	}
	return err
}

func dialectOf(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("dialect"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	if cfg != nil {
		return cfg.Dialect
	}
	return ""
}
