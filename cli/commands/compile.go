package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/batchsql/cli/internal/ui"
	"github.com/satishbabariya/batchsql/cli/internal/watch"
	"github.com/satishbabariya/batchsql/query/compiler"
	"github.com/satishbabariya/batchsql/telemetry"
)

var compileCmd = &cobra.Command{
	Use:   "compile <query.yaml>",
	Short: "Compile a query description into a SQL batch",
	Long: `Compile a query description against the schema.

This command will:
- Build the navigation chain and the table graph
- Optimize the graph into a tree of distinct join paths
- Print the SQL batch, the table graph or a full explanation
- Optionally save the plan for later execution with exec`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

var (
	compileDialect   string
	compileFastPath  []string
	compileMaxPasses int
	compileGraph     bool
	compileExplain   bool
	compileOut       string
	compileWatch     bool
)

func init() {
	compileCmd.Flags().StringVarP(&compileDialect, "dialect", "d", "", "Target dialect (sqlserver, postgresql, mysql, sqlite)")
	compileCmd.Flags().StringSliceVar(&compileFastPath, "fast-path", nil, "Owner-id columns filtered by the root key directly")
	compileCmd.Flags().IntVar(&compileMaxPasses, "max-passes", 0, "Bound the optimizer passes (0 means no bound)")
	compileCmd.Flags().BoolVar(&compileGraph, "graph", false, "Print the optimized table graph")
	compileCmd.Flags().BoolVar(&compileExplain, "explain", false, "Print a full plan explanation")
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "Write the encoded plan to this file")
	compileCmd.Flags().BoolVarP(&compileWatch, "watch", "w", false, "Recompile when the query or schema changes")

	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	queryPath := args[0]

	if !compileWatch {
		return compileQuery(queryPath)
	}

	path, err := resolveSchemaPath()
	if err != nil {
		return err
	}
	w, err := watch.New([]string{queryPath, path}, func() error {
		err := compileQuery(queryPath)
		if err != nil {
			ui.PrintError("%v", err)
		}
		ui.PrintInfo("Watching %s and %s", queryPath, path)
		return nil
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx)
}

func compileQuery(queryPath string) error {
	schema, _, err := loadSchema()
	if err != nil {
		return err
	}
	tree, err := loadQuery(queryPath)
	if err != nil {
		return err
	}
	c, err := compiler.New(schema, compilerOptions(compileDialect, compileFastPath, compileMaxPasses)...)
	if err != nil {
		return err
	}

	start := time.Now()
	plan, err := c.Compile(tree)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	stats := plan.Stats()
	telemetry.RecordCompile(plan.Dialect, len(plan.ReadOrder), stats.Lifted, stats.Merged, elapsed)

	switch {
	case compileExplain:
		ui.PrintHeader(queryPath, fmt.Sprintf("%s plan, %d tables", plan.Dialect, len(plan.ReadOrder)))
		if err := ui.PrintMarkdown(explainMarkdown(plan, elapsed)); err != nil {
			return err
		}
	case compileGraph:
		if err := ui.PrintTree(graphTree(plan)); err != nil {
			return err
		}
	case compileOut == "":
		ui.PrintSQL(plan.SQL)
		ui.PrintInfo("Read order: %s", strings.Join(plan.ReadOrder, ", "))
	}

	if compileOut != "" {
		if err := writePlan(compileOut, plan); err != nil {
			return err
		}
		ui.PrintSuccess("Plan for %d tables written to %s", len(plan.ReadOrder), compileOut)
	}
	return nil
}
