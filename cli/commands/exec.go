package commands

import (
	"database/sql"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/batchsql/cli/internal/ui"
	"github.com/satishbabariya/batchsql/query/compiler"
	"github.com/satishbabariya/batchsql/query/executor"
	"github.com/satishbabariya/batchsql/query/result"
	"github.com/satishbabariya/batchsql/query/sqlgen"
	"github.com/satishbabariya/batchsql/runtime/client"
)

var execCmd = &cobra.Command{
	Use:   "exec <query.yaml|plan.msgpack>",
	Short: "Run a query or a saved plan and print every table it loads",
	Long: `Run a query description, or a plan saved by compile --out, against the
database and print the rows of every table in read order.

The database URL comes from --url, database_url in the config file or the
DATABASE_URL environment variable (.env and .env.local are read too).`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

var (
	execID         string
	execURL        string
	execDialect    string
	execFastPath   []string
	execMinVersion string
	execTx         bool
)

func init() {
	execCmd.Flags().StringVar(&execID, "id", "", "Root key value (prompted for when missing)")
	execCmd.Flags().StringVar(&execURL, "url", "", "Database connection URL")
	execCmd.Flags().StringVarP(&execDialect, "dialect", "d", "", "Target dialect when compiling a query")
	execCmd.Flags().StringSliceVar(&execFastPath, "fast-path", nil, "Owner-id columns filtered by the root key directly")
	execCmd.Flags().StringVar(&execMinVersion, "min-version", "", "Refuse to run below this server version constraint, e.g. \">= 13\"")
	execCmd.Flags().BoolVar(&execTx, "tx", false, "Run inside a transaction")

	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	plan, err := execPlan(args[0])
	if err != nil {
		return err
	}

	url := execURL
	if url == "" && cfg != nil {
		url = cfg.DatabaseURL
	}
	if url == "" {
		return fmt.Errorf("no database URL, pass --url or set DATABASE_URL")
	}

	if execID == "" {
		if err := survey.AskOne(&survey.Input{Message: "Root key value:"}, &execID, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	driver := client.DriverName(plan.Dialect)
	if driver == "" {
		return fmt.Errorf("%w: %s", sqlgen.ErrUnknownDialect, plan.Dialect)
	}
	db, err := sql.Open(driver, url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	minVersion := execMinVersion
	if minVersion == "" && cfg != nil {
		minVersion = cfg.MinServerVersion
	}
	if minVersion != "" {
		v, err := executor.CheckServerVersion(ctx, db, plan.Dialect, minVersion)
		if err != nil {
			return err
		}
		ui.PrintInfo("Server version %s", v)
	}

	ex := executor.New(sqlgen.MustDialect(plan.Dialect))
	id := parseID(execID)

	spinner, err := ui.PrintSpinner(fmt.Sprintf("Loading %d tables...", len(plan.ReadOrder)))
	if err != nil {
		return err
	}
	var set *result.Set
	if execTx {
		set, err = ex.ExecuteTx(ctx, db, plan, id)
	} else {
		set, err = ex.Execute(ctx, db, plan, id)
	}
	_ = spinner.Stop()
	if err != nil {
		return err
	}

	for _, t := range set.Tables() {
		ui.PrintSection(fmt.Sprintf("%s (%d rows)", t.Name, t.Len()))
		if t.Len() == 0 {
			ui.PrintWarning("No rows in %s", t.Name)
			continue
		}
		headers, rows := tableRows(t)
		if err := ui.PrintTable(headers, rows); err != nil {
			return err
		}
	}
	return nil
}

// execPlan loads a saved plan or compiles a query description.
func execPlan(path string) (*compiler.Plan, error) {
	if isPlanFile(path) {
		return loadPlan(path)
	}

	schema, _, err := loadSchema()
	if err != nil {
		return nil, err
	}
	tree, err := loadQuery(path)
	if err != nil {
		return nil, err
	}
	c, err := compiler.New(schema, compilerOptions(execDialect, execFastPath, 0)...)
	if err != nil {
		return nil, err
	}
	return c.Compile(tree)
}
