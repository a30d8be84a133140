package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/batchsql/cli/internal/config"
	"github.com/satishbabariya/batchsql/cli/internal/ui"
	"github.com/satishbabariya/batchsql/psl"
)

var validateCmd = &cobra.Command{
	Use:   "validate [schema-path]",
	Short: "Validate a mapping schema",
	Long: `Validate a mapping schema for syntax and semantic errors.

This command will:
- Parse the schema file
- Resolve every relation and primary key
- Display the models the compiler will see`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		p, err := resolveSchemaPath()
		if err != nil {
			return err
		}
		path = p
	}

	schema, err := psl.Load(config.AppFs, path)
	if err != nil {
		ui.PrintError("Schema validation failed: %s", path)
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				ui.PrintList([]string{e.Error()})
			}
		} else {
			ui.PrintList([]string{err.Error()})
		}
		return fmt.Errorf("schema has errors")
	}

	ui.PrintSuccess("Schema is valid: %s", path)
	ui.PrintSection("Schema Summary")
	ui.PrintList([]string{
		fmt.Sprintf("provider %s", schema.Provider()),
		fmt.Sprintf("%d model(s)", len(schema.Models())),
	})

	var rows [][]string
	for _, m := range schema.Models() {
		var relations []string
		columns := 0
		for _, f := range m.Fields {
			if f.IsScalar() {
				columns++
			} else {
				relations = append(relations, f.Name+" -> "+f.Relation.Target)
			}
		}
		rows = append(rows, []string{
			m.Name,
			m.Table,
			strings.Join(m.PK, ", "),
			fmt.Sprint(columns),
			strings.Join(relations, ", "),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return ui.PrintTable([]string{"Model", "Table", "Key", "Columns", "Relations"}, rows)
}
