package cmd

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ggpk/internal/dat"
	"github.com/agentic-research/ggpk/internal/export"
)

var (
	datSchemaPath string
	datTableName  string
	datWidth      int
	datDBPath     string
)

var datCmd = &cobra.Command{
	Use:   "dat",
	Short: "Decode DAT data table files against an HCL schema",
}

var datDumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Decode a table file and print its rows as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := decodeTable(args[0])
		if err != nil {
			return err
		}
		fmt.Println(oj.JSON(table.Rows, 2))
		return nil
	},
}

var datExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Decode a table file and write it into a SQLite database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := decodeTable(args[0])
		if err != nil {
			return err
		}
		if err := export.WriteTable(datDBPath, table); err != nil {
			return err
		}
		fmt.Printf("Wrote %d rows of %s to %s\n", len(table.Rows), table.Name, datDBPath)
		return nil
	},
}

// decodeTable resolves the table's schema from the schema file and decodes
// the given file against it.
func decodeTable(path string) (*dat.Table, error) {
	schemas, err := dat.LoadSchemas(datSchemaPath)
	if err != nil {
		return nil, err
	}
	schema, err := dat.FindSchema(schemas, datTableName)
	if err != nil {
		return nil, err
	}

	var opts []dat.Option
	if datWidth != 0 {
		opts = append(opts, dat.WithRecordWidth(datWidth))
	}
	return dat.DecodeFile(path, schema, opts...)
}

func init() {
	datCmd.PersistentFlags().StringVarP(&datSchemaPath, "schema", "s", "", "Path to the HCL schema file")
	datCmd.PersistentFlags().StringVarP(&datTableName, "table", "t", "", "Table name within the schema file")
	datCmd.PersistentFlags().IntVarP(&datWidth, "width", "w", 0, "Expected per-record width for validation")
	_ = datCmd.MarkPersistentFlagRequired("schema")
	_ = datCmd.MarkPersistentFlagRequired("table")

	datExportCmd.Flags().StringVarP(&datDBPath, "db", "d", "tables.db", "SQLite database to write into")

	datCmd.AddCommand(datDumpCmd)
	datCmd.AddCommand(datExportCmd)
	rootCmd.AddCommand(datCmd)
}
