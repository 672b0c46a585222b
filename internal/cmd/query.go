package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/database"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/export"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/ui"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <name>",
	Short: "Run a query definition and print its rows",
	Long: `Run any registered query against the configured database.

Parameters are given as name=value. Integer parameters are parsed, list
parameters take comma separated values. Rows are printed as a table, or as
a JSON array with --json. With --csv rows are streamed as they arrive,
without holding the result in memory.

Examples:
  bmdq query display_email -p client_bmd_id=KL2000001 -p client_bmd_company_id=1
  bmdq query responsible_employees -p client_bmd_id=KL2000001 \
      -p responsible_areas=Buchhaltung,Lohnverrechnung -p client_bmd_company_id=1
  bmdq query client_by_email_dob --json > clients.json
  bmdq query client_by_email_dob --csv --comma ';' > clients.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var (
	queryParams []string
	queryJSON   bool
	queryCSV    bool
	queryComma  string
)

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringArrayVarP(&queryParams, "param", "p", nil, "parameter as name=value, lists comma separated (repeatable)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print rows as JSON")
	queryCmd.Flags().BoolVar(&queryCSV, "csv", false, "stream rows as CSV")
	queryCmd.Flags().StringVar(&queryComma, "comma", ",", "CSV separator")
	queryCmd.MarkFlagsMutuallyExclusive("json", "csv")
}

func runQuery(cmd *cobra.Command, args []string) error {
	u := newUI()

	reg, err := openRegistry()
	if err != nil {
		return err
	}
	def, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	// Bind before connecting so parameter errors need no database
	raw, err := parseParamFlags(queryParams)
	if err != nil {
		return err
	}
	params, err := database.ParseParams(def, raw)
	if err != nil {
		return err
	}
	if _, err := database.Bind(def, params, database.Dialect(currentConfig().Database.Driver)); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	q, closeDB, err := openQueries(ctx, u)
	if err != nil {
		return err
	}
	defer closeDB()

	if queryCSV {
		return streamCSV(ctx, u, q, def, params, cmd.OutOrStdout())
	}

	start := time.Now()
	spin := u.NewSpinner("Running " + def.Name)
	spin.Start()
	records, err := q.Run(ctx, def.Name, params)
	if err != nil {
		spin.Error("failed")
		return err
	}
	spin.Success(fmt.Sprintf("%d rows in %s", len(records), ui.DurationSince(start)))

	if queryJSON {
		return writeRecordsJSON(cmd.OutOrStdout(), records)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), u.Table(def.Columns, recordRows(def.Columns, records)))
	return err
}

// streamCSV writes rows to w as they are read from the database
func streamCSV(ctx context.Context, u *ui.UI, q *database.Queries, def *database.Definition, params database.Params, w io.Writer) error {
	comma, _ := utf8.DecodeRuneInString(queryComma)
	if comma == utf8.RuneError || utf8.RuneCountInString(queryComma) != 1 {
		return fmt.Errorf("invalid --comma %q (want a single character)", queryComma)
	}

	out, err := export.NewCSVWriter(w, export.CSVWriterConfig{Columns: def.Columns, Comma: comma})
	if err != nil {
		return err
	}

	start := time.Now()
	for rec, err := range q.Stream(ctx, def.Name, params) {
		if err != nil {
			out.Close()
			return err
		}
		if err := out.WriteRecord(rec); err != nil {
			return err
		}
	}
	if err := out.Close(); err != nil {
		return err
	}

	u.Println(u.Success(fmt.Sprintf("%d rows in %s", out.RowCount(), ui.DurationSince(start))))
	return nil
}

// recordRows renders records as table cells in column order
func recordRows(columns []string, records []database.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = rec.String(col)
		}
		rows = append(rows, row)
	}
	return rows
}

func writeRecordsJSON(w io.Writer, records []database.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	return nil
}
