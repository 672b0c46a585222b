package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/database"
)

// sqlCmd represents the sql command
var sqlCmd = &cobra.Command{
	Use:   "sql <name>",
	Short: "Print the SQL of a query as sent to the database",
	Long: `Print a query definition with its placeholders rebound for a driver.

Parameters given with --param are bound like in "bmdq query"; the bound
arguments are listed as SQL comments after the statement. Parameters that
are not given get a placeholder value, lists a single element.

Dialects:
  sqlserver   @p1, @p2, ...  (default, BMD)
  postgres    $1, $2, ...
  mysql       ?
  sqlite3     ?

Examples:
  bmdq sql display_email
  bmdq sql responsible_employees --dialect postgres
  bmdq sql responsible_employees --param responsible_areas=Buchhaltung,Lohnverrechnung
  bmdq sql cp_main --raw > cp_main.sql`,
	Args: cobra.ExactArgs(1),
	RunE: runSQL,
}

var (
	sqlDialect string
	sqlParams  []string
	sqlRaw     bool
)

func init() {
	rootCmd.AddCommand(sqlCmd)
	sqlCmd.Flags().StringVar(&sqlDialect, "dialect", "", "bind syntax (default: database.driver)")
	sqlCmd.Flags().StringArrayVarP(&sqlParams, "param", "p", nil, "parameter as name=value, lists comma separated (repeatable)")
	sqlCmd.Flags().BoolVar(&sqlRaw, "raw", false, "print the template with {name} placeholders")
}

func runSQL(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	def, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sqlRaw {
		_, err := fmt.Fprintln(out, def.SQL)
		return err
	}

	dialect := database.Dialect(sqlDialect)
	if dialect == "" {
		dialect = database.Dialect(currentConfig().Database.Driver)
	}

	raw, err := parseParamFlags(sqlParams)
	if err != nil {
		return err
	}
	params, err := database.ParseParams(def, raw)
	if err != nil {
		return err
	}
	given := len(params)
	fillPlaceholders(def, params)

	bound, err := database.Bind(def, params, dialect)
	if err != nil {
		return err
	}
	return writeBound(out, bound, given > 0)
}

// fillPlaceholders supplies a value of the declared kind for every param the
// caller left out
func fillPlaceholders(def *database.Definition, params database.Params) {
	for _, p := range def.Params {
		if _, ok := params[p.Name]; ok {
			continue
		}
		switch p.Kind {
		case database.KindInteger:
			params[p.Name] = int64(0)
		case database.KindStringList:
			params[p.Name] = []string{""}
		default:
			params[p.Name] = ""
		}
	}
}

func writeBound(w io.Writer, bound database.Bound, withArgs bool) error {
	if _, err := fmt.Fprintln(w, bound.SQL); err != nil {
		return err
	}
	if !withArgs {
		return nil
	}
	for i, arg := range bound.Args {
		if _, err := fmt.Fprintf(w, "-- arg %d: %#v\n", i+1, arg); err != nil {
			return err
		}
	}
	return nil
}
