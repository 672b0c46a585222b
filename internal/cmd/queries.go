package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// queriesCmd represents the queries command
var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "List the registered query definitions",
	Long: `List every query in the registry with its parameters, result columns
and fingerprint. With queries.dir set, files from that directory replace the
embedded ones and the fingerprints change accordingly.`,
	Args: cobra.NoArgs,
	RunE: runQueries,
}

func init() {
	rootCmd.AddCommand(queriesCmd)
}

func runQueries(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(reg.Names()))
	for _, def := range reg.All() {
		params := make([]string, 0, len(def.Params))
		for _, p := range def.Params {
			params = append(params, p.Name+":"+string(p.Kind))
		}
		rows = append(rows, []string{
			def.Name,
			strings.Join(params, ", "),
			strings.Join(def.Columns, ", "),
			def.FingerprintHex(),
		})
	}

	u := newUI()
	_, err = fmt.Fprintln(cmd.OutOrStdout(), u.Table([]string{"NAME", "PARAMS", "COLUMNS", "FINGERPRINT"}, rows))
	return err
}
