package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/config"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	// loaded by PersistentPreRunE
	cfg    *config.Config
	logger = slog.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bmdq",
	Short: "Parameterized queries against the BMD BUERO schema",
	Long: `Run the named, parameterized BMD queries from the command line.

Every query is a SQL template from the query registry. Parameters are bound
by the database driver; values never become part of the SQL text.

Configuration is read from .bmdq.yaml (current directory, $HOME or
$HOME/.config/bmdq), BMDQ_* environment variables and .env files.

Example usage:
  bmdq queries
  bmdq sql responsible_employees --dialect postgres
  bmdq query sachbearbeiter_of_client --param client_bmd_id=KL2000001 --param client_bmd_company_id=1
  bmdq birthdays --date 2026-10-17 --output birthdays.json`,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Errors are printed once, styled, on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		u := newUI()
		u.Println(u.Error(err.Error()))
	}
	return err
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: .bmdq.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output and debug logs")
	flags.BoolVar(&noColor, "no-color", false, "disable colors and animations")
	flags.String("db", "", "database connection string (overrides database.dsn)")
	flags.String("driver", config.DBDriver, "database driver: sqlserver, postgres, mysql, sqlite3")

	// Flags win over environment and config file
	_ = viper.BindPFlag("database.dsn", flags.Lookup("db"))
	_ = viper.BindPFlag("database.driver", flags.Lookup("driver"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))

	// Silence usage on error - we'll print our own messages
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	// Set version template
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// loadConfig reads and validates the configuration and installs the logger
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// newUI returns the status output honoring --no-color
func newUI() *ui.UI {
	u := ui.New()
	if noColor {
		u.SetNoColor(true)
	}
	return u
}
