package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/birthdays"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/config"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/enrich"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/models"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/ui"
)

// birthdaysCmd represents the birthdays command
var birthdaysCmd = &cobra.Command{
	Use:   "birthdays",
	Short: "Produce work items for today's client birthdays",
	Long: `Find the clients whose birthday is today and write one enriched work
item per client as JSON: client master data, emails, responsible employees
and, when configured, a salutation.

Enrichment is configured in the birthdays section of the config file:
  sachbearbeiter             HAUPT (FRIST needs a deadline and is rejected)
  employee_mode              DEFAULT, APPEND or FALLBACK
  responsible_areas          areas for APPEND and FALLBACK
  email_adressart            address type instead of the display email
  default_salutation         salutation when nothing more specific is found
  salutation_freifeld        free field holding the client's salutation
  contact_person_type        PERSONAL or PROFESSIONAL salutation
  contact_person_identifier  contact persons to use (default: main contacts)

Examples:
  bmdq birthdays
  bmdq birthdays --date 2026-10-17 --output birthdays.json`,
	Args: cobra.NoArgs,
	RunE: runBirthdays,
}

var (
	birthdaysDate   string
	birthdaysOutput string
)

func init() {
	rootCmd.AddCommand(birthdaysCmd)
	birthdaysCmd.Flags().StringVar(&birthdaysDate, "date", "", "day to check as YYYY-MM-DD (default: today)")
	birthdaysCmd.Flags().StringVarP(&birthdaysOutput, "output", "o", "", "output file (default: birthdays.output or stdout)")
}

func runBirthdays(cmd *cobra.Command, args []string) error {
	u := newUI()
	c := currentConfig()

	opts, err := birthdayOptions(c.Birthdays)
	if err != nil {
		return err
	}
	today, err := parseDay(birthdaysDate, time.Now())
	if err != nil {
		return err
	}
	output := birthdaysOutput
	if output == "" {
		output = c.Birthdays.Output
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	q, closeDB, err := openQueries(ctx, u)
	if err != nil {
		return err
	}
	defer closeDB()

	var bar *ui.ProgressBar
	producer := birthdays.New(q, opts,
		birthdays.WithClock(func() time.Time { return today }),
		birthdays.WithLogger(logger),
		birthdays.WithProgress(func(done, total int) {
			if bar == nil {
				bar = u.NewProgressBar("Enriching clients", int64(total))
			}
			bar.Update(int64(done))
		}),
	)

	start := time.Now()
	items, err := producer.Produce(ctx)
	if err != nil {
		if bar != nil {
			bar.Fail(err)
		}
		return err
	}
	if bar != nil {
		bar.Complete()
	}

	if err := writeWorkItems(cmd.OutOrStdout(), output, items); err != nil {
		return err
	}

	target := output
	if target == "" {
		target = "stdout"
	}
	u.Println(u.SummaryBox("Birthdays", []ui.KV{
		{Key: "Date", Value: today.Format("2006-01-02")},
		{Key: "Work items", Value: strconv.Itoa(len(items))},
		{Key: "Output", Value: target},
		{Key: "Duration", Value: ui.DurationSince(start)},
	}))
	return nil
}

// birthdayOptions maps the birthdays config section onto producer options
func birthdayOptions(bc config.BirthdaysConfig) (birthdays.Options, error) {
	sb, err := models.ParseSachbearbeiter(bc.Sachbearbeiter)
	if err != nil {
		return birthdays.Options{}, err
	}
	mode, err := models.ParseSelectionMode(bc.EmployeeMode)
	if err != nil {
		return birthdays.Options{}, err
	}

	opts := birthdays.Options{
		Employees: enrich.EmployeeOptions{
			Sachbearbeiter:   sb,
			Mode:             mode,
			ResponsibleAreas: bc.ResponsibleAreas,
		},
		EmailAdressart:          bc.EmailAdressart,
		DefaultSalutation:       bc.DefaultSalutation,
		SalutationFreifeld:      bc.SalutationFreifeld,
		ContactPersonIdentifier: bc.ContactPersonIdentifier,
	}
	if bc.ContactPersonType != "" {
		if opts.ContactPersonType, err = models.ParseContactPersonType(bc.ContactPersonType); err != nil {
			return birthdays.Options{}, err
		}
	}
	return opts, nil
}

// parseDay parses YYYY-MM-DD in local time; empty returns now
func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	day, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", s)
	}
	return day, nil
}

// writeWorkItems writes to path through config.AppFs, or to stdout when path is empty
func writeWorkItems(stdout io.Writer, path string, items []birthdays.WorkItem) error {
	if path == "" {
		return birthdays.WriteJSON(stdout, items)
	}

	f, err := config.AppFs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := birthdays.WriteJSON(f, items); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
