package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/config"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/database"
	"github.com/ACONIO/swstb.crm.birthdays-new/internal/ui"
)

// currentConfig returns the loaded configuration, or the defaults when the
// command runs without PersistentPreRunE (tests calling run functions directly)
func currentConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

// openRegistry loads the query definitions, overlaid by queries.dir when set
func openRegistry() (*database.Registry, error) {
	dir := currentConfig().Queries.Dir
	if dir == "" {
		return database.DefaultRegistry()
	}
	fsys, err := database.OverlayFS(dir)
	if err != nil {
		return nil, fmt.Errorf("queries.dir: %w", err)
	}
	reg, err := database.LoadRegistry(fsys)
	if err != nil {
		return nil, fmt.Errorf("load queries from %s: %w", dir, err)
	}
	return reg, nil
}

// commandContext is cancelled on SIGINT/SIGTERM and after database.query_timeout
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	timeout := currentConfig().Database.QueryTimeout
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// openQueries connects to the configured database and returns the query
// facade. The returned close function releases the pool.
func openQueries(ctx context.Context, u *ui.UI) (*database.Queries, func(), error) {
	c := currentConfig()

	reg, err := openRegistry()
	if err != nil {
		return nil, nil, err
	}

	pool, err := database.NewPool(c.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("creating database pool: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.DBConnectTimeout)
	defer cancel()

	spin := u.NewSpinner(fmt.Sprintf("Connecting to %s", c.Database.Driver))
	spin.Start()
	if err := pool.Connect(connectCtx); err != nil {
		spin.Error("connection failed")
		pool.Close()
		return nil, nil, err
	}
	spin.Success("connected")

	q := database.NewQueries(pool, reg, database.WithLogger(logger))
	return q, func() { pool.Close() }, nil
}

// parseParamFlags turns repeated key=value flags into a map. A key given
// twice is an error.
func parseParamFlags(pairs []string) (map[string]string, error) {
	raw := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q (want name=value)", pair)
		}
		if _, dup := raw[key]; dup {
			return nil, fmt.Errorf("--param %s given twice", key)
		}
		raw[key] = value
	}
	return raw, nil
}
