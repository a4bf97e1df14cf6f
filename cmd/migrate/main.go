// Command migrate manages the pricing database schema.
package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pricing/backend/internal/infrastructure/config"
	"github.com/pricing/backend/internal/infrastructure/logger"
	"github.com/pricing/backend/internal/infrastructure/migration"
	"github.com/pricing/backend/migrations"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

type migrateCLI struct {
	path       string
	configFile string
	logLevel   string
	log        *zap.Logger
}

func main() {
	c := &migrateCLI{}
	if err := c.rootCommand().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func (c *migrateCLI) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the pricing database schema",
		Long: `Apply, roll back and author the SQL migrations of the pricing database.

Connection settings come from config.toml or the PRICING_DATABASE_* environment
variables (HOST, PORT, USER, PASSWORD, DBNAME, SSLMODE).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(&logger.Config{
				Level:      c.logLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = c.log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.path, "path", "", "read migrations from this directory instead of the embedded set")
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "configuration file (default: config.toml in ., /etc/pricing or /app)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		c.dbCommand("up", "Apply all pending migrations", cobra.NoArgs,
			func(m *migration.Migrator, _ []string) error { return m.Up() }),
		c.dbCommand("down", "Roll back all migrations", cobra.NoArgs,
			func(m *migration.Migrator, _ []string) error { return m.Down() }),
		c.dbCommand("step N", "Apply N migrations, negative N rolls back", cobra.ExactArgs(1),
			func(m *migration.Migrator, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(n)
			}),
		c.dbCommand("goto VERSION", "Migrate up or down to VERSION", cobra.ExactArgs(1),
			func(m *migration.Migrator, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.GoTo(uint(v))
			}),
		c.dbCommand("version", "Show the applied schema version", cobra.NoArgs, c.printVersion),
		c.dbCommand("force VERSION", "Mark VERSION as applied without running it", cobra.ExactArgs(1),
			func(m *migration.Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				c.log.Warn("Forcing migration version, the schema is not touched", zap.Int("version", v))
				return m.Force(v)
			}),
		c.createCommand(),
		c.listCommand(),
	)
	return root
}

// dbCommand builds a subcommand that runs fn against a migrator connected
// to the configured database.
func (c *migrateCLI) dbCommand(use, short string, args cobra.PositionalArgs, fn func(*migration.Migrator, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeDB, err := c.openMigrator()
			if err != nil {
				return err
			}
			defer closeDB()
			return fn(m, args)
		},
	}
}

func (c *migrateCLI) openMigrator() (*migration.Migrator, func(), error) {
	var opts []config.LoadOption
	if c.configFile != "" {
		opts = append(opts, config.WithFile(c.configFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	var migrateOpts []migration.Option
	if c.path != "" {
		migrateOpts = append(migrateOpts, migration.WithDir(c.path))
	}
	m, err := migration.New(db, c.log, migrateOpts...)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return m, func() {
		// closing the migrator closes db as well
		if err := m.Close(); err != nil {
			c.log.Warn("Failed to close migrator", zap.Error(err))
		}
	}, nil
}

func (c *migrateCLI) printVersion(m *migration.Migrator, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		pterm.Info.Println("No migrations applied")
		return nil
	}
	msg := fmt.Sprintf("Schema version %d", version)
	if dirty {
		pterm.Warning.Println(msg + " (dirty, fix the schema and run force)")
		return nil
	}
	pterm.Success.Println(msg)
	return nil
}

func (c *migrateCLI) createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.path
			if dir == "" {
				dir = defaultMigrationsPath
			}
			created, err := migration.CreateMigration(dir, args[0])
			if err != nil {
				return err
			}
			c.log.Info("Migration created",
				zap.Uint("version", created.Version),
				zap.String("up_file", created.UpPath),
				zap.String("down_file", created.DownPath),
			)
			return nil
		},
	}
}

func (c *migrateCLI) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var source fs.FS = migrations.FS
			if c.path != "" {
				source = os.DirFS(c.path)
			}
			list, err := migration.ListMigrations(source)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				pterm.Info.Println("No migrations found")
				return nil
			}

			rows := pterm.TableData{{"Version", "Name", "Down"}}
			for _, m := range list {
				down := "yes"
				if !m.HasDown {
					down = "no"
				}
				rows = append(rows, []string{strconv.FormatUint(uint64(m.Version), 10), m.Name, down})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}
}
