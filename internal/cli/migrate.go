package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/infrastructure/migration"
)

var (
	migrationsDir string
	dropConfirmed bool
	downAll       bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Migrate applies the SQL migrations with golang-migrate. Without --dir the
migrations embedded in the binary are used.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withMigrator(func(_ *cobra.Command, _ []string, m *migration.Migrator) error {
		return m.Up()
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration, or all with --all",
	Args:  cobra.NoArgs,
	RunE: withMigrator(func(_ *cobra.Command, _ []string, m *migration.Migrator) error {
		if downAll {
			return m.Down()
		}
		return m.Steps(-1)
	}),
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps <n>",
	Short: "Apply n migrations, or roll back when n is negative",
	Args:  cobra.ExactArgs(1),
	RunE: withMigrator(func(_ *cobra.Command, args []string, m *migration.Migrator) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(n)
	}),
}

var migrateGotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate up or down to a version",
	Args:  cobra.ExactArgs(1),
	RunE: withMigrator(func(_ *cobra.Command, args []string, m *migration.Migrator) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.GoTo(uint(version))
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: withMigrator(func(cmd *cobra.Command, _ []string, m *migration.Migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		status := struct {
			Version uint `json:"version"`
			Dirty   bool `json:"dirty"`
		}{version, dirty}
		return printResult(cmd.OutOrStdout(), status, func(w io.Writer) error {
			if dirty {
				_, err := fmt.Fprintf(w, "%d (dirty)\n", version)
				return err
			}
			_, err := fmt.Fprintf(w, "%d\n", version)
			return err
		})
	}),
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: withMigrator(func(_ *cobra.Command, args []string, m *migration.Migrator) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.Force(version)
	}),
}

var migrateDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop every table of the database",
	Args:  cobra.NoArgs,
	PreRunE: func(*cobra.Command, []string) error {
		if !dropConfirmed {
			return errors.New("drop deletes all data; pass --confirm to proceed")
		}
		return nil
	},
	RunE: withMigrator(func(_ *cobra.Command, _ []string, m *migration.Migrator) error {
		return m.Drop()
	}),
}

var migrateCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty up/down migration pair in --dir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrationsDir == "" {
			return errors.New("create needs --dir, embedded migrations are read-only")
		}
		created, err := migration.CreateMigration(migrationsDir, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), created, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Created %s\n        %s\n", created.UpPath, created.DownPath)
			return err
		})
	},
}

var migrateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		src := migration.Source{Dir: migrationsDir}
		list, err := migration.ListMigrations(src.FS())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), list, func(w io.Writer) error {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "VERSION\tNAME\tDOWN\n")
			for _, m := range list {
				fmt.Fprintf(tw, "%d\t%s\t%t\n", m.Version, m.Name, m.HasDown)
			}
			return tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(
		migrateUpCmd, migrateDownCmd, migrateStepsCmd, migrateGotoCmd, migrateVersionCmd,
		migrateForceCmd, migrateDropCmd, migrateCreateCmd, migrateListCmd,
	)

	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "", "Read migrations from this directory instead of the binary")
	migrateDownCmd.Flags().BoolVar(&downAll, "all", false, "Roll back every migration")
	migrateDropCmd.Flags().BoolVar(&dropConfirmed, "confirm", false, "Confirm dropping all tables")
}

// withMigrator opens a Migrator on the configured database for fn
func withMigrator(fn func(cmd *cobra.Command, args []string, m *migration.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		m, err := migration.NewFromURL(cfg.Database.DSN(), migration.Source{Dir: migrationsDir}, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				log.Warn("Failed to close migrator", zap.Error(err))
			}
		}()
		return fn(cmd, args, m)
	}
}
