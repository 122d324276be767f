package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pharmacy/backend/internal/infrastructure/config"
	"github.com/pharmacy/backend/internal/infrastructure/logger"
	"github.com/pharmacy/backend/internal/infrastructure/migration"
	"github.com/pharmacy/backend/migrations"
	"go.uber.org/zap"
)

func main() {
	var (
		migrationsPath string
		logLevel       string
	)

	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	var source fs.FS = migrations.FS
	if migrationsPath != "" {
		source = os.DirFS(migrationsPath)
	}

	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("source", sourceName(migrationsPath)),
	)

	// list reads the source only
	if command == "list" {
		if err := printMigrations(source); err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal("SQL migrations target postgres; sqlite databases are migrated by the server on start",
			zap.String("driver", cfg.Database.Driver))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.NewFromFS(db, source, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	run, ok := commands[command]
	if !ok {
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
	if err := run(m, args[1:], log); err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

type commandFunc func(m *migration.Migrator, args []string, log *zap.Logger) error

var commands = map[string]commandFunc{
	"up": func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Up()
	},
	"down": func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Down()
	},
	"step": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"force": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := intArg(args, "version")
		if err != nil {
			return err
		}
		return m.Force(v)
	},
	"version": func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	},
}

// intArg parses the first positional argument as an integer
func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing %s", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func printMigrations(source fs.FS) error {
	list, err := migration.ListMigrations(source)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no migrations")
		return nil
	}
	for _, m := range list {
		rollback := "reversible"
		if !m.HasDown {
			rollback = "no down file"
		}
		fmt.Printf("%06d  %-32s %s\n", m.Version, m.Name, rollback)
	}
	return nil
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func printUsage() {
	fmt.Println(`Pharmacy ledger migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  force <version>       Force set migration version (repairs a dirty database)
  list                  List available migrations

Flags:
  -path string          Read migrations from a directory (default: embedded)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  PHARMA_DATABASE_HOST, PHARMA_DATABASE_PORT, PHARMA_DATABASE_USER,
  PHARMA_DATABASE_PASSWORD, PHARMA_DATABASE_DBNAME, PHARMA_DATABASE_SSLMODE

Examples:
  migrate up
  migrate step -1
  migrate version`)
}
