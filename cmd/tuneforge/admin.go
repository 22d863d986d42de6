package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/TuneForge/internal/adapter/postgres"
	"github.com/Strob0t/TuneForge/internal/config"
	"github.com/Strob0t/TuneForge/internal/service"
)

// runMigrate dispatches migrate subcommands (up, down, version, status).
func runMigrate(args []string) error {
	cmd := "up"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	dsn := cfg.Postgres.DSN

	switch cmd {
	case "up":
		n, err := postgres.RunMigrations(ctx, dsn)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Applied %d migration(s)\n", n)
		return nil
	case "down":
		fs := flag.NewFlagSet("migrate down", flag.ContinueOnError)
		steps := fs.Int("steps", 1, "number of migrations to roll back")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *steps < 1 {
			return fmt.Errorf("--steps must be >= 1")
		}
		if err := postgres.RollbackMigrations(ctx, dsn, *steps); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
		return nil
	case "version":
		v, err := postgres.MigrationVersion(ctx, dsn)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	case "status":
		states, err := postgres.MigrationStatus(ctx, dsn)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "VERSION\tAPPLIED\tAPPLIED_AT\tFILE")
		for _, s := range states {
			appliedAt := "-"
			if s.Applied {
				appliedAt = s.AppliedAt.Format(time.RFC3339)
			}
			_, _ = fmt.Fprintf(w, "%d\t%t\t%s\t%s\n", s.Version, s.Applied, appliedAt, s.Path)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown migrate command: %s (want up, down, version or status)", cmd)
	}
}

// runAdmin dispatches admin subcommands (list-users, list-workspaces).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "list-users":
		return runAdminListUsers(args[1:])
	case "list-workspaces":
		return runAdminListWorkspaces(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: tuneforge admin <command> [options]

Commands:
  list-users        List all registered users
  list-workspaces   List all workspaces with dataset and tool counts
  help              Show this help message

Options:
  --json            Print JSON instead of a table (default when stdout is not a terminal)

Examples:
  tuneforge admin list-users
  tuneforge admin list-workspaces --json
`)
}

type adminDeps struct {
	users      *service.UserService
	workspaces *service.WorkspaceService
}

func loadAdminDeps(ctx context.Context) (*adminDeps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	deps := &adminDeps{
		users:      service.NewUserService(store, nil, 0, nil),
		workspaces: service.NewWorkspaceService(store, nil),
	}
	return deps, pool.Close, nil
}

// parseOutputFlags returns whether JSON output was requested. Without an
// explicit --json, JSON is chosen when stdout is not a terminal.
func parseOutputFlags(name string, args []string) (bool, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	explicit := false
	fs.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "json" })
	if explicit {
		return *asJSON, nil
	}
	return !term.IsTerminal(int(os.Stdout.Fd())), nil //nolint:gosec // fd fits in int
}

func runAdminListUsers(args []string) error {
	asJSON, err := parseOutputFlags("list-users", args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	users, err := deps.users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if asJSON {
		return writeJSONTo(os.Stdout, users)
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tIP_ADDRESS\tCREATED_AT")
	for i := range users {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			users[i].ID, users[i].Username, users[i].IPAddress, users[i].CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runAdminListWorkspaces(args []string) error {
	asJSON, err := parseOutputFlags("list-workspaces", args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := deps.workspaces.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list workspaces: %w", err)
	}
	if asJSON {
		return writeJSONTo(os.Stdout, list)
	}
	if len(list) == 0 {
		fmt.Println("No workspaces found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WORKSPACE_ID\tNAME\tUSER_ID\tDATASETS\tTOOLS")
	for i := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			list[i].PublicID, list[i].Name, list[i].UserID, list[i].DatasetCount, list[i].ToolCount)
	}
	return w.Flush()
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
