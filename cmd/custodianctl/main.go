package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/custodian-sh/custodian"
	"github.com/custodian-sh/custodian/config"
	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/reconcile"
)

// Version is set at build time
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "version" {
		fmt.Printf("custodianctl %s\n", Version)
		return
	}
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal(err)
	}
	app, err := custodian.New(cfg)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch cmd {
	case "reconcile":
		err = reconcileCommand(ctx, app, args)
	case "sweep":
		err = sweepCommand(ctx, app)
	case "rewrite-keys":
		err = rewriteKeysCommand(ctx, app)
	case "purge-resource":
		err = purgeResourceCommand(ctx, app, args)
	case "user", "users":
		err = userCommand(ctx, app, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func reconcileCommand(ctx context.Context, app *custodian.App, args []string) error {
	opts := reconcile.Options{}
	for _, arg := range args {
		switch {
		case arg == "--purge":
			opts.Purge = true
		case len(arg) > 15 && arg[:15] == "--continuation=":
			opts.Continuation = arg[15:]
		default:
			return fmt.Errorf("unknown flag %q", arg)
		}
	}

	report, err := app.Engine.Reconcile(ctx, opts)
	if report != nil {
		printReport(report)
	}
	return err
}

func sweepCommand(ctx context.Context, app *custodian.App) error {
	report, err := app.Engine.SweepGhosts(ctx)
	if report != nil {
		printReport(report)
	}
	return err
}

func rewriteKeysCommand(ctx context.Context, app *custodian.App) error {
	report, err := app.Engine.RewriteLegacyKeys(ctx)
	if report != nil {
		printReport(report)
	}
	return err
}

func purgeResourceCommand(ctx context.Context, app *custodian.App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: custodianctl purge-resource <resource-id>")
	}
	return app.Engine.PurgeResource(ctx, args[0])
}

// userCommand manages users directly at the store level. This is an operator
// tool: it bypasses the admin permission gate but still converges tuples.
func userCommand(ctx context.Context, app *custodian.App, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: custodianctl user <list|add|role|deactivate|delete> ...")
	}
	users := app.Repo.Users()

	switch args[0] {
	case "list":
		all, err := users.List(ctx)
		if err != nil {
			return err
		}
		for _, u := range all {
			state := "active"
			if !u.Active {
				state = "inactive"
			}
			fmt.Printf("%-24s %-8s %s\n", u.ID, u.Role, state)
		}
		return nil

	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: custodianctl user add <id> <role>")
		}
		role, err := identity.ParseRole(args[2])
		if err != nil {
			return err
		}
		now := time.Now()
		u := &identity.User{ID: args[1], Role: role, Active: true, CreatedAt: now, UpdatedAt: now}
		if err := users.Save(ctx, u); err != nil {
			return err
		}
		return app.Engine.ReconcileUser(ctx, *u)

	case "role":
		if len(args) != 3 {
			return fmt.Errorf("usage: custodianctl user role <id> <role>")
		}
		role, err := identity.ParseRole(args[2])
		if err != nil {
			return err
		}
		u, err := users.Get(ctx, args[1])
		if err != nil {
			return err
		}
		u.Role = role
		u.UpdatedAt = time.Now()
		if err := users.Save(ctx, u); err != nil {
			return err
		}
		return app.Engine.ReconcileUser(ctx, *u)

	case "deactivate":
		if len(args) != 2 {
			return fmt.Errorf("usage: custodianctl user deactivate <id>")
		}
		u, err := users.Get(ctx, args[1])
		if err != nil {
			return err
		}
		u.Active = false
		u.UpdatedAt = time.Now()
		if err := users.Save(ctx, u); err != nil {
			return err
		}
		return app.Engine.ReconcileUser(ctx, *u)

	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: custodianctl user delete <id>")
		}
		if err := users.Delete(ctx, args[1]); err != nil {
			return err
		}
		return app.Engine.PurgeSubject(ctx, args[1])

	default:
		return fmt.Errorf("unknown user subcommand %q", args[0])
	}
}

func printReport(r *reconcile.Report) {
	fmt.Printf("scanned:   %d\n", r.Scanned)
	fmt.Printf("added:     %d\n", r.Added)
	fmt.Printf("deleted:   %d\n", r.Deleted)
	fmt.Printf("rewritten: %d\n", r.Rewritten)
	if len(r.Unresolved) > 0 {
		fmt.Printf("unresolved:\n")
		for _, t := range r.Unresolved {
			fmt.Printf("  %s\n", t)
		}
	}
	if r.Continuation != "" {
		fmt.Printf("continuation: %s\n", r.Continuation)
	}
}

func printUsage() {
	fmt.Print(`custodianctl - Custodian operations tool

Usage:
  custodianctl <command> [options]

Configuration is taken from the same environment variables as custodiand
(DB_TYPE, DSN, TUPLE_STORE_URL, ...).

Commands:
  reconcile [--purge] [--continuation=TOKEN]
            Run a full reconciliation pass. --purge also deletes stale
            managed tuples; --continuation resumes an aborted scan.
  sweep     Delete tuples whose subject is no longer a known user.
  rewrite-keys
            Rewrite legacy resource object keys to canonical identities.
  purge-resource <id>
            Delete every tuple referencing the resource.
  user list
  user add <id> <role>
  user role <id> <role>
  user deactivate <id>
  user delete <id>
  version
`)
}
