// Package main is a small admin tool for the tenant instance mapping.
//
//	tenantctl [-config path] add -instance ID -tenant T -user U -phone P [-key K]
//	tenantctl [-config path] status -instance ID -set active|suspended|disabled
//	tenantctl [-config path] list
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/edgard/jaiminho/internal/config"
	"github.com/edgard/jaiminho/internal/database"
	"github.com/edgard/jaiminho/internal/domain"
	"github.com/edgard/jaiminho/internal/logger"
	"github.com/edgard/jaiminho/internal/tenant"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tenantctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: tenantctl [-config path] add|status|list [flags]")
		return 2
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(stderr, "open database: %v\n", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON))

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "add":
		err = addInstance(ctx, store, rest, stdout, stderr)
	case "status":
		err = setStatus(ctx, store, rest, stdout, stderr)
	case "list":
		err = listInstances(ctx, store, stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func addInstance(ctx context.Context, store database.Store, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	instanceID := fs.String("instance", "", "Transport instance id")
	tenantID := fs.String("tenant", "", "Owning tenant id")
	userID := fs.String("user", "", "Owning user id")
	phone := fs.String("phone", "", "Phone number registered to the instance")
	key := fs.String("key", "", "Optional instance credential")
	status := fs.String("status", string(domain.TenantActive), "Initial status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	inst := &domain.TenantInstance{
		InstanceID:  *instanceID,
		TenantID:    *tenantID,
		UserID:      *userID,
		PhoneNumber: tenant.NormalizePhone(*phone),
		Status:      domain.TenantStatus(*status),
	}
	if *key != "" {
		inst.CredentialHash = tenant.HashCredential(*key)
	}
	if err := store.UpsertInstance(ctx, inst); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved instance %s (tenant %s, user %s)\n", inst.InstanceID, inst.TenantID, inst.UserID)
	return nil
}

func setStatus(ctx context.Context, store database.Store, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	instanceID := fs.String("instance", "", "Transport instance id")
	status := fs.String("set", "", "New status: active, suspended or disabled")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *instanceID == "" {
		return fmt.Errorf("-instance is required")
	}

	if err := store.SetInstanceStatus(ctx, *instanceID, domain.TenantStatus(*status)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "instance %s is now %s\n", *instanceID, *status)
	return nil
}

func listInstances(ctx context.Context, store database.Store, stdout io.Writer) error {
	instances, err := store.ListInstances(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tTENANT\tUSER\tPHONE\tSTATUS\tKEY")
	for _, inst := range instances {
		hasKey := "no"
		if inst.CredentialHash != "" {
			hasKey = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inst.InstanceID, inst.TenantID, inst.UserID, inst.PhoneNumber, inst.Status, hasKey)
	}
	return w.Flush()
}
