package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leadmarket_backend/internal/bootstrap"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "leadctl",
		Short: "Lead marketplace operator CLI",
		Long: `leadctl runs operator tasks against the lead marketplace store.
It reads the same environment as the API (STORE_DRIVER, DATABASE_URL, SQLITE_PATH, ...)
and applies pending migrations before every command.`,
		SilenceUsage: true,
	}
	addPersistentFlags(root)
	root.AddCommand(
		migrateCmd(),
		serviceCmd(),
		creditsCmd(),
		leadsCmd(),
		assignmentsCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().Bool("verbose", false, "log store activity to stderr")
	_ = viper.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
}

// runtime is what a command needs to talk to the store.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	store   store.Store
	bus     events.Bus
	modules *bootstrap.Modules
}

func withRuntime(ctx context.Context, fn func(ctx context.Context, rt *runtime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.Discard()
	if viper.GetBool("verbose") {
		log = logger.NewWithWriter(cfg.Env, os.Stderr)
	}

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	bus := events.NewInMemoryBus(log)
	modules, err := bootstrap.NewModules(st, bus, cfg, log)
	if err != nil {
		return err
	}

	err = fn(ctx, &runtime{cfg: cfg, log: log, store: st, bus: bus, modules: modules})
	// Notification handlers run async; let them write the outbox before exit.
	bus.Wait()
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
