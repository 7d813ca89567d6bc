package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/b5/squiggle/core"
)

const serverShutdownGrace = 5 * time.Second

// syncRun joins the current space's gossip topic, republishing local
// ingests and ingesting remote events, and serves the admin HTTP surface
// (range-read gateway, health, metrics) until interrupted.
func syncRun(cmd *cobra.Command, _ []string) error {
	ref, err := currentSpaceRef()
	if err != nil {
		return err
	}
	space, closer, err := openSpace(ref)
	if err != nil {
		return err
	}
	defer closer()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	bus, err := core.NewLibp2pGossipBus(cfg.ListenAddr, cfg.DiscoveryTag, log)
	if err != nil {
		return err
	}
	defer bus.Close()

	broadcaster, err := core.NewSyncBroadcaster(ctx, bus, space, cfg.BootstrapPeers, log)
	if err != nil {
		return err
	}
	defer broadcaster.Close()
	space.AttachBroadcaster(broadcaster)

	core.DefaultMetrics(prometheus.DefaultRegisterer)

	scheduler := core.NewScheduler(space.KV, space.Blobs, log)
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.WithError(err).Warn("scheduler assignment loop stopped")
		}
	}()

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	router.Handle("/metrics", promhttp.Handler())
	core.NewRangeBlobServer(space.Blobs, log).Routes(router)

	server := &http.Server{Addr: cfg.AdminListenAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownGrace)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "syncing space %s, admin on %s\n", ref.Name, cfg.AdminListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

var syncCmd = &cobra.Command{
	Use:               "sync",
	Short:             "join gossip replication for the current space and serve the blob gateway",
	PersistentPreRunE: nodeInit,
	RunE:              syncRun,
}

func RegisterSync(root *cobra.Command) { root.AddCommand(syncCmd) }
