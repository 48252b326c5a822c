// Command forage runs one foraging simulation and writes its metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/swarm.forage/internal/config"
	"github.com/banshee-data/swarm.forage/internal/db"
	"github.com/banshee-data/swarm.forage/internal/metrics"
	"github.com/banshee-data/swarm.forage/internal/sim"
	"github.com/banshee-data/swarm.forage/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Tuning file (.json, .yaml or .yml)")
	timesteps   = flag.Uint64("timesteps", 0, "Timesteps to run (0 uses the tuning file)")
	dbPath      = flag.String("db", "", "sqlite database to record the run in (empty disables)")
	plotDir     = flag.String("plots", "", "Directory for PNG plots (empty disables)")
	dashboard   = flag.String("dashboard", "", "HTML dashboard output file (empty disables)")
	eventsPath  = flag.String("events", "", "Per-timestep snapshot log, zstd-compressed JSON lines (empty disables)")
	listen      = flag.String("listen", "", "Debug server address; keeps serving after the run until interrupted (requires -db)")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

type options struct {
	timesteps uint64
	dbPath    string
	plotDir   string
	dashboard string
	events    string
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("forage %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *listen != "" && *dbPath == "" {
		log.Fatal("-listen requires -db")
	}

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	opts := options{
		timesteps: *timesteps,
		dbPath:    *dbPath,
		plotDir:   *plotDir,
		dashboard: *dashboard,
		events:    *eventsPath,
	}
	if opts.timesteps == 0 {
		opts.timesteps = cfg.GetTimesteps()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *db.DB
	if opts.dbPath != "" {
		store, err = db.NewDB(opts.dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()
	}

	var wg sync.WaitGroup
	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serveDebug(ctx, *listen, store); err != nil {
				log.Printf("debug server: %v", err)
			}
		}()
	}

	if err := run(ctx, cfg, opts, store); err != nil {
		stop()
		wg.Wait()
		log.Fatalf("run failed: %v", err)
	}

	if *listen != "" {
		log.Printf("run finished; debug server on %s until interrupted", *listen)
	}
	wg.Wait()
}

// run executes one simulation and writes every enabled output. Startup
// errors are returned before the first timestep.
func run(ctx context.Context, cfg *config.TuningConfig, opts options, store *db.DB) (err error) {
	params, err := cfg.SwarmParams()
	if err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	loop, err := sim.New(params)
	if err != nil {
		return err
	}

	if opts.events != "" {
		tl, lerr := metrics.NewTimestepLogger(opts.events)
		if lerr != nil {
			return lerr
		}
		defer func() {
			if cerr := tl.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close event log: %w", cerr)
			}
		}()
		loop.AddSink(tl)
	}

	if store != nil {
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode tuning: %w", err)
		}
		if _, err := store.InsertRun(&db.Run{
			ID:         loop.RunID(),
			Robots:     params.Robots,
			Caching:    params.CacheMode().String(),
			Perception: params.Robot.Perception.String(),
			ConfigJSON: string(cfgJSON),
		}); err != nil {
			return err
		}
	}

	start := time.Now()
	runErr := loop.Run(ctx, opts.timesteps)
	log.Printf("run %s: %d timesteps in %s, %d blocks collected",
		loop.RunID(), loop.Timestep(), time.Since(start).Round(time.Millisecond), loop.Arena().Collected())

	// Whatever was recorded before an invariant failure is still written.
	if err := writeOutputs(loop, opts, store); err != nil {
		if runErr != nil {
			log.Printf("writing outputs: %v", err)
			return runErr
		}
		return err
	}
	return runErr
}

func writeOutputs(loop *sim.Loop, opts options, store *db.DB) error {
	m := loop.Metrics()
	snaps := m.Snapshots()

	summaries := loop.LifetimeSummaries()
	kinds := make([]string, 0, len(summaries))
	for k := range summaries {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		log.Printf("%s cache lifetimes: %s", k, summaries[k])
	}

	if store != nil {
		if err := store.InsertSnapshots(loop.RunID(), snaps); err != nil {
			return err
		}
		if err := store.InsertCacheLifetimes(loop.RunID(), m.Lifetimes()); err != nil {
			return err
		}
		if err := store.FinishRun(loop.RunID(), loop.Timestep(), loop.Arena().Collected()); err != nil {
			return err
		}
	}

	if opts.plotDir != "" && len(snaps) > 0 {
		files, err := metrics.PlotLifetimes(opts.plotDir, m.LifetimesByKind())
		if err != nil {
			return err
		}
		collected := filepath.Join(opts.plotDir, "collected.png")
		if err := metrics.PlotCollected(collected, snaps); err != nil {
			return err
		}
		log.Printf("wrote %d plots to %s", len(files)+1, opts.plotDir)
	}

	if opts.dashboard != "" && len(snaps) > 0 {
		f, err := os.Create(opts.dashboard)
		if err != nil {
			return fmt.Errorf("create dashboard: %w", err)
		}
		if err := metrics.RenderDashboard(f, "run "+loop.RunID(), snaps); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("wrote dashboard %s", opts.dashboard)
	}
	return nil
}

// serveDebug serves the admin routes until ctx is cancelled.
func serveDebug(ctx context.Context, addr string, store *db.DB) error {
	mux := http.NewServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return err
	}
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
