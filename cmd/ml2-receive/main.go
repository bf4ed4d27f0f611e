// Command ml2-receive runs the live telemetry receiver: it accepts the
// headset's multiplexed TCP stream, demultiplexes frames into per-sensor
// capture directories, indexes finished sessions in the session
// database, and serves status over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/ml2raw/internal/api"
	"github.com/banshee-data/ml2raw/internal/config"
	"github.com/banshee-data/ml2raw/internal/mlraw/mux"
	"github.com/banshee-data/ml2raw/internal/mlraw/sessiondb"
	"github.com/banshee-data/ml2raw/internal/version"
)

var (
	configPath = flag.String("config", "", "path to JSON config file (optional)")
	listen     = flag.String("listen", "", "TCP listen address for the headset stream (overrides config)")
	httpListen = flag.String("http", "", "HTTP status listen address (overrides config)")
	outputDir  = flag.String("out", "", "capture output directory (overrides config)")
	dbPath     = flag.String("db", "", "session database path (overrides config)")
)

func main() {
	flag.Parse()

	log.Printf("ml2-receive %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sessiondb.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open session database: %v", err)
	}
	defer db.Close()
	sessions := sessiondb.NewSessionStore(db)

	demux := mux.NewDemultiplexer()
	if err := routeSinks(demux, cfg); err != nil {
		log.Fatalf("failed to set up capture sinks: %v", err)
	}
	receiver := mux.NewReceiver(mux.ReceiverConfig{Address: cfg.ListenAddress}, demux)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the receiver loop: accept headset connections and feed each
	// one through the demultiplexer
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := receiver.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("receiver stopped: %v", err)
		}
		log.Print("receiver routine terminated")
	}()

	// HTTP status server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpMux := http.NewServeMux()
		apiMux := api.NewServer(receiver, sessions, cfg.OutputDir).ServeMux()
		httpMux.Handle("/api/", http.StripPrefix("/api", apiMux))
		httpMux.Handle("/", apiMux)

		server := &http.Server{
			Addr:    cfg.StatusAddress,
			Handler: httpMux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start status server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Printf("listening for headset stream on %s, status on %s, capturing to %s",
		cfg.ListenAddress, cfg.StatusAddress, cfg.OutputDir)

	wg.Wait()

	st := demux.Stats()
	log.Printf("shutdown complete: %d frames (%d bytes, %d unrouted) over %d connections",
		st.Frames, st.Bytes, st.UnroutedFrames, receiver.Connections())
}

// loadConfig resolves the effective configuration: file (if given),
// then defaults, then flag overrides.
func loadConfig() (config.Receiver, error) {
	var settings *config.ReceiverSettings
	if *configPath != "" {
		var err error
		settings, err = config.LoadReceiverSettings(*configPath)
		if err != nil {
			return config.Receiver{}, err
		}
	}
	cfg := settings.Resolve()
	if *listen != "" {
		cfg.ListenAddress = *listen
	}
	if *httpListen != "" {
		cfg.StatusAddress = *httpListen
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	return cfg, nil
}

// routeSinks wires one capture directory per known sensor stream plus a
// catch-all for frames with no specific route.
func routeSinks(demux *mux.Demultiplexer, cfg config.Receiver) error {
	logEvery := uint32(cfg.LogEvery)
	for _, sensorType := range []uint16{mux.SensorDepth, mux.SensorWorldCam, mux.SensorIMU} {
		kind := mux.SensorKindOf(sensorType)
		dir := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_s0", kind))
		sink, err := mux.NewFileSink(dir, logEvery)
		if err != nil {
			return err
		}
		demux.Route(sensorType, 0, sink)
	}

	fallbackDir := filepath.Join(cfg.OutputDir, "unrouted")
	fallbackSink, err := mux.NewFileSink(fallbackDir, logEvery)
	if err != nil {
		return err
	}
	demux.RouteFallback(fallbackSink)
	return nil
}
