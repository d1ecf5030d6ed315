// Command floortrackd runs a production tracker against the factory backend
// and serves the reconciled records over HTTP for dashboard consumers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andrewwormald/floortrack"
	"github.com/andrewwormald/floortrack/adapters/httpgateway"
	"github.com/andrewwormald/floortrack/adapters/jlog"
	"github.com/andrewwormald/floortrack/adapters/kafkastreamer"
	"github.com/andrewwormald/floortrack/adapters/memstore"
	"github.com/andrewwormald/floortrack/adapters/memstreamer"
	"github.com/andrewwormald/floortrack/adapters/sqlitecache"
	"github.com/andrewwormald/floortrack/internal/config"
)

func main() {
	ctx := context.Background()

	// NoReturnErr: a missing .env just means the environment is already set.
	_ = godotenv.Load()

	conf, err := config.Load(os.Getenv("FLOORTRACK_CONFIG"))
	if err != nil {
		log.Error(ctx, err)
		os.Exit(1)
	}

	tracker, cleanup, err := buildTracker(ctx, conf)
	if err != nil {
		log.Error(ctx, err)
		os.Exit(1)
	}
	defer cleanup()

	tracker.Run(ctx)
	defer tracker.Stop()

	if conf.ResyncSpec != "" {
		go func() {
			err := tracker.ScheduleResync(ctx, conf.ResyncSpec)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, errors.Wrap(err, "resync schedule stopped"))
			}
		}()
	}

	srv := &http.Server{
		Addr:    conf.ListenAddr,
		Handler: handlers.LoggingHandler(os.Stdout, router(tracker)),
	}

	go func() {
		log.Info(ctx, "listening", j.KV("addr", conf.ListenAddr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, errors.Wrap(err, "serve"))
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		// NoReturnErr: already exiting.
		log.Error(ctx, errors.Wrap(err, "shutdown"))
	}
}

func buildTracker(ctx context.Context, conf config.Config) (*floortrack.Tracker, func(), error) {
	gateway := httpgateway.New(conf.BaseURL, httpgateway.WithToken(conf.AuthToken))

	opts := []floortrack.TrackerOption{
		floortrack.WithLogger(jlog.New()),
		floortrack.WithOperator(floortrack.Operator{
			ID:   conf.OperatorID,
			Name: conf.OperatorName,
		}),
		floortrack.WithTickInterval(conf.TickInterval.Std()),
		floortrack.WithRefreshEvery(conf.RefreshEvery),
	}

	cleanup := func() {}

	if conf.CachePath != "" {
		cache, err := sqlitecache.Open(conf.CachePath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open record cache")
		}

		opts = append(opts, floortrack.WithCache(cache))
		cleanup = func() {
			// NoReturnErr: nothing actionable at teardown.
			_ = cache.Close()
		}
	}

	if len(conf.KafkaBrokers) > 0 {
		opts = append(opts, floortrack.WithEventStreamer(kafkastreamer.New(conf.KafkaBrokers)))
	} else {
		opts = append(opts, floortrack.WithEventStreamer(memstreamer.New()))
	}

	tracker := floortrack.New(conf.TrackerName, gateway, memstore.New(), opts...)
	return tracker, cleanup, nil
}

func router(tracker *floortrack.Tracker) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/records", listRecords(tracker)).Methods(http.MethodGet)
	r.HandleFunc("/records/{id}", getRecord(tracker)).Methods(http.MethodGet)
	r.HandleFunc("/records/{id}/issue", reportIssue(tracker)).Methods(http.MethodPost)
	r.HandleFunc("/records/{id}/resume", resumeProduction(tracker)).Methods(http.MethodPost)
	r.HandleFunc("/refresh", refreshNow(tracker)).Methods(http.MethodPost)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}
