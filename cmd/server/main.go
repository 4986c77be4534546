// Command server wires the matching engine to its three external
// surfaces — HTTP order entry, WebSocket market data, and the FIX-
// flavored TCP order-entry gateway — and runs until signalled to stop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"matchengine/internal/api"
	"matchengine/internal/config"
	"matchengine/internal/fixgw"
	"matchengine/internal/idgen"
	"matchengine/internal/marketdata"
	"matchengine/internal/matching"
	"matchengine/internal/metrics"
	"matchengine/internal/wsgw"

	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("MATCHENGINE_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	gen := idgen.New()
	m := metrics.NewMetrics()
	engine := matching.NewEngine(gen, m, log)
	for _, symbol := range cfg.Symbols {
		engine.RegisterSymbol(symbol)
	}
	log.Info().Strs("symbols", cfg.Symbols).Msg("matching engine ready")

	publisher := marketdata.New(engine, cfg.PublishInterval, cfg.MaxDepthLevels, log)
	go publisher.Run()
	defer publisher.Stop()

	apiServer := api.New(":8080", engine, gen, m, log)
	httpServer := &http.Server{Addr: ":8080", Handler: apiServer.Handler()}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("http server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	wsServer := wsgw.New(publisher, log)
	wsMux := http.NewServeMux()
	wsMux.Handle("/ws/marketdata", wsServer)
	marketDataServer := &http.Server{Addr: ":" + strconv.Itoa(cfg.MarketDataPort), Handler: wsMux}

	go func() {
		log.Info().Str("addr", marketDataServer.Addr).Msg("market-data server starting")
		if err := marketDataServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("market-data server failed")
		}
	}()

	fixServer := fixgw.New(
		":"+strconv.Itoa(cfg.FixListenPort), engine, gen, cfg.WorkerPoolSize,
		cfg.SenderCompID, cfg.TargetCompID, log,
	)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := fixServer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("fixgw server exited")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	cancel()
	fixServer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if err := marketDataServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("market-data server shutdown error")
	}
}
