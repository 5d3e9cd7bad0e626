package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chatchum/relay/internal/relay"
	"github.com/chatchum/relay/internal/storage/badgerdb"
	"github.com/chatchum/relay/internal/storage/sqlite"
	"github.com/chatchum/relay/internal/transport/tcp"
	"github.com/chatchum/relay/internal/transport/unified"
	"github.com/chatchum/relay/internal/transport/ws"
)

// store is the combined surface both backends implement.
type store interface {
	relay.HistoryStore
	relay.UserDirectory
	io.Closer
}

// transport is the common surface of the front-end servers.
type transport interface {
	Start() error
	Stop()
	Addr() string
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	tcpAddr := flag.String("tcp", cfg.TCPAddr, "TCP listen address")
	wsAddr := flag.String("ws", cfg.WSAddr, "WebSocket listen address")
	singlePort := flag.Bool("single-port", cfg.SinglePort,
		"serve TCP and WebSocket clients on the TCP address")
	flag.Parse()

	log := newLogger(cfg.LogLevel)

	st, err := openStore(cfg)
	if err != nil {
		log.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	engine := relay.New(st, st, relay.Config{
		IdleTimeout: cfg.IdleTimeout,
		SendBuffer:  cfg.SendBuffer,
	}, log)

	var servers []transport
	if *singlePort {
		servers = append(servers, unified.New(*tcpAddr, engine, log))
	} else {
		servers = append(servers,
			tcp.New(*tcpAddr, engine, log),
			ws.New(*wsAddr, engine, log),
		)
	}

	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			errChan <- srv.Start()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
	}

	for _, srv := range servers {
		srv.Stop()
	}
	log.Info("server stopped")
}

func openStore(cfg Config) (store, error) {
	if cfg.StoreBackend == "badger" {
		return badgerdb.Open(cfg.BadgerPath)
	}
	return sqlite.Open(cfg.SQLitePath)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
