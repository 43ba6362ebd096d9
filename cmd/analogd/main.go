package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/ammarkh95/go-analog/internal/api"
	"github.com/ammarkh95/go-analog/internal/config"
	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
	"github.com/ammarkh95/go-analog/internal/recorder"
	"github.com/ammarkh95/go-analog/smu"
	"github.com/ammarkh95/go-analog/waveforms"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server owns the instruments, the capture store and the HTTP listener.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	scope *waveforms.Device
	smu   *smu.Device
	store *recorder.Store
	http  *http.Server
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to the configuration file")
		showVersion = flag.Bool("version", false, "print version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("analogd %s (built %s, commit %s, %s)\n",
			Version, BuildTime, GitCommit, runtime.Version())
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("server startup failed", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// NewServer builds an unstarted server from the loaded configuration.
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
	}
}

// Start opens the instruments and begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting bench server",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode))

	if err := s.openInstruments(); err != nil {
		return err
	}

	if s.cfg.Storage.Enabled {
		store, err := recorder.Open(&s.cfg.Storage)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrStorageConnect, "open capture store")
		}
		s.store = store
	} else {
		s.logger.Info("capture archiving disabled")
	}

	router := api.NewRouter(s.cfg, s.scope, s.smu, s.store, s.logger)
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("http listener failed", zap.Error(err))
		}
	}()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("configuration reloaded")
		s.cfg = newCfg
	})

	s.logger.Info("server started",
		zap.String("addr", s.http.Addr),
		zap.String("websocket", s.cfg.WebSocket.Path))
	return nil
}

// openInstruments attaches whatever bench hardware is present.
// A missing instrument is logged, not fatal: the API reports it
// per-endpoint so a partial bench still serves.
func (s *Server) openInstruments() error {
	scope, err := waveforms.Open(
		s.cfg.AnalogDiscovery.DeviceIndex,
		s.cfg.AnalogDiscovery.ConfigNumber)
	if err != nil {
		s.logger.Warn("analog discovery unavailable", zap.Error(err))
	} else {
		s.scope = scope
		s.logger.Info("analog discovery attached",
			zap.String("name", scope.Name()),
			zap.String("serial", scope.SerialNumber()))
	}

	smuDev, err := smu.Open(s.cfg.ADALM1K.SampleRate, s.cfg.ADALM1K.QueueSize)
	if err != nil {
		s.logger.Warn("adalm1000 unavailable", zap.Error(err))
	} else {
		s.smu = smuDev
		s.logger.Info("adalm1000 attached", zap.String("serial", smuDev.Serial()))
	}

	if s.scope == nil && s.smu == nil {
		return apperrors.New(apperrors.ErrDeviceNotFound, "no instruments attached")
	}
	return nil
}

// WaitForShutdown blocks until an exit signal arrives.
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigCh
	s.logger.Info("received exit signal", zap.String("signal", sig.String()))
}

// Shutdown drains the HTTP server and releases the instruments.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown failed", zap.Error(err))
		}
	}

	if s.scope != nil {
		if err := s.scope.Close(); err != nil {
			s.logger.Error("failed to close analog discovery", zap.Error(err))
		}
	}
	if s.smu != nil {
		if err := s.smu.Close(); err != nil {
			s.logger.Error("failed to close adalm1000", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close capture store", zap.Error(err))
		}
	}

	if err := logger.Sync(); err != nil {
		fmt.Printf("failed to flush logs: %v\n", err)
	}
	return nil
}
