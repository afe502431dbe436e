package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"
	"i4.energy/across/esp8266/at"
	"i4.energy/across/esp8266/esp"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port connected to the ESP8266")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("ssid", "", "SSID of the access point to join")
	flag.String("password", "", "Password of the access point to join")
	flag.Int("server-port", 0, "Start the module's TCP server on this port (0 disables it)")
	flag.Int("budget", 3000, "Poll iterations allowed per reply")
	flag.Bool("echo", false, "Log every line received from the module")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configPath), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	builder := esp.NewConfigBuilder().
		WithBudget(config.Budget).
		WithSettleDelay(config.SettleDelay).
		WithLogger(logger.With("component", "esp8266")).
		WithDialer(esp.SerialDialer{
			PortName: config.SerialPort,
			Mode: &serial.Mode{
				BaudRate: config.BaudRate,
				Parity:   serial.NoParity,
				DataBits: 8,
				StopBits: serial.OneStopBit,
			},
		})

	var echo *esp.LineLogger
	if config.Echo {
		echo = esp.NewLineLogger(logger.With("component", "echo"))
		builder = builder.WithObserver(echo)
	}

	deviceConfig, err := builder.Build()
	if err != nil {
		logger.Error("Failed to create device config", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	d, err := esp.New(ctx, deviceConfig)
	if err != nil {
		logger.Error("Failed to open device", "error", err)
		os.Exit(1)
	}

	if config.SSID != "" {
		if err := d.Init(ctx, config.SSID, config.Password); err != nil {
			logger.Error("Failed to initialize device", "error", err)
			d.Close()
			os.Exit(1)
		}
	}

	if config.ServerPort != 0 {
		if err := d.SetServer(ctx, config.ServerPort); err != nil {
			logger.Error("Failed to start TCP server", "error", err, "port", config.ServerPort)
			d.Close()
			os.Exit(1)
		}
	}

	logger.Info("Starting ESP8266 gateway", "state", d.State())

	worker := esp.NewWorker(d)
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- worker.Loop(ctx)
	}()

	go logEvents(ctx, logger.With("component", "events"), worker.Events())

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Worker: worker,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal or a dead worker
	loopStopped := false
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case err := <-loopDone:
		logger.Error("Worker stopped", "error", err)
		loopStopped = true
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	stop()
	if !loopStopped {
		<-loopDone
	}

	logger.Info("Closing device connection")
	if err := d.Close(); err != nil && !errors.Is(err, esp.ErrAlreadyClosed) {
		logger.Error("Failed to close device", "error", err)
	}
	if echo != nil {
		echo.Flush()
	}
}

// logEvents logs responses the worker saw while idle until ctx is done.
func logEvents(ctx context.Context, logger *slog.Logger, events <-chan at.Response) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-events:
			if resp.Kind == at.KindFrame {
				logger.Info("Frame received", "channel", resp.Frame.Channel, "length", resp.Frame.Length)
				continue
			}
			logger.Info("Unsolicited response", "kind", resp.Kind.String(), "token", resp.Token, "text", resp.Text)
		}
	}
}
