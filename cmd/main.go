package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sleepywoodpecker/rp-goes-volts/internal/config"
	"sleepywoodpecker/rp-goes-volts/internal/logger"
	"sleepywoodpecker/rp-goes-volts/internal/processing"
	rserial "sleepywoodpecker/rp-goes-volts/internal/rSerial"
	"sleepywoodpecker/rp-goes-volts/internal/scope"
)

const CONFIG_PATH = "volts.yaml"

var STOP_SEQUENCE = processing.StopSequence[:]

func main() {
	cfgPath := flag.String("config", CONFIG_PATH, "path to the yaml config")
	reset := flag.Bool("reset", false, "reset persisted settings to their defaults")
	lissajous := flag.Bool("lissajous", false, "start in lissajous (free-running) mode")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(*cfgPath); err == nil {
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// first initialize the main logger
	logger, closeLog, err := logger.NewLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = run(cfg, *reset, *lissajous, logger)
	if err != nil {
		logger.Error("[main] exiting with error", zap.Error(err))
	}
	logger.Sync()
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, reset, lissajous bool, logger *zap.Logger) (retErr error) {
	// context handler for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var settings scope.Settings
	if err := settings.LoadFile(cfg.SettingsPath); err != nil {
		logger.Warn("[main] could not load settings, using defaults", zap.Error(err), zap.String("path", cfg.SettingsPath))
	}
	if reset {
		settings.Reset()
	}
	if lissajous {
		settings.Lissajous = true
	}

	engine := scope.NewEngine()
	engine.SetMode(settings.Mode())
	defer func() {
		settings.Lissajous = engine.Lissajous()
		retErr = multierr.Append(retErr, settings.SaveFile(cfg.SettingsPath))
	}()

	// initialize UDP connection to telegraf
	var telemetry io.Writer
	if cfg.Telemetry.UDPAddr != "" {
		udpAddr, err := net.ResolveUDPAddr("udp", cfg.Telemetry.UDPAddr)
		if err != nil {
			return fmt.Errorf("resolve telemetry addr: %w", err)
		}
		udpConn, err := net.DialUDP("udp", nil, udpAddr)
		if err != nil {
			return fmt.Errorf("dial telemetry: %w", err)
		}
		defer func() { retErr = multierr.Append(retErr, udpConn.Close()) }()
		telemetry = udpConn
	}

	var rawLog io.Writer
	if cfg.RawLogPath != "" {
		file, err := os.OpenFile(cfg.RawLogPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("open raw log: %w", err)
		}
		writer := bufio.NewWriter(file)
		defer func() {
			retErr = multierr.Append(retErr, writer.Flush())
			retErr = multierr.Append(retErr, file.Close())
		}()
		rawLog = writer
	}

	messageQueue := make(chan []byte, cfg.Source.QueueSize)
	frames := processing.NewFrameStore()
	processor := processing.NewProcessor(messageQueue, logger, engine, frames, cfg.CaptureParams(), rawLog)
	sampler := processing.NewSampler(time.Second/time.Duration(cfg.Display.RefreshHz), frames, telemetry, logger)

	var sourceRun func(context.Context) error
	switch cfg.Source.Kind {
	case config.SourceSerial:
		port, err := rserial.NewRSerial(cfg.Source.Port, cfg.Source.BaudRate, messageQueue, logger, processing.FrameSize, STOP_SEQUENCE)
		if err != nil {
			return err
		}
		defer func() { retErr = multierr.Append(retErr, port.Close()) }()
		sourceRun = port.Run
	default:
		gen := processing.NewGenerator(messageQueue, logger, float64(cfg.Capture.SampleRateHz), cfg.Source.Frequency, cfg.Source.Amplitude)
		sourceRun = func(ctx context.Context) error {
			gen.Run(ctx)
			return nil
		}
	}

	logger.Info("[main] starting capture",
		zap.String("source", cfg.Source.Kind),
		zap.Float32("sampleRate", cfg.Capture.SampleRateHz),
		zap.Float32("time", cfg.Capture.Time),
		zap.Int("framesPerSample", scope.FramesPerSample(cfg.Capture.SampleRateHz, cfg.Capture.Time)),
		zap.Stringer("mode", engine.Mode()),
	)

	// run everything
	var wg sync.WaitGroup
	var sourceErr error
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := sourceRun(ctx); err != nil {
			sourceErr = err
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		processor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sampler.Run(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	return sourceErr
}
