package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"sleepywoodpecker/rp-goes-volts/internal/processing"
	"sleepywoodpecker/rp-goes-volts/internal/scope"
)

const (
	SourceSerial    = "serial"
	SourceGenerator = "generator"
)

type Config struct {
	Source       SourceConfig    `yaml:"source"`
	Capture      CaptureConfig   `yaml:"capture"`
	Display      DisplayConfig   `yaml:"display"`
	Telemetry    TelemetryConfig `yaml:"telemetry"`
	SettingsPath string          `yaml:"settings_path"`
	RawLogPath   string          `yaml:"raw_log_path"`
	LogFile      string          `yaml:"log_file"`
}

type SourceConfig struct {
	Kind      string  `yaml:"kind"`
	Port      string  `yaml:"port"`
	BaudRate  int     `yaml:"baudrate"`
	QueueSize int     `yaml:"queue_size"`
	Frequency float64 `yaml:"generator_frequency_hz"`
	Amplitude float32 `yaml:"generator_amplitude"`
}

type CaptureConfig struct {
	SampleRateHz     float32 `yaml:"sample_rate_hz"`
	Time             float32 `yaml:"time"`
	TriggerThreshold float32 `yaml:"trigger_threshold"`
	XChannel         int     `yaml:"x_channel"`
	YChannel         int     `yaml:"y_channel"`
}

type DisplayConfig struct {
	RefreshHz int `yaml:"refresh_hz"`
}

type TelemetryConfig struct {
	UDPAddr string `yaml:"udp_addr"`
}

func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:      SourceGenerator,
			BaudRate:  460800,
			QueueSize: 4096,
			Frequency: 220,
			Amplitude: 5,
		},
		Capture: CaptureConfig{
			SampleRateHz: 44100,
			Time:         -10,
			XChannel:     0,
			YChannel:     1,
		},
		Display: DisplayConfig{
			RefreshHz: 30,
		},
		SettingsPath: "volts.json",
		LogFile:      "volts.logs",
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case SourceGenerator:
		if c.Source.Frequency <= 0 {
			errs = append(errs, errors.New("source.generator_frequency_hz must be positive"))
		}
	case SourceSerial:
		if c.Source.Port == "" {
			errs = append(errs, errors.New("source.port is required for serial sources"))
		}
		if c.Source.BaudRate <= 0 {
			errs = append(errs, errors.New("source.baudrate must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.kind %q", c.Source.Kind))
	}
	if c.Source.QueueSize <= 0 {
		errs = append(errs, errors.New("source.queue_size must be positive"))
	}

	if c.Capture.SampleRateHz <= 0 {
		errs = append(errs, errors.New("capture.sample_rate_hz must be positive"))
	}
	if c.Capture.Time < scope.MinTime || c.Capture.Time > scope.MaxTime {
		errs = append(errs, fmt.Errorf("capture.time must be in [%v, %v]", scope.MinTime, scope.MaxTime))
	}
	if !validChannel(c.Capture.XChannel) {
		errs = append(errs, fmt.Errorf("capture.x_channel must be in [0, %d)", processing.NumReadingsPerPacket))
	}
	if !validChannel(c.Capture.YChannel) {
		errs = append(errs, fmt.Errorf("capture.y_channel must be in [0, %d)", processing.NumReadingsPerPacket))
	}

	if c.Display.RefreshHz <= 0 {
		errs = append(errs, errors.New("display.refresh_hz must be positive"))
	}

	if err := multierr.Combine(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CaptureParams publishes one live frame per display refresh.
func (c *Config) CaptureParams() processing.CaptureParams {
	return processing.CaptureParams{
		SampleRate:   c.Capture.SampleRateHz,
		Time:         c.Capture.Time,
		Threshold:    c.Capture.TriggerThreshold,
		XChannel:     c.Capture.XChannel,
		YChannel:     c.Capture.YChannel,
		PublishEvery: int(math.Ceil(float64(c.Capture.SampleRateHz) / float64(c.Display.RefreshHz))),
	}
}

func validChannel(ch int) bool {
	return ch >= 0 && ch < processing.NumReadingsPerPacket
}
