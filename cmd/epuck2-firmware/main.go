// Command epuck2-firmware starts the dual-wheel cascaded motor controller.
// With -fake it drives a dependency-free in-memory plant instead of real
// GPIO, for local development and manual smoke testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"

	"github.com/stoecklihar/epuck2-firmware/drivetrain"
	"github.com/stoecklihar/epuck2-firmware/hal"
	"github.com/stoecklihar/epuck2-firmware/logging"
	"github.com/stoecklihar/epuck2-firmware/paramtree"
)

// fileConfig is the on-disk configuration, read once at startup. It mirrors
// drivetrain.Config plus the GPIO pin names needed to stand up the real HAL.
type fileConfig struct {
	drivetrain.Config
	LeftEncoderA  string `json:"left_encoder_a"`
	LeftEncoderB  string `json:"left_encoder_b"`
	RightEncoderA string `json:"right_encoder_a"`
	RightEncoderB string `json:"right_encoder_b"`
	LeftDirPin    string `json:"left_dir_pin"`
	LeftPWMPin    string `json:"left_pwm_pin"`
	RightDirPin   string `json:"right_dir_pin"`
	RightPWMPin   string `json:"right_pwm_pin"`
	TicksPerRev   float32 `json:"ticks_per_revolution"`
	PWMFrequencyHz float32 `json:"pwm_frequency_hz"`
}

func defaultConfig() fileConfig {
	return fileConfig{
		Config: drivetrain.Config{
			BaseFrequencyHz: 1000,
			VelocityDivider: 10,
			PositionDivider: 100,
		},
		TicksPerRev:    2048,
		PWMFrequencyHz: 20000,
	}
}

func loadConfig(path string) (fileConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, errors.Wrap(err, "read config file")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, errors.Wrap(err, "parse config file")
	}
	return cfg, nil
}

func main() {
	logger := logging.NewLogger("epuck2-firmware")

	configPath := flag.String("config", "", "path to a JSON config file")
	fake := flag.Bool("fake", false, "drive an in-memory fake plant instead of real GPIO")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Errorw("failed to load config", "error", err)
		os.Exit(1)
	}

	root := paramtree.NewRoot("control")

	var sink drivetrain.ActuatorSink
	var leftSensors, rightSensors drivetrain.Sensors
	var segway drivetrain.SegwaySource

	if *fake {
		board := hal.NewFakeBoard(1.0 / cfg.BaseFrequencyHz)
		sink = board
		leftSensors = drivetrain.Sensors{
			Position: board.Left.Position,
			Velocity: board.Left.Velocity,
			Current:  board.Left.Current,
		}
		rightSensors = drivetrain.Sensors{
			Position: board.Right.Position,
			Velocity: board.Right.Velocity,
			Current:  board.Right.Current,
		}
		if cfg.SegwayEnabled {
			segway = &hal.FakePitchSource{}
		}
	} else {
		if err := hal.InitHost(); err != nil {
			logger.Errorw("failed to init gpio host", "error", err)
			os.Exit(1)
		}

		leftEncoder, err := hal.NewQuadratureEncoder(cfg.LeftEncoderA, cfg.LeftEncoderB, cfg.TicksPerRev)
		if err != nil {
			logger.Errorw("failed to open left encoder", "error", err)
			os.Exit(1)
		}
		defer leftEncoder.Close()

		rightEncoder, err := hal.NewQuadratureEncoder(cfg.RightEncoderA, cfg.RightEncoderB, cfg.TicksPerRev)
		if err != nil {
			logger.Errorw("failed to open right encoder", "error", err)
			os.Exit(1)
		}
		defer rightEncoder.Close()

		motors, err := hal.NewPWMMotorSink(
			cfg.LeftDirPin, cfg.LeftPWMPin,
			cfg.RightDirPin, cfg.RightPWMPin,
			physic.Frequency(cfg.PWMFrequencyHz)*physic.Hertz,
		)
		if err != nil {
			logger.Errorw("failed to open motor pins", "error", err)
			os.Exit(1)
		}
		sink = motors

		leftSensors = drivetrain.Sensors{Position: leftEncoder.Position, Velocity: leftEncoder.Velocity}
		rightSensors = drivetrain.Sensors{Position: rightEncoder.Position, Velocity: rightEncoder.Velocity}
		// No real current (ADC) acquisition in this binary's scope; the
		// current stage silently degrades to the unbound-sensor default.
	}

	dw, err := drivetrain.New(root, cfg.Config, leftSensors, rightSensors, sink, segway, clock.New(), logger)
	if err != nil {
		logger.Errorw("failed to build drivetrain", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dw.Start(ctx)
	logger.Infow("drivetrain running", "base_frequency_hz", cfg.BaseFrequencyHz, "fake", *fake)

	<-ctx.Done()
	logger.Infow("shutting down")
	if err := dw.Close(context.Background()); err != nil {
		logger.Errorw("error during shutdown", "error", err)
	}
}
