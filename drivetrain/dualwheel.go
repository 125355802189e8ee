// Package drivetrain binds two independent control.Cascade instances to
// the left/right wheels and provides the periodic driver that ticks both
// at the base rate and is the sole writer of wheel actuator commands.
package drivetrain

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/stoecklihar/epuck2-firmware/control"
	"github.com/stoecklihar/epuck2-firmware/logging"
	"github.com/stoecklihar/epuck2-firmware/paramtree"
)

// ActuatorSink is the sole external effect of the drivetrain: it writes
// the per-wheel current-loop PID output (plus any additive segway
// feedforward) to the motor driver. Saturation to PWM range and sign
// conventions are the sink's responsibility.
type ActuatorSink interface {
	SetMotorCommand(side control.Side, value float32) error
}

// Sensors groups the getters for one wheel.
type Sensors = control.Sensors

// SegwaySource supplies pitch/pitch-rate for the optional segway voltage
// feedforward. A nil source disables segway mode entirely.
type SegwaySource interface {
	Pitch() float32
	PitchRate() float32
}

// Config configures a DualWheel driver.
type Config struct {
	BaseFrequencyHz float32 `json:"base_frequency_hz"`
	VelocityDivider int     `json:"velocity_divider"`
	PositionDivider int     `json:"position_divider"`
	SegwayEnabled   bool    `json:"segway_enabled"`
}

// DualWheel owns two Cascade instances bound under "control/left" and
// "control/right", and the periodic task that ticks both and writes to
// the actuator sink.
type DualWheel struct {
	Left  *control.Cascade
	Right *control.Cascade

	sink   ActuatorSink
	segway SegwaySource
	clk    clock.Clock
	logger logging.Logger

	baseFrequencyHz float32

	activeBackgroundWorkers sync.WaitGroup
	cancel                  context.CancelFunc
}

// New builds a DualWheel bound under root ("control"), wiring leftSensors/
// rightSensors to the respective cascade. clk is injectable so tests can
// drive ticks deterministically with clock.NewMock(); production callers
// pass clock.New().
func New(
	root *paramtree.Namespace,
	cfg Config,
	leftSensors, rightSensors Sensors,
	sink ActuatorSink,
	segway SegwaySource,
	clk clock.Clock,
	l logging.Logger,
) (*DualWheel, error) {
	cascadeCfg := control.CascadeConfig{
		BaseFrequencyHz: cfg.BaseFrequencyHz,
		VelocityDivider: cfg.VelocityDivider,
		PositionDivider: cfg.PositionDivider,
	}

	leftNS := paramtree.DeclareNamespace(root, "left")
	rightNS := paramtree.DeclareNamespace(root, "right")

	left, err := control.NewCascade(leftNS, cascadeCfg, leftSensors, l.Named("left"))
	if err != nil {
		return nil, err
	}
	right, err := control.NewCascade(rightNS, cascadeCfg, rightSensors, l.Named("right"))
	if err != nil {
		return nil, err
	}

	if !cfg.SegwayEnabled {
		segway = nil
	}

	return &DualWheel{
		Left:            left,
		Right:           right,
		sink:            sink,
		segway:          segway,
		clk:             clk,
		logger:          l,
		baseFrequencyHz: cfg.BaseFrequencyHz,
	}, nil
}

// SetMode transitions both wheels to the same mode simultaneously.
func (d *DualWheel) SetMode(mode control.Mode) {
	d.Left.SetMode(mode)
	d.Right.SetMode(mode)
}

// Tick runs exactly one base-frequency tick of both cascades, in a fixed
// left-then-right order, and writes the resulting command (plus segway
// feedforward, if enabled) to the actuator sink. It is the only thing
// called by the periodic task, and never blocks or sleeps.
func (d *DualWheel) Tick() error {
	leftOut := d.Left.Process()
	rightOut := d.Right.Process()

	if d.segway != nil {
		gains := control.DefaultSegwayGains()
		pitch := d.segway.Pitch()
		pitchRate := d.segway.PitchRate()
		leftOut += control.SegwayFeedforward(gains, control.Left, pitch, pitchRate, d.Left.StageVelocity.ReadMeasurement())
		rightOut += control.SegwayFeedforward(gains, control.Right, pitch, pitchRate, d.Right.StageVelocity.ReadMeasurement())
	}

	leftErr := d.sink.SetMotorCommand(control.Left, leftOut)
	rightErr := d.sink.SetMotorCommand(control.Right, rightOut)
	return multierr.Combine(leftErr, rightErr)
}

// Start launches the periodic background task that ticks both cascades at
// baseFrequencyHz. The background goroutine is launched through
// utils.PanicCapturingGo so a panic inside the tick loop is reported
// rather than silently killing the process, and its lifetime is tracked
// by activeBackgroundWorkers so Stop can wait for a clean exit. Start is
// not safe to call twice without an intervening Stop.
func (d *DualWheel) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	period := time.Duration(float64(time.Second) / float64(d.baseFrequencyHz))
	ticker := d.clk.Ticker(period)

	d.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer d.activeBackgroundWorkers.Done()
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := d.Tick(); err != nil {
					d.logger.Errorw("actuator sink error", "error", err)
				}
			}
		}
	})
}

// Stop halts the periodic task and waits for it to exit.
func (d *DualWheel) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.activeBackgroundWorkers.Wait()
}

// Close releases the drivetrain's resources. It stops the periodic task
// (if running) and reports no error of its own; it exists so callers that
// hold a DualWheel behind an io.Closer-shaped interface have a uniform
// teardown path.
func (d *DualWheel) Close(ctx context.Context) error {
	d.Stop()
	return nil
}
