package hal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/stoecklihar/epuck2-firmware/control"
)

// InitHost initializes the periph.io host drivers once for the process.
// It must be called before QuadratureEncoder or PWMMotorSink are
// constructed against real pin names.
func InitHost() error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "periph host init")
	}
	return nil
}

// QuadratureEncoder publishes measurement_position/measurement_velocity
// from a two-channel quadrature signal: a single background goroutine
// watches the A channel for edges, uses the B channel's level to
// determine direction, and publishes an atomic tick count plus a
// windowed velocity estimate — the Go equivalent of the original
// firmware's interrupt-driven encoder ISR publishing into a shared
// snapshot.
type QuadratureEncoder struct {
	pinA, pinB     gpio.PinIO
	ticksPerRev    float32
	radiansPerTick float32

	ticks    atomic.Int64
	stopCh   chan struct{}
	stopOnce sync.Once

	mu           sync.Mutex
	lastTicks    int64
	lastSampleAt time.Time
	velocity     float32
}

// NewQuadratureEncoder opens pinA/pinB by periph.io name (e.g. "GPIO5",
// "GPIO6") and starts the background edge-watcher goroutine. ticksPerRev
// converts encoder ticks to radians for measurement_position.
func NewQuadratureEncoder(pinAName, pinBName string, ticksPerRev float32) (*QuadratureEncoder, error) {
	pinA := gpioreg.ByName(pinAName)
	if pinA == nil {
		return nil, errors.Errorf("no such gpio pin: %s", pinAName)
	}
	pinB := gpioreg.ByName(pinBName)
	if pinB == nil {
		return nil, errors.Errorf("no such gpio pin: %s", pinBName)
	}
	if err := pinA.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return nil, errors.Wrap(err, "configure encoder channel A")
	}
	if err := pinB.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, errors.Wrap(err, "configure encoder channel B")
	}

	const twoPi = 6.2831853
	e := &QuadratureEncoder{
		pinA:           pinA,
		pinB:           pinB,
		ticksPerRev:    ticksPerRev,
		radiansPerTick: twoPi / ticksPerRev,
		stopCh:         make(chan struct{}),
		lastSampleAt:   time.Now(),
	}
	go e.watch()
	return e, nil
}

func (e *QuadratureEncoder) watch() {
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}
		if !e.pinA.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		if e.pinB.Read() == gpio.High {
			e.ticks.Add(1)
		} else {
			e.ticks.Add(-1)
		}
	}
}

// Close stops the background edge-watcher goroutine.
func (e *QuadratureEncoder) Close() error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	return nil
}

// Position implements control.Measurement: measurement_position in
// radians, monotonically integrated from the tick count.
func (e *QuadratureEncoder) Position() float32 {
	return float32(e.ticks.Load()) * e.radiansPerTick
}

// Velocity implements control.Measurement: measurement_velocity in
// radians/second, estimated over the window since the previous call.
func (e *QuadratureEncoder) Velocity() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	ticks := e.ticks.Load()
	dt := now.Sub(e.lastSampleAt).Seconds()
	if dt > 0 {
		e.velocity = float32(float64(ticks-e.lastTicks)*float64(e.radiansPerTick)/dt)
	}
	e.lastTicks = ticks
	e.lastSampleAt = now
	return e.velocity
}

// pwmSink drives one wheel's direction pin plus a PWM-capable duty-cycle
// pin, implementing the signed [-1, 1] duty cycle contract (the sink, not
// the core, is responsible for saturation to PWM range and sign
// conventions).
type pwmSink struct {
	dir gpio.PinIO
	pwm gpio.PinIO
	freq physic.Frequency
}

// PWMMotorSink drives two wheels' direction+PWM GPIO pairs, implementing
// drivetrain.ActuatorSink against real periph.io-backed hardware.
type PWMMotorSink struct {
	left, right pwmSink
}

// NewPWMMotorSink opens the direction and PWM pin pairs for both wheels by
// periph.io pin name.
func NewPWMMotorSink(leftDir, leftPWM, rightDir, rightPWM string, pwmFreq physic.Frequency) (*PWMMotorSink, error) {
	open := func(dirName, pwmName string) (pwmSink, error) {
		dir := gpioreg.ByName(dirName)
		if dir == nil {
			return pwmSink{}, errors.Errorf("no such gpio pin: %s", dirName)
		}
		pwmPin := gpioreg.ByName(pwmName)
		if pwmPin == nil {
			return pwmSink{}, errors.Errorf("no such gpio pin: %s", pwmName)
		}
		return pwmSink{dir: dir, pwm: pwmPin, freq: pwmFreq}, nil
	}

	left, err := open(leftDir, leftPWM)
	if err != nil {
		return nil, err
	}
	right, err := open(rightDir, rightPWM)
	if err != nil {
		return nil, err
	}
	return &PWMMotorSink{left: left, right: right}, nil
}

// SetMotorCommand implements drivetrain.ActuatorSink: value is clamped to
// [-1, 1], the sign sets the direction pin, and the magnitude sets the
// PWM duty cycle.
func (s *PWMMotorSink) SetMotorCommand(side control.Side, value float32) error {
	sink := s.left
	if side == control.Right {
		sink = s.right
	}

	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}

	level := gpio.High
	if value < 0 {
		level = gpio.Low
		value = -value
	}
	if err := sink.dir.Out(level); err != nil {
		return errors.Wrap(err, "set direction pin")
	}

	duty := gpio.Duty(value * float32(gpio.DutyMax))
	if err := sink.pwm.PWM(duty, sink.freq); err != nil {
		return errors.Wrap(err, "set pwm duty cycle")
	}
	return nil
}
