package control

import (
	"math"

	"github.com/pkg/errors"

	"github.com/stoecklihar/epuck2-firmware/paramtree"
)

// Limits holds the three cascade-wide saturation limits, each defaulting
// to +Inf ("no limit").
type Limits struct {
	MaxVelocity     *paramtree.Scalar
	MaxCurrent      *paramtree.Scalar
	MaxAcceleration *paramtree.Scalar
}

// DeclareLimits declares velocity_limit/torque_limit/acceleration_limit
// directly under ns (not a child namespace), matching the external
// parameter paths control/velocity_limit, control/torque_limit,
// control/acceleration_limit.
func DeclareLimits(ns *paramtree.Namespace) *Limits {
	inf := float32(math.Inf(1))
	return &Limits{
		MaxVelocity:     paramtree.DeclareScalar(ns, "velocity_limit", inf),
		MaxCurrent:      paramtree.DeclareScalar(ns, "torque_limit", inf),
		MaxAcceleration: paramtree.DeclareScalar(ns, "acceleration_limit", inf),
	}
}

// CascadeConfig configures a Cascade at construction time, as a plain
// struct with JSON tags so it can be loaded straight from a config file.
type CascadeConfig struct {
	BaseFrequencyHz float32 `json:"base_frequency_hz"`
	VelocityDivider int     `json:"velocity_divider"`
	PositionDivider int     `json:"position_divider"`
}

// Sensors bundles the three measurement getters a Cascade consumes. A nil
// getter is a valid, intentionally inert "unbound sensor" state.
type Sensors struct {
	Position Measurement
	Velocity Measurement
	Current  Measurement
}

// Cascade is the three-stage position/velocity/current controller. It
// exclusively owns its three Stages; it only references (never owns) the
// parameter-tree root and the sensor getters.
type Cascade struct {
	root *paramtree.Namespace

	StagePosition *Stage
	StageVelocity *Stage
	StageCurrent  *Stage

	Limits *Limits
	Mode   Mode

	sensors Sensors
	shaper  Shaper

	baseFrequencyHz float32
	logger          logger
}

// NewCascade builds a zeroed, Current-mode cascade bound under root
// ("control", or "control/left", etc.), with the given base tick
// frequency and per-stage prescaler dividers.
func NewCascade(root *paramtree.Namespace, cfg CascadeConfig, sensors Sensors, l logger) (*Cascade, error) {
	if cfg.BaseFrequencyHz <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "base frequency must be > 0, got %v", cfg.BaseFrequencyHz)
	}
	if cfg.VelocityDivider == 0 {
		cfg.VelocityDivider = 1
	}
	if cfg.PositionDivider == 0 {
		cfg.PositionDivider = 1
	}

	limits := DeclareLimits(root)

	posGains := DeclareGains(paramtree.DeclareNamespace(root, "position"))
	velGains := DeclareGains(paramtree.DeclareNamespace(root, "velocity"))
	curGains := DeclareGains(paramtree.DeclareNamespace(root, "current"))

	posStage, err := NewStage(posGains, cfg.BaseFrequencyHz, cfg.PositionDivider, sensors.Position, l)
	if err != nil {
		return nil, err
	}
	velStage, err := NewStage(velGains, cfg.BaseFrequencyHz, cfg.VelocityDivider, sensors.Velocity, l)
	if err != nil {
		return nil, err
	}
	curStage, err := NewStage(curGains, cfg.BaseFrequencyHz, 1, sensors.Current, l)
	if err != nil {
		return nil, err
	}

	return &Cascade{
		root:            root,
		StagePosition:   posStage,
		StageVelocity:   velStage,
		StageCurrent:    curStage,
		Limits:          limits,
		Mode:            Current,
		sensors:         sensors,
		baseFrequencyHz: cfg.BaseFrequencyHz,
		logger:          l,
	}, nil
}

// SetFrequency reconfigures the base tick frequency of all three stages.
func (c *Cascade) SetFrequency(baseFrequencyHz float32) error {
	if baseFrequencyHz <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "base frequency must be > 0, got %v", baseFrequencyHz)
	}
	c.baseFrequencyHz = baseFrequencyHz
	if err := c.StagePosition.SetFrequency(baseFrequencyHz); err != nil {
		return err
	}
	if err := c.StageVelocity.SetFrequency(baseFrequencyHz); err != nil {
		return err
	}
	return c.StageCurrent.SetFrequency(baseFrequencyHz)
}

// SetPrescaler changes the velocity and position stage dividers. Both are
// validated before either is applied.
func (c *Cascade) SetPrescaler(velocityDivider, positionDivider int) error {
	if velocityDivider < 1 || positionDivider < 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "dividers must be >= 1, got %d, %d", velocityDivider, positionDivider)
	}
	if err := c.StageVelocity.SetDivider(velocityDivider, c.baseFrequencyHz); err != nil {
		return err
	}
	return c.StagePosition.SetDivider(positionDivider, c.baseFrequencyHz)
}

// SetMode transitions the cascade to a new mode, seeding stage setpoints
// bumplessly so the outer loop doesn't see a setpoint discontinuity.
func (c *Cascade) SetMode(mode Mode) {
	switch mode {
	case Position:
		if c.Mode < Position {
			c.StagePosition.Setpoint = c.StagePosition.ReadMeasurement()
			c.StageVelocity.TargetSetpoint = c.StageVelocity.ReadMeasurement()
		}
	case Velocity:
		if c.Mode < Velocity {
			c.StageVelocity.Setpoint = c.StageVelocity.ReadMeasurement()
		}
	case Current:
		// No seeding.
	}
	if c.logger != nil {
		c.logger.Debugw("mode transition", "from", c.Mode.String(), "to", mode.String())
	}
	c.Mode = mode
}

// SetTargetPosition sets the externally requested position target that the
// shaper chases while in Position mode.
func (c *Cascade) SetTargetPosition(v float32) { c.StagePosition.TargetSetpoint = v }

// SetTargetVelocity sets the externally requested velocity target used by
// the shaper's feedforward (Position mode) or the slew ramp (Velocity mode).
func (c *Cascade) SetTargetVelocity(v float32) { c.StageVelocity.TargetSetpoint = v }

// SetTargetCurrent sets the externally requested current target, which
// overrides the cascade's own current setpoint while in Current mode.
func (c *Cascade) SetTargetCurrent(v float32) { c.StageCurrent.TargetSetpoint = v }

// Process runs exactly one tick of the cascade at the base frequency,
// through the fixed, totally ordered position -> velocity -> current
// pipeline, and returns the current-loop PID output (the actuator
// command).
func (c *Cascade) Process() float32 {
	c.StagePosition.RefreshGains()
	c.StageVelocity.RefreshGains()
	c.StageCurrent.RefreshGains()

	maxVelocity := c.Limits.MaxVelocity.Get()
	maxAcceleration := c.Limits.MaxAcceleration.Get()
	maxCurrent := c.Limits.MaxCurrent.Get()

	// 2. Position stage.
	if c.Mode >= Position && c.StagePosition.ShouldRun() {
		deltaT := 1 / c.StagePosition.PID.Frequency()
		acc := c.shaper.Next(
			c.StagePosition.Setpoint,
			c.StageVelocity.TargetSetpoint,
			c.StagePosition.TargetSetpoint,
			deltaT, maxVelocity, maxAcceleration,
		)
		c.StagePosition.Setpoint, c.StageVelocity.TargetSetpoint = c.shaper.Integrate(
			c.StagePosition.Setpoint, c.StageVelocity.TargetSetpoint, acc, deltaT,
		)

		position := c.StagePosition.ReadMeasurement()
		c.StagePosition.Error = position - c.StagePosition.Setpoint
		c.StageVelocity.Setpoint = c.StageVelocity.TargetSetpoint + c.StagePosition.PID.Process(c.StagePosition.Error)
	}

	// 3. Velocity-only slewing: every base tick, mode-gated to Velocity only.
	// delta_t here is always 1/base_frequency, not 1/velocity.pid.frequency,
	// so the slew rate stays prescaler-independent.
	if c.Mode == Velocity {
		deltaT := 1 / c.baseFrequencyHz
		c.StageVelocity.TargetSetpoint = limitSymmetric(c.StageVelocity.TargetSetpoint, maxVelocity)
		deltaVelocity := c.StageVelocity.TargetSetpoint - c.StageVelocity.Setpoint
		deltaVelocity = limitSymmetric(deltaVelocity, deltaT*maxAcceleration)
		c.StageVelocity.Setpoint += deltaVelocity
	}

	// 4. Velocity stage.
	if c.Mode >= Velocity && c.StageVelocity.ShouldRun() {
		velocity := c.StageVelocity.ReadMeasurement()
		c.StageVelocity.Error = velocity - c.StageVelocity.Setpoint
		c.StageCurrent.Setpoint = c.StageVelocity.PID.Process(c.StageVelocity.Error)
	}

	// 5. Current stage, every tick.
	if c.Mode == Current {
		c.StageCurrent.Setpoint = c.StageCurrent.TargetSetpoint
	}
	c.StageCurrent.Setpoint = limitSymmetric(c.StageCurrent.Setpoint, maxCurrent)

	current := c.StageCurrent.ReadMeasurement()
	c.StageCurrent.Error = current - c.StageCurrent.Setpoint

	return c.StageCurrent.PID.Process(c.StageCurrent.Error)
}
