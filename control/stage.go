package control

import (
	"math"

	"github.com/pkg/errors"

	"github.com/stoecklihar/epuck2-firmware/paramtree"
)

// Gains is the { kp, ki, kd, i_limit } parameter bundle bound under a
// namespace such as "control/position".
type Gains struct {
	Kp     *paramtree.Scalar
	Ki     *paramtree.Scalar
	Kd     *paramtree.Scalar
	ILimit *paramtree.Scalar
}

// DeclareGains declares the four scalar parameters kp/ki/kd/i_limit under
// ns, with defaults 0,0,0,+Inf.
func DeclareGains(ns *paramtree.Namespace) *Gains {
	inf := float32(math.Inf(1))
	return &Gains{
		Kp:     paramtree.DeclareScalar(ns, "kp", 0),
		Ki:     paramtree.DeclareScalar(ns, "ki", 0),
		Kd:     paramtree.DeclareScalar(ns, "kd", 0),
		ILimit: paramtree.DeclareScalar(ns, "i_limit", inf),
	}
}

// Measurement is the getter signature shared by position, velocity, and
// current measurements. A nil Measurement is a valid, intentional "unbound
// sensor" state: the stage reads 0.0 rather than failing.
type Measurement func() float32

// Stage is a reusable cascade stage: a PID, its gain binding, a
// prescaler, and the measurement it regulates.
type Stage struct {
	PID    *PID
	Gains  *Gains
	logger logger

	Divider        int
	dividerCounter int

	Setpoint       float32
	TargetSetpoint float32
	Error          float32

	Measurement Measurement
}

type logger interface {
	Debugw(msg string, keysAndValues ...interface{})
}

// NewStage builds a stage whose PID runs at frequencyHz/divider (the
// divider scales the stage's effective frequency, not the base tick rate
// it is called from).
func NewStage(gains *Gains, baseFrequencyHz float32, divider int, get Measurement, l logger) (*Stage, error) {
	if divider < 1 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "divider must be >= 1, got %d", divider)
	}
	pid, err := NewPID(gains.Kp.Get(), gains.Ki.Get(), gains.Kd.Get(), baseFrequencyHz/float32(divider))
	if err != nil {
		return nil, err
	}
	pid.SetIntegralLimit(gains.ILimit.Get())
	return &Stage{
		PID:         pid,
		Gains:       gains,
		Divider:     divider,
		Measurement: get,
		logger:      l,
	}, nil
}

// SetFrequency reconfigures the stage's PID to baseFrequencyHz/Divider.
func (s *Stage) SetFrequency(baseFrequencyHz float32) error {
	return s.PID.SetFrequency(baseFrequencyHz / float32(s.Divider))
}

// SetDivider changes the prescaler divider and resets the phase counter,
// keeping 0 <= divider_counter < divider.
func (s *Stage) SetDivider(divider int, baseFrequencyHz float32) error {
	if divider < 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "divider must be >= 1, got %d", divider)
	}
	s.Divider = divider
	s.dividerCounter = 0
	return s.SetFrequency(baseFrequencyHz)
}

// RefreshGains is called once per base tick regardless of whether the
// stage executes this tick: if any of kp/ki/kd changed, the PID's gains
// (and integrator) are reset; if i_limit changed, the clamp is applied
// immediately without touching the integrator value otherwise.
func (s *Stage) RefreshGains() {
	kpChanged := s.Gains.Kp.Changed()
	kiChanged := s.Gains.Ki.Changed()
	kdChanged := s.Gains.Kd.Changed()
	if kpChanged || kiChanged || kdChanged {
		kp, ki, kd := s.Gains.Kp.Get(), s.Gains.Ki.Get(), s.Gains.Kd.Get()
		s.PID.SetGains(kp, ki, kd)
		if s.logger != nil {
			s.logger.Debugw("gains reloaded, integrator reset", "kp", kp, "ki", ki, "kd", kd)
		}
	}
	if s.Gains.ILimit.Changed() {
		s.PID.SetIntegralLimit(s.Gains.ILimit.Get())
	}
}

// ShouldRun increments the divider counter and reports whether the stage's
// inner pipeline is due to execute this tick, guaranteeing execution every
// Divider ticks exactly.
func (s *Stage) ShouldRun() bool {
	s.dividerCounter++
	if s.dividerCounter >= s.Divider {
		s.dividerCounter = 0
		return true
	}
	return false
}

// ReadMeasurement returns 0.0 if no getter is bound (silent degrade, not a
// fault), otherwise the getter's value.
func (s *Stage) ReadMeasurement() float32 {
	if s.Measurement == nil {
		return 0
	}
	return s.Measurement()
}
