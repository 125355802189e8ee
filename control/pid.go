// Package control implements the cascaded position/velocity/current motor
// controller: a single-input single-output PID primitive, a parameter-bound
// gain bundle, a prescaled cascade stage, a bang-bang motion shaper, the
// three-stage cascade controller itself, and the segway voltage
// feedforward. All arithmetic is single-precision float32, matching the
// firmware's original fixed sample-rate control loop.
package control

import (
	"math"

	"github.com/pkg/errors"
)

// PID is a discrete single-input single-output PID controller. It carries
// no external dependency: Process is a pure function of its own state.
type PID struct {
	kp, ki, kd float32
	iLimit     float32
	frequency  float32

	integrator    float32
	previousError float32
}

// NewPID returns a PID with the given gains, running at frequencyHz, with
// no integral clamp (i_limit = +Inf). frequencyHz must be > 0.
func NewPID(kp, ki, kd, frequencyHz float32) (*PID, error) {
	p := &PID{iLimit: float32(math.Inf(1))}
	if err := p.SetFrequency(frequencyHz); err != nil {
		return nil, err
	}
	p.kp, p.ki, p.kd = kp, ki, kd
	return p, nil
}

// Process runs one controller step: integrates error/frequency (clamped to
// ±i_limit), differentiates by backward difference scaled by frequency, and
// returns kp*error + ki*integrator + kd*derivative. NaN in error propagates
// to the output — it is never masked.
func (p *PID) Process(errVal float32) float32 {
	p.integrator += errVal / p.frequency
	p.integrator = limitSymmetric(p.integrator, p.iLimit)

	derivative := (errVal - p.previousError) * p.frequency
	p.previousError = errVal

	return p.kp*errVal + p.ki*p.integrator + p.kd*derivative
}

// SetGains replaces kp/ki/kd and resets the integrator to 0, so a gain
// change never carries over a windup state computed under the old gains.
func (p *PID) SetGains(kp, ki, kd float32) {
	p.kp, p.ki, p.kd = kp, ki, kd
	p.integrator = 0
}

// SetIntegralLimit changes the symmetric integral clamp and immediately
// re-clamps the current integrator to the new bound.
func (p *PID) SetIntegralLimit(limit float32) {
	p.iLimit = limit
	p.integrator = limitSymmetric(p.integrator, p.iLimit)
}

// SetFrequency changes the controller's sample frequency. frequencyHz must
// be strictly positive; otherwise the previous frequency is kept and an
// InvalidConfiguration error is returned.
func (p *PID) SetFrequency(frequencyHz float32) error {
	if frequencyHz <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "frequency must be > 0, got %v", frequencyHz)
	}
	p.frequency = frequencyHz
	return nil
}

// Frequency returns the controller's current sample frequency.
func (p *PID) Frequency() float32 { return p.frequency }

// Reset zeroes the integrator and the previous-error sample, leaving gains
// and frequency untouched.
func (p *PID) Reset() {
	p.integrator = 0
	p.previousError = 0
}

// Integrator exposes the current accumulator value, mainly for tests
// asserting the windup-clamp invariant.
func (p *PID) Integrator() float32 { return p.integrator }

func limitSymmetric(value, limit float32) float32 {
	if value > limit {
		return limit
	}
	if value < -limit {
		return -limit
	}
	return value
}
