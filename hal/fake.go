// Package hal provides the concrete sensor-getter and actuator-sink
// adapters that stand in for the acquisition threads, IMU, and board
// bring-up code a full firmware image would also carry. The core
// (package control, drivetrain) depends only on the narrow
// function-typed getters and the ActuatorSink interface; hal supplies
// both a dependency-free fake (this file) and a periph.io-backed real
// implementation (periph.go).
package hal

import (
	"sync"

	"github.com/stoecklihar/epuck2-firmware/control"
)

// FakeWheelState is the in-memory physical state of one simulated wheel.
type FakeWheelState struct {
	mu       sync.Mutex
	position float32
	velocity float32
	current  float32
}

// Position returns measurement_position.
func (s *FakeWheelState) Position() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Velocity returns measurement_velocity.
func (s *FakeWheelState) Velocity() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocity
}

// Current returns measurement_current.
func (s *FakeWheelState) Current() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Drive advances the simulated wheel by one step: velocity is a first
// order lag toward a value proportional to the commanded current, and
// position integrates velocity. This is a crude plant model, only good
// enough to exercise the cascade end-to-end in tests; it is not a
// physically accurate motor/wheel simulation.
func (s *FakeWheelState) Drive(commandedCurrent, deltaT float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = commandedCurrent
	targetVelocity := commandedCurrent * 10
	s.velocity += (targetVelocity - s.velocity) * deltaT * 5
	s.position += s.velocity * deltaT
}

// FakeBoard is a dependency-free ActuatorSink backed by two FakeWheelState
// instances, used in tests and by cmd/epuck2-firmware -fake.
type FakeBoard struct {
	Left, Right FakeWheelState
	deltaT      float32
}

// NewFakeBoard returns a FakeBoard whose Drive steps assume tickPeriodS
// seconds between SetMotorCommand calls.
func NewFakeBoard(tickPeriodS float32) *FakeBoard {
	return &FakeBoard{deltaT: tickPeriodS}
}

// SetMotorCommand implements drivetrain.ActuatorSink.
func (b *FakeBoard) SetMotorCommand(side control.Side, value float32) error {
	if side == control.Left {
		b.Left.Drive(value, b.deltaT)
	} else {
		b.Right.Drive(value, b.deltaT)
	}
	return nil
}

// FakePitchSource is a settable stand-in for an IMU attitude estimator.
type FakePitchSource struct {
	mu             sync.Mutex
	pitch, pitchRate float32
}

// Set updates the simulated pitch/pitch-rate readings.
func (f *FakePitchSource) Set(pitch, pitchRate float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pitch, f.pitchRate = pitch, pitchRate
}

// Pitch implements drivetrain.SegwaySource.
func (f *FakePitchSource) Pitch() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pitch
}

// PitchRate implements drivetrain.SegwaySource.
func (f *FakePitchSource) PitchRate() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pitchRate
}
