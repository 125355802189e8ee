package control

import (
	"math"
	"testing"

	"go.viam.com/test"
)

// Invariant 6 / scenario S3: starting at rest, a bounded-acceleration,
// bounded-velocity bang-bang shaper converges the position setpoint to the
// target and leaves the velocity setpoint at (or very near) zero, without
// ever exceeding maxVel or maxAcc.
func TestShaperConvergesToTarget(t *testing.T) {
	var shaper Shaper
	const deltaT = float32(0.001)
	const maxVel = float32(2.0)
	const maxAcc = float32(5.0)
	const target = float32(10.0)

	p, v := float32(0), float32(0)
	for i := 0; i < 200000; i++ {
		acc := shaper.Next(p, v, target, deltaT, maxVel, maxAcc)
		test.That(t, abs32(acc) <= maxAcc+1e-3, test.ShouldBeTrue)
		p, v = shaper.Integrate(p, v, acc, deltaT)
		test.That(t, abs32(v) <= maxVel+maxAcc*deltaT+1e-3, test.ShouldBeTrue)
	}

	test.That(t, abs32(p-target) < 0.05, test.ShouldBeTrue)
	test.That(t, abs32(v) < 0.05, test.ShouldBeTrue)
}

func TestShaperConvergesFromOvershoot(t *testing.T) {
	var shaper Shaper
	const deltaT = float32(0.001)
	const maxVel = float32(3.0)
	const maxAcc = float32(8.0)
	const target = float32(-5.0)

	p, v := float32(10.0), float32(4.0)
	for i := 0; i < 300000; i++ {
		acc := shaper.Next(p, v, target, deltaT, maxVel, maxAcc)
		p, v = shaper.Integrate(p, v, acc, deltaT)
	}

	test.That(t, abs32(p-target) < 0.1, test.ShouldBeTrue)
	test.That(t, abs32(v) < 0.1, test.ShouldBeTrue)
}

func TestShaperUnboundedDisablesVelocityBranch(t *testing.T) {
	var shaper Shaper
	inf := float32(math.Inf(1))
	// v=10 would be at or above any finite maxVel <= 10 and return 0 (cruise).
	acc := shaper.Next(0, 10, 100, 0.001, inf, 5)
	test.That(t, acc, test.ShouldNotEqual, float32(0))
}

func TestSignConventionZeroIsPositive(t *testing.T) {
	test.That(t, sign(0), test.ShouldEqual, float32(1))
	test.That(t, sign(-0.001), test.ShouldEqual, float32(-1))
	test.That(t, sign(0.001), test.ShouldEqual, float32(1))
}
