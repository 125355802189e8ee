package control

// Shaper implements the bang-bang-with-braking motion profile used to
// chase a target position under bounded velocity and acceleration. It
// holds no state of its own; Next is a pure function, matching the PID
// primitive's style.
type Shaper struct{}

// Next computes the acceleration to apply over the next deltaT given the
// current position setpoint p, velocity setpoint v, target position
// targetPos, and the velocity/acceleration bounds maxVel/maxAcc (either of
// which may be +Inf to disable the corresponding branch).
func (Shaper) Next(p, v, targetPos, deltaT, maxVel, maxAcc float32) float32 {
	errVal := p - targetPos
	brakingDistance := v * v / (2 * maxAcc)
	eps := maxAcc * deltaT * deltaT / 2

	errSign := sign(errVal)
	vSign := sign(v)

	if errSign != vSign {
		// Moving toward the target.
		if abs32(errVal) <= brakingDistance || abs32(errVal) <= eps {
			return -limitSymmetric(v/deltaT, maxAcc)
		}
		if abs32(v) >= maxVel {
			return 0
		}
		return -errSign * maxAcc
	}

	// Moving away, or stationary with nonzero error.
	if abs32(errVal) <= eps {
		return -limitSymmetric(v/deltaT, maxAcc)
	}
	return -errSign * maxAcc
}

// Integrate advances the position/velocity setpoint pair by one step of
// deltaT under acceleration acc:
//
//	p' = p + v*deltaT + acc*deltaT^2/2
//	v' = v + acc*deltaT
func (Shaper) Integrate(p, v, acc, deltaT float32) (newP, newV float32) {
	newP = p + v*deltaT + acc*deltaT*deltaT/2
	newV = v + acc*deltaT
	return newP, newV
}

// sign follows the platform convention that sign(0) = +1.
func sign(x float32) float32 {
	if x < 0 {
		return -1
	}
	return 1
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
