package drivetrain

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/stoecklihar/epuck2-firmware/control"
	"github.com/stoecklihar/epuck2-firmware/hal"
	"github.com/stoecklihar/epuck2-firmware/logging"
	"github.com/stoecklihar/epuck2-firmware/paramtree"
)

func newTestDualWheel(t *testing.T, cfg Config, segway SegwaySource) (*DualWheel, *hal.FakeBoard, *clock.Mock) {
	root := paramtree.NewRoot("control")
	board := hal.NewFakeBoard(1.0 / cfg.BaseFrequencyHz)
	mockClock := clock.NewMock()

	leftSensors := Sensors{
		Position: board.Left.Position,
		Velocity: board.Left.Velocity,
		Current:  board.Left.Current,
	}
	rightSensors := Sensors{
		Position: board.Right.Position,
		Velocity: board.Right.Velocity,
		Current:  board.Right.Current,
	}

	dw, err := New(root, cfg, leftSensors, rightSensors, board, segway, mockClock, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return dw, board, mockClock
}

func TestDualWheelTickWritesBothWheels(t *testing.T) {
	dw, board, _ := newTestDualWheel(t, Config{BaseFrequencyHz: 1000}, nil)
	dw.Left.StageCurrent.Gains.Kp.Set(1)
	dw.Right.StageCurrent.Gains.Kp.Set(1)
	dw.SetMode(control.Current)
	dw.Left.SetTargetCurrent(1)
	dw.Right.SetTargetCurrent(-1)

	err := dw.Tick()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, board.Left.Current(), test.ShouldEqual, float32(-1))
	test.That(t, board.Right.Current(), test.ShouldEqual, float32(1))
}

func TestDualWheelSegwayFeedforwardAdditive(t *testing.T) {
	segway := &hal.FakePitchSource{}
	dw, board, _ := newTestDualWheel(t, Config{BaseFrequencyHz: 1000, SegwayEnabled: true}, segway)
	segway.Set(0.2, 0)

	err := dw.Tick()
	test.That(t, err, test.ShouldBeNil)
	// With zero gains and zero measurements, the cascade's own output is 0,
	// so the wheel only sees the segway feedforward term.
	gains := control.DefaultSegwayGains()
	want := control.SegwayFeedforward(gains, control.Left, 0.2, 0, 0)
	test.That(t, board.Left.Current(), test.ShouldEqual, want)
}

func TestDualWheelSegwayDisabledIgnoresSource(t *testing.T) {
	segway := &hal.FakePitchSource{}
	dw, _, _ := newTestDualWheel(t, Config{BaseFrequencyHz: 1000, SegwayEnabled: false}, segway)
	test.That(t, dw.segway, test.ShouldBeNil)
}

func TestDualWheelStartStopTicksOnSchedule(t *testing.T) {
	dw, board, mockClock := newTestDualWheel(t, Config{BaseFrequencyHz: 100}, nil)
	dw.Left.StageCurrent.Gains.Kp.Set(1)
	dw.SetMode(control.Current)
	dw.Left.SetTargetCurrent(1)

	ctx := context.Background()
	dw.Start(ctx)
	defer dw.Stop()

	for i := 0; i < 5; i++ {
		mockClock.Add(10 * time.Millisecond)
	}
	// Allow the background goroutine to process the queued ticks.
	deadline := time.Now().Add(time.Second)
	for board.Left.Current() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	test.That(t, board.Left.Current(), test.ShouldNotEqual, float32(0))
}

func TestDualWheelModeAppliesToBothWheels(t *testing.T) {
	dw, _, _ := newTestDualWheel(t, Config{BaseFrequencyHz: 1000}, nil)
	dw.SetMode(control.Position)
	test.That(t, dw.Left.Mode, test.ShouldEqual, control.Position)
	test.That(t, dw.Right.Mode, test.ShouldEqual, control.Position)
}

func TestDualWheelCloseStopsBackgroundTask(t *testing.T) {
	dw, _, _ := newTestDualWheel(t, Config{BaseFrequencyHz: 1000}, nil)
	dw.Start(context.Background())
	err := dw.Close(context.Background())
	test.That(t, err, test.ShouldBeNil)
}
