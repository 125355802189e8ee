package paramtree

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDeclareAndGet(t *testing.T) {
	root := NewRoot("control")
	ns := DeclareNamespace(root, "position")
	kp := DeclareScalar(ns, "kp", 0)

	test.That(t, kp.Get(), test.ShouldEqual, float32(0))
	test.That(t, ns.Path(), test.ShouldEqual, "control/position")
}

func TestDeclareIsIdempotent(t *testing.T) {
	root := NewRoot("control")
	ns1 := DeclareNamespace(root, "position")
	ns2 := DeclareNamespace(root, "position")
	test.That(t, ns1, test.ShouldEqual, ns2)

	s1 := DeclareScalar(ns1, "kp", 1.5)
	s2 := DeclareScalar(ns1, "kp", 99)
	test.That(t, s1, test.ShouldEqual, s2)
	test.That(t, s1.Get(), test.ShouldEqual, float32(1.5))
}

func TestChangedIsReadAndClear(t *testing.T) {
	root := NewRoot("control")
	ns := DeclareNamespace(root, "current")
	kp := DeclareScalar(ns, "kp", 1.0)

	test.That(t, kp.Changed(), test.ShouldBeFalse)

	kp.Set(2.0)
	test.That(t, kp.Changed(), test.ShouldBeTrue)

	v := kp.Get()
	test.That(t, v, test.ShouldEqual, float32(2.0))
	test.That(t, kp.Changed(), test.ShouldBeFalse)
}

func TestDefaultInfinity(t *testing.T) {
	root := NewRoot("control")
	ns := DeclareNamespace(root, "limits")
	lim := DeclareScalar(ns, "velocity", float32(math.Inf(1)))

	test.That(t, math.IsInf(float64(lim.Get()), 1), test.ShouldBeTrue)
}
