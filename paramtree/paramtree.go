// Package paramtree implements a hierarchical, read-only-from-the-core
// parameter binding: a tree of named namespaces holding named scalars,
// each with a "changed since last read" flag, modeled on the original
// firmware's parameter_namespace_t / parameter_scalar_t pair.
//
// Exactly one consumer reads (and thereby clears) any given scalar's dirty
// bit. paramtree does not enforce single-consumer-ness; it is a documented
// constraint on callers.
package paramtree

import (
	"math"
	"sync"

	"go.uber.org/atomic"
)

// Namespace is a node in the parameter tree. The zero value is not usable;
// construct with NewRoot or DeclareNamespace.
type Namespace struct {
	name     string
	parent   *Namespace
	mu       sync.Mutex
	children map[string]*Namespace
	scalars  map[string]*Scalar
}

// NewRoot creates a root namespace, e.g. "control".
func NewRoot(name string) *Namespace {
	return &Namespace{
		name:     name,
		children: map[string]*Namespace{},
		scalars:  map[string]*Scalar{},
	}
}

// DeclareNamespace creates (or returns, if already declared) a child
// namespace under parent.
func DeclareNamespace(parent *Namespace, name string) *Namespace {
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if ns, ok := parent.children[name]; ok {
		return ns
	}
	ns := &Namespace{
		name:     name,
		parent:   parent,
		children: map[string]*Namespace{},
		scalars:  map[string]*Scalar{},
	}
	parent.children[name] = ns
	return ns
}

// DeclareScalar creates (or returns, if already declared) a scalar under ns
// with the given default value.
func DeclareScalar(ns *Namespace, name string, def float32) *Scalar {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if s, ok := ns.scalars[name]; ok {
		return s
	}
	s := &Scalar{name: name}
	s.bits.Store(math.Float32bits(def))
	s.dirty.Store(false)
	ns.scalars[name] = s
	return s
}

// Path returns the slash-separated path from the root to this namespace, e.g.
// "control/left/position".
func (ns *Namespace) Path() string {
	if ns.parent == nil {
		return ns.name
	}
	return ns.parent.Path() + "/" + ns.name
}

// Scalar is a single float32 parameter with a read-and-clear dirty flag.
// Storage is lock-free: readers (the control task) and the single writer
// (the parameter-command handler, out of scope here) never block each
// other.
type Scalar struct {
	name  string
	bits  atomic.Uint32
	dirty atomic.Bool
}

// Get returns the current value and clears the "changed" flag. This is the
// core's only way to observe a parameter; it never writes.
func (s *Scalar) Get() float32 {
	s.dirty.Store(false)
	return math.Float32frombits(s.bits.Load())
}

// Changed reports whether the value has changed since the last Get call,
// without clearing the flag itself (only Get clears it).
func (s *Scalar) Changed() bool {
	return s.dirty.Load()
}

// Set is the external, non-core writer path (the parameter-command
// handler). The core never calls this; it exists so tests and the
// out-of-scope wire-protocol collaborator have a way to mutate scalars.
func (s *Scalar) Set(v float32) {
	s.bits.Store(math.Float32bits(v))
	s.dirty.Store(true)
}
