// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package engine defines the interface consumed from the external spiking
simulation kernel.  The kernel is treated as an opaque capability surface:
it accepts model, layer, connection and status operations and returns
identifiers and status values.  Nothing in this package performs any
numerical integration.

The Stub type is a deterministic in-memory engine implementing the full
interface, used by the tests and by example code.
*/
package engine

import (
	"github.com/goki/ki/kit"
	"github.com/goki/mat32"
)

// ElemID is the unique identifier of a single created element (neuron or
// device) in the engine.
type ElemID int

// LayerID is the engine handle for a created topological layer.
type LayerID int

// ElementCount is one entry of a layer element specification: a model
// name and the number of units of that model per grid location.
type ElementCount struct {
	Model string `desc:"engine model name of the element"`
	N     int    `desc:"number of units per grid location"`
}

// Defaults holds the engine-side default description of a model.
type Defaults struct {
	TypeID        string         `desc:"engine type identifier of the base model, e.g. the device type for stimulators and recorders"`
	ReceptorTypes map[string]int `desc:"receptor name -> numeric receptor index table, for neuron models with labelled receptors"`
	Params        map[string]any `desc:"default parameter values"`
}

// Conn is one existing connection reported by the engine.
type Conn struct {
	Src      ElemID `desc:"source element"`
	Tgt      ElemID `desc:"target element"`
	SynModel string `desc:"synapse model of the connection"`
	Label    int    `desc:"synapse label, 0 if the synapse model carries none"`
	Weight   float64
	Delay    float64
}

// Filter selects existing connections.  Zero-valued fields do not filter;
// synapse labels are therefore required to be nonzero when used.
type Filter struct {
	SynModel string `desc:"select connections with this synapse model -- empty selects all"`
	Label    int    `desc:"select connections with this synapse label -- 0 selects all"`
}

// Match reports whether the connection passes the filter.
func (ft Filter) Match(cn Conn) bool {
	if ft.SynModel != "" && cn.SynModel != ft.SynModel {
		return false
	}
	if ft.Label != 0 && cn.Label != ft.Label {
		return false
	}
	return true
}

// ConnDir is the directionality of a spatial connection, which determines
// which endpoint of the connection is geometrically pooling.
type ConnDir int32

//go:generate stringer -type=ConnDir

var KiT_ConnDir = kit.Enums.AddEnum(ConnDirN, kit.NotBitFlag, nil)

func (ev ConnDir) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *ConnDir) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// Convergent connections pool over the source layer.
	Convergent ConnDir = iota

	// Divergent connections pool over the target layer.
	Divergent

	ConnDirN
)

// GaussianKernel is a distance-dependent connection probability profile.
type GaussianKernel struct {
	PCenter float64 `desc:"connection probability at zero distance"`
	Sigma   float64 `desc:"spatial spread, in the pooling layer's extent units after scaling"`
}

// Kernel is the connection probability kernel: either a constant
// probability or a parametrized spatial profile.
type Kernel struct {
	Const    float64         `desc:"constant connection probability, used when Gaussian is nil"`
	Gaussian *GaussianKernel `desc:"gaussian profile -- overrides Const when non-nil"`
}

// CircularMask restricts connections to a disc around the pooled point.
type CircularMask struct {
	Radius float64
}

// RectMask restricts connections to a rectangle around the pooled point.
type RectMask struct {
	LowerLeft  mat32.Vec2
	UpperRight mat32.Vec2
}

// Mask restricts the spatial range of a connection.  Exactly one of the
// variants is non-nil in a valid spec.
type Mask struct {
	Circular    *CircularMask
	Rectangular *RectMask
}

// ConnSpec is the fully resolved parameter set of a spatial connection
// between two layers, as passed to ConnectLayers.
type ConnSpec struct {
	Dir      ConnDir `desc:"convergent or divergent"`
	SynModel string  `desc:"synapse model used for the created connections"`
	Kernel   Kernel
	Mask     Mask
	Weights  float64 `desc:"synaptic weight of created connections"`
	Delays   float64 `desc:"conduction delay in msec"`
	Sources  string  `desc:"restrict sources to elements of this model -- empty selects all"`
	Targets  string  `desc:"restrict targets to elements of this model -- empty selects all"`
}

// Clone returns a deep copy of the spec, so scaling can rewrite a
// projection's parameters without mutating the shared model spec.
func (cs *ConnSpec) Clone() *ConnSpec {
	cp := *cs
	if cs.Kernel.Gaussian != nil {
		g := *cs.Kernel.Gaussian
		cp.Kernel.Gaussian = &g
	}
	if cs.Mask.Circular != nil {
		c := *cs.Mask.Circular
		cp.Mask.Circular = &c
	}
	if cs.Mask.Rectangular != nil {
		r := *cs.Mask.Rectangular
		cp.Mask.Rectangular = &r
	}
	return &cp
}

// Events is the raw recorded data of a recorder device, as returned by
// GetStatus(rec, "events").
type Events struct {
	Times   []float64 `desc:"event times in msec"`
	Senders []ElemID  `desc:"element that generated each event, parallel to Times"`
}

// Engine is the opaque simulation kernel consumed by the network
// construction layer.  All calls are synchronous and blocking; failures
// are returned immediately and never retried by the callers in this
// module.
type Engine interface {
	// CreateModel registers a new named model derived from an existing
	// base model, with the given parameter overrides.
	CreateModel(base, name string, par map[string]any) error

	// SetModelDefaults updates the default parameters of an existing model.
	SetModelDefaults(model string, par map[string]any) error

	// ModelDefaults returns the engine-side defaults of a model.
	ModelDefaults(model string) (*Defaults, error)

	// CreateLayer allocates a grid layer with the given per-location
	// element specification and layer parameters (extent, edge wrap).
	CreateLayer(rows, cols int, elems []ElementCount, par map[string]any) (LayerID, error)

	// Elements returns all element ids of a layer.
	Elements(lay LayerID) ([]ElemID, error)

	// ElementsAt returns the element ids at one grid location.
	ElementsAt(lay LayerID, row, col int) ([]ElemID, error)

	// CreateElements creates n free-standing elements of a model, e.g.
	// recorder devices.
	CreateElements(model string, n int) ([]ElemID, error)

	// Connect creates connections between explicit element lists under a
	// connection rule ("one_to_one", "all_to_all") and synapse spec.
	Connect(src, tgt []ElemID, rule string, syn map[string]any) error

	// ConnectLayers performs the engine's geometric spatial connection
	// between two whole layers.
	ConnectLayers(src, tgt LayerID, spec *ConnSpec) error

	// Connections returns the existing connections passing the filter.
	Connections(filt Filter) ([]Conn, error)

	// SetConnStatus sets parameters on all connections passing the filter.
	SetConnStatus(filt Filter, par map[string]any) error

	// GetStatus returns one status value of an element.
	GetStatus(el ElemID, key string) (any, error)

	// SetStatus sets status values on a list of elements.
	SetStatus(els []ElemID, par map[string]any) error

	// Simulate advances the kernel by the given duration in msec.
	Simulate(ms float64) error

	// Time returns the current kernel time in msec.
	Time() float64

	// ResetNetwork resets the dynamic state of all created elements
	// without destroying the network structure.
	ResetNetwork() error
}
