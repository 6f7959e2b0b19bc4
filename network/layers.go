// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"fmt"
	"log"
	"math/rand"
	"sort"

	"github.com/TomBugnon/NETS/engine"
	"github.com/emer/etable/etensor"
	"github.com/goki/ki/ints"
	"github.com/goki/ki/ki"
	"github.com/goki/ki/kit"
	"github.com/goki/mat32"
)

// LayerType is the closed set of layer kinds.  LayerAny exists only for
// bulk-change directives that do not filter on kind.
type LayerType int32

//go:generate stringer -type=LayerType

var KiT_LayerType = kit.Enums.AddEnum(LayerTypeN, kit.NotBitFlag, nil)

func (ev LayerType) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *LayerType) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// LayerAny matches every layer kind in change directives.
	LayerAny LayerType = iota

	// LayerRegular is an ordinary layer of neuron populations.
	LayerRegular

	// LayerInput is a stimulation layer: one stimulator population plus a
	// synthetic relay population wired one-to-one.
	LayerInput

	LayerTypeN
)

// ChangeType selects how a state change value is applied to a unit
// parameter: overwrite, or multiply into the current engine value.
type ChangeType int32

//go:generate stringer -type=ChangeType

var KiT_ChangeType = kit.Enums.AddEnum(ChangeTypeN, kit.NotBitFlag, nil)

func (ev ChangeType) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *ChangeType) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// Constant sets the given values directly.
	Constant ChangeType = iota

	// Multiplicative multiplies each parameter's current engine value by
	// the given ratio.
	Multiplicative

	ChangeTypeN
)

// Location is a layer grid address, shared by all elements at that cell.
type Location struct {
	Row int
	Col int
}

// PopLocation is a population location: a grid address plus the unit
// index disambiguating multiple units of the same population at one cell.
type PopLocation struct {
	Row  int
	Col  int
	Unit int
}

// PopCount is one (population name, units per location) entry of a layer
// element specification.
type PopCount struct {
	Pop string
	N   int
}

// LayerConfig is the typed configuration of a layer, built once from the
// flat resolved parameter mapping of a tree leaf.
type LayerConfig struct {
	Rows        int        `desc:"number of grid rows"`
	Cols        int        `desc:"number of grid columns"`
	Extent      mat32.Vec2 `desc:"physical extent of the grid"`
	EdgeWrap    bool       `desc:"whether the grid wraps at the edges"`
	Populations []PopCount `desc:"populations and units per location, in deterministic name order"`
	ScaleKM     bool       `desc:"whether this layer opts into kernel/mask spatial scaling when it is the pooling side of a connection"`
	RFScale     float64    `desc:"receptive-field scale parameter, converted to extent units to produce the connection scale factor"`
	WeightGain  float64    `desc:"gain multiplier applied to the weights of outgoing connections"`
	RateScale   float64    `desc:"scale factor applied to stimulus rates in SetInput"`
}

// PopUnits returns the declared unit count of a population, 0 if absent.
func (cf *LayerConfig) PopUnits(pop string) int {
	for _, pc := range cf.Populations {
		if pc.Pop == pop {
			return pc.N
		}
	}
	return 0
}

func parseLayerConfig(name string, flat map[string]any) (LayerConfig, error) {
	cf := LayerConfig{ScaleKM: true, RFScale: 1, WeightGain: 1, RateScale: 1, Extent: mat32.Vec2{X: 1, Y: 1}}
	rows, ok := toInt(flat["rows"])
	if !ok || rows <= 0 {
		return cf, fmt.Errorf("%w: layer %q: missing or invalid rows", ErrConfiguration, name)
	}
	cols, ok := toInt(flat["columns"])
	if !ok || cols <= 0 {
		return cf, fmt.Errorf("%w: layer %q: missing or invalid columns", ErrConfiguration, name)
	}
	cf.Rows, cf.Cols = rows, cols
	if v, ok := flat["extent"]; ok {
		switch ext := v.(type) {
		case []float64:
			if len(ext) != 2 {
				return cf, fmt.Errorf("%w: layer %q: extent must have 2 components", ErrConfiguration, name)
			}
			cf.Extent = mat32.Vec2{X: float32(ext[0]), Y: float32(ext[1])}
		case float64:
			cf.Extent = mat32.Vec2{X: float32(ext), Y: float32(ext)}
		default:
			return cf, fmt.Errorf("%w: layer %q: invalid extent %v", ErrConfiguration, name, v)
		}
	}
	if v, ok := flat["edge_wrap"]; ok {
		b, ok := toBool(v)
		if !ok {
			return cf, fmt.Errorf("%w: layer %q: edge_wrap must be a bool", ErrConfiguration, name)
		}
		cf.EdgeWrap = b
	}
	pops, ok := flat["populations"].(map[string]int)
	if !ok {
		anyp, aok := flat["populations"].(map[string]any)
		if !aok {
			return cf, fmt.Errorf("%w: layer %q: missing populations mapping", ErrConfiguration, name)
		}
		pops = map[string]int{}
		for p, n := range anyp {
			ni, ok := toInt(n)
			if !ok {
				return cf, fmt.Errorf("%w: layer %q: population %q: unit count must be an integer", ErrConfiguration, name, p)
			}
			pops[p] = ni
		}
	}
	if len(pops) == 0 {
		return cf, fmt.Errorf("%w: layer %q: populations mapping is empty", ErrConfiguration, name)
	}
	var names []string
	for p, n := range pops {
		if n <= 0 {
			return cf, fmt.Errorf("%w: layer %q: population %q: unit count must be positive", ErrConfiguration, name, p)
		}
		names = append(names, p)
	}
	sort.Strings(names)
	for _, p := range names {
		cf.Populations = append(cf.Populations, PopCount{Pop: p, N: pops[p]})
	}
	if v, ok := flat["scale_kernels_masks"]; ok {
		b, ok := toBool(v)
		if !ok {
			return cf, fmt.Errorf("%w: layer %q: scale_kernels_masks must be a bool", ErrConfiguration, name)
		}
		cf.ScaleKM = b
	}
	for key, dst := range map[string]*float64{
		"rf_scale_factor":         &cf.RFScale,
		"weight_gain":             &cf.WeightGain,
		"input_rate_scale_factor": &cf.RateScale,
	} {
		if v, ok := flat[key]; ok {
			f, ok := toFloat(v)
			if !ok {
				return cf, fmt.Errorf("%w: layer %q: %s must be a number", ErrConfiguration, name, key)
			}
			*dst = f
		}
	}
	return cf, nil
}

// AnyLayer is the interface over the closed {Layer, InputLayer} variant,
// letting the network and projections hold either kind while recovering
// the underlying Layer for the common topology operations.
type AnyLayer interface {
	// Name returns the layer name.
	Name() string

	// LayerType returns the layer kind tag.
	LayerType() LayerType

	// AsLayer returns the underlying base Layer.
	AsLayer() *Layer

	// RecordablePopNames returns the populations recorders may attach to.
	RecordablePopNames() []string

	// Create allocates the layer and its bookkeeping in the engine.
	Create(eng engine.Engine) error
}

// Layer is a grid of elements partitioned into named populations.  After
// Create, every element id maps to exactly one layer location and one
// population location, and the union over locations is exactly the
// engine-reported element set.
type Layer struct {
	Entity
	Cfg LayerConfig   `desc:"typed configuration, resolved once at build time"`
	Typ LayerType     `desc:"kind tag: regular or input"`
	Shp etensor.Shape `desc:"grid shape, rows x columns"`

	ID      engine.LayerID             `view:"-" desc:"engine handle, set at create"`
	Gds     []engine.ElemID            `view:"-" desc:"all element ids, ascending"`
	LayLocs map[engine.ElemID]Location `view:"-" desc:"element id -> grid location"`
	PopLocs map[engine.ElemID]PopLocation `view:"-" desc:"element id -> population location"`
	PopOf   map[engine.ElemID]string   `view:"-" desc:"element id -> population name"`

	ProbChanged bool `view:"-" desc:"set on the first probabilistic state change -- a second one is an error"`
}

var KiT_Layer = kit.Types.AddType(&Layer{}, LayerProps)

var LayerProps = ki.Props{}

// NewLayer builds a regular layer from the flat resolved parameters of a
// tree leaf.
func NewLayer(name string, flat map[string]any) (*Layer, error) {
	cf, err := parseLayerConfig(name, flat)
	if err != nil {
		return nil, err
	}
	ly := &Layer{Entity: Entity{Nm: name}, Cfg: cf, Typ: LayerRegular}
	ly.Shp.SetShape([]int{cf.Rows, cf.Cols}, nil, []string{"Y", "X"})
	return ly, nil
}

func (ly *Layer) LayerType() LayerType { return ly.Typ }

func (ly *Layer) AsLayer() *Layer { return ly }

// Rows returns the number of grid rows.
func (ly *Layer) Rows() int { return ly.Shp.Dim(0) }

// Cols returns the number of grid columns.
func (ly *Layer) Cols() int { return ly.Shp.Dim(1) }

// NUnits returns the total number of elements per grid location.
func (ly *Layer) NUnits() int {
	n := 0
	for _, pc := range ly.Cfg.Populations {
		n += pc.N
	}
	return n
}

// PopNames returns the population names in deterministic order.
func (ly *Layer) PopNames() []string {
	nms := make([]string, len(ly.Cfg.Populations))
	for i, pc := range ly.Cfg.Populations {
		nms[i] = pc.Pop
	}
	return nms
}

// RecordablePopNames returns the populations that recorders may attach
// to.  All of them, for a regular layer.
func (ly *Layer) RecordablePopNames() []string { return ly.PopNames() }

// ExtentUnits converts a value from grid units to the layer's physical
// extent units.  The grid spans its extent with max(rows, cols) - 1
// inter-node steps.
func (ly *Layer) ExtentUnits(val float64) float64 {
	size := ints.MaxInt(ly.Rows(), ly.Cols()) - 1
	if size < 1 {
		size = 1
	}
	return val * float64(ly.Cfg.Extent.X) / float64(size)
}

// Create allocates the layer in the engine, then records for every grid
// location the element ids there, their layer location, and their
// population location with a unit index counted per population within
// each cell.
func (ly *Layer) Create(eng engine.Engine) error {
	return ly.OnCreate("layer", func() error {
		return ly.create(eng)
	})
}

// create is the shared creation body, also used by InputLayer under its
// own guard.
func (ly *Layer) create(eng engine.Engine) error {
	elems := make([]engine.ElementCount, len(ly.Cfg.Populations))
	for i, pc := range ly.Cfg.Populations {
		elems[i] = engine.ElementCount{Model: pc.Pop, N: pc.N}
	}
	par := map[string]any{
		"extent":    []float64{float64(ly.Cfg.Extent.X), float64(ly.Cfg.Extent.Y)},
		"edge_wrap": ly.Cfg.EdgeWrap,
	}
	id, err := eng.CreateLayer(ly.Rows(), ly.Cols(), elems, par)
	if err != nil {
		return err
	}
	ly.ID = id
	ly.LayLocs = map[engine.ElemID]Location{}
	ly.PopLocs = map[engine.ElemID]PopLocation{}
	ly.PopOf = map[engine.ElemID]string{}
	for r := 0; r < ly.Rows(); r++ {
		for c := 0; c < ly.Cols(); c++ {
			ids, err := eng.ElementsAt(ly.ID, r, c)
			if err != nil {
				return err
			}
			unit := map[string]int{}
			for _, gid := range ids {
				mv, err := eng.GetStatus(gid, "model")
				if err != nil {
					return err
				}
				pop, ok := toString(mv)
				if !ok {
					return fmt.Errorf("%w: layer %q: element %d reports non-string model", ErrInternalConsistency, ly.Nm, gid)
				}
				ly.LayLocs[gid] = Location{Row: r, Col: c}
				ly.PopLocs[gid] = PopLocation{Row: r, Col: c, Unit: unit[pop]}
				ly.PopOf[gid] = pop
				unit[pop]++
			}
		}
	}
	all, err := eng.Elements(ly.ID)
	if err != nil {
		return err
	}
	if len(all) != len(ly.LayLocs) {
		return fmt.Errorf("%w: layer %q: recorded %d elements, engine reports %d", ErrInternalConsistency, ly.Nm, len(ly.LayLocs), len(all))
	}
	for _, gid := range all {
		if _, ok := ly.LayLocs[gid]; !ok {
			return fmt.Errorf("%w: layer %q: engine element %d missing from location records", ErrInternalConsistency, ly.Nm, gid)
		}
	}
	ly.Gds = append([]engine.ElemID{}, all...)
	sort.Slice(ly.Gds, func(i, j int) bool { return ly.Gds[i] < ly.Gds[j] })
	return nil
}

// GidSel filters layer elements; all set predicates compose as AND.
type GidSel struct {
	Pops   []string     `desc:"population names to match -- empty matches all"`
	Loc    *Location    `desc:"exact layer location to match"`
	PopLoc *PopLocation `desc:"exact population location to match"`
}

// Gids returns the element ids passing the selection, ascending.  A
// zero-valued selection returns all elements.
func (ly *Layer) Gids(sel GidSel) []engine.ElemID {
	var popset map[string]bool
	if len(sel.Pops) > 0 {
		popset = map[string]bool{}
		for _, p := range sel.Pops {
			popset[p] = true
		}
	}
	var out []engine.ElemID
	for _, gid := range ly.Gds {
		if popset != nil && !popset[ly.PopOf[gid]] {
			continue
		}
		if sel.Loc != nil && ly.LayLocs[gid] != *sel.Loc {
			continue
		}
		if sel.PopLoc != nil && ly.PopLocs[gid] != *sel.PopLoc {
			continue
		}
		out = append(out, gid)
	}
	return out
}

// PopGids returns the element ids of one population, or of all when the
// name is empty.
func (ly *Layer) PopGids(pop string) []engine.ElemID {
	if pop == "" {
		return ly.Gids(GidSel{})
	}
	return ly.Gids(GidSel{Pops: []string{pop}})
}

// Locations returns the element -> layer location mapping.  Read-only.
func (ly *Layer) Locations() map[engine.ElemID]Location { return ly.LayLocs }

// PopLocations returns the element -> population location mapping.
// Read-only.
func (ly *Layer) PopLocations() map[engine.ElemID]PopLocation { return ly.PopLocs }

// GidsSubset returns floor(proportion * len(gids)) elements drawn
// uniformly at random without replacement, preserving the relative order
// of the input list, using the given random source.
func GidsSubset(gids []engine.ElemID, proportion float64, rnd *rand.Rand) []engine.ElemID {
	n := int(float64(len(gids)) * proportion)
	idxs := rnd.Perm(len(gids))[:n]
	sort.Ints(idxs)
	out := make([]engine.ElemID, n)
	for i, ix := range idxs {
		out[i] = gids[ix]
	}
	return out
}

// ChangeUnitStates applies the change values to a random subset of the
// units of a population (all populations when pop is empty).  Constant
// changes overwrite; multiplicative changes multiply each parameter's
// current engine value by the given ratio.  A probabilistic change
// (proportion below 1) may happen at most once per layer.
func (ly *Layer) ChangeUnitStates(eng engine.Engine, changes map[string]float64, pop string, proportion float64, ctype ChangeType, rnd *rand.Rand) error {
	if ctype != Constant && ctype != Multiplicative {
		return fmt.Errorf("%w: change type %v", ErrParameter, ctype)
	}
	if proportion < 0 || proportion > 1 {
		return fmt.Errorf("%w: proportion %v outside [0, 1]", ErrParameter, proportion)
	}
	if len(changes) == 0 {
		return nil
	}
	if ly.ProbChanged && proportion != 1 {
		return fmt.Errorf("%w: layer %q", ErrProbChange, ly.Nm)
	}
	all := ly.PopGids(pop)
	sel := GidsSubset(all, proportion, rnd)
	log.Printf("layer %s: applying %v changes to %d/%d units (population=%q)", ly.Nm, ctype, len(sel), len(all), pop)
	if err := ApplyUnitChanges(eng, sel, changes, ctype); err != nil {
		return err
	}
	if proportion != 1 {
		ly.ProbChanged = true
	}
	return nil
}

// ApplyUnitChanges is the change-application primitive shared by layer
// and network level bulk mutation.  Parameters are applied in sorted key
// order so the engine call sequence is deterministic.
func ApplyUnitChanges(eng engine.Engine, gids []engine.ElemID, changes map[string]float64, ctype ChangeType) error {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if ctype == Constant {
		par := map[string]any{}
		for _, k := range keys {
			par[k] = changes[k]
		}
		return eng.SetStatus(gids, par)
	}
	for _, gid := range gids {
		for _, k := range keys {
			cur, err := eng.GetStatus(gid, k)
			if err != nil {
				return err
			}
			cf, ok := toFloat(cur)
			if !ok {
				return fmt.Errorf("%w: element %d: %q is not numeric", ErrParameter, gid, k)
			}
			if err := eng.SetStatus([]engine.ElemID{gid}, map[string]any{k: cf * changes[k]}); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetState sets one status key per location from a 2D array matching the
// layer shape exactly, on the elements of the given population.
func (ly *Layer) SetState(eng engine.Engine, key, pop string, vals *etensor.Float64) error {
	if ly.State != Created {
		return fmt.Errorf("%w: layer %q", ErrNotCreated, ly.Nm)
	}
	if vals.NumDims() != 2 || vals.Dim(0) != ly.Rows() || vals.Dim(1) != ly.Cols() {
		return fmt.Errorf("%w: layer %q: values array does not match layer shape", ErrShape, ly.Nm)
	}
	for r := 0; r < ly.Rows(); r++ {
		for c := 0; c < ly.Cols(); c++ {
			gids := ly.Gids(GidSel{Pops: popList(pop), Loc: &Location{Row: r, Col: c}})
			if err := eng.SetStatus(gids, map[string]any{key: vals.Value([]int{r, c})}); err != nil {
				return err
			}
		}
	}
	return nil
}

func popList(pop string) []string {
	if pop == "" {
		return nil
	}
	return []string{pop}
}
