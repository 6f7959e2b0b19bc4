// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"

	"github.com/TomBugnon/NETS/engine"
	"github.com/TomBugnon/NETS/params"
	"github.com/c2h5oh/datasize"
	"github.com/emer/etable/etensor"
	"github.com/goki/ki/ki"
	"github.com/goki/ki/kit"
)

// Network is the full declarative network: models, layers, projections
// and recorded populations, built from a resolved parameter tree and
// instantiated against the engine in strict dependency order.
type Network struct {
	Entity
	NeuronModels []*Model           `desc:"neuron models, sorted by name"`
	SynModels    []*SynapseModel    `desc:"synapse models, sorted by name"`
	RecModels    []*Model           `desc:"recorder models, sorted by name"`
	Layers       []AnyLayer         `desc:"layers, sorted by name"`
	ProjModels   []*ProjectionModel `desc:"projection models, sorted by name"`
	Projections  []*Projection      `desc:"concrete projections, in declared topology order"`
	Populations  []*Population      `desc:"recorded populations"`

	LayMap  map[string]AnyLayer        `view:"-" desc:"name -> layer"`
	PrjMap  map[string]*ProjectionModel `view:"-" desc:"name -> projection model"`
	ProbChg bool                        `desc:"set once a probabilistic bulk change has been applied network-wide"`
}

var KiT_Network = kit.Types.AddType(&Network{}, NetworkProps)

var NetworkProps = ki.Props{}

// NewNetwork builds a Network from the resolved network parameter tree.
// The tree's children are neuron_models, synapse_models,
// recorder_models, layers, projection_models, topology and populations;
// a missing child is treated as empty.  No engine call happens here.
func NewNetwork(tree *params.Node) (*Network, error) {
	nt := &Network{
		Entity: Entity{Nm: tree.Nm},
		LayMap: map[string]AnyLayer{},
		PrjMap: map[string]*ProjectionModel{},
	}
	if err := nt.buildModels(tree); err != nil {
		return nil, err
	}
	if err := nt.buildLayers(tree); err != nil {
		return nil, err
	}
	if err := nt.buildProjections(tree); err != nil {
		return nil, err
	}
	if err := nt.buildPopulations(tree); err != nil {
		return nil, err
	}
	return nt, nil
}

// subtree returns a named child of the network tree, or nil when the
// child is absent.
func subtree(tree *params.Node, name string) (*params.Node, error) {
	nd, err := tree.Node(name)
	if err != nil {
		if errors.Is(err, params.ErrPathNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return nd, nil
}

func (nt *Network) buildModels(tree *params.Node) error {
	if nd, err := subtree(tree, "neuron_models"); err != nil {
		return err
	} else if nd != nil {
		for _, lf := range nd.NamedLeaves() {
			md, err := NewModel(lf.Nm, lf.Flat())
			if err != nil {
				return err
			}
			nt.NeuronModels = append(nt.NeuronModels, md)
		}
	}
	if nd, err := subtree(tree, "synapse_models"); err != nil {
		return err
	} else if nd != nil {
		for _, lf := range nd.NamedLeaves() {
			sm, err := NewSynapseModel(lf.Nm, lf.Flat())
			if err != nil {
				return err
			}
			nt.SynModels = append(nt.SynModels, sm)
		}
	}
	if nd, err := subtree(tree, "recorder_models"); err != nil {
		return err
	} else if nd != nil {
		for _, lf := range nd.NamedLeaves() {
			md, err := NewModel(lf.Nm, lf.Flat())
			if err != nil {
				return err
			}
			nt.RecModels = append(nt.RecModels, md)
		}
	}
	return nil
}

func (nt *Network) buildLayers(tree *params.Node) error {
	nd, err := subtree(tree, "layers")
	if err != nil || nd == nil {
		return err
	}
	for _, lf := range nd.NamedLeaves() {
		flat := lf.Flat()
		typ, _ := toString(flat["type"])
		var ly AnyLayer
		switch typ {
		case "", "Layer":
			ly, err = NewLayer(lf.Nm, flat)
		case "InputLayer":
			ly, err = NewInputLayer(lf.Nm, flat)
		default:
			return fmt.Errorf("%w: layer %q: unknown layer type %q", ErrConfiguration, lf.Nm, typ)
		}
		if err != nil {
			return err
		}
		nt.Layers = append(nt.Layers, ly)
		nt.LayMap[ly.Name()] = ly
	}
	return nil
}

func (nt *Network) buildProjections(tree *params.Node) error {
	if nd, err := subtree(tree, "projection_models"); err != nil {
		return err
	} else if nd != nil {
		for _, lf := range nd.NamedLeaves() {
			pm, err := NewProjectionModel(lf.Nm, lf.Flat())
			if err != nil {
				return err
			}
			nt.ProjModels = append(nt.ProjModels, pm)
			nt.PrjMap[pm.Nm] = pm
		}
	}
	topo, err := subtree(tree, "topology")
	if err != nil || topo == nil {
		return err
	}
	raw, ok := topo.Data["projections"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%w: topology projections must be a list", ErrConfiguration)
	}
	seen := map[string]bool{}
	for _, it := range items {
		ent, ok := it.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: topology projection entry must be a mapping", ErrConfiguration)
		}
		mnm, ok := toString(ent["projection_model"])
		if !ok {
			return fmt.Errorf("%w: topology projection entry: missing projection_model", ErrConfiguration)
		}
		pm, ok := nt.PrjMap[mnm]
		if !ok {
			return fmt.Errorf("%w: topology references unknown projection model %q", ErrConfiguration, mnm)
		}
		srcs, err := entryLayers(ent, "source_layers")
		if err != nil {
			return err
		}
		tgts, err := entryLayers(ent, "target_layers")
		if err != nil {
			return err
		}
		srcPop, _ := toString(ent["source_population"])
		tgtPop, _ := toString(ent["target_population"])
		for _, snm := range srcs {
			src, ok := nt.LayMap[snm]
			if !ok {
				return fmt.Errorf("%w: topology references unknown layer %q", ErrConfiguration, snm)
			}
			for _, tnm := range tgts {
				tgt, ok := nt.LayMap[tnm]
				if !ok {
					return fmt.Errorf("%w: topology references unknown layer %q", ErrConfiguration, tnm)
				}
				pj, err := NewProjection(pm, src, srcPop, tgt, tgtPop)
				if err != nil {
					return err
				}
				key := pj.String()
				if seen[key] {
					return fmt.Errorf("%w: duplicate projection %s", ErrConfiguration, key)
				}
				seen[key] = true
				nt.Projections = append(nt.Projections, pj)
			}
		}
	}
	return nil
}

func entryLayers(ent map[string]any, key string) ([]string, error) {
	nms, ok := toStringSlice(ent[key])
	if !ok || len(nms) == 0 {
		return nil, fmt.Errorf("%w: topology projection entry: missing %s", ErrConfiguration, key)
	}
	return nms, nil
}

func (nt *Network) buildPopulations(tree *params.Node) error {
	nd, err := subtree(tree, "populations")
	if err != nil || nd == nil {
		return err
	}
	raw, ok := nd.Data["population_recorders"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%w: population_recorders must be a list", ErrConfiguration)
	}
	// Recorders aggregate per (layer, population) pair so that several
	// devices can tap the same population.
	recs := map[string][]*Recorder{}
	var order []string
	type pair struct {
		lay AnyLayer
		pop string
	}
	pairs := map[string]pair{}
	for _, it := range items {
		ent, ok := it.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: population_recorders entry must be a mapping", ErrConfiguration)
		}
		mnm, ok := toString(ent["model"])
		if !ok {
			return fmt.Errorf("%w: population_recorders entry: missing model", ErrConfiguration)
		}
		found := false
		for _, rm := range nt.RecModels {
			if rm.Nm == mnm {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: population_recorders references unknown recorder model %q", ErrConfiguration, mnm)
		}
		lnms, ok := toStringSlice(ent["layers"])
		if !ok {
			for _, ly := range nt.Layers {
				lnms = append(lnms, ly.Name())
			}
		}
		for _, lnm := range lnms {
			ly, ok := nt.LayMap[lnm]
			if !ok {
				return fmt.Errorf("%w: population_recorders references unknown layer %q", ErrConfiguration, lnm)
			}
			pnms, ok := toStringSlice(ent["populations"])
			if !ok {
				pnms = ly.RecordablePopNames()
			}
			for _, pnm := range pnms {
				key := lnm + "_" + pnm
				if _, ok := pairs[key]; !ok {
					pairs[key] = pair{lay: ly, pop: pnm}
					order = append(order, key)
				}
				recs[key] = append(recs[key], NewRecorder(mnm, nil))
			}
		}
	}
	for _, key := range order {
		pr := pairs[key]
		pp, err := NewPopulation(pr.lay, pr.pop, recs[key])
		if err != nil {
			return err
		}
		nt.Populations = append(nt.Populations, pp)
	}
	return nil
}

// Create instantiates the whole network in the engine.  The order is
// load-bearing: models first, then layers, then projections, then the
// recording taps.  Each stage is idempotent per entity.
func (nt *Network) Create(eng engine.Engine) error {
	log.Printf("Creating neuron models (%d)", len(nt.NeuronModels))
	for _, md := range nt.NeuronModels {
		if err := md.Create(eng); err != nil {
			return err
		}
	}
	log.Printf("Creating synapse models (%d)", len(nt.SynModels))
	for _, sm := range nt.SynModels {
		if err := sm.Create(eng); err != nil {
			return err
		}
	}
	log.Printf("Creating recorder models (%d)", len(nt.RecModels))
	for _, md := range nt.RecModels {
		if err := md.Create(eng); err != nil {
			return err
		}
	}
	log.Printf("Creating layers (%d)", len(nt.Layers))
	for _, ly := range nt.Layers {
		if err := ly.Create(eng); err != nil {
			return err
		}
	}
	log.Printf("Creating projections (%d)", len(nt.Projections))
	for _, pj := range nt.Projections {
		if err := pj.Create(eng); err != nil {
			return err
		}
	}
	log.Printf("Creating population recorders (%d)", len(nt.Populations))
	for _, pp := range nt.Populations {
		if err := pp.Create(eng); err != nil {
			return err
		}
	}
	return nil
}

// Layer returns a layer by name, or nil.
func (nt *Network) Layer(name string) AnyLayer { return nt.LayMap[name] }

// InputLayers returns the input layers in build order.
func (nt *Network) InputLayers() []*InputLayer {
	var ils []*InputLayer
	for _, ly := range nt.Layers {
		if il, ok := ly.(*InputLayer); ok {
			ils = append(ils, il)
		}
	}
	return ils
}

// SetInput dispatches per-layer stimulus arrays to the matching input
// layers, in sorted layer-name order.
func (nt *Network) SetInput(eng engine.Engine, inputs map[string]*etensor.Float64, start float64, rnd *rand.Rand) error {
	nms := make([]string, 0, len(inputs))
	for nm := range inputs {
		nms = append(nms, nm)
	}
	sort.Strings(nms)
	for _, nm := range nms {
		ly, ok := nt.LayMap[nm]
		if !ok {
			return fmt.Errorf("%w: input for unknown layer %q", ErrConfiguration, nm)
		}
		il, ok := ly.(*InputLayer)
		if !ok {
			return fmt.Errorf("%w: layer %q is not an input layer", ErrConfiguration, nm)
		}
		if err := il.SetInput(eng, inputs[nm], start, rnd); err != nil {
			return err
		}
	}
	return nil
}

// UnitChange is one bulk unit-state change directive.  Layers selects
// target layers by name; when empty, Kind selects by layer type, with
// LayerAny matching every layer.
type UnitChange struct {
	Layers     []string           `desc:"explicit target layer names"`
	Kind       LayerType          `desc:"layer-type filter when Layers is empty"`
	Pop        string             `desc:"population filter, empty selects all"`
	Proportion float64            `desc:"proportion of candidate units changed"`
	Type       ChangeType         `desc:"constant or multiplicative"`
	Changes    map[string]float64 `desc:"parameter key -> value or ratio"`
}

func (uc *UnitChange) sortKey() string {
	nms := append([]string(nil), uc.Layers...)
	sort.Strings(nms)
	keys := make([]string, 0, len(uc.Changes))
	for k := range uc.Changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%v|%v|%s|%v|%v", nms, uc.Kind, uc.Pop, uc.Proportion, keys)
}

// targets resolves the directive's target layers against the network.
func (uc *UnitChange) targets(nt *Network) ([]AnyLayer, error) {
	if len(uc.Layers) > 0 {
		lys := make([]AnyLayer, len(uc.Layers))
		for i, nm := range uc.Layers {
			ly, ok := nt.LayMap[nm]
			if !ok {
				return nil, fmt.Errorf("%w: change directive references unknown layer %q", ErrConfiguration, nm)
			}
			lys[i] = ly
		}
		return lys, nil
	}
	var lys []AnyLayer
	for _, ly := range nt.Layers {
		if uc.Kind == LayerAny || ly.LayerType() == uc.Kind {
			lys = append(lys, ly)
		}
	}
	return lys, nil
}

// ChangeUnitStates applies bulk unit-state change directives across the
// network.  Directives are sorted into a canonical order so the random
// draws are reproducible under a fixed seed.  A probabilistic directive
// (proportion below 1) may be applied at most once network-wide.
func (nt *Network) ChangeUnitStates(eng engine.Engine, changes []UnitChange, rnd *rand.Rand) error {
	ord := append([]UnitChange(nil), changes...)
	sort.SliceStable(ord, func(i, j int) bool { return ord[i].sortKey() < ord[j].sortKey() })
	prob := false
	for _, uc := range ord {
		if len(uc.Changes) == 0 {
			continue
		}
		if uc.Proportion != 1 {
			if nt.ProbChg {
				return fmt.Errorf("%w: network-wide probabilistic change already applied", ErrProbChange)
			}
			prob = true
		}
		lys, err := uc.targets(nt)
		if err != nil {
			return err
		}
		for _, ly := range lys {
			if err := ly.AsLayer().ChangeUnitStates(eng, uc.Changes, uc.Pop, uc.Proportion, uc.Type, rnd); err != nil {
				return err
			}
		}
	}
	if prob {
		nt.ProbChg = true
	}
	return nil
}

// SynChange is one bulk synapse-state change directive, applied to all
// connections matching the synapse model and optional label.
type SynChange struct {
	SynModel string         `desc:"synapse model name filter"`
	Label    int            `desc:"synapse label filter, 0 selects all"`
	Params   map[string]any `desc:"parameter updates"`
}

func (sc *SynChange) sortKey() string {
	keys := make([]string, 0, len(sc.Params))
	for k := range sc.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s|%d|%v", sc.SynModel, sc.Label, keys)
}

// ChangeSynapseStates applies bulk synapse-state change directives, in
// canonical order.  A directive with no parameters is a no-op.
func (nt *Network) ChangeSynapseStates(eng engine.Engine, changes []SynChange) error {
	ord := append([]SynChange(nil), changes...)
	sort.SliceStable(ord, func(i, j int) bool { return ord[i].sortKey() < ord[j].sortKey() })
	for _, sc := range ord {
		if len(sc.Params) == 0 {
			continue
		}
		if err := eng.SetConnStatus(engine.Filter{SynModel: sc.SynModel, Label: sc.Label}, sc.Params); err != nil {
			return err
		}
	}
	return nil
}

// SetRecorderStatus forwards a parameter update to every recorder.
func (nt *Network) SetRecorderStatus(eng engine.Engine, pars map[string]any) error {
	for _, pp := range nt.Populations {
		if err := pp.SetRecorderStatus(eng, pars); err != nil {
			return err
		}
	}
	return nil
}

// Reset restores all element parameters to their model defaults.  The
// network structure itself is left in place.
func (nt *Network) Reset(eng engine.Engine) error { return eng.ResetNetwork() }

// Per-element bookkeeping estimate used by SizeReport.
const elemBookkeepBytes = 96

// SizeReport returns a short human-readable summary of the built
// network and an estimate of its bookkeeping memory.
func (nt *Network) SizeReport() string {
	elems := 0
	for _, ly := range nt.Layers {
		elems += len(ly.AsLayer().Gds)
	}
	mem := datasize.ByteSize(elems * elemBookkeepBytes)
	var b strings.Builder
	fmt.Fprintf(&b, "layers: %d\n", len(nt.Layers))
	fmt.Fprintf(&b, "elements: %d\n", elems)
	fmt.Fprintf(&b, "projections: %d\n", len(nt.Projections))
	fmt.Fprintf(&b, "recorded populations: %d\n", len(nt.Populations))
	fmt.Fprintf(&b, "est. bookkeeping memory: %s\n", mem.HumanReadable())
	return b.String()
}
