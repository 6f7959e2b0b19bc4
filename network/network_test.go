// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/TomBugnon/NETS/engine"
	"github.com/TomBugnon/NETS/params"
	"github.com/emer/etable/etensor"
)

// testNetTree builds a small but complete network tree: two neuron
// models, one synapse model, one recorder model, a regular layer, an
// input layer, and one topological projection from the input relay into
// the regular layer.
func testNetTree() *params.Node {
	nt := params.NewNode("network")

	nm := nt.NewChild("neuron_models")
	nm.SetData("base_model", "parrot_neuron")
	nm.NewChild("A")
	nm.NewChild("B").SetData("V_m", -65.0)

	sm := nt.NewChild("synapse_models")
	sm.NewChild("mysyn").SetData("base_model", "static_synapse")

	rm := nt.NewChild("recorder_models")
	rm.NewChild("my_sd").SetData("base_model", "spike_detector")

	lys := nt.NewChild("layers")
	lys.SetData("rows", 2)
	lys.SetData("columns", 2)
	l1 := lys.NewChild("l1")
	l1.SetData("populations", map[string]any{"A": 1, "B": 2})
	in := lys.NewChild("input")
	in.SetData("type", "InputLayer")
	in.SetData("populations", map[string]any{"spike_generator": 1})

	pm := nt.NewChild("projection_models")
	ff := pm.NewChild("ff")
	ff.SetData("synapse_model", "mysyn")
	ff.SetData("connection_type", "convergent")
	ff.SetData("kernel", map[string]any{"gaussian": map[string]any{"sigma": 0.5, "p_center": 1.0}})

	topo := nt.NewChild("topology")
	topo.SetData("projections", []any{
		map[string]any{
			"projection_model":  "ff",
			"source_layers":     []any{"input"},
			"source_population": RelayModel,
			"target_layers":     []any{"l1"},
			"target_population": "B",
		},
	})

	pops := nt.NewChild("populations")
	pops.SetData("population_recorders", []any{
		map[string]any{"model": "my_sd"},
	})
	return nt
}

func TestNetworkBuild(t *testing.T) {
	nt, err := NewNetwork(testNetTree())
	if err != nil {
		t.Fatal(err)
	}
	if len(nt.NeuronModels) != 2 || len(nt.SynModels) != 1 || len(nt.RecModels) != 1 {
		t.Errorf("models = %d/%d/%d, want 2/1/1", len(nt.NeuronModels), len(nt.SynModels), len(nt.RecModels))
	}
	if len(nt.Layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(nt.Layers))
	}
	// layers sorted by name, with shared keys inherited from the subtree
	if nt.Layers[0].Name() != "input" || nt.Layers[1].Name() != "l1" {
		t.Errorf("layer order = %s, %s", nt.Layers[0].Name(), nt.Layers[1].Name())
	}
	if nt.Layers[1].AsLayer().Rows() != 2 {
		t.Errorf("l1 did not inherit rows from the layers subtree")
	}
	if len(nt.Projections) != 1 {
		t.Fatalf("got %d projections, want 1", len(nt.Projections))
	}
	// recorder with no layer/population filter taps every recordable
	// population: l1 A, l1 B, and the input relay
	if len(nt.Populations) != 3 {
		t.Fatalf("got %d recorded populations, want 3", len(nt.Populations))
	}
}

func TestNetworkCreate(t *testing.T) {
	nt, err := NewNetwork(testNetTree())
	if err != nil {
		t.Fatal(err)
	}
	st := engine.NewStub()
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	// models are registered
	for _, nm := range []string{"A", "B", "mysyn", "my_sd"} {
		if _, err := st.ModelDefaults(nm); err != nil {
			t.Errorf("model %q not registered: %v", nm, err)
		}
	}
	// l1: 2x2 x (1 A + 2 B) = 12, input: 2x2 x (stim + relay) = 8
	l1 := nt.Layer("l1").AsLayer()
	if got := len(l1.Gds); got != 12 {
		t.Errorf("l1 has %d elements, want 12", got)
	}
	il := nt.Layer("input").AsLayer()
	if got := len(il.Gds); got != 8 {
		t.Errorf("input has %d elements, want 8", got)
	}
	// one spatial connect for the ff projection
	calls := st.SpatialCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d spatial connects, want 1", len(calls))
	}
	if calls[0].Spec.SynModel != "mysyn" {
		t.Errorf("projection synapse model = %q, want mysyn", calls[0].Spec.SynModel)
	}
	if calls[0].Spec.Sources != RelayModel || calls[0].Spec.Targets != "B" {
		t.Errorf("population filters = %q/%q", calls[0].Spec.Sources, calls[0].Spec.Targets)
	}
	// recorders exist and are wired in the spike-detector direction
	for _, pp := range nt.Populations {
		if len(pp.Rcs) != 1 {
			t.Fatalf("population %s has %d recorders, want 1", pp.Nm, len(pp.Rcs))
		}
		rc := pp.Rcs[0]
		if rc.Type != SpikeDetectorType {
			t.Errorf("recorder on %s has type %q", pp.Nm, rc.Type)
		}
		found := 0
		for _, cn := range st.Conns() {
			if cn.Tgt == rc.Gid {
				found++
			}
		}
		if found != len(pp.Lay.AsLayer().PopGids(pp.Pop)) {
			t.Errorf("recorder on %s has %d incoming connections, want %d", pp.Nm, found, len(pp.Lay.AsLayer().PopGids(pp.Pop)))
		}
	}
	// repeat create is a warn-and-skip no-op
	before := len(st.Conns())
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	if len(st.Conns()) != before {
		t.Error("repeat create issued engine calls")
	}
}

func TestNetworkDuplicateProjection(t *testing.T) {
	tree := testNetTree()
	topo, err := tree.Node("topology")
	if err != nil {
		t.Fatal(err)
	}
	ent := map[string]any{
		"projection_model":  "ff",
		"source_layers":     []any{"input"},
		"source_population": RelayModel,
		"target_layers":     []any{"l1"},
		"target_population": "B",
	}
	topo.SetData("projections", []any{ent, ent})
	if _, err := NewNetwork(tree); !errors.Is(err, ErrConfiguration) {
		t.Errorf("duplicate projection: got %v, want ErrConfiguration", err)
	}
}

func TestNetworkChangeUnitStates(t *testing.T) {
	nt, err := NewNetwork(testNetTree())
	if err != nil {
		t.Fatal(err)
	}
	st := engine.NewStub()
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	rnd := rand.New(rand.NewSource(5))
	full := []UnitChange{{
		Layers: []string{"l1"}, Pop: "B", Proportion: 1,
		Type: Constant, Changes: map[string]float64{"V_m": -50},
	}}
	if err := nt.ChangeUnitStates(st, full, rnd); err != nil {
		t.Fatal(err)
	}
	for _, gid := range nt.Layer("l1").AsLayer().PopGids("B") {
		if v, _ := st.GetStatus(gid, "V_m"); v != -50.0 {
			t.Errorf("element %d V_m = %v, want -50", gid, v)
		}
	}
	if nt.ProbChg {
		t.Error("full-proportion change armed the network guard")
	}
	// unknown layer
	bad := []UnitChange{{Layers: []string{"zz"}, Proportion: 1, Type: Constant, Changes: map[string]float64{"V_m": 0}}}
	if err := nt.ChangeUnitStates(st, bad, rnd); !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown layer: got %v, want ErrConfiguration", err)
	}
	// empty parameter sets are no-ops and never arm the guard
	noop := []UnitChange{{Layers: []string{"l1"}, Proportion: 0.5, Type: Constant}}
	if err := nt.ChangeUnitStates(st, noop, rnd); err != nil {
		t.Fatal(err)
	}
	if nt.ProbChg {
		t.Error("empty directive armed the network guard")
	}
}

func TestNetworkProbChangeGuard(t *testing.T) {
	nt, err := NewNetwork(testNetTree())
	if err != nil {
		t.Fatal(err)
	}
	st := engine.NewStub()
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	rnd := rand.New(rand.NewSource(5))
	prob := []UnitChange{{
		Layers: []string{"l1"}, Pop: "B", Proportion: 0.5,
		Type: Constant, Changes: map[string]float64{"V_m": -50},
	}}
	if err := nt.ChangeUnitStates(st, prob, rnd); err != nil {
		t.Fatal(err)
	}
	if !nt.ProbChg {
		t.Fatal("probabilistic change did not arm the network guard")
	}
	// the guard is process-wide: a later probabilistic change fails even
	// on a different layer
	other := []UnitChange{{
		Layers: []string{"input"}, Proportion: 0.5,
		Type: Constant, Changes: map[string]float64{"rate": 10},
	}}
	if err := nt.ChangeUnitStates(st, other, rnd); !errors.Is(err, ErrProbChange) {
		t.Errorf("second probabilistic change: got %v, want ErrProbChange", err)
	}
	// full-proportion changes remain allowed
	full := []UnitChange{{
		Layers: []string{"l1"}, Pop: "B", Proportion: 1,
		Type: Constant, Changes: map[string]float64{"V_m": -60},
	}}
	if err := nt.ChangeUnitStates(st, full, rnd); err != nil {
		t.Errorf("full change after guard: %v", err)
	}
}

func TestNetworkChangeSynapseStates(t *testing.T) {
	nt, err := NewNetwork(testNetTree())
	if err != nil {
		t.Fatal(err)
	}
	st := engine.NewStub()
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	chs := []SynChange{{SynModel: "static_synapse", Params: map[string]any{"weight": 9.0}}}
	if err := nt.ChangeSynapseStates(st, chs); err != nil {
		t.Fatal(err)
	}
	for _, cn := range st.Conns() {
		if cn.SynModel == "static_synapse" && cn.Weight != 9.0 {
			t.Errorf("connection %d->%d weight = %v, want 9", cn.Src, cn.Tgt, cn.Weight)
		}
	}
}

func TestNetworkSetInput(t *testing.T) {
	nt, err := NewNetwork(testNetTree())
	if err != nil {
		t.Fatal(err)
	}
	st := engine.NewStub()
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	rnd := rand.New(rand.NewSource(5))
	arr := etensor.NewFloat64([]int{1, 2, 2}, nil, nil)
	if err := nt.SetInput(st, map[string]*etensor.Float64{"input": arr}, 0, rnd); err != nil {
		t.Fatal(err)
	}
	if err := nt.SetInput(st, map[string]*etensor.Float64{"l1": arr}, 0, rnd); !errors.Is(err, ErrConfiguration) {
		t.Errorf("stimulus on a regular layer: got %v, want ErrConfiguration", err)
	}
}

func TestNetworkEventRetrieval(t *testing.T) {
	nt, err := NewNetwork(testNetTree())
	if err != nil {
		t.Fatal(err)
	}
	st := engine.NewStub()
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	var pp *Population
	for _, p := range nt.Populations {
		if p.Lay.Name() == "l1" && p.Pop == "A" {
			pp = p
		}
	}
	if pp == nil {
		t.Fatal("no recorded population l1/A")
	}
	gids := pp.Lay.AsLayer().PopGids("A")
	st.InjectEvents(pp.Rcs[0].Gid, &engine.Events{
		Times:   []float64{10.5, 12.0, 12.5},
		Senders: []engine.ElemID{gids[0], gids[1], gids[0]},
	})
	dt, err := pp.SpikeTable(st)
	if err != nil {
		t.Fatal(err)
	}
	if dt.Rows != 3 {
		t.Fatalf("got %d event rows, want 3", dt.Rows)
	}
	if dt.CellFloat("Time", 0) != 10.5 {
		t.Errorf("row 0 time = %v, want 10.5", dt.CellFloat("Time", 0))
	}
	loc := pp.Lay.AsLayer().Locations()[gids[1]]
	if int(dt.CellFloat("Row", 1)) != loc.Row || int(dt.CellFloat("Col", 1)) != loc.Col {
		t.Errorf("row 1 location = (%v,%v), want (%d,%d)", dt.CellFloat("Row", 1), dt.CellFloat("Col", 1), loc.Row, loc.Col)
	}
}

func TestNetworkSizeReport(t *testing.T) {
	nt, err := NewNetwork(testNetTree())
	if err != nil {
		t.Fatal(err)
	}
	st := engine.NewStub()
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	rep := nt.SizeReport()
	if !strings.Contains(rep, "elements: 20") {
		t.Errorf("size report missing element count:\n%s", rep)
	}
	if !strings.Contains(rep, "layers: 2") {
		t.Errorf("size report missing layer count:\n%s", rep)
	}
}
