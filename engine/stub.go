// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
)

// Stub is a deterministic in-memory engine implementing the Engine
// interface.  It allocates sequential element ids grouped per grid
// location in element-spec order, keeps a model table with defaults, and
// records every connection, so tests can assert on exactly what the
// construction layer asked the kernel to do.  It performs no geometry for
// ConnectLayers and no integration for Simulate.
type Stub struct {
	Models  map[string]*Defaults `desc:"registered models by name"`
	elems   map[ElemID]*stubElem
	layers  map[LayerID]*stubLayer
	conns   []Conn
	spatial []SpatialCall
	events  map[ElemID]*Events
	time    float64
	nextEl  ElemID
	nextLay LayerID
}

// SpatialCall records one ConnectLayers invocation.
type SpatialCall struct {
	Src, Tgt LayerID
	Spec     *ConnSpec
}

type stubElem struct {
	Model  string
	Status map[string]any
}

type stubLayer struct {
	Rows, Cols int
	AtLoc      map[[2]int][]ElemID
	All        []ElemID
}

// NewStub returns a stub engine preloaded with the builtin device and
// synapse models a spiking kernel provides out of the box.
func NewStub() *Stub {
	st := &Stub{
		Models: map[string]*Defaults{},
		elems:  map[ElemID]*stubElem{},
		layers: map[LayerID]*stubLayer{},
		events: map[ElemID]*Events{},
	}
	builtins := map[string]string{
		"poisson_generator": "poisson_generator",
		"spike_generator":   "spike_generator",
		"parrot_neuron":     "neuron",
		"static_synapse":    "synapse",
		"multimeter":        "multimeter",
		"spike_detector":    "spike_detector",
	}
	for nm, tid := range builtins {
		st.AddModel(nm, &Defaults{TypeID: tid, Params: map[string]any{}})
	}
	return st
}

// AddModel registers a model directly, for seeding engine builtins that
// the construction layer assumes to exist.
func (st *Stub) AddModel(name string, df *Defaults) {
	if df.Params == nil {
		df.Params = map[string]any{}
	}
	st.Models[name] = df
}

func (st *Stub) CreateModel(base, name string, par map[string]any) error {
	bd, ok := st.Models[base]
	if !ok {
		return fmt.Errorf("engine: unknown base model %q", base)
	}
	if _, ok := st.Models[name]; ok {
		return fmt.Errorf("engine: model %q already exists", name)
	}
	nd := &Defaults{TypeID: bd.TypeID, ReceptorTypes: bd.ReceptorTypes, Params: map[string]any{}}
	for k, v := range bd.Params {
		nd.Params[k] = v
	}
	for k, v := range par {
		nd.Params[k] = v
	}
	st.Models[name] = nd
	return nil
}

func (st *Stub) SetModelDefaults(model string, par map[string]any) error {
	df, ok := st.Models[model]
	if !ok {
		return fmt.Errorf("engine: unknown model %q", model)
	}
	for k, v := range par {
		df.Params[k] = v
	}
	return nil
}

func (st *Stub) ModelDefaults(model string) (*Defaults, error) {
	df, ok := st.Models[model]
	if !ok {
		return nil, fmt.Errorf("engine: unknown model %q", model)
	}
	return df, nil
}

func (st *Stub) CreateLayer(rows, cols int, elems []ElementCount, par map[string]any) (LayerID, error) {
	if rows <= 0 || cols <= 0 {
		return 0, fmt.Errorf("engine: invalid layer shape %d x %d", rows, cols)
	}
	lay := &stubLayer{Rows: rows, Cols: cols, AtLoc: map[[2]int][]ElemID{}}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for _, ec := range elems {
				df, ok := st.Models[ec.Model]
				if !ok {
					return 0, fmt.Errorf("engine: unknown element model %q", ec.Model)
				}
				for i := 0; i < ec.N; i++ {
					id := st.newElem(ec.Model, df)
					lay.AtLoc[[2]int{r, c}] = append(lay.AtLoc[[2]int{r, c}], id)
					lay.All = append(lay.All, id)
				}
			}
		}
	}
	st.nextLay++
	st.layers[st.nextLay] = lay
	return st.nextLay, nil
}

func (st *Stub) newElem(model string, df *Defaults) ElemID {
	st.nextEl++
	status := map[string]any{}
	for k, v := range df.Params {
		status[k] = v
	}
	st.elems[st.nextEl] = &stubElem{Model: model, Status: status}
	return st.nextEl
}

func (st *Stub) Elements(lay LayerID) ([]ElemID, error) {
	sl, ok := st.layers[lay]
	if !ok {
		return nil, fmt.Errorf("engine: unknown layer %d", lay)
	}
	return append([]ElemID{}, sl.All...), nil
}

func (st *Stub) ElementsAt(lay LayerID, row, col int) ([]ElemID, error) {
	sl, ok := st.layers[lay]
	if !ok {
		return nil, fmt.Errorf("engine: unknown layer %d", lay)
	}
	if row < 0 || row >= sl.Rows || col < 0 || col >= sl.Cols {
		return nil, fmt.Errorf("engine: location (%d,%d) outside layer %d", row, col, lay)
	}
	return append([]ElemID{}, sl.AtLoc[[2]int{row, col}]...), nil
}

func (st *Stub) CreateElements(model string, n int) ([]ElemID, error) {
	df, ok := st.Models[model]
	if !ok {
		return nil, fmt.Errorf("engine: unknown model %q", model)
	}
	ids := make([]ElemID, n)
	for i := range ids {
		ids[i] = st.newElem(model, df)
	}
	return ids, nil
}

func (st *Stub) Connect(src, tgt []ElemID, rule string, syn map[string]any) error {
	model := "static_synapse"
	label := 0
	weight := 1.0
	delay := 1.0
	if syn != nil {
		if m, ok := syn["model"].(string); ok {
			model = m
		}
		if l, ok := syn["synapse_label"].(int); ok {
			label = l
		}
		if w, ok := syn["weight"].(float64); ok {
			weight = w
		}
		if d, ok := syn["delay"].(float64); ok {
			delay = d
		}
	}
	switch rule {
	case "one_to_one":
		if len(src) != len(tgt) {
			return fmt.Errorf("engine: one_to_one connect with %d sources and %d targets", len(src), len(tgt))
		}
		for i := range src {
			st.conns = append(st.conns, Conn{Src: src[i], Tgt: tgt[i], SynModel: model, Label: label, Weight: weight, Delay: delay})
		}
	case "all_to_all":
		for _, s := range src {
			for _, t := range tgt {
				st.conns = append(st.conns, Conn{Src: s, Tgt: t, SynModel: model, Label: label, Weight: weight, Delay: delay})
			}
		}
	default:
		return fmt.Errorf("engine: unknown connection rule %q", rule)
	}
	return nil
}

func (st *Stub) ConnectLayers(src, tgt LayerID, spec *ConnSpec) error {
	if _, ok := st.layers[src]; !ok {
		return fmt.Errorf("engine: unknown source layer %d", src)
	}
	if _, ok := st.layers[tgt]; !ok {
		return fmt.Errorf("engine: unknown target layer %d", tgt)
	}
	if spec == nil {
		return fmt.Errorf("engine: nil connection spec")
	}
	st.spatial = append(st.spatial, SpatialCall{Src: src, Tgt: tgt, Spec: spec.Clone()})
	return nil
}

func (st *Stub) Connections(filt Filter) ([]Conn, error) {
	var out []Conn
	for _, cn := range st.conns {
		if filt.Match(cn) {
			out = append(out, cn)
		}
	}
	return out, nil
}

func (st *Stub) SetConnStatus(filt Filter, par map[string]any) error {
	for i := range st.conns {
		if !filt.Match(st.conns[i]) {
			continue
		}
		if w, ok := par["weight"].(float64); ok {
			st.conns[i].Weight = w
		}
		if d, ok := par["delay"].(float64); ok {
			st.conns[i].Delay = d
		}
	}
	return nil
}

func (st *Stub) GetStatus(el ElemID, key string) (any, error) {
	se, ok := st.elems[el]
	if !ok {
		return nil, fmt.Errorf("engine: unknown element %d", el)
	}
	if key == "model" {
		return se.Model, nil
	}
	if key == "events" {
		if ev, ok := st.events[el]; ok {
			return ev, nil
		}
		return &Events{}, nil
	}
	if v, ok := se.Status[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("engine: element %d has no status key %q", el, key)
}

func (st *Stub) SetStatus(els []ElemID, par map[string]any) error {
	for _, el := range els {
		se, ok := st.elems[el]
		if !ok {
			return fmt.Errorf("engine: unknown element %d", el)
		}
		for k, v := range par {
			se.Status[k] = v
		}
	}
	return nil
}

func (st *Stub) Simulate(ms float64) error {
	if ms < 0 {
		return fmt.Errorf("engine: negative simulation duration %g", ms)
	}
	st.time += ms
	return nil
}

func (st *Stub) Time() float64 { return st.time }

func (st *Stub) ResetNetwork() error {
	for _, se := range st.elems {
		df := st.Models[se.Model]
		se.Status = map[string]any{}
		for k, v := range df.Params {
			se.Status[k] = v
		}
	}
	return nil
}

// InjectEvents loads recorded events onto a recorder element, so tests
// can exercise retrieval and reshaping without a real kernel.
func (st *Stub) InjectEvents(rec ElemID, ev *Events) {
	st.events[rec] = ev
}

// Conns returns a copy of all recorded connections.
func (st *Stub) Conns() []Conn {
	return append([]Conn{}, st.conns...)
}

// SpatialCalls returns all recorded ConnectLayers invocations.
func (st *Stub) SpatialCalls() []SpatialCall {
	return append([]SpatialCall{}, st.spatial...)
}

var _ Engine = (*Stub)(nil)
