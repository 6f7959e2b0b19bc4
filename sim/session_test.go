// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/TomBugnon/NETS/engine"
	"github.com/TomBugnon/NETS/network"
	"github.com/TomBugnon/NETS/params"
	"github.com/emer/etable/etensor"
)

func sessionNetTree() *params.Node {
	nt := params.NewNode("network")
	nm := nt.NewChild("neuron_models")
	nm.SetData("base_model", "parrot_neuron")
	nm.NewChild("A").SetData("V_m", -70.0)
	lys := nt.NewChild("layers")
	l1 := lys.NewChild("l1")
	l1.SetData("rows", 2)
	l1.SetData("columns", 2)
	l1.SetData("populations", map[string]any{"A": 1})
	in := lys.NewChild("input")
	in.SetData("type", "InputLayer")
	in.SetData("rows", 2)
	in.SetData("columns", 2)
	in.SetData("populations", map[string]any{"spike_generator": 1})
	return nt
}

func newSessionNet(t *testing.T) (*network.Network, *engine.Stub) {
	t.Helper()
	nt, err := network.NewNetwork(sessionNetTree())
	if err != nil {
		t.Fatal(err)
	}
	st := engine.NewStub()
	if err := nt.Create(st); err != nil {
		t.Fatal(err)
	}
	return nt, st
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := NewSession("s", map[string]any{}); !errors.Is(err, network.ErrParameter) {
		t.Errorf("missing simulation_time: got %v, want ErrParameter", err)
	}
	if _, err := NewSession("s", map[string]any{"simulation_time": -5.0}); !errors.Is(err, network.ErrParameter) {
		t.Errorf("negative simulation_time: got %v, want ErrParameter", err)
	}
	ss, err := NewSession("s", map[string]any{"simulation_time": 100.0})
	if err != nil {
		t.Fatal(err)
	}
	if !ss.Cfg.Record || ss.Cfg.Reset {
		t.Errorf("defaults: record = %v, reset = %v, want true/false", ss.Cfg.Record, ss.Cfg.Reset)
	}
	if _, err := NewSession("s", map[string]any{
		"simulation_time": 1.0,
		"unit_changes":    []any{map[string]any{"change_type": "sideways"}},
	}); !errors.Is(err, network.ErrParameter) {
		t.Errorf("bad change_type: got %v, want ErrParameter", err)
	}
}

func TestSessionRun(t *testing.T) {
	nt, st := newSessionNet(t)
	rnd := rand.New(rand.NewSource(9))
	ss, err := NewSession("warmup", map[string]any{
		"simulation_time": 50.0,
		"unit_changes": []any{map[string]any{
			"layers":      []any{"l1"},
			"population":  "A",
			"change_type": "constant",
			"params":      map[string]any{"V_m": -55.0},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ss.Run(st, nt, rnd); err != nil {
		t.Fatal(err)
	}
	if ss.Start != 0 || ss.End != 50 {
		t.Errorf("session span = [%v, %v], want [0, 50]", ss.Start, ss.End)
	}
	for _, gid := range nt.Layer("l1").AsLayer().PopGids("A") {
		if v, _ := st.GetStatus(gid, "V_m"); v != -55.0 {
			t.Errorf("element %d V_m = %v, want -55", gid, v)
		}
	}
	// second session starts where the first ended
	ss2, err := NewSession("main", map[string]any{"simulation_time": 30.0})
	if err != nil {
		t.Fatal(err)
	}
	if err := ss2.Run(st, nt, rnd); err != nil {
		t.Fatal(err)
	}
	if ss2.Start != 50 || ss2.End != 80 {
		t.Errorf("second session span = [%v, %v], want [50, 80]", ss2.Start, ss2.End)
	}
}

func TestSessionReset(t *testing.T) {
	nt, st := newSessionNet(t)
	rnd := rand.New(rand.NewSource(9))
	gids := nt.Layer("l1").AsLayer().PopGids("A")
	if err := st.SetStatus(gids, map[string]any{"V_m": -10.0}); err != nil {
		t.Fatal(err)
	}
	ss, err := NewSession("reset", map[string]any{
		"simulation_time": 10.0,
		"reset_network":   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ss.Run(st, nt, rnd); err != nil {
		t.Fatal(err)
	}
	for _, gid := range gids {
		if v, _ := st.GetStatus(gid, "V_m"); v != -70.0 {
			t.Errorf("element %d V_m = %v, want model default -70 after reset", gid, v)
		}
	}
}

func TestSessionInputOffset(t *testing.T) {
	nt, st := newSessionNet(t)
	rnd := rand.New(rand.NewSource(9))
	if err := st.Simulate(200); err != nil {
		t.Fatal(err)
	}
	ss, err := NewSession("stim", map[string]any{"simulation_time": 10.0})
	if err != nil {
		t.Fatal(err)
	}
	arr := etensor.NewFloat64([]int{2, 2, 2}, nil, nil)
	for i := range arr.Values {
		arr.Values[i] = 1e6
	}
	ss.SetInputs(map[string]*etensor.Float64{"input": arr})
	if err := ss.Run(st, nt, rnd); err != nil {
		t.Fatal(err)
	}
	// spike trains are offset by the kernel time at session start
	il := nt.Layer("input").AsLayer()
	for _, gid := range il.PopGids("spike_generator") {
		v, err := st.GetStatus(gid, "spike_times")
		if err != nil {
			t.Fatal(err)
		}
		times := v.([]float64)
		if len(times) != 2 || times[0] != 201 || times[1] != 202 {
			t.Errorf("element %d spike times = %v, want [201 202]", gid, times)
		}
	}
}
