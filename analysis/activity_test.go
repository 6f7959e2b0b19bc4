// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/TomBugnon/NETS/engine"
	"github.com/TomBugnon/NETS/network"
	"github.com/emer/etable/etensor"
)

func activityArray(vals [][][]float64) *etensor.Float64 {
	t := len(vals)
	r := len(vals[0])
	c := len(vals[0][0])
	arr := etensor.NewFloat64([]int{t, r, c}, nil, []string{"T", "Y", "X"})
	for k := 0; k < t; k++ {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				arr.Set([]int{k, i, j}, vals[k][i][j])
			}
		}
	}
	return arr
}

func TestMeanActivity(t *testing.T) {
	arr := activityArray([][][]float64{
		{{1, 0}, {2, 4}},
		{{3, 0}, {2, 0}},
	})
	mn, err := MeanActivity(arr, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{{2, 0}, {2, 2}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if got := mn.Value([]int{i, j}); got != want[i][j] {
				t.Errorf("mean[%d][%d] = %v, want %v", i, j, got, want[i][j])
			}
		}
	}
}

func TestMeanActivitySpikes(t *testing.T) {
	// 2 spikes over 4 frames at 1 ms interval = 0.5 per frame = 500 Hz
	arr := activityArray([][][]float64{
		{{1}}, {{0}}, {{1}}, {{0}},
	})
	mn, err := MeanActivity(arr, true, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := mn.Value([]int{0, 0}); got != 500 {
		t.Errorf("rate = %v Hz, want 500", got)
	}
	if _, err := MeanActivity(arr, true, 0); !errors.Is(err, network.ErrParameter) {
		t.Errorf("zero interval: got %v, want ErrParameter", err)
	}
}

func TestMeanActivityShape(t *testing.T) {
	bad := etensor.NewFloat64([]int{2, 2}, nil, nil)
	if _, err := MeanActivity(bad, false, 0); !errors.Is(err, network.ErrShape) {
		t.Errorf("2D activity: got %v, want ErrShape", err)
	}
}

func TestISI(t *testing.T) {
	train := []float64{0, 1, 0, 0, 1, 1, 0, 0, 0, 1}
	isis := ISI(train, 1)
	want := []float64{3, 1, 4}
	if len(isis) != len(want) {
		t.Fatalf("got %v, want %v", isis, want)
	}
	for i := range want {
		if isis[i] != want[i] {
			t.Errorf("isi[%d] = %v, want %v", i, isis[i], want[i])
		}
	}
	// intervals come back in ms, scaled by the recording interval
	ms := ISI(train, 2)
	for i := range want {
		if ms[i] != 2*want[i] {
			t.Errorf("isi[%d] at 2 ms frames = %v, want %v", i, ms[i], 2*want[i])
		}
	}
	if got := ISI([]float64{0, 0, 0}, 1); len(got) != 0 {
		t.Errorf("silent train has intervals: %v", got)
	}
	if got := ISI([]float64{0, 1, 0}, 1); len(got) != 0 {
		t.Errorf("single spike has intervals: %v", got)
	}
}

func TestCV(t *testing.T) {
	// regular train: no variance
	if got := CV([]float64{2, 2, 2, 2}); got != 0 {
		t.Errorf("regular CV = %v, want 0", got)
	}
	// intervals {1, 3}: mean 2, sd 1, CV 0.5
	if got := CV([]float64{1, 3}); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("CV = %v, want 0.5", got)
	}
	if got := CV(nil); got != 0 {
		t.Errorf("empty CV = %v, want 0", got)
	}
	if got := CV([]float64{5}); got != 0 {
		t.Errorf("single-interval CV = %v, want 0", got)
	}
}

func TestAllCV(t *testing.T) {
	// unit (0,0) spikes regularly, unit (0,1) is silent
	arr := activityArray([][][]float64{
		{{1, 0}}, {{0, 0}}, {{1, 0}}, {{0, 0}}, {{1, 0}},
	})
	cv, err := AllCV(arr)
	if err != nil {
		t.Fatal(err)
	}
	if got := cv.Value([]int{0, 0}); got != 0 {
		t.Errorf("regular unit CV = %v, want 0", got)
	}
	if got := cv.Value([]int{0, 1}); got != 0 {
		t.Errorf("silent unit CV = %v, want 0", got)
	}
}

func TestAllISI(t *testing.T) {
	arr := activityArray([][][]float64{
		{{1, 0}}, {{1, 0}}, {{0, 1}}, {{1, 1}},
	})
	isis, err := AllISI(arr, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	u0 := isis[0][0]
	if len(u0) != 2 || u0[0] != 0.5 || u0[1] != 1 {
		t.Errorf("unit (0,0) intervals = %v, want [0.5 1]", u0)
	}
	u1 := isis[0][1]
	if len(u1) != 1 || u1[0] != 0.5 {
		t.Errorf("unit (0,1) intervals = %v, want [0.5]", u1)
	}
	if _, err := AllISI(arr, 0); !errors.Is(err, network.ErrParameter) {
		t.Errorf("zero interval error = %v, want ErrParameter", err)
	}
}

func TestActivityArray(t *testing.T) {
	st := engine.NewStub()
	if err := st.CreateModel("parrot_neuron", "A", nil); err != nil {
		t.Fatal(err)
	}
	ly, err := network.NewLayer("l1", map[string]any{
		"rows":        2,
		"columns":     2,
		"populations": map[string]any{"A": 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ly.Create(st); err != nil {
		t.Fatal(err)
	}
	pp, err := network.NewPopulation(ly, "A", []*network.Recorder{network.NewRecorder("spike_detector", nil)})
	if err != nil {
		t.Fatal(err)
	}
	if err := pp.Create(st); err != nil {
		t.Fatal(err)
	}
	gids := ly.PopGids("A")
	st.InjectEvents(pp.Rcs[0].Gid, &engine.Events{
		Times:   []float64{101, 103, 103, 250},
		Senders: []engine.ElemID{gids[0], gids[0], gids[3], gids[1]},
	})
	act, err := ActivityArray(st, pp, 100, 3)
	if err != nil {
		t.Fatal(err)
	}
	if act.NumDims() != 3 || act.Dim(0) != 3 || act.Dim(1) != 2 || act.Dim(2) != 2 {
		t.Fatalf("activity array shape = %d x %d x %d", act.Dim(0), act.Dim(1), act.Dim(2))
	}
	if got := act.Value([]int{0, 0, 0}); got != 1 {
		t.Errorf("frame 0 unit (0,0) = %v, want 1", got)
	}
	if got := act.Value([]int{2, 0, 0}); got != 1 {
		t.Errorf("frame 2 unit (0,0) = %v, want 1", got)
	}
	if got := act.Value([]int{2, 1, 1}); got != 1 {
		t.Errorf("frame 2 unit (1,1) = %v, want 1", got)
	}
	sum := 0.0
	for _, v := range act.Values {
		sum += v
	}
	if sum != 3 {
		t.Errorf("total spike count = %v, want 3 (out-of-window event dropped)", sum)
	}
	if _, err := ActivityArray(st, pp, 100, 0); !errors.Is(err, network.ErrParameter) {
		t.Errorf("zero duration error = %v, want ErrParameter", err)
	}
}
