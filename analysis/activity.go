// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package analysis computes summary statistics over recorded activity
arrays.  Activity is always a 3D tensor (time x rows x cols), one frame
per recording interval, as produced from recorder events.
*/
package analysis

import (
	"fmt"
	"math"

	"github.com/TomBugnon/NETS/engine"
	"github.com/TomBugnon/NETS/network"
	"github.com/emer/etable/etensor"
)

// ActivityArray bins the spike events of a recorded population into a
// (time x rows x cols) activity array with 1 ms frames, counting spikes
// per layer location.  Events outside [start, start+dur) are dropped,
// as are events from elements outside the layer.
func ActivityArray(eng engine.Engine, pp *network.Population, start, dur float64) (*etensor.Float64, error) {
	if dur <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %g", network.ErrParameter, dur)
	}
	ly := pp.Lay.AsLayer()
	nt := int(dur)
	act := etensor.NewFloat64([]int{nt, ly.Rows(), ly.Cols()}, nil, []string{"Time", "Row", "Col"})
	locs := ly.Locations()
	for _, rc := range pp.Rcs {
		if rc.Type != network.SpikeDetectorType {
			continue
		}
		ev, err := rc.Events(eng)
		if err != nil {
			return nil, err
		}
		for i, tm := range ev.Times {
			// spikes are stamped at the end of their 1 ms frame
			fr := int(math.Ceil(tm-start)) - 1
			if fr < 0 || fr >= nt {
				continue
			}
			loc, ok := locs[ev.Senders[i]]
			if !ok {
				continue
			}
			idx := []int{fr, loc.Row, loc.Col}
			act.Set(idx, act.Value(idx)+1)
		}
	}
	return act, nil
}

// dims validates the 3D layout of an activity array.
func dims(act *etensor.Float64) (t, r, c int, err error) {
	if act.NumDims() != 3 {
		return 0, 0, 0, fmt.Errorf("%w: activity array must be 3D (time x rows x cols), got %d dims", network.ErrShape, act.NumDims())
	}
	return act.Dim(0), act.Dim(1), act.Dim(2), nil
}

// MeanActivity returns the per-unit mean of an activity array over
// time, as a rows x cols tensor.  For spike trains the mean is scaled
// by 1000/interval so the result is a rate in Hz, with interval the
// recording interval in ms.
func MeanActivity(act *etensor.Float64, spikes bool, interval float64) (*etensor.Float64, error) {
	t, r, c, err := dims(act)
	if err != nil {
		return nil, err
	}
	if spikes && interval <= 0 {
		return nil, fmt.Errorf("%w: recording interval must be positive, got %v", network.ErrParameter, interval)
	}
	out := etensor.NewFloat64([]int{r, c}, nil, []string{"Y", "X"})
	if t == 0 {
		return out, nil
	}
	scale := 1.0
	if spikes {
		scale = 1000.0 / interval
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum := 0.0
			for k := 0; k < t; k++ {
				sum += act.Value([]int{k, i, j})
			}
			out.Set([]int{i, j}, scale*sum/float64(t))
		}
	}
	return out, nil
}

// UnitTrain extracts the time series of a single unit.
func UnitTrain(act *etensor.Float64, row, col int) ([]float64, error) {
	t, r, c, err := dims(act)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= r || col < 0 || col >= c {
		return nil, fmt.Errorf("%w: unit (%d,%d) outside %dx%d activity array", network.ErrShape, row, col, r, c)
	}
	train := make([]float64, t)
	for k := 0; k < t; k++ {
		train[k] = act.Value([]int{k, row, col})
	}
	return train, nil
}

// ISI returns the inter-spike intervals of a 0/1 spike train, in ms,
// with interval the recording interval in ms per frame.  Any positive
// sample counts as a spike.
func ISI(train []float64, interval float64) []float64 {
	var last = -1
	var isis []float64
	for k, v := range train {
		if v <= 0 {
			continue
		}
		if last >= 0 {
			isis = append(isis, float64(k-last)*interval)
		}
		last = k
	}
	return isis
}

// AllISI returns the inter-spike intervals of every unit in ms, indexed
// [row][col], with interval the recording interval in ms per frame.
func AllISI(act *etensor.Float64, interval float64) ([][][]float64, error) {
	_, r, c, err := dims(act)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: recording interval must be positive, got %v", network.ErrParameter, interval)
	}
	out := make([][][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([][]float64, c)
		for j := 0; j < c; j++ {
			train, err := UnitTrain(act, i, j)
			if err != nil {
				return nil, err
			}
			out[i][j] = ISI(train, interval)
		}
	}
	return out, nil
}

// CV returns the coefficient of variation (sd/mean) of a list of
// intervals.  Fewer than two intervals, or a zero mean, yields 0.
func CV(isis []float64) float64 {
	if len(isis) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range isis {
		mean += v
	}
	mean /= float64(len(isis))
	if mean == 0 {
		return 0
	}
	vr := 0.0
	for _, v := range isis {
		d := v - mean
		vr += d * d
	}
	vr /= float64(len(isis))
	return math.Sqrt(vr) / mean
}

// AllCV returns the per-unit coefficient of variation of inter-spike
// intervals as a rows x cols tensor.  Silent or single-spike units get
// a 0.  CV is a ratio, so the recording interval drops out.
func AllCV(act *etensor.Float64) (*etensor.Float64, error) {
	isis, err := AllISI(act, 1)
	if err != nil {
		return nil, err
	}
	r := len(isis)
	c := 0
	if r > 0 {
		c = len(isis[0])
	}
	out := etensor.NewFloat64([]int{r, c}, nil, []string{"Y", "X"})
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set([]int{i, j}, CV(isis[i][j]))
		}
	}
	return out, nil
}
