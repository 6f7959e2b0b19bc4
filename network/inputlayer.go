// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/TomBugnon/NETS/engine"
	"github.com/emer/etable/etensor"
	"github.com/goki/ki/kit"
)

// RelayModel is the model of the synthetic relay population added to
// every input layer, wired one-to-one to the stimulators so the layer can
// serve as a recordable, connectable proxy.
const RelayModel = "parrot_neuron"

// RateStimulator and SpikeStimulator are the two engine device types an
// input layer stimulator may resolve to.
const (
	RateStimulator  = "poisson_generator"
	SpikeStimulator = "spike_generator"
)

// InputLayer is a layer of stimulation devices.  Its declared parameters
// must specify a single stimulator population with one unit per location;
// a relay population is added automatically and connected one-to-one.
type InputLayer struct {
	Layer
	Stim    string `desc:"stimulator population model name"`
	DevType string `desc:"engine device type of the stimulator, resolved at create"`
}

var KiT_InputLayer = kit.Types.AddType(&InputLayer{}, LayerProps)

var _ AnyLayer = (*InputLayer)(nil)
var _ AnyLayer = (*Layer)(nil)

// NewInputLayer builds an input layer from flat resolved parameters.  The
// populations mapping must hold exactly one stimulator population with
// exactly one unit per location.
func NewInputLayer(name string, flat map[string]any) (*InputLayer, error) {
	cf, err := parseLayerConfig(name, flat)
	if err != nil {
		return nil, err
	}
	if len(cf.Populations) != 1 {
		return nil, fmt.Errorf("%w: input layer %q: must declare a single stimulator population, got %d", ErrConfiguration, name, len(cf.Populations))
	}
	if cf.Populations[0].N != 1 {
		return nil, fmt.Errorf("%w: input layer %q: stimulator population must have one unit per location", ErrConfiguration, name)
	}
	il := &InputLayer{}
	il.Nm = name
	il.Cfg = cf
	il.Typ = LayerInput
	il.Stim = cf.Populations[0].Pop
	il.Cfg.Populations = append(il.Cfg.Populations, PopCount{Pop: RelayModel, N: 1})
	il.Shp.SetShape([]int{cf.Rows, cf.Cols}, nil, []string{"Y", "X"})
	return il, nil
}

// RecordablePopNames returns the relay population only: stimulator
// devices themselves are not recordable.
func (il *InputLayer) RecordablePopNames() []string { return []string{RelayModel} }

// Create allocates the layer, then connects every stimulator to its
// co-located relay unit one-to-one and resolves the stimulator's device
// type, which must be a supported stimulator.
func (il *InputLayer) Create(eng engine.Engine) error {
	return il.OnCreate("input layer", func() error {
		if err := il.create(eng); err != nil {
			return err
		}
		var stim, relay []engine.ElemID
		for r := 0; r < il.Rows(); r++ {
			for c := 0; c < il.Cols(); c++ {
				loc := Location{Row: r, Col: c}
				stim = append(stim, il.Gids(GidSel{Pops: []string{il.Stim}, Loc: &loc})...)
				relay = append(relay, il.Gids(GidSel{Pops: []string{RelayModel}, Loc: &loc})...)
			}
		}
		syn := map[string]any{"model": "static_synapse"}
		if err := eng.Connect(stim, relay, "one_to_one", syn); err != nil {
			return err
		}
		df, err := eng.ModelDefaults(il.Stim)
		if err != nil {
			return err
		}
		il.DevType = df.TypeID
		if il.DevType != RateStimulator && il.DevType != SpikeStimulator {
			return fmt.Errorf("%w: input layer %q: stimulator %q has device type %q", ErrUnsupportedDevice, il.Nm, il.Stim, il.DevType)
		}
		return nil
	})
}

// SetInput sets the stimulator state from a 3D (time x row x col) rate
// array, starting at the given kernel time.  Rate-based stimulators use
// only the first time slice, broadcast as per-location instantaneous
// rates; spike-time stimulators receive per-location spike trains drawn
// stochastically from the full array.  The array's spatial extent must
// cover the layer shape; any excess is cropped.
func (il *InputLayer) SetInput(eng engine.Engine, arr *etensor.Float64, start float64, rnd *rand.Rand) error {
	if il.State != Created {
		return fmt.Errorf("%w: input layer %q", ErrNotCreated, il.Nm)
	}
	if arr.NumDims() != 3 {
		return fmt.Errorf("%w: input layer %q: stimulus array must be 3D (time x row x col), got %dD", ErrShape, il.Nm, arr.NumDims())
	}
	if arr.Dim(1) < il.Rows() || arr.Dim(2) < il.Cols() {
		return fmt.Errorf("%w: input layer %q: stimulus array %d x %d smaller than layer %d x %d", ErrShape, il.Nm, arr.Dim(1), arr.Dim(2), il.Rows(), il.Cols())
	}
	scale := il.Cfg.RateScale
	maxRate := 0.0
	for t := 0; t < arr.Dim(0); t++ {
		for r := 0; r < il.Rows(); r++ {
			for c := 0; c < il.Cols(); c++ {
				if v := scale * arr.Value([]int{t, r, c}); v > maxRate {
					maxRate = v
				}
			}
		}
	}
	log.Printf("input layer %s: setting input, max instantaneous rate %g Hz", il.Nm, maxRate)
	switch il.DevType {
	case RateStimulator:
		frame := etensor.NewFloat64([]int{il.Rows(), il.Cols()}, nil, nil)
		for r := 0; r < il.Rows(); r++ {
			for c := 0; c < il.Cols(); c++ {
				frame.Set([]int{r, c}, scale*arr.Value([]int{0, r, c}))
			}
		}
		return il.SetState(eng, "rate", il.Stim, frame)
	case SpikeStimulator:
		nt := arr.Dim(0)
		rates := make([]float64, nt)
		for r := 0; r < il.Rows(); r++ {
			for c := 0; c < il.Cols(); c++ {
				for t := 0; t < nt; t++ {
					rates[t] = scale * arr.Value([]int{t, r, c})
				}
				times := DrawSpikeTimes(rates, start, rnd)
				loc := Location{Row: r, Col: c}
				gids := il.Gids(GidSel{Pops: []string{il.Stim}, Loc: &loc})
				if err := eng.SetStatus(gids, map[string]any{"spike_times": times}); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return fmt.Errorf("%w: input layer %q: device type %q", ErrUnsupportedDevice, il.Nm, il.DevType)
}
