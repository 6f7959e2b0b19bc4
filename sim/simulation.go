// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package sim drives a built network through an ordered list of sessions.

A Simulation owns the engine handle, the Network built from the
"network" subtree of the parameter tree, and one Session per entry of
the simulation's session order.  Random state is explicit: every
stochastic operation receives the simulation's *rand.Rand, seeded once
at construction.
*/
package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/TomBugnon/NETS/engine"
	"github.com/TomBugnon/NETS/network"
	"github.com/TomBugnon/NETS/params"
	"github.com/emer/emergent/erand"
	"github.com/emer/etable/etensor"
)

// Simulation is a full run: a network plus its ordered sessions.
type Simulation struct {
	Net      *network.Network `desc:"the declarative network"`
	Sessions []*Session       `desc:"sessions in run order"`
	Eng      engine.Engine    `view:"-" desc:"engine handle"`
	RndSeeds erand.Seeds      `view:"-" desc:"random seeds, one per potential run"`
	Rnd      *rand.Rand       `view:"-" desc:"the simulation's random source"`
}

// NewSimulation builds a simulation from the full parameter tree.  The
// tree must carry a "network" subtree; session models come from
// "session_models" and the run order from simulation/sessions.  An
// optional simulation/seed overrides the default seed.
func NewSimulation(tree *params.Node, eng engine.Engine) (*Simulation, error) {
	netTree, err := tree.Node("network")
	if err != nil {
		return nil, fmt.Errorf("simulation tree: %w", err)
	}
	nt, err := network.NewNetwork(netTree)
	if err != nil {
		return nil, err
	}
	sm := &Simulation{Net: nt, Eng: eng}
	sm.RndSeeds.Init(100)
	seed := int64(sm.RndSeeds[0])
	if v, err := tree.Get("simulation", "seed"); err == nil {
		si, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("%w: simulation seed must be an integer", network.ErrParameter)
		}
		seed = int64(si)
	} else if !errors.Is(err, params.ErrKeyNotFound) && !errors.Is(err, params.ErrPathNotFound) {
		return nil, err
	}
	sm.Rnd = rand.New(rand.NewSource(seed))
	if err := sm.buildSessions(tree); err != nil {
		return nil, err
	}
	return sm, nil
}

func (sm *Simulation) buildSessions(tree *params.Node) error {
	order, err := tree.Get("simulation", "sessions")
	if err != nil {
		if errors.Is(err, params.ErrKeyNotFound) || errors.Is(err, params.ErrPathNotFound) {
			return nil
		}
		return err
	}
	nms, ok := toStringSlice(order)
	if !ok {
		return fmt.Errorf("%w: simulation sessions must be a list of session names", network.ErrParameter)
	}
	models, err := tree.Node("session_models")
	if err != nil {
		return fmt.Errorf("simulation tree: %w", err)
	}
	flats := map[string]map[string]any{}
	for _, lf := range models.NamedLeaves() {
		flats[lf.Nm] = lf.Flat()
	}
	for _, nm := range nms {
		flat, ok := flats[nm]
		if !ok {
			return fmt.Errorf("%w: sessions reference unknown session model %q", network.ErrParameter, nm)
		}
		ss, err := NewSession(nm, flat)
		if err != nil {
			return err
		}
		sm.Sessions = append(sm.Sessions, ss)
	}
	return nil
}

// SetInputs attaches stimulus arrays to every session with the given
// name.  Stimulus loading itself is the caller's concern.
func (sm *Simulation) SetInputs(session string, inputs map[string]*etensor.Float64) error {
	found := false
	for _, ss := range sm.Sessions {
		if ss.Nm == session {
			ss.SetInputs(inputs)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: no session named %q", network.ErrParameter, session)
	}
	return nil
}

// Run creates the network and runs all sessions in order.
func (sm *Simulation) Run() error {
	if err := sm.Net.Create(sm.Eng); err != nil {
		return err
	}
	for _, ss := range sm.Sessions {
		if err := ss.Run(sm.Eng, sm.Net, sm.Rnd); err != nil {
			return err
		}
	}
	return nil
}
