// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/TomBugnon/NETS/engine"
	"github.com/TomBugnon/NETS/network"
	"github.com/emer/etable/etensor"
)

// SessionConfig is the resolved configuration of one session: a span of
// simulated time with optional network mutations and stimuli applied at
// its start.
type SessionConfig struct {
	SimTime    float64              `desc:"simulated duration in ms, must be nonnegative"`
	Record     bool                 `desc:"whether recorders stay active during this session"`
	Reset      bool                 `desc:"reset element parameters to model defaults at session start"`
	UnitChs    []network.UnitChange `desc:"unit-state change directives"`
	SynChs     []network.SynChange  `desc:"synapse-state change directives"`
	ShiftOrigin bool                `desc:"offset stimulus times by the kernel time at session start"`
}

// Session is one named, runnable span of a simulation.  The same
// session model may back several Session instances.
type Session struct {
	Nm     string                      `desc:"session name"`
	Cfg    SessionConfig               `desc:"resolved configuration"`
	Inputs map[string]*etensor.Float64 `desc:"per-input-layer stimulus arrays (time x rows x cols)"`
	Start  float64                     `desc:"kernel time at session start, set by Run"`
	End    float64                     `desc:"kernel time at session end, set by Run"`
}

// NewSession builds a session from its resolved model parameters.
func NewSession(name string, flat map[string]any) (*Session, error) {
	cfg := SessionConfig{Record: true, ShiftOrigin: true}
	st, ok := toFloat(flat["simulation_time"])
	if !ok {
		return nil, fmt.Errorf("%w: session %q: missing simulation_time", network.ErrParameter, name)
	}
	if st < 0 {
		return nil, fmt.Errorf("%w: session %q: simulation_time %v is negative", network.ErrParameter, name, st)
	}
	cfg.SimTime = st
	if v, ok := flat["record"]; ok {
		b, ok := toBool(v)
		if !ok {
			return nil, fmt.Errorf("%w: session %q: record must be a bool", network.ErrParameter, name)
		}
		cfg.Record = b
	}
	if v, ok := flat["reset_network"]; ok {
		b, ok := toBool(v)
		if !ok {
			return nil, fmt.Errorf("%w: session %q: reset_network must be a bool", network.ErrParameter, name)
		}
		cfg.Reset = b
	}
	if v, ok := flat["shift_origin"]; ok {
		b, ok := toBool(v)
		if !ok {
			return nil, fmt.Errorf("%w: session %q: shift_origin must be a bool", network.ErrParameter, name)
		}
		cfg.ShiftOrigin = b
	}
	ucs, err := parseUnitChanges(name, flat["unit_changes"])
	if err != nil {
		return nil, err
	}
	cfg.UnitChs = ucs
	scs, err := parseSynChanges(name, flat["synapse_changes"])
	if err != nil {
		return nil, err
	}
	cfg.SynChs = scs
	return &Session{Nm: name, Cfg: cfg}, nil
}

func parseUnitChanges(session string, v any) ([]network.UnitChange, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: session %q: unit_changes must be a list", network.ErrParameter, session)
	}
	var ucs []network.UnitChange
	for _, it := range items {
		ent, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: session %q: unit_changes entry must be a mapping", network.ErrParameter, session)
		}
		uc := network.UnitChange{Proportion: 1, Kind: network.LayerAny}
		if lv, ok := ent["layers"]; ok {
			nms, ok := toStringSlice(lv)
			if !ok {
				return nil, fmt.Errorf("%w: session %q: unit_changes layers must be layer names", network.ErrParameter, session)
			}
			uc.Layers = nms
		}
		if tv, ok := ent["layer_type"]; ok {
			ts, ok := toString(tv)
			if !ok {
				return nil, fmt.Errorf("%w: session %q: unit_changes layer_type must be a string", network.ErrParameter, session)
			}
			switch ts {
			case "Layer":
				uc.Kind = network.LayerRegular
			case "InputLayer":
				uc.Kind = network.LayerInput
			default:
				return nil, fmt.Errorf("%w: session %q: unknown layer_type %q", network.ErrParameter, session, ts)
			}
		}
		if pv, ok := ent["population"]; ok {
			ps, ok := toString(pv)
			if !ok {
				return nil, fmt.Errorf("%w: session %q: unit_changes population must be a string", network.ErrParameter, session)
			}
			uc.Pop = ps
		}
		if pv, ok := ent["proportion"]; ok {
			pf, ok := toFloat(pv)
			if !ok {
				return nil, fmt.Errorf("%w: session %q: unit_changes proportion must be a number", network.ErrParameter, session)
			}
			uc.Proportion = pf
		}
		ct, _ := toString(ent["change_type"])
		switch ct {
		case "", "constant":
			uc.Type = network.Constant
		case "multiplicative":
			uc.Type = network.Multiplicative
		default:
			return nil, fmt.Errorf("%w: session %q: unknown change_type %q", network.ErrParameter, session, ct)
		}
		if cv, ok := ent["params"]; ok {
			cm, ok := cv.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: session %q: unit_changes params must be a mapping", network.ErrParameter, session)
			}
			uc.Changes = map[string]float64{}
			for k, raw := range cm {
				f, ok := toFloat(raw)
				if !ok {
					return nil, fmt.Errorf("%w: session %q: unit_changes param %q must be numeric", network.ErrParameter, session, k)
				}
				uc.Changes[k] = f
			}
		}
		ucs = append(ucs, uc)
	}
	return ucs, nil
}

func parseSynChanges(session string, v any) ([]network.SynChange, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: session %q: synapse_changes must be a list", network.ErrParameter, session)
	}
	var scs []network.SynChange
	for _, it := range items {
		ent, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: session %q: synapse_changes entry must be a mapping", network.ErrParameter, session)
		}
		sc := network.SynChange{}
		sm, ok := toString(ent["synapse_model"])
		if !ok {
			return nil, fmt.Errorf("%w: session %q: synapse_changes entry: missing synapse_model", network.ErrParameter, session)
		}
		sc.SynModel = sm
		if lv, ok := ent["synapse_label"]; ok {
			li, ok := toInt(lv)
			if !ok {
				return nil, fmt.Errorf("%w: session %q: synapse_label must be an integer", network.ErrParameter, session)
			}
			sc.Label = li
		}
		if cv, ok := ent["params"]; ok {
			cm, ok := cv.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: session %q: synapse_changes params must be a mapping", network.ErrParameter, session)
			}
			sc.Params = cm
		}
		scs = append(scs, sc)
	}
	return scs, nil
}

// SetInputs attaches the per-input-layer stimulus arrays applied at the
// start of this session.
func (ss *Session) SetInputs(inputs map[string]*etensor.Float64) { ss.Inputs = inputs }

// Run initializes the session against the network and simulates its
// span.  Initialization order: optional reset, unit and synapse
// changes, stimuli, recorder gating.
func (ss *Session) Run(eng engine.Engine, nt *network.Network, rnd *rand.Rand) error {
	ss.Start = eng.Time()
	log.Printf("Running session %q for %v ms from t=%v", ss.Nm, ss.Cfg.SimTime, ss.Start)
	if ss.Cfg.Reset {
		if err := nt.Reset(eng); err != nil {
			return err
		}
	}
	if err := nt.ChangeUnitStates(eng, ss.Cfg.UnitChs, rnd); err != nil {
		return err
	}
	if err := nt.ChangeSynapseStates(eng, ss.Cfg.SynChs); err != nil {
		return err
	}
	if len(ss.Inputs) > 0 {
		start := 0.0
		if ss.Cfg.ShiftOrigin {
			start = ss.Start
		}
		if err := nt.SetInput(eng, ss.Inputs, start, rnd); err != nil {
			return err
		}
	}
	if !ss.Cfg.Record {
		if err := nt.SetRecorderStatus(eng, map[string]any{"stop": ss.Start}); err != nil {
			return err
		}
	}
	if err := eng.Simulate(ss.Cfg.SimTime); err != nil {
		return err
	}
	ss.End = eng.Time()
	return nil
}
