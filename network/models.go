// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"fmt"

	"github.com/TomBugnon/NETS/engine"
	"github.com/goki/ki/ki"
	"github.com/goki/ki/kit"
)

// Model is a neuron, recorder or generic engine model declaration: a
// name, the engine base model it derives from, and a flat parameter
// override set resolved from the tree.
type Model struct {
	Entity
	Base   string         `desc:"engine base model this model derives from -- when equal to the model's own name, Create updates the base model's defaults instead of registering a derived model"`
	Params map[string]any `desc:"flat resolved parameter overrides passed to the engine"`
}

var KiT_Model = kit.Types.AddType(&Model{}, ModelProps)

var ModelProps = ki.Props{}

// NewModel builds a model from the flat resolved parameters of a tree
// leaf.  The base_model key is mandatory.
func NewModel(name string, flat map[string]any) (*Model, error) {
	base, ok := toString(flat["base_model"])
	if !ok || base == "" {
		return nil, fmt.Errorf("%w: model %q: missing base_model", ErrConfiguration, name)
	}
	md := &Model{Entity: Entity{Nm: name}, Base: base, Params: map[string]any{}}
	for k, v := range flat {
		if k == "base_model" {
			continue
		}
		md.Params[k] = v
	}
	return md, nil
}

// Create registers the model in the engine, or updates the base model's
// defaults when the model redefines its own base.
func (md *Model) Create(eng engine.Engine) error {
	return md.OnCreate("model", func() error {
		if md.Nm == md.Base {
			return eng.SetModelDefaults(md.Base, md.Params)
		}
		return eng.CreateModel(md.Base, md.Nm, md.Params)
	})
}

// SynapseModel is a synapse declaration.  Engines express receptor types
// as integer indexes into the target neuron model's receptor table, so a
// declared receptor-type name is replaced at creation time by the index
// looked up from the target neuron's engine defaults.
type SynapseModel struct {
	Model
	ReceptorType string `desc:"receptor-type name to resolve on the target neuron -- empty when the synapse has no labelled receptor"`
	TargetNeuron string `desc:"neuron model whose receptor table defines the receptor index"`
}

var KiT_SynapseModel = kit.Types.AddType(&SynapseModel{}, ModelProps)

// NewSynapseModel builds a synapse model from flat resolved parameters.
// A receptor_type without a target_neuron is a configuration error.
func NewSynapseModel(name string, flat map[string]any) (*SynapseModel, error) {
	md, err := NewModel(name, flat)
	if err != nil {
		return nil, err
	}
	sm := &SynapseModel{Model: *md}
	if rt, ok := sm.Params["receptor_type"]; ok {
		rts, ok := toString(rt)
		if !ok {
			return nil, fmt.Errorf("%w: synapse model %q: receptor_type must be a name", ErrConfiguration, name)
		}
		tn, ok := toString(sm.Params["target_neuron"])
		if !ok || tn == "" {
			return nil, fmt.Errorf("%w: synapse model %q: receptor_type given without target_neuron", ErrConfiguration, name)
		}
		sm.ReceptorType = rts
		sm.TargetNeuron = tn
		delete(sm.Params, "receptor_type")
		delete(sm.Params, "target_neuron")
	}
	return sm, nil
}

// Create resolves the receptor-type indirection against the target
// neuron's engine defaults, then registers the synapse model.
func (sm *SynapseModel) Create(eng engine.Engine) error {
	return sm.OnCreate("synapse model", func() error {
		if sm.ReceptorType != "" {
			df, err := eng.ModelDefaults(sm.TargetNeuron)
			if err != nil {
				return fmt.Errorf("%w: synapse model %q: target neuron %q: %v", ErrConfiguration, sm.Nm, sm.TargetNeuron, err)
			}
			idx, ok := df.ReceptorTypes[sm.ReceptorType]
			if !ok {
				return fmt.Errorf("%w: synapse model %q: receptor type %q not defined on %q", ErrConfiguration, sm.Nm, sm.ReceptorType, sm.TargetNeuron)
			}
			sm.Params["receptor_type"] = idx
		}
		if sm.Nm == sm.Base {
			return eng.SetModelDefaults(sm.Base, sm.Params)
		}
		return eng.CreateModel(sm.Base, sm.Nm, sm.Params)
	})
}
