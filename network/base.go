// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package network builds a fully specified spiking network from a resolved
parameter tree: neuron / synapse / recorder models, grid layers with
population membership, population-to-population projections with spatial
scaling, and recorder taps.  It issues engine operations in dependency
order and exposes the assembled topology to session drivers.
*/
package network

import (
	"log"

	"github.com/goki/ki/kit"
)

// LifeState is the explicit lifecycle state of a network entity: every
// entity is built once and transitions to Created exactly once.
type LifeState int32

//go:generate stringer -type=LifeState

var KiT_LifeState = kit.Enums.AddEnum(LifeStateN, kit.NotBitFlag, nil)

func (ev LifeState) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *LifeState) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// Uninitialized entities exist only as declarations -- no engine call
	// has been issued for them.
	Uninitialized LifeState = iota

	// Created entities have completed their engine-side creation.
	Created

	LifeStateN
)

// Entity is the base identity shared by every object built from the
// parameter tree.  Entities are named, compared and sorted by name, and
// carry the one-shot creation state.
type Entity struct {
	Nm    string    `desc:"name of the entity -- unique within its kind"`
	State LifeState `view:"-" desc:"lifecycle state, transitioned by the owning Create method"`
}

// Name returns the entity name.
func (en *Entity) Name() string { return en.Nm }

// Created reports whether the entity has been created in the engine.
func (en *Entity) Created() bool { return en.State == Created }

// OnCreate runs the creation body unless the entity was already created,
// in which case it warns and no-ops, tolerating defensive re-calls in
// orchestration code.  The state is set before the body runs and reset if
// the body returns an error, so a caller may retry after fixing the
// configuration.
func (en *Entity) OnCreate(kind string, fn func() error) error {
	if en.State == Created {
		log.Printf("%s %s: already created -- skipping", kind, en.Nm)
		return nil
	}
	en.State = Created
	if err := fn(); err != nil {
		en.State = Uninitialized
		return err
	}
	return nil
}
