// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"fmt"

	"github.com/TomBugnon/NETS/engine"
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
	"github.com/goki/ki/ki"
	"github.com/goki/ki/kit"
)

// Device type identifiers that recorder models may resolve to.
const (
	MultimeterType    = "multimeter"
	SpikeDetectorType = "spike_detector"
)

// Recorder is a single recording device attached to one population.
// The connection direction follows the device type: multimeters connect
// to the recorded elements, spike detectors are connected from them.
type Recorder struct {
	Entity
	Model  string          `desc:"recorder model name"`
	Params map[string]any  `desc:"device parameters applied at creation"`
	Gid    engine.ElemID   `desc:"engine id of the device, once created"`
	Type   string          `desc:"engine device type, resolved at creation"`
	Gds    []engine.ElemID `desc:"recorded elements"`
}

var KiT_Recorder = kit.Types.AddType(&Recorder{}, RecorderProps)

var RecorderProps = ki.Props{}

// NewRecorder builds a recorder from a recorder model name and its
// resolved parameters.
func NewRecorder(model string, params map[string]any) *Recorder {
	return &Recorder{Entity: Entity{Nm: model}, Model: model, Params: params}
}

// Create instantiates the device and connects it with the recorded
// elements, in the direction the device type requires.
func (rc *Recorder) Create(eng engine.Engine, gids []engine.ElemID) error {
	return rc.OnCreate("recorder", func() error {
		ids, err := eng.CreateElements(rc.Model, 1)
		if err != nil {
			return err
		}
		rc.Gid = ids[0]
		rc.Gds = gids
		if len(rc.Params) > 0 {
			if err := eng.SetStatus(ids, rc.Params); err != nil {
				return err
			}
		}
		def, err := eng.ModelDefaults(rc.Model)
		if err != nil {
			return err
		}
		rc.Type = def.TypeID
		dev := []engine.ElemID{rc.Gid}
		switch rc.Type {
		case MultimeterType:
			return eng.Connect(dev, gids, "all_to_all", nil)
		case SpikeDetectorType:
			return eng.Connect(gids, dev, "all_to_all", nil)
		}
		return fmt.Errorf("%w: recorder %s: unsupported device type %q", ErrUnsupportedDevice, rc.Nm, rc.Type)
	})
}

// SetStatus forwards a parameter update to the device.
func (rc *Recorder) SetStatus(eng engine.Engine, params map[string]any) error {
	if !rc.Created() {
		return fmt.Errorf("%w: recorder %s", ErrNotCreated, rc.Nm)
	}
	return eng.SetStatus([]engine.ElemID{rc.Gid}, params)
}

// Events reads back the raw recorded events from the device.
func (rc *Recorder) Events(eng engine.Engine) (*engine.Events, error) {
	if !rc.Created() {
		return nil, fmt.Errorf("%w: recorder %s", ErrNotCreated, rc.Nm)
	}
	v, err := eng.GetStatus(rc.Gid, "events")
	if err != nil {
		return nil, err
	}
	ev, ok := v.(*engine.Events)
	if !ok {
		return nil, fmt.Errorf("%w: recorder %s: events status has type %T", ErrInternalConsistency, rc.Nm, v)
	}
	return ev, nil
}

// Population is a (layer, population) pair together with the recorders
// attached to it.
type Population struct {
	Entity
	Lay AnyLayer    `desc:"layer the population lives in"`
	Pop string      `desc:"population name within the layer"`
	Rcs []*Recorder `desc:"attached recording devices"`
}

var KiT_Population = kit.Types.AddType(&Population{}, PopulationProps)

var PopulationProps = ki.Props{}

// NewPopulation builds a recorded population.  The population name must
// exist in the layer's configuration.
func NewPopulation(lay AnyLayer, pop string, recs []*Recorder) (*Population, error) {
	found := false
	for _, pc := range lay.AsLayer().Cfg.Populations {
		if pc.Pop == pop {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: population %q does not exist in layer %s", ErrConfiguration, pop, lay.Name())
	}
	nm := lay.Name() + "_" + pop
	return &Population{Entity: Entity{Nm: nm}, Lay: lay, Pop: pop, Rcs: recs}, nil
}

// Create instantiates all recorders of this population.  The layer must
// already be created.
func (pp *Population) Create(eng engine.Engine) error {
	return pp.OnCreate("population", func() error {
		if !pp.Lay.AsLayer().Created() {
			return fmt.Errorf("%w: layer %s of population %s", ErrNotCreated, pp.Lay.Name(), pp.Nm)
		}
		gids := pp.Lay.AsLayer().PopGids(pp.Pop)
		for _, rc := range pp.Rcs {
			if err := rc.Create(eng, gids); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetRecorderStatus applies a parameter update to all recorders.
func (pp *Population) SetRecorderStatus(eng engine.Engine, params map[string]any) error {
	for _, rc := range pp.Rcs {
		if err := rc.SetStatus(eng, params); err != nil {
			return err
		}
	}
	return nil
}

// EventTable collects the events of all recorders of a given device
// type into one table with Time, Gid, Row and Col columns, resolving
// element locations through the layer.
func (pp *Population) EventTable(eng engine.Engine, devType string) (*etable.Table, error) {
	locs := pp.Lay.AsLayer().Locations()
	dt := &etable.Table{}
	sch := etable.Schema{
		{Name: "Time", Type: etensor.FLOAT64},
		{Name: "Gid", Type: etensor.INT64},
		{Name: "Row", Type: etensor.INT64},
		{Name: "Col", Type: etensor.INT64},
	}
	dt.SetFromSchema(sch, 0)
	for _, rc := range pp.Rcs {
		if rc.Type != devType {
			continue
		}
		ev, err := rc.Events(eng)
		if err != nil {
			return nil, err
		}
		for i, tm := range ev.Times {
			gid := ev.Senders[i]
			loc, ok := locs[gid]
			if !ok {
				return nil, fmt.Errorf("%w: population %s: recorded element %d has no location", ErrInternalConsistency, pp.Nm, gid)
			}
			row := dt.Rows
			dt.SetNumRows(row + 1)
			dt.SetCellFloat("Time", row, tm)
			dt.SetCellFloat("Gid", row, float64(gid))
			dt.SetCellFloat("Row", row, float64(loc.Row))
			dt.SetCellFloat("Col", row, float64(loc.Col))
		}
	}
	return dt, nil
}

// SpikeTable returns the recorded spike events of this population.
func (pp *Population) SpikeTable(eng engine.Engine) (*etable.Table, error) {
	return pp.EventTable(eng, SpikeDetectorType)
}
