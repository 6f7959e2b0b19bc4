// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"fmt"
	"strings"

	"github.com/TomBugnon/NETS/engine"
	"github.com/goki/ki/ki"
	"github.com/goki/ki/kit"
	"github.com/goki/mat32"
)

// ProjectionType selects the connection strategy of a projection model.
type ProjectionType int32

//go:generate stringer -type=ProjectionType

var KiT_ProjectionType = kit.Enums.AddEnum(ProjectionTypeN, kit.NotBitFlag, nil)

func (ev ProjectionType) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *ProjectionType) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// Topological projections issue a single spatial connect between two
	// whole layers; the engine performs the geometric connection logic.
	Topological ProjectionType = iota

	// Multisynapse projections replicate an existing set of labelled
	// connections with a different synapse parameter set, to connect the
	// same element pairs more than once.
	Multisynapse

	ProjectionTypeN
)

// ProjectionModel is a named projection declaration that concrete
// projections inherit their parameters from.
type ProjectionModel struct {
	Entity
	Type          ProjectionType   `desc:"connection strategy"`
	QueryLabel    int              `desc:"multisynapse: synapse label of the connections to replicate -- must be nonzero"`
	MakeSymmetric bool             `desc:"multisynapse: create the reverse connections as well"`
	HasDir        bool             `desc:"whether the model declares a connection directionality -- always true for topological models"`
	Conn          *engine.ConnSpec `desc:"inherited engine connection parameters, pre-scaling"`
}

var KiT_ProjectionModel = kit.Types.AddType(&ProjectionModel{}, ProjectionProps)

var ProjectionProps = ki.Props{}

// NewProjectionModel builds a projection model from flat resolved
// parameters.  Topological models require synapse_model and
// connection_type; multisynapse models require model and
// query_synapse_label.
func NewProjectionModel(name string, flat map[string]any) (*ProjectionModel, error) {
	pm := &ProjectionModel{Entity: Entity{Nm: name}}
	typ := "topological"
	if v, ok := flat["type"]; ok {
		ts, ok := toString(v)
		if !ok {
			return nil, fmt.Errorf("%w: projection model %q: type must be a string", ErrConfiguration, name)
		}
		typ = ts
	}
	switch typ {
	case "topological":
		pm.Type = Topological
	case "multisynapse":
		pm.Type = Multisynapse
	default:
		return nil, fmt.Errorf("%w: projection model %q: unknown type %q", ErrConfiguration, name, typ)
	}
	cs := &engine.ConnSpec{Weights: 1, Delays: 1}
	// The synapse-model key depends on the projection type.
	synKey := "synapse_model"
	if pm.Type == Multisynapse {
		synKey = "model"
	}
	sm, ok := toString(flat[synKey])
	if !ok || sm == "" {
		return nil, fmt.Errorf("%w: projection model %q: missing %s", ErrConfiguration, name, synKey)
	}
	cs.SynModel = sm
	if v, ok := flat["connection_type"]; ok {
		ds, ok := toString(v)
		if !ok {
			return nil, fmt.Errorf("%w: projection model %q: connection_type must be a string", ErrConfiguration, name)
		}
		switch ds {
		case "convergent":
			cs.Dir = engine.Convergent
		case "divergent":
			cs.Dir = engine.Divergent
		default:
			return nil, fmt.Errorf("%w: projection model %q: unknown connection_type %q", ErrConfiguration, name, ds)
		}
		pm.HasDir = true
	}
	if pm.Type == Topological && !pm.HasDir {
		return nil, fmt.Errorf("%w: projection model %q: missing connection_type", ErrConfiguration, name)
	}
	if v, ok := flat["kernel"]; ok {
		kr, err := parseKernel(name, v)
		if err != nil {
			return nil, err
		}
		cs.Kernel = kr
	} else {
		cs.Kernel = engine.Kernel{Const: 1}
	}
	if v, ok := flat["mask"]; ok {
		mk, err := parseMask(name, v)
		if err != nil {
			return nil, err
		}
		cs.Mask = mk
	}
	if v, ok := flat["weights"]; ok {
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: projection model %q: weights must be a number", ErrConfiguration, name)
		}
		cs.Weights = f
	}
	if v, ok := flat["delays"]; ok {
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: projection model %q: delays must be a number", ErrConfiguration, name)
		}
		cs.Delays = f
	}
	if pm.Type == Multisynapse {
		lbl, ok := toInt(flat["query_synapse_label"])
		if !ok || lbl == 0 {
			return nil, fmt.Errorf("%w: projection model %q: missing or zero query_synapse_label", ErrConfiguration, name)
		}
		pm.QueryLabel = lbl
		if v, ok := flat["make_symmetric"]; ok {
			b, ok := toBool(v)
			if !ok {
				return nil, fmt.Errorf("%w: projection model %q: make_symmetric must be a bool", ErrConfiguration, name)
			}
			pm.MakeSymmetric = b
		}
	}
	pm.Conn = cs
	return pm, nil
}

func parseKernel(name string, v any) (engine.Kernel, error) {
	if f, ok := toFloat(v); ok {
		return engine.Kernel{Const: f}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return engine.Kernel{}, fmt.Errorf("%w: projection model %q: invalid kernel %v", ErrConfiguration, name, v)
	}
	gm, ok := m["gaussian"].(map[string]any)
	if !ok {
		return engine.Kernel{}, fmt.Errorf("%w: projection model %q: unknown kernel profile", ErrConfiguration, name)
	}
	gk := &engine.GaussianKernel{PCenter: 1}
	if v, ok := gm["p_center"]; ok {
		f, ok := toFloat(v)
		if !ok {
			return engine.Kernel{}, fmt.Errorf("%w: projection model %q: gaussian p_center must be a number", ErrConfiguration, name)
		}
		gk.PCenter = f
	}
	sg, ok := toFloat(gm["sigma"])
	if !ok {
		return engine.Kernel{}, fmt.Errorf("%w: projection model %q: gaussian kernel requires sigma", ErrConfiguration, name)
	}
	gk.Sigma = sg
	return engine.Kernel{Gaussian: gk}, nil
}

func parseMask(name string, v any) (engine.Mask, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return engine.Mask{}, fmt.Errorf("%w: projection model %q: invalid mask %v", ErrConfiguration, name, v)
	}
	if cm, ok := m["circular"].(map[string]any); ok {
		rd, ok := toFloat(cm["radius"])
		if !ok {
			return engine.Mask{}, fmt.Errorf("%w: projection model %q: circular mask requires radius", ErrConfiguration, name)
		}
		return engine.Mask{Circular: &engine.CircularMask{Radius: rd}}, nil
	}
	if rm, ok := m["rectangular"].(map[string]any); ok {
		ll, err := parseVec2(name, rm["lower_left"])
		if err != nil {
			return engine.Mask{}, err
		}
		ur, err := parseVec2(name, rm["upper_right"])
		if err != nil {
			return engine.Mask{}, err
		}
		return engine.Mask{Rectangular: &engine.RectMask{LowerLeft: ll, UpperRight: ur}}, nil
	}
	return engine.Mask{}, fmt.Errorf("%w: projection model %q: unknown mask shape", ErrConfiguration, name)
}

func parseVec2(name string, v any) (mat32.Vec2, error) {
	fs, ok := v.([]float64)
	if !ok || len(fs) != 2 {
		return mat32.Vec2{}, fmt.Errorf("%w: projection model %q: mask corner must be a 2-component vector", ErrConfiguration, name)
	}
	return mat32.Vec2{X: float32(fs[0]), Y: float32(fs[1])}, nil
}

// Projection is a concrete, validated connection between a source and a
// target (layer, population) pair, inheriting its parameters from a
// projection model.  It stores both the inherited pre-scaling parameters
// and the rewritten post-scaling set actually passed to the engine.
type Projection struct {
	Entity
	Model  *ProjectionModel `desc:"projection model the parameters are inherited from"`
	Source AnyLayer         `desc:"source layer"`
	Target AnyLayer         `desc:"target layer"`
	SrcPop string           `desc:"source population -- empty selects all"`
	TgtPop string           `desc:"target population -- empty selects all"`

	ScaleFactor float64          `desc:"grid-to-extent multiplier applied to kernel spread and mask geometry"`
	Raw         *engine.ConnSpec `desc:"inherited parameter set, pre-scaling"`
	Conn        *engine.ConnSpec `desc:"rewritten parameter set passed to the engine"`
}

var KiT_Projection = kit.Types.AddType(&Projection{}, ProjectionProps)

// NewProjection builds and validates a projection.  Input layers can
// never be targets, and when an input layer is the source, the source
// population must be its relay population.
func NewProjection(model *ProjectionModel, src AnyLayer, srcPop string, tgt AnyLayer, tgtPop string) (*Projection, error) {
	pj := &Projection{
		Entity: Entity{Nm: model.Nm},
		Model:  model,
		Source: src, Target: tgt,
		SrcPop: srcPop, TgtPop: tgtPop,
		Raw: model.Conn,
	}
	if tgt.LayerType() == LayerInput {
		return nil, fmt.Errorf("invalid target in projection %s: input layers cannot be projection targets", pj)
	}
	if src.LayerType() == LayerInput && srcPop != RelayModel {
		return nil, fmt.Errorf("invalid source population %q in projection %s: input layer sources must use the %s relay population", srcPop, pj, RelayModel)
	}
	pj.scale()
	return pj, nil
}

// scale computes the geometric scale factor and rewrites the inherited
// kernel, mask and weight parameters.  For convergent connections the
// pooling layer is the source; for divergent connections it is the
// target.  Weights respond only to the source layer's gain, never to the
// geometric factor.
func (pj *Projection) scale() {
	sf := 1.0
	src := pj.Source.AsLayer()
	tgt := pj.Target.AsLayer()
	if pj.Model.HasDir {
		switch {
		case pj.Raw.Dir == engine.Convergent && src.Cfg.ScaleKM:
			sf = src.ExtentUnits(src.Cfg.RFScale)
		case pj.Raw.Dir == engine.Divergent && tgt.Cfg.ScaleKM:
			sf = tgt.ExtentUnits(tgt.Cfg.RFScale)
		}
	}
	pj.ScaleFactor = sf
	cs := pj.Raw.Clone()
	if cs.Kernel.Gaussian != nil {
		cs.Kernel.Gaussian.Sigma *= sf
	}
	if cs.Mask.Circular != nil {
		cs.Mask.Circular.Radius *= sf
	}
	if cs.Mask.Rectangular != nil {
		cs.Mask.Rectangular.LowerLeft = cs.Mask.Rectangular.LowerLeft.MulScalar(float32(sf))
		cs.Mask.Rectangular.UpperRight = cs.Mask.Rectangular.UpperRight.MulScalar(float32(sf))
	}
	cs.Weights *= src.Cfg.WeightGain
	if pj.SrcPop != "" {
		cs.Sources = pj.SrcPop
	}
	if pj.TgtPop != "" {
		cs.Targets = pj.TgtPop
	}
	pj.Conn = cs
}

// String renders the full projection identity, which must be unique
// across the topology.
func (pj *Projection) String() string {
	pops := func(p string) string {
		if p == "" {
			return "*"
		}
		return p
	}
	return strings.Join([]string{pj.Nm, pj.Source.Name(), pops(pj.SrcPop), pj.Target.Name(), pops(pj.TgtPop)}, "-")
}

// Create issues the engine connection operations for this projection.
func (pj *Projection) Create(eng engine.Engine) error {
	return pj.OnCreate("projection", func() error {
		switch pj.Model.Type {
		case Topological:
			return eng.ConnectLayers(pj.Source.AsLayer().ID, pj.Target.AsLayer().ID, pj.Conn)
		case Multisynapse:
			return pj.createMulti(eng)
		}
		return fmt.Errorf("%w: projection %s: unknown type %v", ErrConfiguration, pj, pj.Model.Type)
	})
}

// createMulti replicates the existing connections tagged with the query
// label whose endpoints fall in the declared populations, under this
// projection's synapse parameters.
func (pj *Projection) createMulti(eng engine.Engine) error {
	conns, err := eng.Connections(engine.Filter{Label: pj.Model.QueryLabel})
	if err != nil {
		return err
	}
	srcSet := gidSet(pj.Source.AsLayer().PopGids(pj.SrcPop))
	tgtSet := gidSet(pj.Target.AsLayer().PopGids(pj.TgtPop))
	var srcs, tgts []engine.ElemID
	for _, cn := range conns {
		if srcSet[cn.Src] && tgtSet[cn.Tgt] {
			srcs = append(srcs, cn.Src)
			tgts = append(tgts, cn.Tgt)
		}
	}
	if len(srcs) == 0 {
		return fmt.Errorf("%w: projection %s: no connection with synapse label %d between the declared populations", ErrParameter, pj, pj.Model.QueryLabel)
	}
	syn := map[string]any{
		"model":          pj.Conn.SynModel,
		"weight":         pj.Conn.Weights,
		"delay":          pj.Conn.Delays,
		"make_symmetric": pj.Model.MakeSymmetric,
	}
	return eng.Connect(srcs, tgts, "one_to_one", syn)
}

func gidSet(gids []engine.ElemID) map[engine.ElemID]bool {
	set := make(map[engine.ElemID]bool, len(gids))
	for _, gid := range gids {
		set[gid] = true
	}
	return set
}
