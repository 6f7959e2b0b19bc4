// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package nets is the overall repository for the NETS declarative network
construction layer, which translates a hierarchical parameter tree into a
sequence of calls against an external spiking-simulation engine, and
retrieves and reshapes the recorded activity afterward.

This top-level of the repository has no functional code -- everything is
organized into the following sub-repositories:

* params: the hierarchical parameter tree with scoped inheritance and
precedence-ordered merging, from which every network entity is resolved.

* engine: the interface consumed from the external simulation kernel
(create model / create layer / connect / set status / simulate), plus a
deterministic in-memory Stub engine used throughout the tests.

* network: the core topology builder -- models, layers, input layers,
projections, populations and recorders, and the Network assembler that
issues engine operations in dependency order.

* sim: sessions and the top-level simulation driver, running ordered
stimulation sessions against a built network.

* analysis: basic activity statistics (mean rates, inter-spike intervals,
coefficients of variation) over recorded activity arrays.
*/
package nets
