// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import "errors"

var (
	// ErrConfiguration reports a malformed or incomplete model, layer or
	// projection declaration, detected before any engine call.
	ErrConfiguration = errors.New("network: invalid configuration")

	// ErrParameter reports an invalid runtime argument to a mutation
	// operation: a proportion outside [0,1], an unknown change type, or an
	// empty replication set for a multisynapse projection.
	ErrParameter = errors.New("network: invalid parameter")

	// ErrShape reports an input array dimensionality or extent mismatch.
	ErrShape = errors.New("network: shape mismatch")

	// ErrUnsupportedDevice reports a stimulator device type outside the
	// supported set.
	ErrUnsupportedDevice = errors.New("network: unsupported stimulator device")

	// ErrInternalConsistency reports a failed post-creation invariant
	// check: the topology bookkeeping disagrees with the engine-reported
	// element set.  Fatal -- signals a bug, not a recoverable condition.
	ErrInternalConsistency = errors.New("network: internal consistency check failed")

	// ErrProbChange reports an attempt to apply a second probabilistic
	// state change to a scope that already received one.
	ErrProbChange = errors.New("network: probabilistic state change already applied")

	// ErrNotCreated reports use of an entity before its Create call.
	ErrNotCreated = errors.New("network: entity not created")
)
