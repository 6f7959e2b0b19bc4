// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"math"
	"math/rand"
)

// DrawSpikeTimes draws discrete spike times from a sequence of
// instantaneous rates in Hz, one rate per 1 ms frame, via an inhomogenous
// Poisson point process with at most one event per frame.  Times are
// offset by start and placed at the end of their frame, so the first
// possible spike time is start + 1.
func DrawSpikeTimes(rates []float64, start float64, rnd *rand.Rand) []float64 {
	var times []float64
	for t, rate := range rates {
		if rate <= 0 {
			continue
		}
		p := 1 - math.Exp(-rate/1000)
		if rnd.Float64() < p {
			times = append(times, start+float64(t)+1)
		}
	}
	return times
}
