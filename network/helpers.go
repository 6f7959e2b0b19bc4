// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

// numeric coercion for values coming out of the parameter tree or the
// engine's status maps, which are weakly typed by nature.

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int:
		return float64(f), true
	case int64:
		return float64(f), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch i := v.(type) {
	case int:
		return i, true
	case int64:
		return int(i), true
	case float64:
		if i == float64(int(i)) {
			return int(i), true
		}
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, len(s))
		for i, e := range s {
			es, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[i] = es
		}
		return out, true
	case string:
		return []string{s}, true
	}
	return nil, false
}
