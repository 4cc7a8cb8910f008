// SPDX-License-Identifier: MPL-2.0

package formula

import "strings"

// License is an SPDX expression in one of three shapes, or an explicit
// marker that the license cannot be represented and must be disclosed by hand.
type License struct {
	SPDX            string   `json:"spdx,omitempty"`
	AllOf           []string `json:"all_of,omitempty"`
	AnyOf           []string `json:"any_of,omitempty"`
	CannotRepresent bool     `json:"cannot_represent,omitempty"`
}

// String renders the expression in SPDX syntax.
func (l *License) String() string {
	switch {
	case l == nil:
		return ""
	case l.CannotRepresent:
		return "cannot represent"
	case len(l.AllOf) > 0:
		return strings.Join(l.AllOf, " AND ")
	case len(l.AnyOf) > 0:
		return strings.Join(l.AnyOf, " OR ")
	default:
		return l.SPDX
	}
}

// shapes counts how many of the mutually exclusive forms are set.
func (l *License) shapes() int {
	n := 0
	if l.SPDX != "" {
		n++
	}
	if len(l.AllOf) > 0 {
		n++
	}
	if len(l.AnyOf) > 0 {
		n++
	}
	if l.CannotRepresent {
		n++
	}
	return n
}
