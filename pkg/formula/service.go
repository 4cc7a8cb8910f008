// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"fmt"
	"strings"
)

const (
	// ServiceImmediate starts the service once and keeps it running.
	ServiceImmediate ServiceRunType = "immediate"
	// ServiceInterval starts the service every Interval seconds.
	ServiceInterval ServiceRunType = "interval"
)

type (
	// ServiceRunType says when a service is started.
	ServiceRunType string

	// Service describes the background process a formula provides. Run is
	// relative to the formula's opt prefix. kegbrew records services but
	// never starts them.
	Service struct {
		Run       []string       `json:"run"`
		RunType   ServiceRunType `json:"run_type,omitempty"`
		Interval  int            `json:"interval,omitempty"`
		KeepAlive bool           `json:"keep_alive,omitempty"`
	}
)

// IsValid returns whether t is empty (meaning immediate) or a known run type.
func (t ServiceRunType) IsValid() bool {
	switch t {
	case "", ServiceImmediate, ServiceInterval:
		return true
	default:
		return false
	}
}

// String renders the command line and its schedule, e.g.
// "bin/deskflow (immediate)".
func (s *Service) String() string {
	runType := s.RunType
	if runType == "" {
		runType = ServiceImmediate
	}
	sched := string(runType)
	if runType == ServiceInterval {
		sched = fmt.Sprintf("every %ds", s.Interval)
	}
	if s.KeepAlive {
		sched += ", keep alive"
	}
	return fmt.Sprintf("%s (%s)", strings.Join(s.Run, " "), sched)
}

func (s *Service) validate(errs *ValidationErrors) {
	if len(s.Run) == 0 || s.Run[0] == "" {
		errs.add("service.run", "must name a program")
	}
	if !s.RunType.IsValid() {
		errs.add("service.run_type", "unknown run type %q", s.RunType)
	}
	if s.RunType == ServiceInterval && s.Interval <= 0 {
		errs.add("service.interval", "must be positive for interval services")
	}
}
