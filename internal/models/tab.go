package models

import (
	"fmt"
	"strings"
)

// Tab identifies one of the mutually exclusive console views.
type Tab string

const (
	TabNone      Tab = ""
	TabDashboard Tab = "dashboard"
	TabStats     Tab = "stats"
	TabAdmin     Tab = "admin"
)

// ParseTab validates a tab name.
func ParseTab(raw string) (Tab, error) {
	switch t := Tab(strings.ToLower(strings.TrimSpace(raw))); t {
	case TabDashboard, TabStats, TabAdmin:
		return t, nil
	default:
		return TabNone, fmt.Errorf("unknown tab %q", raw)
	}
}
