// Package models defines the value types shared between configuration,
// collectors and the heartbeat controller.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownInfoType is returned when a metric selector is not one of the
// supported info types.
var ErrUnknownInfoType = errors.New("unknown info type")

// InfoType selects which system metric a heartbeat reports.
type InfoType int

const (
	// InfoTypeDateTime reports the current wall-clock time.
	InfoTypeDateTime InfoType = iota + 1
	// InfoTypeCPU reports total CPU utilization.
	InfoTypeCPU
	// InfoTypeMemory reports total virtual memory utilization.
	InfoTypeMemory
)

var infoTypeNames = map[InfoType]string{
	InfoTypeDateTime: "DATETIME",
	InfoTypeCPU:      "CPU",
	InfoTypeMemory:   "MEMORY",
}

// InfoTypes returns every supported info type in display order.
func InfoTypes() []InfoType {
	return []InfoType{InfoTypeCPU, InfoTypeMemory, InfoTypeDateTime}
}

// ParseInfoType resolves a selector case-insensitively.
// Surrounding whitespace is ignored.
func ParseInfoType(s string) (InfoType, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range infoTypeNames {
		if name == want {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w %q (expected one of %s)", ErrUnknownInfoType, s, strings.Join(infoTypeList(), ", "))
}

// String returns the canonical upper-case selector.
func (t InfoType) String() string {
	if name, ok := infoTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("InfoType(%d)", int(t))
}

// Valid reports whether t is a supported info type.
func (t InfoType) Valid() bool {
	_, ok := infoTypeNames[t]
	return ok
}

func infoTypeList() []string {
	types := InfoTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	return names
}
