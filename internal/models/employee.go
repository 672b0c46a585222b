package models

import (
	"fmt"
	"strings"
)

// Sachbearbeiter selects which case handler is responsible for a client
type Sachbearbeiter string

const (
	// SachbearbeiterHaupt is the main case handler from the client master data
	SachbearbeiterHaupt Sachbearbeiter = "HAUPT"
	// SachbearbeiterFrist is the case handler assigned to a deadline
	SachbearbeiterFrist Sachbearbeiter = "FRIST"
)

// SelectionMode decides how responsible employees and the case handler are combined
type SelectionMode string

const (
	// ModeDefault uses the case handler only
	ModeDefault SelectionMode = "DEFAULT"
	// ModeAppend uses the responsible employees plus the case handler
	ModeAppend SelectionMode = "APPEND"
	// ModeFallback uses the responsible employees, or the case handler if there are none
	ModeFallback SelectionMode = "FALLBACK"
)

// ParseSachbearbeiter parses a case handler source, case-insensitively
func ParseSachbearbeiter(s string) (Sachbearbeiter, error) {
	switch v := Sachbearbeiter(strings.ToUpper(strings.TrimSpace(s))); v {
	case SachbearbeiterHaupt, SachbearbeiterFrist:
		return v, nil
	}
	return "", fmt.Errorf("unknown sachbearbeiter %q (want HAUPT or FRIST)", s)
}

// ParseSelectionMode parses an employee selection mode, case-insensitively
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch v := SelectionMode(strings.ToUpper(strings.TrimSpace(s))); v {
	case ModeDefault, ModeAppend, ModeFallback:
		return v, nil
	}
	return "", fmt.Errorf("unknown employee selection mode %q (want DEFAULT, APPEND or FALLBACK)", s)
}

// Employee is a BMD employee responsible for a client
type Employee struct {
	BMDID     string `db:"bmd_id" json:"bmd_id"`
	BMDNumber string `db:"bmd_number" json:"bmd_number"`
	CompanyID int64  `db:"bmd_company_id" json:"bmd_company_id"`
	Email     string `db:"email" json:"email,omitempty"`
}

// DedupeEmployees removes employees with a repeated BMD id. Each id keeps the
// position of its first occurrence and the data of its last one.
func DedupeEmployees(employees []Employee) []Employee {
	index := make(map[string]int, len(employees))
	var out []Employee
	for _, e := range employees {
		if i, ok := index[e.BMDID]; ok {
			out[i] = e
			continue
		}
		index[e.BMDID] = len(out)
		out = append(out, e)
	}
	return out
}
