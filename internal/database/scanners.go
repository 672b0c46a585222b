// Package database provides the BMD query layer: the query registry, the
// parameter binder, the row mapper and the execution facade.
//
// FILE: scanners.go
// PURPOSE: Row mapping. Converts driver rows into Records keyed by the
// declared output columns, and Records into model structs.
//
// KEY FUNCTIONS:
// - resolveColumns: maps declared columns to driver column positions
// - mapRow: builds a Record with exactly the declared columns
// - scanClient / scanEmployee / scanContactPerson: Record -> models
//
// RELATED FILES:
// - queries.go: drives the mapping for each result set
package database

import (
	"strconv"
	"strings"
	"time"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/models"
)

// dateLayouts are tried in order when a date column arrives as text
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Record is one result row keyed by output column name. Values keep the
// driver's typing (string, time.Time, integers); NULL is nil.
type Record map[string]any

// IsNull reports whether the column is NULL or absent
func (r Record) IsNull(col string) bool {
	return r[col] == nil
}

// String returns the column as text; NULL becomes ""
func (r Record) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.RFC3339)
	default:
		return ""
	}
}

// Int64 returns the column as an integer
func (r Record) Int64(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// Time returns the column as a time; text is parsed with the common SQL layouts
func (r Record) Time(col string) (time.Time, bool) {
	switch v := r[col].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// resolveColumns returns, for each declared column, the position of the
// driver column with the same name, or -1. Exact matches win over
// case-insensitive ones.
func resolveColumns(declared, driver []string) []int {
	idx := make([]int, len(declared))
	for i, name := range declared {
		idx[i] = -1
		for j, got := range driver {
			if got == name {
				idx[i] = j
				break
			}
		}
		if idx[i] >= 0 {
			continue
		}
		for j, got := range driver {
			if strings.EqualFold(got, name) {
				idx[i] = j
				break
			}
		}
	}
	return idx
}

// mapRow builds a Record holding exactly the declared columns. Declared
// columns the driver did not return are nil; extra driver columns are dropped.
func mapRow(declared []string, idx []int, values []any) Record {
	rec := make(Record, len(declared))
	for i, name := range declared {
		if j := idx[i]; j >= 0 && j < len(values) {
			rec[name] = normalizeValue(values[j])
		} else {
			rec[name] = nil
		}
	}
	return rec
}

// normalizeValue turns driver byte slices (MySQL text, SQL Server decimals)
// into strings.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func scanClient(rec Record) *models.Client {
	c := &models.Client{
		BMDID:          rec.String("bmd_id"),
		BMDNumber:      rec.String("bmd_number"),
		TaxCompanyID:   rec.String("bmd_tax_company_id"),
		FirstName:      rec.String("first_name"),
		LastName:       rec.String("last_name"),
		AdditionalName: rec.String("additional_name"),
		Language:       rec.String("language"),
		TaxNumber:      rec.String("tax_number"),
		IBAN:           rec.String("iban"),
		BIC:            rec.String("bic"),
	}
	c.CompanyID, _ = rec.Int64("bmd_company_id")
	return c
}

func scanEmployee(rec Record) models.Employee {
	e := models.Employee{
		BMDID:     rec.String("bmd_id"),
		BMDNumber: rec.String("bmd_number"),
		Email:     rec.String("email"),
	}
	e.CompanyID, _ = rec.Int64("bmd_company_id")
	return e
}

func scanContactPerson(rec Record) models.ContactPerson {
	return models.ContactPerson{
		ClientID:               rec.String("client_id"),
		Identifier:             rec.String("identifier"),
		Email:                  rec.String("email"),
		SalutationPersonal:     rec.String("salutation_personal"),
		SalutationProfessional: rec.String("salutation_professional"),
		TitlePrefix:            rec.String("title_prefix"),
		TitleSuffix:            rec.String("title_suffix"),
		FirstName:              rec.String("first_name"),
		LastName:               rec.String("last_name"),
	}
}
