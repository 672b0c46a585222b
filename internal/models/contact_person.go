package models

import (
	"fmt"
	"strings"
)

// ContactPersonType selects the salutation style used for contact persons
type ContactPersonType string

const (
	// ContactPersonPersonal is the personal salutation with the first name ("Lieber Max")
	ContactPersonPersonal ContactPersonType = "PERSONAL"
	// ContactPersonProfessional is the formal salutation with titles and last
	// name ("Sehr geehrter Herr Mag. Mustermann")
	ContactPersonProfessional ContactPersonType = "PROFESSIONAL"
)

// ParseContactPersonType parses a salutation style, case-insensitively
func ParseContactPersonType(s string) (ContactPersonType, error) {
	switch v := ContactPersonType(strings.ToUpper(strings.TrimSpace(s))); v {
	case ContactPersonPersonal, ContactPersonProfessional:
		return v, nil
	}
	return "", fmt.Errorf("unknown contact person type %q (want PERSONAL or PROFESSIONAL)", s)
}

// ContactPerson is a person linked to a client via PKZ_PERSONKONTAKTZU
type ContactPerson struct {
	ClientID               string `db:"client_id" json:"client_id"`
	Identifier             string `db:"identifier" json:"identifier,omitempty"`
	Email                  string `db:"email" json:"email,omitempty"`
	SalutationPersonal     string `db:"salutation_personal" json:"salutation_personal,omitempty"`
	SalutationProfessional string `db:"salutation_professional" json:"salutation_professional,omitempty"`
	TitlePrefix            string `db:"title_prefix" json:"title_prefix,omitempty"`
	TitleSuffix            string `db:"title_suffix" json:"title_suffix,omitempty"`
	FirstName              string `db:"first_name" json:"first_name,omitempty"`
	LastName               string `db:"last_name" json:"last_name,omitempty"`
}

// Salutation builds the letter salutation for the given style. It reports
// false when either the BMD salutation or the name part is missing.
func (cp ContactPerson) Salutation(t ContactPersonType) (string, bool) {
	var salutation, name string

	switch t {
	case ContactPersonPersonal:
		salutation = strings.TrimRight(cp.SalutationPersonal, ", ")
		name = cp.FirstName

	case ContactPersonProfessional:
		salutation = strings.TrimRight(cp.SalutationProfessional, ", ")

		// titles are only used together with a last name
		if cp.LastName != "" {
			var parts []string
			if p := strings.TrimSpace(cp.TitlePrefix); p != "" {
				parts = append(parts, p)
			}
			parts = append(parts, cp.LastName)
			if s := strings.TrimSpace(cp.TitleSuffix); s != "" {
				parts = append(parts, s)
			}
			name = strings.Join(parts, " ")
		}
	}

	salutation = strings.TrimSpace(salutation)
	name = strings.TrimSpace(name)
	if salutation == "" || name == "" {
		return "", false
	}
	return salutation + " " + name, true
}
