package models

import (
	"regexp"
	"strings"
)

// languageEnglish is the BMD language number (ADR_SPRACHNR) for English
const languageEnglish = "4"

// bracketedPattern matches check digits some tax numbers carry in brackets
var bracketedPattern = regexp.MustCompile(`\(.*\)`)

// Client is a BMD client ("Kunde") together with the data collected for it
type Client struct {
	// Identity (PER_PERSONENID, PER_PERSONENNR, PER_FIRMENNR)
	BMDID     string `db:"bmd_id" json:"bmd_id"` // e.g. "KL2000201001"
	BMDNumber string `db:"bmd_number" json:"bmd_number"`
	CompanyID int64  `db:"bmd_company_id" json:"bmd_company_id"`

	// KLI_QUOTEN_FIRMENNR, the "STB-Firma" of the client master data
	TaxCompanyID string `db:"bmd_tax_company_id" json:"bmd_tax_company_id"`

	// Name (FirstName is empty for companies)
	FirstName      string `db:"first_name" json:"first_name,omitempty"`
	LastName       string `db:"last_name" json:"last_name"`
	AdditionalName string `db:"additional_name" json:"additional_name,omitempty"`

	// ADR_SPRACHNR of the main address
	Language string `db:"language" json:"language,omitempty"`

	// "Steuernummer" as stored in BMD (PER_FSTEUERNR)
	TaxNumber string `db:"tax_number" json:"tax_number,omitempty"`

	// Main bank account
	IBAN string `db:"iban" json:"iban,omitempty"`
	BIC  string `db:"bic" json:"bic,omitempty"`

	// Collected after the lookup. A nil Salutation means no usable salutation
	// could be built and the client must not be contacted automatically.
	Salutation *string    `json:"salutation,omitempty"`
	Emails     []string   `json:"emails,omitempty"`
	Employees  []Employee `json:"employees,omitempty"`
}

// LanguageISO returns the ISO 639-1 code of the client's language
func (c *Client) LanguageISO() string {
	if c.Language == languageEnglish {
		return "en"
	}
	return "de"
}

// FullName joins first and last name, skipping empty parts
func (c *Client) FullName() string {
	var parts []string
	for _, p := range []string{c.FirstName, c.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// EmailsString returns the e-mail addresses separated by semicolons
func (c *Client) EmailsString() string {
	return strings.Join(c.Emails, ";")
}

// EmployeeEmails returns the non-empty e-mail addresses of the responsible employees
func (c *Client) EmployeeEmails() []string {
	var emails []string
	for _, e := range c.Employees {
		if e.Email != "" {
			emails = append(emails, e.Email)
		}
	}
	return emails
}

// ParsedTaxNumber returns the tax number without separators, as expected by
// FinanzOnline "Steuerkonto" queries. Slashes and spaces are removed, a
// trailing "-" with its check digit is cut, and bracketed check digits are dropped.
func (c *Client) ParsedTaxNumber() string {
	n := strings.ReplaceAll(c.TaxNumber, "/", "")
	n = strings.ReplaceAll(n, " ", "")
	n, _, _ = strings.Cut(n, "-")
	return bracketedPattern.ReplaceAllString(n, "")
}
