// Package enrich fills in the parts of a client that come from follow-up
// lookups: email addresses, the salutation and the responsible employees.
//
// Every setter performs its lookups through a Source and mutates the client
// in place. Lookups that find nothing leave the client unchanged unless
// stated otherwise.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/models"
)

// SalutationSeparator joins the salutations of several contact persons
const SalutationSeparator = ",<br>"

// Source is the subset of the query facade used for enrichment
type Source interface {
	DisplayEmails(ctx context.Context, clientID string, companyID int64) ([]string, error)
	ClientEmailsByAdressart(ctx context.Context, clientID string, companyID int64, adressart string) ([]string, error)
	ContactPersonsByIdentifier(ctx context.Context, clientID string, companyID int64, identifier string) ([]models.ContactPerson, error)
	MainContactPersons(ctx context.Context, clientID string, companyID int64) ([]models.ContactPerson, error)
	ResponsibleEmployees(ctx context.Context, clientID string, companyID int64, areas []string) ([]models.Employee, error)
	SachbearbeiterOfClient(ctx context.Context, clientID string, companyID int64) (*models.Employee, error)
	FristEmployee(ctx context.Context, fristID int64) (*models.Employee, error)
	SalutationFreifeld(ctx context.Context, clientID string, companyID int64, freifeld string) (string, error)
}

// EmployeeOptions selects the responsible employees of a client
type EmployeeOptions struct {
	Sachbearbeiter   models.Sachbearbeiter
	Mode             models.SelectionMode
	ResponsibleAreas []string

	// FristID is required for SachbearbeiterFrist
	FristID int64
}

// Enricher runs enrichment lookups against a Source
type Enricher struct {
	src Source
}

// New creates an Enricher
func New(src Source) *Enricher {
	return &Enricher{src: src}
}

// SetDisplayEmails sets the client's emails to its first display email
func (e *Enricher) SetDisplayEmails(ctx context.Context, c *models.Client) error {
	emails, err := e.src.DisplayEmails(ctx, c.BMDID, c.CompanyID)
	if err != nil {
		return fmt.Errorf("display emails of %s: %w", c.BMDID, err)
	}
	if len(emails) > 0 {
		c.Emails = emails[:1]
	}
	return nil
}

// SetEmailsByAdressart sets the client's emails to all addresses of the
// given address type
func (e *Enricher) SetEmailsByAdressart(ctx context.Context, c *models.Client, adressart string) error {
	emails, err := e.src.ClientEmailsByAdressart(ctx, c.BMDID, c.CompanyID, adressart)
	if err != nil {
		return fmt.Errorf("emails of %s by adressart %q: %w", c.BMDID, adressart, err)
	}
	if len(emails) > 0 {
		c.Emails = emails
	}
	return nil
}

// SetSalutation sets the client's salutation to defaultSalutation, or to the
// value of the free field freifeld when one is given and the client has it.
// An empty defaultSalutation leaves a missing salutation nil.
func (e *Enricher) SetSalutation(ctx context.Context, c *models.Client, defaultSalutation, freifeld string) error {
	if defaultSalutation != "" {
		c.Salutation = &defaultSalutation
	}
	if freifeld == "" {
		return nil
	}

	s, err := e.src.SalutationFreifeld(ctx, c.BMDID, c.CompanyID, freifeld)
	if err != nil {
		return fmt.Errorf("salutation of %s from free field %q: %w", c.BMDID, freifeld, err)
	}
	if s != "" {
		c.Salutation = &s
	}
	return nil
}

// SetContactPersonSalutation replaces the client's emails and salutation
// with those of its contact persons: the ones carrying identifier, or the
// main contact persons when identifier is empty. If any contact person has
// no usable salutation, or there are none, Salutation becomes nil.
func (e *Enricher) SetContactPersonSalutation(ctx context.Context, c *models.Client, t models.ContactPersonType, identifier string) error {
	var (
		people []models.ContactPerson
		err    error
	)
	if identifier != "" {
		people, err = e.src.ContactPersonsByIdentifier(ctx, c.BMDID, c.CompanyID, identifier)
	} else {
		people, err = e.src.MainContactPersons(ctx, c.BMDID, c.CompanyID)
	}
	if err != nil {
		return fmt.Errorf("contact persons of %s: %w", c.BMDID, err)
	}

	c.Emails = make([]string, 0, len(people))
	salutations := make([]string, 0, len(people))
	complete := len(people) > 0
	for _, cp := range people {
		if cp.Email != "" {
			c.Emails = append(c.Emails, cp.Email)
		}
		s, ok := cp.Salutation(t)
		if !ok {
			complete = false
			continue
		}
		salutations = append(salutations, s)
	}

	c.Salutation = nil
	if complete {
		joined := strings.Join(salutations, SalutationSeparator)
		c.Salutation = &joined
	}
	return nil
}

// SetEmployees sets the client's responsible employees. The case handler
// comes from the client master data (HAUPT) or from the deadline (FRIST);
// Mode decides how it is combined with the employees of the responsibility
// areas. The result holds each BMD id once.
func (e *Enricher) SetEmployees(ctx context.Context, c *models.Client, opts EmployeeOptions) error {
	var responsibles []models.Employee
	if opts.Mode != models.ModeDefault && len(opts.ResponsibleAreas) > 0 {
		var err error
		responsibles, err = e.src.ResponsibleEmployees(ctx, c.BMDID, c.CompanyID, opts.ResponsibleAreas)
		if err != nil {
			return fmt.Errorf("responsible employees of %s: %w", c.BMDID, err)
		}
	}

	sb, err := e.sachbearbeiter(ctx, c, opts)
	if err != nil {
		return err
	}

	var employees []models.Employee
	switch opts.Mode {
	case models.ModeDefault:
		if sb != nil {
			employees = append(employees, *sb)
		}
	case models.ModeAppend:
		employees = append(employees, responsibles...)
		if sb != nil {
			employees = append(employees, *sb)
		}
	case models.ModeFallback:
		employees = append(employees, responsibles...)
		if len(employees) == 0 && sb != nil {
			employees = append(employees, *sb)
		}
	default:
		return fmt.Errorf("unknown employee selection mode %q", opts.Mode)
	}

	c.Employees = models.DedupeEmployees(employees)
	return nil
}

func (e *Enricher) sachbearbeiter(ctx context.Context, c *models.Client, opts EmployeeOptions) (*models.Employee, error) {
	switch opts.Sachbearbeiter {
	case models.SachbearbeiterHaupt:
		sb, err := e.src.SachbearbeiterOfClient(ctx, c.BMDID, c.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("sachbearbeiter of %s: %w", c.BMDID, err)
		}
		return sb, nil
	case models.SachbearbeiterFrist:
		if opts.FristID == 0 {
			return nil, fmt.Errorf("sachbearbeiter FRIST of %s requires a frist id", c.BMDID)
		}
		sb, err := e.src.FristEmployee(ctx, opts.FristID)
		if err != nil {
			return nil, fmt.Errorf("employee of frist %d: %w", opts.FristID, err)
		}
		return sb, nil
	default:
		return nil, fmt.Errorf("unknown sachbearbeiter %q", opts.Sachbearbeiter)
	}
}
