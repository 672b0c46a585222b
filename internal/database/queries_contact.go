// Package database provides the BMD query layer: the query registry, the
// parameter binder, the row mapper and the execution facade.
//
// FILE: queries_contact.go
// PURPOSE: Contact persons of a client, selected by identifier or as the
// client's main contacts.
//
// RELATED FILES:
// - queries.go: Base Queries struct and NewQueries constructor
// - scanners.go: Record -> models.ContactPerson
package database

import (
	"context"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/models"
)

// ContactPersonsByIdentifier returns the client's contact persons whose
// identifier (Personenkennzeichen) matches identifier (LIKE), ordered by last name
func (q *Queries) ContactPersonsByIdentifier(ctx context.Context, clientID string, companyID int64, identifier string) ([]models.ContactPerson, error) {
	return q.contactPersons(ctx, QueryContactPersonsIdentifier, Params{
		"client_bmd_id":         clientID,
		"client_bmd_company_id": companyID,
		"identifier":            identifier,
	})
}

// MainContactPersons returns the client's main contact persons
func (q *Queries) MainContactPersons(ctx context.Context, clientID string, companyID int64) ([]models.ContactPerson, error) {
	return q.contactPersons(ctx, QueryContactPersonsMain, Params{
		"client_bmd_id":         clientID,
		"client_bmd_company_id": companyID,
	})
}

func (q *Queries) contactPersons(ctx context.Context, name string, params Params) ([]models.ContactPerson, error) {
	records, err := q.Run(ctx, name, params)
	if err != nil {
		return nil, err
	}
	people := make([]models.ContactPerson, 0, len(records))
	for _, rec := range records {
		people = append(people, scanContactPerson(rec))
	}
	return people, nil
}
