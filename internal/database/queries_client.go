// Package database provides the BMD query layer: the query registry, the
// parameter binder, the row mapper and the execution facade.
//
// FILE: queries_client.go
// PURPOSE: Client lookups: the birthday candidate stream, the client behind a
// deadline (Frist) and the client's email addresses.
//
// KEY FUNCTIONS:
// - ClientsWithEmailAndDOB: lazy stream of clients with an email and a birth date
// - ClientFromFrist: single client by deadline id or by client id
// - ClientEmailsByAdressart: emails of one address type
// - DisplayEmails: emails flagged for display
// - SalutationFreifeld: letter salutation kept in a free field
//
// RELATED FILES:
// - queries.go: Base Queries struct and NewQueries constructor
// - scanners.go: Record -> models.Client
package database

import (
	"context"
	"errors"
	"iter"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/models"
)

// ClientLookup selects how ClientFromFrist finds its client. It is
// implemented by ByFristID and ByClientID only.
type ClientLookup interface {
	clientLookup() (query string, params Params)
}

// ByFristID looks the client up through the deadline it is attached to
type ByFristID struct {
	FristID int64
}

func (l ByFristID) clientLookup() (string, Params) {
	return QueryClientFromFristByID, Params{"bmd_frist_id": l.FristID}
}

// ByClientID looks the client up directly. ClientID is matched with LIKE.
type ByClientID struct {
	ClientID  string
	CompanyID int64
}

func (l ByClientID) clientLookup() (string, Params) {
	return QueryClientFromFristByClient, Params{
		"client_bmd_id":         l.ClientID,
		"client_bmd_company_id": l.CompanyID,
	}
}

// ClientsWithEmailAndDOB streams every client of company 1 that has a
// display email and a date of birth. Each record carries bmd_id,
// bmd_number, bmd_company_id, first_name, last_name, email and dob.
func (q *Queries) ClientsWithEmailAndDOB(ctx context.Context) iter.Seq2[Record, error] {
	return q.Stream(ctx, QueryClientByEmailDOB, nil)
}

// ClientFromFrist returns the client selected by lookup, or nil if there is none
func (q *Queries) ClientFromFrist(ctx context.Context, lookup ClientLookup) (*models.Client, error) {
	if lookup == nil {
		return nil, errors.New("client lookup is required")
	}

	name, params := lookup.clientLookup()
	rec, err := q.first(ctx, name, params)
	if err != nil || rec == nil {
		return nil, err
	}
	return scanClient(rec), nil
}

// ClientEmailsByAdressart returns the client's emails whose address type
// matches adressart (LIKE)
func (q *Queries) ClientEmailsByAdressart(ctx context.Context, clientID string, companyID int64, adressart string) ([]string, error) {
	records, err := q.Run(ctx, QueryClientEmailByAdressart, Params{
		"client_bmd_id":         clientID,
		"email_address_type":    adressart,
		"client_bmd_company_id": companyID,
	})
	if err != nil {
		return nil, err
	}
	return columnStrings(records, "email"), nil
}

// DisplayEmails returns the client's emails flagged for display
func (q *Queries) DisplayEmails(ctx context.Context, clientID string, companyID int64) ([]string, error) {
	records, err := q.Run(ctx, QueryDisplayEmail, Params{
		"client_bmd_id":         clientID,
		"client_bmd_company_id": companyID,
	})
	if err != nil {
		return nil, err
	}
	return columnStrings(records, "display_email"), nil
}

// SalutationFreifeld returns the value of the client's free field named
// freifeld (LIKE), or "" if the client has none
func (q *Queries) SalutationFreifeld(ctx context.Context, clientID string, companyID int64, freifeld string) (string, error) {
	rec, err := q.first(ctx, QuerySalutationFreifeld, Params{
		"client_bmd_id":           clientID,
		"client_bmd_company_id":   companyID,
		"salutation_bmd_freifeld": freifeld,
	})
	if err != nil || rec == nil {
		return "", err
	}
	return rec.String("salutation"), nil
}

// columnStrings collects the non-empty values of one column
func columnStrings(records []Record, col string) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if s := rec.String(col); s != "" {
			out = append(out, s)
		}
	}
	return out
}
