// Package database provides the BMD query layer: the query registry, the
// parameter binder, the row mapper and the execution facade.
//
// FILE: queries_employee.go
// PURPOSE: Employees responsible for a client: by responsibility area, the
// client's main case handler and the case handler of a deadline.
//
// RELATED FILES:
// - queries.go: Base Queries struct and NewQueries constructor
// - scanners.go: Record -> models.Employee
package database

import (
	"context"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/models"
)

// ResponsibleEmployees returns the employees holding one of the given
// responsibility areas for the client. No areas means no employees; the
// database is not queried.
func (q *Queries) ResponsibleEmployees(ctx context.Context, clientID string, companyID int64, areas []string) ([]models.Employee, error) {
	if len(areas) == 0 {
		return []models.Employee{}, nil
	}

	records, err := q.Run(ctx, QueryResponsibleEmployees, Params{
		"client_bmd_id":         clientID,
		"responsible_areas":     areas,
		"client_bmd_company_id": companyID,
	})
	if err != nil {
		return nil, err
	}
	return scanEmployees(records), nil
}

// SachbearbeiterOfClient returns the client's main case handler, or nil
func (q *Queries) SachbearbeiterOfClient(ctx context.Context, clientID string, companyID int64) (*models.Employee, error) {
	rec, err := q.first(ctx, QuerySachbearbeiterOfClient, Params{
		"client_bmd_id":         clientID,
		"client_bmd_company_id": companyID,
	})
	if err != nil || rec == nil {
		return nil, err
	}
	e := scanEmployee(rec)
	return &e, nil
}

// FristEmployee returns the case handler assigned to the deadline, or nil
func (q *Queries) FristEmployee(ctx context.Context, fristID int64) (*models.Employee, error) {
	rec, err := q.first(ctx, QueryFristEmployee, Params{"bmd_frist_id": fristID})
	if err != nil || rec == nil {
		return nil, err
	}
	e := scanEmployee(rec)
	return &e, nil
}

func scanEmployees(records []Record) []models.Employee {
	employees := make([]models.Employee, 0, len(records))
	for _, rec := range records {
		employees = append(employees, scanEmployee(rec))
	}
	return employees
}
