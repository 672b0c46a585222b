package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var employeeColumns = []string{"bmd_id", "bmd_number", "bmd_company_id", "email"}

// newMockQueries returns Queries over sqlmock bound as SQL Server, plus the
// SQL text of every statement the driver received.
func newMockQueries(t *testing.T, opts ...Option) (*Queries, sqlmock.Sqlmock, *[]string) {
	t.Helper()

	var seen []string
	matcher := sqlmock.QueryMatcherFunc(func(expected, actual string) error {
		seen = append(seen, actual)
		return sqlmock.QueryMatcherRegexp.Match(expected, actual)
	})

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := DefaultRegistry()
	require.NoError(t, err)

	return NewQueries(NewPoolFromDB(db, string(DialectSQLServer)), reg, opts...), mock, &seen
}

func TestQueries_SachbearbeiterOfClient(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	// driver returns upper-case names, another order and an extra column
	rows := sqlmock.NewRows([]string{"EMAIL", "BMD_ID", "bmd_company_id", "bmd_number", "rowversion"}).
		AddRow([]byte("sb@kanzlei.at"), "MA0000001", int64(1), "1", []byte{0x01})

	mock.ExpectQuery(`FROM BUERO\.KLI_KUNDE_LIEFERANT k[\s\S]*WHERE k\.KLI_PERSONENID LIKE @p1\s+AND k\.KLI_FIRMENNR = @p2`).
		WithArgs("KL2000001", int64(1)).
		WillReturnRows(rows).
		RowsWillBeClosed()

	sb, err := q.SachbearbeiterOfClient(context.Background(), "KL2000001", 1)
	require.NoError(t, err)
	require.NotNil(t, sb)
	assert.Equal(t, "MA0000001", sb.BMDID)
	assert.Equal(t, "1", sb.BMDNumber)
	assert.Equal(t, int64(1), sb.CompanyID)
	assert.Equal(t, "sb@kanzlei.at", sb.Email)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_SachbearbeiterOfClient_NotFound(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	mock.ExpectQuery(`KLI_SACHBEARBEITERID`).
		WithArgs("KL9999999", int64(1)).
		WillReturnRows(sqlmock.NewRows(employeeColumns))

	sb, err := q.SachbearbeiterOfClient(context.Background(), "KL9999999", 1)
	require.NoError(t, err)
	assert.Nil(t, sb)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_ResponsibleEmployees_BindsListValues(t *testing.T) {
	q, mock, seen := newMockQueries(t)

	mock.ExpectQuery(`zb\.ZBE_BEZEICHNUNG IN \(@p2\)`).
		WithArgs("KL2000001", "Buchhaltung", int64(1)).
		WillReturnRows(sqlmock.NewRows(employeeColumns).
			AddRow("MA0000002", "2", int64(1), "bh@kanzlei.at").
			AddRow("MA0000003", "3", int64(1), nil))

	employees, err := q.ResponsibleEmployees(context.Background(), "KL2000001", 1, []string{"Buchhaltung"})
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, "bh@kanzlei.at", employees[0].Email)
	assert.Equal(t, "", employees[1].Email)

	require.Len(t, *seen, 1)
	assert.NotContains(t, (*seen)[0], "Buchhaltung")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_ResponsibleEmployees_NoAreasSkipsDatabase(t *testing.T) {
	q, mock, seen := newMockQueries(t)

	employees, err := q.ResponsibleEmployees(context.Background(), "KL2000001", 1, nil)
	require.NoError(t, err)
	assert.NotNil(t, employees)
	assert.Empty(t, employees)
	assert.Empty(t, *seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_ClientFromFrist(t *testing.T) {
	q, mock, _ := newMockQueries(t)
	reg, _ := DefaultRegistry()
	cols := reg.MustGet(QueryClientFromFristByID).Columns

	mock.ExpectQuery(`JOIN BUERO\.FST_FRIST f[\s\S]*WHERE f\.FST_FRISTID = @p1`).
		WithArgs(int64(4711)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"KL2000001", "2000001", int64(1), int64(1), "Max", "Mustermann", nil, int64(1),
			"12 345/6789", "AT611904300234573201", "BKAUATWW"))

	client, err := q.ClientFromFrist(context.Background(), ByFristID{FristID: 4711})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "KL2000001", client.BMDID)
	assert.Equal(t, "1", client.TaxCompanyID)
	assert.Equal(t, "de", client.LanguageISO())
	assert.Equal(t, "123456789", client.ParsedTaxNumber())

	mock.ExpectQuery(`WHERE p\.PER_PERSONENID LIKE @p1\s+AND p\.PER_FIRMENNR = @p2`).
		WithArgs("KL0000000", int64(1)).
		WillReturnRows(sqlmock.NewRows(cols))

	client, err = q.ClientFromFrist(context.Background(), ByClientID{ClientID: "KL0000000", CompanyID: 1})
	require.NoError(t, err)
	assert.Nil(t, client)

	_, err = q.ClientFromFrist(context.Background(), nil)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_RunEmptyResult(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	mock.ExpectQuery(`EMA_ANZEIGE = 1`).
		WithArgs("KL2000001", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"display_email"}))

	records, err := q.Run(context.Background(), QueryDisplayEmail, Params{
		"client_bmd_id":         "KL2000001",
		"client_bmd_company_id": 1,
	})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestQueries_ClientsWithEmailAndDOB_EmptyStore(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	mock.ExpectQuery(`PER_GEBURTSDATUM`).
		WillReturnRows(sqlmock.NewRows([]string{"bmd_id", "bmd_number", "bmd_company_id", "first_name", "last_name", "email", "dob"}))

	n := 0
	for _, err := range q.ClientsWithEmailAndDOB(context.Background()) {
		require.NoError(t, err)
		n++
	}
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_SalutationFreifeld(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	mock.ExpectQuery(`FFD_BEZEICHNUNG LIKE @p3`).
		WithArgs("KL2000001", int64(1), "Briefanrede").
		WillReturnRows(sqlmock.NewRows([]string{"salutation"}).AddRow("Servus Max"))
	mock.ExpectQuery(`FFD_BEZEICHNUNG LIKE @p3`).
		WithArgs("KL2000003", int64(1), "Briefanrede").
		WillReturnRows(sqlmock.NewRows([]string{"salutation"}))

	got, err := q.SalutationFreifeld(context.Background(), "KL2000001", 1, "Briefanrede")
	require.NoError(t, err)
	assert.Equal(t, "Servus Max", got)

	got, err = q.SalutationFreifeld(context.Background(), "KL2000003", 1, "Briefanrede")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_BindErrorsNeverReachDriver(t *testing.T) {
	q, mock, seen := newMockQueries(t)

	_, err := q.Run(context.Background(), QueryDisplayEmail, Params{"client_bmd_id": "KL2000001"})
	assert.ErrorIs(t, err, ErrMissingParameter)

	_, err = q.Run(context.Background(), QueryFristEmployee, Params{"bmd_frist_id": "4711"})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = q.Run(context.Background(), "no_such_query", nil)
	assert.ErrorIs(t, err, ErrUnknownQuery)

	assert.Empty(t, *seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_ExecutionErrorCarriesDriverCode(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	driverErr := &mysql.MySQLError{Number: 1146, Message: "Table 'BUERO.FST_FRIST' doesn't exist"}
	mock.ExpectQuery(`FST_FRIST`).
		WithArgs(int64(1)).
		WillReturnError(driverErr)

	_, err := q.FristEmployee(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecution)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, QueryFristEmployee, execErr.Query)
	assert.Equal(t, "1146", execErr.Code)
	assert.Same(t, driverErr, errors.Unwrap(execErr))
}

func TestQueries_RowErrorIsExecutionError(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	mock.ExpectQuery(`display_email`).
		WillReturnRows(sqlmock.NewRows([]string{"display_email"}).
			AddRow("a@x.at").
			RowError(0, errors.New("connection reset")))

	_, err := q.DisplayEmails(context.Background(), "KL2000001", 1)
	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorContains(t, err, "connection reset")
}

func TestQueries_CanceledContext(t *testing.T) {
	q, _, _ := newMockQueries(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.FristEmployee(ctx, 4711)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "canceled", execErr.Code)
}

func TestQueries_StreamIsLazyAndSingleUse(t *testing.T) {
	q, mock, seen := newMockQueries(t)

	mock.ExpectQuery(`ORDER BY p\.PER_PERSONENID`).
		WillReturnRows(sqlmock.NewRows([]string{"bmd_id", "bmd_number", "bmd_company_id", "first_name", "last_name", "email", "dob"}).
			AddRow("KL2000001", "2000001", int64(1), "Max", "Mustermann", "max@example.at", "1980-10-17").
			AddRow("KL2000002", "2000002", int64(1), "Erika", "Musterfrau", "erika@example.at", "1975-03-02"))

	seq := q.ClientsWithEmailAndDOB(context.Background())
	assert.Empty(t, *seen, "nothing is executed before iteration")

	var ids []string
	for rec, err := range seq {
		require.NoError(t, err)
		ids = append(ids, rec.String("bmd_id"))
	}
	assert.Equal(t, []string{"KL2000001", "KL2000002"}, ids)

	var again []error
	for rec, err := range seq {
		assert.Nil(t, rec)
		again = append(again, err)
	}
	require.Len(t, again, 1)
	assert.ErrorIs(t, again[0], ErrSequenceConsumed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_StreamEarlyBreakClosesRows(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	mock.ExpectQuery(`ORDER BY p\.PER_PERSONENID`).
		WillReturnRows(sqlmock.NewRows([]string{"bmd_id"}).AddRow("KL2000001").AddRow("KL2000002")).
		RowsWillBeClosed()

	count := 0
	for _, err := range q.Stream(context.Background(), QueryClientByEmailDOB, nil) {
		require.NoError(t, err)
		count++
		break
	}
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueries_StreamYieldsErrorLast(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	mock.ExpectQuery(`ORDER BY p\.PER_PERSONENID`).
		WillReturnError(&pq.Error{Code: "42P01", Message: "relation does not exist"})

	var errs []error
	for _, err := range q.ClientsWithEmailAndDOB(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)

	var execErr *ExecutionError
	require.True(t, errors.As(errs[0], &execErr))
	assert.Equal(t, "42P01", execErr.Code)
}

func TestQueries_LogsExecution(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	q, mock, _ := newMockQueries(t, WithLogger(logger))

	mock.ExpectQuery(`FST_FRIST`).
		WithArgs(int64(4711)).
		WillReturnRows(sqlmock.NewRows(employeeColumns).AddRow("MA0000003", "3", int64(1), "lohn@kanzlei.at"))

	_, err := q.FristEmployee(context.Background(), 4711)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "query executed", entry["msg"])
	assert.Equal(t, QueryFristEmployee, entry["query"])
	assert.Equal(t, q.Registry().MustGet(QueryFristEmployee).FingerprintHex(), entry["fingerprint"])
	assert.Equal(t, float64(1), entry["rows"])
	assert.NotEmpty(t, entry["invocation_id"])
	assert.NotContains(t, entry, "args", "parameter values are not logged")
}

func TestQueries_PoolStats(t *testing.T) {
	q, mock, _ := newMockQueries(t)

	mock.ExpectQuery(`FST_FRIST`).WillReturnRows(sqlmock.NewRows(employeeColumns))
	mock.ExpectQuery(`FST_FRIST`).WillReturnError(errors.New("boom"))

	_, _ = q.FristEmployee(context.Background(), 1)
	_, _ = q.FristEmployee(context.Background(), 2)

	stats := q.Pool().Stats()
	assert.Equal(t, int64(2), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.FailedQueries)
}

func TestDriverErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"mysql", &mysql.MySQLError{Number: 1045}, "1045"},
		{"postgres", &pq.Error{Code: "23505"}, "23505"},
		{"sqlserver", mssql.Error{Number: 208, Message: "Invalid object name"}, "208"},
		{"sqlite", sqlite3.Error{Code: sqlite3.ErrConstraint}, "19"},
		{"wrapped", errors.Join(errors.New("outer"), &pq.Error{Code: "40001"}), "40001"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"unknown", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, driverErrorCode(tt.err))
		})
	}
}

func TestExecutionError_Message(t *testing.T) {
	err := newExecutionError(QueryDisplayEmail, &mysql.MySQLError{Number: 1146, Message: "missing"})
	assert.True(t, strings.HasPrefix(err.Error(), "query display_email failed (code 1146): "))
	assert.Equal(t, "query x failed: boom", newExecutionError("x", errors.New("boom")).Error())
}
