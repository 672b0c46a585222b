package database

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinition(t *testing.T, name string) *Definition {
	t.Helper()
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	return reg.MustGet(name)
}

func TestBind_SachbearbeiterOfClient(t *testing.T) {
	def := testDefinition(t, QuerySachbearbeiterOfClient)

	bound, err := Bind(def, Params{
		"client_bmd_id":         "KL2000001",
		"client_bmd_company_id": 1,
	}, DialectSQLServer)
	require.NoError(t, err)

	assert.Equal(t, QuerySachbearbeiterOfClient, bound.Query)
	assert.Equal(t, []any{"KL2000001", int64(1)}, bound.Args)
	assert.Contains(t, bound.SQL, "k.KLI_PERSONENID LIKE @p1")
	assert.Contains(t, bound.SQL, "k.KLI_FIRMENNR = @p2")
	assert.NotContains(t, bound.SQL, "{")
	assert.NotContains(t, bound.SQL, "KL2000001")
}

func TestBind_ListExpandsToOnePlaceholderPerElement(t *testing.T) {
	def := testDefinition(t, QueryResponsibleEmployees)

	tests := []struct {
		name  string
		areas []string
		in    string
	}{
		{"one area", []string{"Buchhaltung"}, "IN (@p2)"},
		{"three areas", []string{"Buchhaltung", "Lohnverrechnung", "Bilanzierung"}, "IN (@p2, @p3, @p4)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bound, err := Bind(def, Params{
				"client_bmd_id":         "KL2000001",
				"responsible_areas":     tt.areas,
				"client_bmd_company_id": int64(1),
			}, DialectSQLServer)
			require.NoError(t, err)

			assert.Contains(t, bound.SQL, tt.in)
			assert.Len(t, bound.Args, len(tt.areas)+2)
			assert.Equal(t, "KL2000001", bound.Args[0])
			assert.Equal(t, int64(1), bound.Args[len(bound.Args)-1])
			for _, area := range tt.areas {
				assert.NotContains(t, bound.SQL, area, "values never reach the SQL text")
			}
		})
	}
}

func TestBind_ListIsCopied(t *testing.T) {
	def := testDefinition(t, QueryResponsibleEmployees)
	areas := []string{"Buchhaltung"}

	bound, err := Bind(def, Params{
		"client_bmd_id":         "KL2000001",
		"responsible_areas":     areas,
		"client_bmd_company_id": 1,
	}, DialectMySQL)
	require.NoError(t, err)

	areas[0] = "changed"
	assert.Equal(t, "Buchhaltung", bound.Args[1])
}

func TestBind_Dialects(t *testing.T) {
	def := testDefinition(t, QueryClientFromFristByClient)
	params := Params{"client_bmd_id": "KL2000001", "client_bmd_company_id": 1}

	tests := []struct {
		dialect Dialect
		first   string
		second  string
	}{
		{DialectSQLServer, "LIKE @p1", "= @p2"},
		{DialectPostgres, "LIKE $1", "= $2"},
		{DialectMySQL, "LIKE ?", "= ?"},
		{DialectSQLite, "LIKE ?", "= ?"},
		{Dialect("sqlmock"), "LIKE ?", "= ?"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			bound, err := Bind(def, params, tt.dialect)
			require.NoError(t, err)
			assert.Contains(t, bound.SQL, "p.PER_PERSONENID "+tt.first)
			assert.Contains(t, bound.SQL, "p.PER_FIRMENNR "+tt.second)
		})
	}
}

func TestBind_ExtraParamsIgnored(t *testing.T) {
	def := testDefinition(t, QueryFristEmployee)

	bound, err := Bind(def, Params{"bmd_frist_id": 4711, "unused": "x"}, DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4711)}, bound.Args)
}

func TestBind_MissingParameter(t *testing.T) {
	def := testDefinition(t, QueryDisplayEmail)

	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{"absent", Params{"client_bmd_company_id": 1}, "client_bmd_id"},
		{"nil value", Params{"client_bmd_id": "KL2000001", "client_bmd_company_id": nil}, "client_bmd_company_id"},
		{"no params", nil, "client_bmd_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(def, tt.params, DialectSQLServer)
			require.ErrorIs(t, err, ErrMissingParameter)

			var mp *MissingParameterError
			require.True(t, errors.As(err, &mp))
			assert.Equal(t, tt.want, mp.Param)
			assert.Equal(t, QueryDisplayEmail, mp.Query)
		})
	}
}

func TestBind_TypeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		params Params
		param  string
		got    string
	}{
		{
			name:   "integer as string",
			query:  QueryFristEmployee,
			params: Params{"bmd_frist_id": "4711"},
			param:  "bmd_frist_id",
			got:    "string",
		},
		{
			name:   "float for integer",
			query:  QueryFristEmployee,
			params: Params{"bmd_frist_id": 4711.0},
			param:  "bmd_frist_id",
			got:    "float64",
		},
		{
			name:   "uint64 overflow",
			query:  QueryFristEmployee,
			params: Params{"bmd_frist_id": uint64(math.MaxUint64)},
			param:  "bmd_frist_id",
			got:    "uint64",
		},
		{
			name:   "string as integer",
			query:  QueryDisplayEmail,
			params: Params{"client_bmd_id": 2000001, "client_bmd_company_id": 1},
			param:  "client_bmd_id",
			got:    "int",
		},
		{
			name:   "list as plain string",
			query:  QueryResponsibleEmployees,
			params: Params{"client_bmd_id": "KL2000001", "responsible_areas": "Buchhaltung", "client_bmd_company_id": 1},
			param:  "responsible_areas",
			got:    "string",
		},
		{
			name:   "empty list",
			query:  QueryResponsibleEmployees,
			params: Params{"client_bmd_id": "KL2000001", "responsible_areas": []string{}, "client_bmd_company_id": 1},
			param:  "responsible_areas",
			got:    "an empty list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(testDefinition(t, tt.query), tt.params, DialectSQLServer)
			require.ErrorIs(t, err, ErrTypeMismatch)

			var tm *TypeMismatchError
			require.True(t, errors.As(err, &tm))
			assert.Equal(t, tt.param, tm.Param)
			assert.Equal(t, tt.got, tm.Got)
		})
	}
}

func TestBind_AcceptsIntegerTypes(t *testing.T) {
	def := testDefinition(t, QueryFristEmployee)
	for _, v := range []any{int(7), int8(7), int16(7), int32(7), int64(7), uint(7), uint8(7), uint16(7), uint32(7), uint64(7)} {
		bound, err := Bind(def, Params{"bmd_frist_id": v}, DialectSQLite)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, []any{int64(7)}, bound.Args)
	}
}

func TestBind_KeepsLikeWildcardsInValues(t *testing.T) {
	def := testDefinition(t, QueryContactPersonsIdentifier)

	bound, err := Bind(def, Params{
		"client_bmd_id":         "KL2000001",
		"client_bmd_company_id": 1,
		"identifier":            "G%",
	}, DialectSQLServer)
	require.NoError(t, err)
	assert.Equal(t, "G%", bound.Args[2])
	assert.Equal(t, 3, strings.Count(bound.SQL, "@p"))
}

func TestParseParams(t *testing.T) {
	def := testDefinition(t, QueryResponsibleEmployees)

	params, err := ParseParams(def, map[string]string{
		"client_bmd_id":         "KL2000001",
		"responsible_areas":     "Buchhaltung, Lohnverrechnung,,",
		"client_bmd_company_id": " 1 ",
	})
	require.NoError(t, err)
	assert.Equal(t, Params{
		"client_bmd_id":         "KL2000001",
		"responsible_areas":     []string{"Buchhaltung", "Lohnverrechnung"},
		"client_bmd_company_id": int64(1),
	}, params)

	_, err = Bind(def, params, DialectSQLServer)
	assert.NoError(t, err)
}

func TestParseParams_Errors(t *testing.T) {
	def := testDefinition(t, QuerySachbearbeiterOfClient)

	_, err := ParseParams(def, map[string]string{"client_bmd_company_id": "eins"})
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), `got "eins"`)

	_, err = ParseParams(def, map[string]string{"frist": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown parameter "frist"`)

	params, err := ParseParams(def, map[string]string{"client_bmd_id": "KL2000001"})
	require.NoError(t, err)
	_, err = Bind(def, params, DialectSQLServer)
	assert.ErrorIs(t, err, ErrMissingParameter)
}
