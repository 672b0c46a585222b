// Package database provides the BMD query layer: the query registry, the
// parameter binder, the row mapper and the execution facade.
//
// FILE: binder.go
// PURPOSE: Validates caller parameters against a Definition and rewrites the
// {name} placeholders into the driver's bind syntax. Values are only ever
// passed as driver arguments, never formatted into the SQL text.
//
// KEY FUNCTIONS:
// - Bind: Definition + Params -> Bound (SQL and args)
// - ParseParams: converts textual key=value input (CLI) into typed Params
//
// RELATED FILES:
// - registry.go: Definition and Kind
// - errors.go: MissingParameterError, TypeMismatchError
package database

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Params maps placeholder names to caller supplied values
type Params map[string]any

// Dialect is the name of the database/sql driver a query is bound for.
// It decides the bind syntax: @p1 for sqlserver, $1 for postgres and ?
// for mysql, sqlite3 and unknown drivers.
type Dialect string

const (
	DialectSQLServer Dialect = "sqlserver"
	DialectPostgres  Dialect = "postgres"
	DialectMySQL     Dialect = "mysql"
	DialectSQLite    Dialect = "sqlite3"
)

// Bound is a query ready to be handed to the driver
type Bound struct {
	Query string
	SQL   string
	Args  []any
}

// Bind checks that every declared param is present and of the declared kind,
// then produces the driver SQL. A string_list of N elements becomes N
// placeholders and N args.
func Bind(def *Definition, params Params, dialect Dialect) (Bound, error) {
	values := make(map[string]any, len(def.Params))
	for _, p := range def.Params {
		v, ok := params[p.Name]
		if !ok || v == nil {
			return Bound{}, &MissingParameterError{Query: def.Name, Param: p.Name}
		}
		checked, err := checkKind(def.Name, p, v)
		if err != nil {
			return Bound{}, err
		}
		values[p.Name] = checked
	}

	var sb strings.Builder
	sb.Grow(len(def.SQL))
	args := make([]any, 0, len(def.Params))

	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(def.SQL, -1) {
		sb.WriteString(def.SQL[last:loc[0]])
		name := def.SQL[loc[2]:loc[3]]

		switch v := values[name].(type) {
		case []string:
			for i, item := range v {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteByte('?')
				args = append(args, item)
			}
		default:
			sb.WriteByte('?')
			args = append(args, v)
		}
		last = loc[1]
	}
	sb.WriteString(def.SQL[last:])

	return Bound{
		Query: def.Name,
		SQL:   sqlx.Rebind(sqlx.BindType(string(dialect)), sb.String()),
		Args:  args,
	}, nil
}

// checkKind validates v against the declared kind and normalizes integers to
// int64 and lists to a fresh []string.
func checkKind(query string, p Param, v any) (any, error) {
	mismatch := func(got string) error {
		return &TypeMismatchError{Query: query, Param: p.Name, Expected: p.Kind.describe(), Got: got}
	}

	switch p.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(fmt.Sprintf("%T", v))
		}
		return s, nil

	case KindInteger:
		n, ok := toInt64(v)
		if !ok {
			return nil, mismatch(fmt.Sprintf("%T", v))
		}
		return n, nil

	case KindStringList:
		list, ok := v.([]string)
		if !ok {
			return nil, mismatch(fmt.Sprintf("%T", v))
		}
		if len(list) == 0 {
			return nil, mismatch("an empty list")
		}
		return append([]string(nil), list...), nil
	}

	return nil, mismatch(fmt.Sprintf("%T", v))
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// ParseParams converts textual values, as given on the command line, into
// Params of the declared kinds. Lists are comma separated. Params absent from
// raw are left out so that Bind reports them as missing.
func ParseParams(def *Definition, raw map[string]string) (Params, error) {
	params := make(Params, len(raw))
	for key, text := range raw {
		p, ok := def.Param(key)
		if !ok {
			return nil, fmt.Errorf("query %s: unknown parameter %q", def.Name, key)
		}

		switch p.Kind {
		case KindInteger:
			n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
			if err != nil {
				return nil, &TypeMismatchError{Query: def.Name, Param: key, Expected: p.Kind.describe(), Got: strconv.Quote(text)}
			}
			params[key] = n
		case KindStringList:
			var items []string
			for _, item := range strings.Split(text, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			params[key] = items
		default:
			params[key] = text
		}
	}
	return params, nil
}
