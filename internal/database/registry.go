// Package database provides the BMD query layer: the query registry, the
// parameter binder, the row mapper and the execution facade.
//
// FILE: registry.go
// PURPOSE: Loads the query definitions (SQL templates, declared parameters and
// output columns) once at startup and exposes them by name.
//
// KEY TYPES:
// - Definition: one immutable, validated query
// - Registry: read-only lookup table, safe for concurrent use
//
// RELATED FILES:
// - sql/queries.yaml: manifest naming every query, its params and columns
// - binder.go: turns a Definition plus Params into driver-bound SQL
package database

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed sql/*.sql sql/queries.yaml
var embeddedSQL embed.FS

// ManifestFile is the name of the manifest at the root of a query filesystem
const ManifestFile = "queries.yaml"

// placeholderPattern matches {name} placeholders in SQL templates
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Kind is the semantic type of a query parameter
type Kind string

const (
	KindString     Kind = "string"
	KindInteger    Kind = "integer"
	KindStringList Kind = "string_list"
)

func (k Kind) valid() bool {
	switch k {
	case KindString, KindInteger, KindStringList:
		return true
	}
	return false
}

// describe returns the human readable kind used in error messages
func (k Kind) describe() string {
	switch k {
	case KindInteger:
		return "an integer"
	case KindStringList:
		return "a non-empty list of strings"
	default:
		return "a string"
	}
}

// Param is a declared query parameter
type Param struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
}

// Definition is a loaded and validated query
type Definition struct {
	Name        string
	SQL         string
	Params      []Param
	Columns     []string
	Fingerprint uint64
	Files       []string
}

// Param returns the declared parameter with the given name
func (d *Definition) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// FingerprintHex returns the fingerprint as a fixed-width hex string
func (d *Definition) FingerprintHex() string {
	return fmt.Sprintf("%016x", d.Fingerprint)
}

// Registry holds every query definition by name. It is never mutated after
// LoadRegistry returns.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

type manifest struct {
	Fragments []manifestEntry `yaml:"fragments"`
	Queries   []manifestEntry `yaml:"queries"`
}

type manifestEntry struct {
	Name     string   `yaml:"name"`
	File     string   `yaml:"file"`
	Fragment string   `yaml:"fragment"`
	Columns  []string `yaml:"columns"`
	Params   []Param  `yaml:"params"`
}

type fragment struct {
	file    string
	sql     string
	columns []string
}

// EmbeddedFS returns the query definitions compiled into the binary
func EmbeddedFS() afero.Fs {
	sub, err := fs.Sub(embeddedSQL, "sql")
	if err != nil {
		// the embed pattern guarantees the directory exists
		panic(err)
	}
	return afero.NewReadOnlyFs(afero.FromIOFS{FS: sub})
}

// OverlayFS returns the embedded definitions with files in dir taking
// precedence. An empty dir returns EmbeddedFS unchanged; a dir that does not
// exist is a *LoadError.
func OverlayFS(dir string) (afero.Fs, error) {
	if dir == "" {
		return EmbeddedFS(), nil
	}
	osFs := afero.NewOsFs()
	ok, err := afero.DirExists(osFs, dir)
	if err != nil || !ok {
		return nil, &LoadError{File: dir, Reason: "queries directory does not exist", Err: err}
	}
	layer := afero.NewBasePathFs(osFs, dir)
	return afero.NewReadOnlyFs(afero.NewCopyOnWriteFs(EmbeddedFS(), layer)), nil
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return LoadRegistry(EmbeddedFS())
})

// DefaultRegistry returns the registry built from the embedded definitions.
// It is loaded on first use and shared afterwards.
func DefaultRegistry() (*Registry, error) {
	return defaultRegistry()
}

// LoadRegistry reads the manifest and SQL files from fsys and validates
// every definition. Any problem is reported as a *LoadError.
func LoadRegistry(fsys afero.Fs) (*Registry, error) {
	raw, err := afero.ReadFile(fsys, ManifestFile)
	if err != nil {
		return nil, &LoadError{File: ManifestFile, Reason: "read manifest", Err: err}
	}

	var m manifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, &LoadError{File: ManifestFile, Reason: "parse manifest", Err: err}
	}

	fragments := make(map[string]fragment, len(m.Fragments))
	for _, e := range m.Fragments {
		if e.Name == "" {
			return nil, &LoadError{File: e.File, Reason: "fragment without name"}
		}
		if _, dup := fragments[e.Name]; dup {
			return nil, &LoadError{Query: e.Name, Reason: "duplicate fragment"}
		}
		if len(e.Params) > 0 {
			return nil, &LoadError{Query: e.Name, Reason: "fragments cannot declare params"}
		}
		if len(e.Columns) == 0 {
			return nil, &LoadError{Query: e.Name, File: e.File, Reason: "fragment declares no columns"}
		}
		sql, err := readTemplate(fsys, e)
		if err != nil {
			return nil, err
		}
		fragments[e.Name] = fragment{file: e.File, sql: sql, columns: e.Columns}
	}

	reg := &Registry{defs: make(map[string]*Definition, len(m.Queries))}
	for _, e := range m.Queries {
		def, err := buildDefinition(fsys, e, fragments)
		if err != nil {
			return nil, err
		}
		if _, dup := reg.defs[def.Name]; dup {
			return nil, &LoadError{Query: def.Name, Reason: "duplicate query name"}
		}
		reg.defs[def.Name] = def
		reg.order = append(reg.order, def.Name)
	}

	if len(reg.defs) == 0 {
		return nil, &LoadError{File: ManifestFile, Reason: "no queries declared"}
	}
	return reg, nil
}

func readTemplate(fsys afero.Fs, e manifestEntry) (string, error) {
	if e.File == "" {
		return "", &LoadError{Query: e.Name, Reason: "no file given"}
	}
	body, err := afero.ReadFile(fsys, e.File)
	if err != nil {
		return "", &LoadError{Query: e.Name, File: e.File, Reason: "read template", Err: err}
	}
	sql := strings.TrimSpace(string(body))
	if sql == "" {
		return "", &LoadError{Query: e.Name, File: e.File, Reason: "empty template"}
	}
	return sql, nil
}

func buildDefinition(fsys afero.Fs, e manifestEntry, fragments map[string]fragment) (*Definition, error) {
	if e.Name == "" {
		return nil, &LoadError{File: e.File, Reason: "query without name"}
	}

	body, err := readTemplate(fsys, e)
	if err != nil {
		return nil, err
	}

	def := &Definition{Name: e.Name, SQL: body, Files: []string{e.File}}
	if e.Fragment != "" {
		frag, ok := fragments[e.Fragment]
		if !ok {
			return nil, &LoadError{Query: e.Name, Reason: fmt.Sprintf("unknown fragment %q", e.Fragment)}
		}
		if len(e.Columns) > 0 {
			return nil, &LoadError{Query: e.Name, Reason: "columns are inherited from the fragment and must not be redeclared"}
		}
		def.SQL = frag.sql + "\n" + body
		def.Columns = append([]string(nil), frag.columns...)
		def.Files = []string{frag.file, e.File}
	} else {
		if len(e.Columns) == 0 {
			return nil, &LoadError{Query: e.Name, File: e.File, Reason: "no columns declared"}
		}
		def.Columns = append([]string(nil), e.Columns...)
	}

	if err := checkColumns(def); err != nil {
		return nil, err
	}
	def.Params = append([]Param(nil), e.Params...)
	if err := checkParams(def); err != nil {
		return nil, err
	}

	def.Fingerprint = xxhash.Sum64String(def.SQL)
	return def, nil
}

func checkColumns(def *Definition) error {
	seen := make(map[string]bool, len(def.Columns))
	for _, c := range def.Columns {
		if c == "" {
			return &LoadError{Query: def.Name, Reason: "empty column name"}
		}
		if seen[c] {
			return &LoadError{Query: def.Name, Reason: fmt.Sprintf("duplicate column %q", c)}
		}
		seen[c] = true
	}
	return nil
}

// checkParams enforces that the template's placeholders and the declared
// params are the same set.
func checkParams(def *Definition) error {
	declared := make(map[string]bool, len(def.Params))
	for _, p := range def.Params {
		if p.Name == "" {
			return &LoadError{Query: def.Name, Reason: "param without name"}
		}
		if !p.Kind.valid() {
			return &LoadError{Query: def.Name, Reason: fmt.Sprintf("param %q has unknown kind %q", p.Name, p.Kind)}
		}
		if declared[p.Name] {
			return &LoadError{Query: def.Name, Reason: fmt.Sprintf("param %q declared twice", p.Name)}
		}
		declared[p.Name] = true
	}

	referenced := Placeholders(def.SQL)
	for _, name := range referenced {
		if !declared[name] {
			return &LoadError{Query: def.Name, Reason: fmt.Sprintf("placeholder {%s} is not a declared param", name)}
		}
	}
	used := make(map[string]bool, len(referenced))
	for _, name := range referenced {
		used[name] = true
	}
	for _, p := range def.Params {
		if !used[p.Name] {
			return &LoadError{Query: def.Name, Reason: fmt.Sprintf("param %q is declared but never referenced", p.Name)}
		}
	}

	// Any brace left after removing valid placeholders is a typo such as
	// "{ client_bmd_id }" that would otherwise reach the database verbatim.
	if rest := placeholderPattern.ReplaceAllString(def.SQL, ""); strings.ContainsAny(rest, "{}") {
		return &LoadError{Query: def.Name, Reason: "malformed placeholder"}
	}
	return nil
}

// Placeholders returns the distinct placeholder names of a template in order
// of first appearance.
func Placeholders(sql string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(sql, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Get returns the definition with the given name
func (r *Registry) Get(name string) (*Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	return def, nil
}

// MustGet is Get for names fixed at compile time
func (r *Registry) MustGet(name string) *Definition {
	def, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return def
}

// Names returns the query names in manifest order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns every definition in manifest order
func (r *Registry) All() []*Definition {
	defs := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.defs[name])
	}
	return defs
}

