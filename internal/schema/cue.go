package schema

import (
	"context"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// SpecError reports an invalid table definition with its CUE position.
type SpecError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *SpecError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// columnSpec mirrors one entry under table.<name>.columns.
type columnSpec struct {
	Type       string          `json:"type"`
	DBType     string          `json:"db_type"`
	Alias      string          `json:"alias"`
	AllowNull  *bool           `json:"allow_null"`
	Expression string          `json:"expression"`
	Validation *validationSpec `json:"validation"`
}

type validationSpec struct {
	NotEmpty  bool     `json:"not_empty"`
	MaxLength int      `json:"max_length"`
	Pattern   string   `json:"pattern"`
	Enum      []string `json:"enum"`
}

// CUEDir loads table definitions from every CUE file in a directory.
type CUEDir string

// LoadTables implements Loader.
func (d CUEDir) LoadTables(context.Context) ([]*Table, error) {
	return LoadCUEDir(string(d))
}

// LoadCUEDir loads the CUE package in dir and extracts its tables.
//
// Expected shape:
//
//	table: users: {
//		primary_key: ["id"]
//		columns: {
//			id:   type: "uuid"
//			name: {type: "string", validation: max_length: 64}
//		}
//	}
func LoadCUEDir(dir string) ([]*Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema directory: not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	return tablesFromValue(value)
}

// ParseCUE compiles a single CUE source and extracts its tables.
func ParseCUE(src []byte, filename string) ([]*Table, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", filename, err)
	}
	return tablesFromValue(value)
}

func tablesFromValue(value cue.Value) ([]*Table, error) {
	tablesVal := value.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, nil
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}

	var tables []*Table
	for iter.Next() {
		t, err := parseTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func parseTable(name string, v cue.Value) (*Table, error) {
	path := "table." + name

	var primaryKey []string
	if pkVal := v.LookupPath(cue.ParsePath("primary_key")); pkVal.Exists() {
		if err := pkVal.Decode(&primaryKey); err != nil {
			return nil, &SpecError{Path: path + ".primary_key", Message: err.Error(), Pos: pkVal.Pos()}
		}
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &SpecError{Path: path, Message: "columns are required", Pos: v.Pos()}
	}

	iter, err := colsVal.Fields()
	if err != nil {
		return nil, &SpecError{Path: path + ".columns", Message: err.Error(), Pos: colsVal.Pos()}
	}

	pkSet := make(map[string]bool, len(primaryKey))
	for _, k := range primaryKey {
		pkSet[k] = true
	}

	var columns []Column
	for iter.Next() {
		colName := iter.Label()
		colPath := path + ".columns." + colName

		var spec columnSpec
		if err := iter.Value().Decode(&spec); err != nil {
			return nil, &SpecError{Path: colPath, Message: err.Error(), Pos: iter.Value().Pos()}
		}

		typ := Type(spec.Type)
		if !typ.Valid() {
			return nil, &SpecError{Path: colPath + ".type", Message: fmt.Sprintf("unknown type %q", spec.Type), Pos: iter.Value().Pos()}
		}

		col := Column{
			Name:       colName,
			Alias:      spec.Alias,
			Type:       typ,
			DBType:     spec.DBType,
			PrimaryKey: pkSet[colName],
			Expression: spec.Expression,
			AllowNull:  !pkSet[colName],
		}
		if spec.AllowNull != nil {
			col.AllowNull = *spec.AllowNull
		}
		if vs := spec.Validation; vs != nil {
			col.Validation = &Validation{
				NotEmpty:  vs.NotEmpty,
				MaxLength: vs.MaxLength,
				Pattern:   vs.Pattern,
				Enum:      vs.Enum,
			}
		}
		columns = append(columns, col)
	}

	t, err := NewTable(name, columns, primaryKey)
	if err != nil {
		return nil, &SpecError{Path: path, Message: err.Error(), Pos: v.Pos()}
	}
	return t, nil
}
