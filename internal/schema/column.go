package schema

import (
	"fmt"
	"regexp"
	"slices"
	"unicode/utf8"

	"github.com/roach88/cqlgate/internal/dberr"
)

// Type is the abstract column type used by the marshaller and compiler.
type Type string

const (
	TypeString    Type = "string"
	TypeInteger   Type = "integer"
	TypeSmallInt  Type = "smallint"
	TypeTinyInt   Type = "tinyint"
	TypeBigInt    Type = "bigint"
	TypeFloat     Type = "float"
	TypeDecimal   Type = "decimal"
	TypeBoolean   Type = "boolean"
	TypeBinary    Type = "binary"
	TypeUUID      Type = "uuid"
	TypeTimeUUID  Type = "timeuuid"
	TypeDate      Type = "date"
	TypeTime      Type = "time"
	TypeTimestamp Type = "timestamp"
	TypeVirtual   Type = "virtual"
)

var validTypes = []Type{
	TypeString, TypeInteger, TypeSmallInt, TypeTinyInt, TypeBigInt,
	TypeFloat, TypeDecimal, TypeBoolean, TypeBinary, TypeUUID,
	TypeTimeUUID, TypeDate, TypeTime, TypeTimestamp, TypeVirtual,
}

// Valid reports whether t is a known abstract type.
func (t Type) Valid() bool {
	return slices.Contains(validTypes, t)
}

// DefaultDBType returns the native type assumed when a column does not declare one.
func DefaultDBType(t Type) string {
	switch t {
	case TypeString:
		return "text"
	case TypeInteger:
		return "int"
	case TypeFloat:
		return "double"
	case TypeBinary:
		return "blob"
	case TypeVirtual:
		return ""
	default:
		return string(t)
	}
}

// Column describes one column of a table. Columns are immutable once they
// belong to a Table.
type Column struct {
	// Name is the stored column name.
	Name string

	// Alias, when set, is the name exposed to clients instead of Name.
	Alias string

	// Type is the abstract type driving value conversion.
	Type Type

	// DBType is the native subtype (text, inet, varint, counter, double...).
	DBType string

	// AllowNull reports whether null values are accepted on write.
	AllowNull bool

	// PrimaryKey marks identity columns.
	PrimaryKey bool

	// Expression is the native expression of a computed column.
	Expression string

	// Validation holds optional write-time rules.
	Validation *Validation
}

// Label returns the name records expose for this column.
func (c *Column) Label() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// IsVirtual reports whether the column has no stored value.
func (c *Column) IsVirtual() bool {
	return c.Type == TypeVirtual
}

// Computed reports whether the column is rendered from an expression.
func (c *Column) Computed() bool {
	return c.Expression != ""
}

// Validation lists write-time rules for a column.
type Validation struct {
	NotEmpty  bool
	MaxLength int
	Pattern   string
	Enum      []string

	re *regexp.Regexp
}

func (v *Validation) compile() error {
	if v.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(v.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", v.Pattern, err)
	}
	v.re = re
	return nil
}

// Check validates a portable value for the column. Nil values are left to
// the nullability check.
func (c *Column) Check(value any) error {
	if value == nil {
		if !c.AllowNull && !c.PrimaryKey {
			return dberr.BadRequestf("field %q can not be null", c.Label())
		}
		return nil
	}

	v := c.Validation
	if v == nil {
		return nil
	}

	s, isString := value.(string)
	if v.NotEmpty && isString && s == "" {
		return dberr.BadRequestf("field %q value can not be empty", c.Label())
	}
	if !isString {
		return nil
	}
	if v.MaxLength > 0 && utf8.RuneCountInString(s) > v.MaxLength {
		return dberr.BadRequestf("field %q value exceeds %d characters", c.Label(), v.MaxLength)
	}
	if v.re != nil && !v.re.MatchString(s) {
		return dberr.BadRequestf("field %q value does not match pattern %q", c.Label(), v.Pattern)
	}
	if len(v.Enum) > 0 && !slices.Contains(v.Enum, s) {
		return dberr.BadRequestf("field %q value must be one of %v", c.Label(), v.Enum)
	}
	return nil
}
