package schema

import "strings"

// FromCQLType maps a native CQL type name to its abstract type and native
// subtype. Collections, tuples and user types are carried as strings.
func FromCQLType(cqlType string) (Type, string) {
	native := strings.ToLower(strings.TrimSpace(cqlType))

	switch native {
	case "ascii", "text", "varchar", "inet":
		return TypeString, native
	case "int":
		return TypeInteger, native
	case "smallint":
		return TypeSmallInt, native
	case "tinyint":
		return TypeTinyInt, native
	case "bigint", "counter", "varint":
		return TypeBigInt, native
	case "float", "double":
		return TypeFloat, native
	case "decimal":
		return TypeDecimal, native
	case "boolean":
		return TypeBoolean, native
	case "blob":
		return TypeBinary, native
	case "uuid":
		return TypeUUID, native
	case "timeuuid":
		return TypeTimeUUID, native
	case "date":
		return TypeDate, native
	case "time":
		return TypeTime, native
	case "timestamp":
		return TypeTimestamp, native
	default:
		return TypeString, native
	}
}
