package marshal

import (
	"math/big"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"gopkg.in/inf.v0"

	"github.com/roach88/cqlgate/internal/schema"
)

// uuid / timeuuid

func nativeUUID(m *Marshaller, v any, col *schema.Column) (any, error) {
	if isEmpty(v) || IsGenerator(v) {
		u, err := m.newUUID()
		if err != nil {
			return nil, fail(col, "generate uuid: %v", err)
		}
		return gocql.UUID(u), nil
	}
	u, ok := explicitUUID(v)
	if !ok {
		return nil, fail(col, "invalid uuid %v", v)
	}
	return u, nil
}

func nativeTimeUUID(m *Marshaller, v any, col *schema.Column) (any, error) {
	if isEmpty(v) || IsGenerator(v) {
		return gocql.UUIDFromTime(m.now()), nil
	}
	if t, ok := v.(time.Time); ok {
		return gocql.UUIDFromTime(t), nil
	}
	if secs, ok := numeric(v); ok {
		return gocql.UUIDFromTime(fromEpochSeconds(secs)), nil
	}
	if u, ok := explicitUUID(v); ok {
		if u.Version() != 1 {
			return nil, fail(col, "%s is not a time-based uuid", u)
		}
		return u, nil
	}
	if s, ok := v.(string); ok {
		if t, err := parseDateTime(s); err == nil {
			return gocql.UUIDFromTime(t), nil
		}
	}
	return nil, fail(col, "malformed timeuuid %v: expected numeric seconds, now() or a time string", v)
}

func explicitUUID(v any) (gocql.UUID, bool) {
	switch x := v.(type) {
	case gocql.UUID:
		return x, true
	case uuid.UUID:
		return gocql.UUID(x), true
	case [16]byte:
		return gocql.UUID(x), true
	case []byte:
		u, err := gocql.UUIDFromBytes(x)
		return u, err == nil
	case string:
		u, err := uuid.Parse(strings.TrimSpace(x))
		if err != nil {
			return gocql.UUID{}, false
		}
		return gocql.UUID(u), true
	}
	return gocql.UUID{}, false
}

func portableUUID(v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case gocql.UUID:
		return x.String(), nil
	case uuid.UUID:
		return x.String(), nil
	case [16]byte:
		return gocql.UUID(x).String(), nil
	case []byte:
		if u, err := gocql.UUIDFromBytes(x); err == nil {
			return u.String(), nil
		}
		return string(x), nil
	case string:
		return x, nil
	}
	return nil, fail(col, "unexpected native uuid %T", v)
}

// timestamp / date / time

func nativeTimestamp(m *Marshaller, v any, col *schema.Column) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && (strings.TrimSpace(s) == "" || isSentinel(s, "now()")) {
		return m.now().UTC(), nil
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC(), nil
	}
	if secs, ok := numeric(v); ok {
		return fromEpochSeconds(secs), nil
	}
	if s, ok := v.(string); ok {
		t, err := parseDateTime(s)
		if err != nil {
			return nil, fail(col, "invalid timestamp %q", s)
		}
		return t, nil
	}
	return nil, fail(col, "invalid timestamp %v", v)
}

func portableTimestamp(v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return formatTimestamp(x), nil
	case int64:
		return formatTimestamp(time.UnixMilli(x)), nil
	case string:
		return x, nil
	}
	return nil, fail(col, "unexpected native timestamp %T", v)
}

func nativeDate(_ *Marshaller, v any, col *schema.Column) (any, error) {
	if v == nil {
		return nil, nil
	}
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	default:
		if secs, ok := numeric(v); ok {
			t = fromEpochSeconds(secs)
			break
		}
		s, ok := v.(string)
		if !ok {
			return nil, fail(col, "invalid date %v", v)
		}
		parsed, err := parseDateTime(s)
		if err != nil {
			return nil, fail(col, "invalid date %q", s)
		}
		t = parsed
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func portableDate(v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(dateLayout), nil
	case int64:
		return time.UnixMilli(x).UTC().Format(dateLayout), nil
	case string:
		return x, nil
	}
	return nil, fail(col, "unexpected native date %T", v)
}

func nativeTime(_ *Marshaller, v any, col *schema.Column) (any, error) {
	if v == nil {
		return nil, nil
	}
	var d time.Duration
	switch x := v.(type) {
	case time.Duration:
		d = x
	case string:
		if n, ok := numeric(x); ok {
			d = time.Duration(n)
			break
		}
		parsed, err := parseTimeOfDay(x)
		if err != nil {
			return nil, fail(col, "invalid time %q: %v", x, err)
		}
		d = parsed
	default:
		n, ok := numeric(v)
		if !ok {
			return nil, fail(col, "invalid time %v", v)
		}
		d = time.Duration(n)
	}
	if d < 0 || d >= 24*time.Hour {
		return nil, fail(col, "time %v out of range", v)
	}
	return d, nil
}

func portableTime(v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case time.Duration:
		return formatTimeOfDay(x), nil
	case int64:
		return formatTimeOfDay(time.Duration(x)), nil
	case string:
		return x, nil
	}
	return nil, fail(col, "unexpected native time %T", v)
}

// numbers

func nativeBigInt(_ *Marshaller, v any, col *schema.Column) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := integerText(v)
	if !ok {
		return nil, fail(col, "invalid integer %v", v)
	}
	if isVarint(col) {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fail(col, "invalid varint %q", s)
		}
		return n, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fail(col, "invalid bigint %q", s)
	}
	return n, nil
}

func portableBigInt(v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case *big.Int:
		return x.String(), nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	if n, ok := asInt64(v); ok {
		return strconv.FormatInt(n, 10), nil
	}
	return nil, fail(col, "unexpected native bigint %T", v)
}

func nativeDecimal(_ *Marshaller, v any, col *schema.Column) (any, error) {
	if v == nil {
		return nil, nil
	}
	if d, ok := v.(*inf.Dec); ok {
		return d, nil
	}
	s, ok := numberText(v)
	if !ok {
		return nil, fail(col, "invalid decimal %v", v)
	}
	d, ok := new(inf.Dec).SetString(s)
	if !ok {
		return nil, fail(col, "invalid decimal %q", s)
	}
	return d, nil
}

func portableDecimal(v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case *inf.Dec:
		return x.String(), nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	if n, ok := asInt64(v); ok {
		return strconv.FormatInt(n, 10), nil
	}
	return nil, fail(col, "unexpected native decimal %T", v)
}

func nativeFloat(_ *Marshaller, v any, col *schema.Column) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := numberText(v)
	if !ok {
		return nil, fail(col, "invalid float %v", v)
	}
	if col.DBType == "float" {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fail(col, "invalid float %q", s)
		}
		return float32(f), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fail(col, "invalid double %q", s)
	}
	return f, nil
}

func portableFloat(v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		// Shortest float32 text avoids float64 widening noise (1.1 -> 1.100000023841858).
		f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(x), 'g', -1, 32), 64)
		return f, nil
	}
	if n, ok := asInt64(v); ok {
		return float64(n), nil
	}
	return nil, fail(col, "unexpected native float %T", v)
}

func nativeIntN(bits int) NativeFunc {
	return func(_ *Marshaller, v any, col *schema.Column) (any, error) {
		if v == nil {
			return nil, nil
		}
		s, ok := integerText(v)
		if !ok {
			return nil, fail(col, "invalid integer %v", v)
		}
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return nil, fail(col, "invalid %d-bit integer %q", bits, s)
		}
		switch bits {
		case 8:
			return int8(n), nil
		case 16:
			return int16(n), nil
		default:
			return int32(n), nil
		}
	}
}

func portableInt(v any, col *schema.Column) (any, error) {
	if n, ok := asInt64(v); ok {
		return n, nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return nil, fail(col, "unexpected native integer %T", v)
}

// boolean, binary, string

func nativeBool(_ *Marshaller, v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, fail(col, "invalid boolean %q", x)
		}
		return b, nil
	}
	if f, ok := numeric(v); ok {
		return f != 0, nil
	}
	return nil, fail(col, "invalid boolean %v", v)
}

func portableBool(v any, col *schema.Column) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	if n, ok := asInt64(v); ok {
		return n != 0, nil
	}
	return nil, fail(col, "unexpected native boolean %T", v)
}

func nativeBinary(_ *Marshaller, v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, fail(col, "invalid binary value %T", v)
}

func portableBinary(v any, col *schema.Column) (any, error) {
	switch x := v.(type) {
	case []byte:
		return string(x), nil
	case string:
		return x, nil
	}
	return nil, fail(col, "unexpected native binary %T", v)
}

func nativeString(_ *Marshaller, v any, col *schema.Column) (any, error) {
	if col.DBType != "inet" || v == nil {
		return v, nil
	}
	switch x := v.(type) {
	case net.IP:
		return x, nil
	case string:
		ip := net.ParseIP(strings.TrimSpace(x))
		if ip == nil {
			return nil, fail(col, "invalid inet address %q", x)
		}
		return ip, nil
	}
	return nil, fail(col, "invalid inet address %v", v)
}

func portableString(v any, _ *schema.Column) (any, error) {
	switch x := v.(type) {
	case net.IP:
		return x.String(), nil
	case []byte:
		return string(x), nil
	}
	return v, nil
}

func isVarint(col *schema.Column) bool {
	return strings.EqualFold(col.DBType, "varint")
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
