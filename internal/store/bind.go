package store

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"gopkg.in/inf.v0"

	"github.com/roach88/cqlgate/internal/dberr"
)

// bindArgs converts gocql-compatible native values into values the SQLite
// driver stores in the column classes createTableSQL declares.
func bindArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := bindValue(a)
		if err != nil {
			return nil, dberr.Wrap(err, dberr.CodeStore, fmt.Sprintf("bind argument %d", i))
		}
		out[i] = v
	}
	return out, nil
}

func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case gocql.UUID:
		return x.String(), nil
	case uuid.UUID:
		return x.String(), nil
	case time.Time:
		return x.UnixMilli(), nil
	case time.Duration:
		return int64(x), nil
	case *big.Int:
		if x == nil {
			return nil, nil
		}
		return x.String(), nil
	case *inf.Dec:
		if x == nil {
			return nil, nil
		}
		return x.String(), nil
	case net.IP:
		if x == nil {
			return nil, nil
		}
		return x.String(), nil
	case float32:
		// Bind the shortest decimal form so float32 values read back unchanged.
		return strconv.ParseFloat(strconv.FormatFloat(float64(x), 'g', -1, 32), 64)
	case driver.Valuer:
		return x, nil
	}

	if driver.IsValue(v) {
		return v, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

// scanRows reads every row into a Row keyed by result column name.
// Returns an empty slice (not nil) when no rows match.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeStore, "read columns")
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeStore, "scan row")
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeStore, "iterate rows")
	}
	return out, nil
}
