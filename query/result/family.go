package result

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Family is the storage class of a result column.
type Family int

const (
	FamilyText Family = iota
	FamilyInt
	FamilyFloat
	FamilyBool
)

func (f Family) String() string {
	switch f {
	case FamilyInt:
		return "int"
	case FamilyFloat:
		return "float"
	case FamilyBool:
		return "bool"
	}
	return "text"
}

// FamilyOf infers the family of a database type name such as "INT",
// "DECIMAL(10,2)" or "nvarchar". Unknown types are text.
func FamilyOf(dbType string) Family {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, " UNSIGNED")

	switch t {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return FamilyInt
	case "FLOAT", "REAL", "DOUBLE", "DOUBLE PRECISION", "DECIMAL", "NUMERIC",
		"MONEY", "SMALLMONEY", "FLOAT4", "FLOAT8":
		return FamilyFloat
	case "BIT", "BOOL", "BOOLEAN":
		return FamilyBool
	}
	return FamilyText
}

// convert stores a driver value in family f. nil stays nil.
func convert(f Family, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch f {
	case FamilyInt:
		out, err = toInt(v)
	case FamilyFloat:
		out, err = toDecimal(v)
	case FamilyBool:
		out, err = toBool(v)
	default:
		out = toText(v)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cannot store %T as %s: %v", ErrTypeMismatch, v, f, err)
	}
	return out, nil
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("unsupported value")
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case []byte:
		return decimal.NewFromString(string(x))
	case string:
		return decimal.NewFromString(x)
	}
	i, err := toInt(v)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(i), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case []byte:
		return strconv.ParseBool(string(x))
	case string:
		return strconv.ParseBool(x)
	}
	i, err := toInt(v)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

// key maps a stored value onto a comparable index key.
func key(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return v
}
