package review

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sitefreelance/backend/internal/models"
)

// Normalize projects a raw row from either layout onto the canonical review.
// Each field is read from the active layout's column first and from the
// alternate layout's column when the primary one is absent or NULL.
func Normalize(row map[string]any, schema Schema) (models.Review, error) {
	primary := schema.Columns()
	alternate := schema.Alternate().Columns()

	pick := func(p, a string) any {
		if v, ok := row[p]; ok && v != nil {
			return v
		}
		if v, ok := row[a]; ok && v != nil {
			return v
		}
		return nil
	}

	var r models.Review

	rawID, ok := row["id"]
	if !ok || rawID == nil {
		return r, fmt.Errorf("review row has no id")
	}
	id, err := toInt64(rawID)
	if err != nil {
		return r, fmt.Errorf("review id: %w", err)
	}
	r.ID = id

	r.Name = toString(pick(primary.Name, alternate.Name))
	r.Message = toString(pick(primary.Message, alternate.Message))
	r.DeleteToken = toString(pick(primary.DeleteToken, alternate.DeleteToken))

	if v := pick(primary.Rating, alternate.Rating); v != nil {
		rating, err := toInt64(v)
		if err != nil {
			return r, fmt.Errorf("review %d rating: %w", r.ID, err)
		}
		r.Rating = int(rating)
	}

	if v := pick(primary.Date, alternate.Date); v != nil {
		date, ok := v.(time.Time)
		if !ok {
			return r, fmt.Errorf("review %d date: unexpected type %T", r.ID, v)
		}
		r.Date = date
	}

	return r, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}
