package review

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func rowFor(schema Schema, id int64, name string, rating int, message, token string, date time.Time) map[string]any {
	c := schema.Columns()
	return map[string]any{
		"id":          id,
		c.Name:        name,
		c.Rating:      int32(rating),
		c.Message:     message,
		c.DeleteToken: token,
		c.Date:        date,
	}
}

func TestNormalize_EachLayout(t *testing.T) {
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, schema := range []Schema{SchemaA, SchemaB} {
		t.Run(schema.String(), func(t *testing.T) {
			r, err := Normalize(rowFor(schema, 7, "Alice", 5, "Great", "tok", date), schema)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if r.ID != 7 || r.Name != "Alice" || r.Rating != 5 || r.Message != "Great" || r.DeleteToken != "tok" || !r.Date.Equal(date) {
				t.Errorf("Unexpected review: %+v", r)
			}
		})
	}
}

func TestNormalize_FallsBackToAlternateColumns(t *testing.T) {
	// Row written under the legacy layout but read with the newer one active
	row := map[string]any{
		"id":              int32(3),
		"nom":             nil,
		"name":            "Bob",
		"notation":        nil,
		"rating":          int16(4),
		"message":         "Fine",
		"supprimer_jeton": nil,
		"delete_token":    "legacy-token",
		"date":            time.Now(),
	}

	r, err := Normalize(row, SchemaB)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if r.Name != "Bob" || r.Rating != 4 || r.DeleteToken != "legacy-token" {
		t.Errorf("Expected fallback values, got %+v", r)
	}
}

func TestNormalize_PrimaryWins(t *testing.T) {
	row := map[string]any{
		"id":   int64(1),
		"name": "legacy",
		"nom":  "nouveau",
	}
	r, err := Normalize(row, SchemaB)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if r.Name != "nouveau" {
		t.Errorf("Expected primary column value, got %q", r.Name)
	}
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]any
	}{
		{"missing id", map[string]any{"name": "x"}},
		{"bad id", map[string]any{"id": struct{}{}}},
		{"bad rating", map[string]any{"id": int64(1), "rating": "five"}},
		{"bad date", map[string]any{"id": int64(1), "date": "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize(tt.row, SchemaA); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

// A review stored under either layout normalizes to the same canonical fields
func TestProperty_NormalizeLayoutTransparent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.Int64Range(1, 1<<40).Draw(rt, "id")
		name := rapid.StringN(1, 40, -1).Draw(rt, "name")
		rating := rapid.IntRange(1, 5).Draw(rt, "rating")
		message := rapid.StringN(1, 200, -1).Draw(rt, "message")
		token := rapid.StringMatching(`[a-f0-9-]{36}`).Draw(rt, "token")
		date := time.Unix(rapid.Int64Range(0, 4102444800).Draw(rt, "date"), 0).UTC()

		a, err := Normalize(rowFor(SchemaA, id, name, rating, message, token, date), SchemaA)
		if err != nil {
			rt.Fatalf("layout A: %v", err)
		}
		b, err := Normalize(rowFor(SchemaB, id, name, rating, message, token, date), SchemaB)
		if err != nil {
			rt.Fatalf("layout B: %v", err)
		}

		if a != b {
			rt.Fatalf("Layouts disagree: %+v vs %+v", a, b)
		}
	})
}
