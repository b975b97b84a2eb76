package query

import (
	"fmt"
	"strings"
	"testing"
)

// numberedDialect mimics a $N placeholder backend.
type numberedDialect struct{}

func (numberedDialect) Placeholder(i int) string    { return fmt.Sprintf("$%d", i) }
func (numberedDialect) QuoteColumn(n string) string { return `"` + n + `"` }
func (numberedDialect) DateBetweenSQL(a, b int) string {
	return fmt.Sprintf(`("occurred_at" BETWEEN $%d AND $%d)`, a, b)
}

func TestSimplePredicate(t *testing.T) {
	p := Simple("type", Equal, "auto")
	if p == nil {
		t.Fatal("expected non-nil predicate")
	}

	sql, args := p.WhereClause()
	if sql != "(type = ?)" {
		t.Errorf("expected '(type = ?)', got '%s'", sql)
	}
	if len(args) != 1 || args[0] != "auto" {
		t.Errorf("expected args ['auto'], got %v", args)
	}
}

func TestSimplePredicateInvalidField(t *testing.T) {
	p := Simple("DROP TABLE", Equal, "oops")
	if p != nil {
		t.Error("expected nil for invalid field name")
	}
}

func TestSimplePredicateInvalidOperator(t *testing.T) {
	p := Simple("type", "HACK", "value")
	if p != nil {
		t.Error("expected nil for invalid operator")
	}
}

func TestLikePredicateIsCaseInsensitive(t *testing.T) {
	p := Simple("description", Like, "Hostile")
	sql, args := p.WhereClause()

	if sql != `(LOWER(description) LIKE LOWER(?) ESCAPE '\')` {
		t.Errorf("unexpected sql: %s", sql)
	}
	if len(args) != 1 || args[0] != "%Hostile%" {
		t.Errorf("expected args ['%%Hostile%%'], got %v", args)
	}
}

func TestLikePredicateEscapesWildcards(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\logs`, `%c:\\logs%`},
	}
	for _, tt := range tests {
		_, args := Simple("description", Like, tt.input).WhereClause()
		if len(args) != 1 || args[0] != tt.want {
			t.Errorf("Simple(LIKE %q) args = %v, want [%s]", tt.input, args, tt.want)
		}
	}
}

func TestNotEqualPredicate(t *testing.T) {
	p := Simple("severity", NotEqual, "info")
	sql, _ := p.WhereClause()
	if sql != "(severity != ?)" {
		t.Errorf("expected '(severity != ?)', got '%s'", sql)
	}
}

func TestParseOperator(t *testing.T) {
	op, ok := ParseOperator(" not like ")
	if !ok || op != NotLike {
		t.Errorf("expected NOT LIKE, got %q (%v)", op, ok)
	}
	if _, ok := ParseOperator("~"); ok {
		t.Error("expected unknown operator to be rejected")
	}
}

func TestDateRangePredicate(t *testing.T) {
	p := DateRange("2025-03-01T00:00:00Z", "2025-03-01T23:59:59Z")
	sql, args := p.WhereClause()

	if sql != "(occurred_at BETWEEN ? AND ?)" {
		t.Errorf("unexpected sql: %s", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestCombineAND(t *testing.T) {
	combined := Combine([]*Predicate{
		Simple("type", Equal, "auto"),
		Simple("severity", Equal, "critical"),
	}, AND)
	sql, args := combined.WhereClause()

	if sql != "((type = ?) AND (severity = ?))" {
		t.Errorf("unexpected sql: %s", sql)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}
}

func TestCombineOR(t *testing.T) {
	combined := Combine([]*Predicate{
		Simple("type", Equal, "auto"),
		Simple("type", Equal, "manual"),
	}, OR)
	sql, _ := combined.WhereClause()

	if sql != "((type = ?) OR (type = ?))" {
		t.Errorf("unexpected sql: %s", sql)
	}
}

func TestCombineSingleAndEmpty(t *testing.T) {
	p := Simple("type", Equal, "auto")
	if Combine([]*Predicate{nil, p, nil}, AND) != p {
		t.Error("expected single predicate to be returned as-is")
	}
	if Combine(nil, AND) != nil {
		t.Error("expected nil for empty combine")
	}
	if Combine([]*Predicate{nil, nil}, AND) != nil {
		t.Error("expected nil when all predicates are nil")
	}
}

func TestNilPredicateWhereClause(t *testing.T) {
	var p *Predicate
	sql, args := p.WhereClause()
	if sql != "" || args != nil {
		t.Errorf("expected empty clause, got %q %v", sql, args)
	}
}

func TestPredicateFields(t *testing.T) {
	combined := Combine([]*Predicate{
		Simple("type", Equal, "auto"),
		DateRange("2025-01-01", "2025-12-31"),
		Simple("type", NotEqual, "manual"),
	}, AND)
	fields := combined.Fields()

	if len(fields) != 2 || fields[0] != "type" || fields[1] != "occurred_at" {
		t.Errorf("expected [type occurred_at], got %v", fields)
	}
}

func TestNumberedPlaceholders(t *testing.T) {
	q := New(0)
	q.SetDialect(numberedDialect{})
	q.AddPredicate(Simple("type", Equal, "auto"))
	q.AddPredicate(DateRange("a", "b"))
	q.AddPredicate(Simple("description", Like, "guard"))

	where, args := q.Where()
	want := `((("type" = $1) AND ("occurred_at" BETWEEN $2 AND $3)) AND (LOWER("description") LIKE LOWER($4) ESCAPE '\'))`
	if where != want {
		t.Errorf("expected %s, got %s", want, where)
	}
	if len(args) != 4 {
		t.Errorf("expected 4 args, got %d", len(args))
	}

	// A second render starts numbering from 1 again.
	again, _ := q.Where()
	if again != where {
		t.Errorf("expected stable rendering, got %s", again)
	}
}

// --- Query builder tests ---

func TestQueryBuildNoPredicates(t *testing.T) {
	sql, args := New(0).Build()

	if sql != "SELECT id, timestamp, occurred_at, description, type, severity FROM events" {
		t.Errorf("unexpected sql: %s", sql)
	}
	if len(args) != 0 {
		t.Errorf("expected 0 args, got %d", len(args))
	}
}

func TestQueryBuildFull(t *testing.T) {
	q := New(500)
	q.AddPredicate(Simple("type", Equal, "auto"))
	q.AddPredicate(DateRange("2025-01-01", "2025-06-30"))
	if err := q.OrderBy("occurred_at", true); err != nil {
		t.Fatal(err)
	}
	q.SetPage(2)

	sql, args := q.Build()

	if !strings.Contains(sql, "WHERE ((type = ?) AND (occurred_at BETWEEN ? AND ?))") {
		t.Errorf("expected WHERE clause, got: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY occurred_at DESC") {
		t.Errorf("expected ORDER BY, got: %s", sql)
	}
	if !strings.HasSuffix(sql, "LIMIT 500 OFFSET 500") {
		t.Errorf("expected LIMIT/OFFSET for page 2, got: %s", sql)
	}
	if len(args) != 3 {
		t.Errorf("expected 3 args, got %d: %v", len(args), args)
	}
}

func TestQueryOrderByInvalidField(t *testing.T) {
	q := New(0)
	if err := q.OrderBy("DROP TABLE", false); err == nil {
		t.Error("expected error for invalid order by field")
	}
	if err := q.OrderBy("", false); err != nil {
		t.Errorf("expected clearing order to succeed, got %v", err)
	}
}

func TestQuerySetPageIgnoresInvalid(t *testing.T) {
	q := New(100)
	q.SetPage(5)
	q.SetPage(0)
	q.SetPage(-1)

	if q.PageNumber() != 5 {
		t.Errorf("expected page 5, got %d", q.PageNumber())
	}
}

func TestQueryBuildCount(t *testing.T) {
	q := New(1000)
	q.AddPredicate(Simple("severity", Equal, "warning"))

	sql, args := q.BuildCount()
	if sql != "SELECT COUNT(*) FROM events WHERE (severity = ?)" {
		t.Errorf("unexpected count sql: %s", sql)
	}
	if len(args) != 1 {
		t.Errorf("expected 1 arg, got %d", len(args))
	}
}

func TestQueryPredicateFields(t *testing.T) {
	q := New(0)
	q.AddPredicate(Simple("type", Equal, "auto"))
	q.AddPredicate(Simple("description", Like, "guard"))
	q.AddPredicate(Simple("type", NotEqual, "manual"))

	if fields := q.PredicateFields(); len(fields) != 2 {
		t.Errorf("expected 2 unique fields, got %v", fields)
	}
}
