package query

import (
	"fmt"
	"strings"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// Logic determines how multiple predicates are combined.
type Logic int

const (
	AND Logic = iota
	OR
)

// Operator represents a SQL comparison operator.
type Operator string

const (
	Equal          Operator = "="
	NotEqual       Operator = "!="
	Like           Operator = "LIKE"
	NotLike        Operator = "NOT LIKE"
	GreaterOrEqual Operator = ">="
	LessOrEqual    Operator = "<="
)

// validOperators is the set of allowed operators for validation.
var validOperators = map[Operator]bool{
	Equal: true, NotEqual: true, Like: true, NotLike: true,
	GreaterOrEqual: true, LessOrEqual: true,
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ParseOperator converts an operator string from a request into an Operator.
func ParseOperator(s string) (Operator, bool) {
	op := Operator(strings.ToUpper(strings.TrimSpace(s)))
	return op, validOperators[op]
}

// Predicate represents a single filter condition or a composite of conditions.
// Predicates use parameterized values to prevent SQL injection.
type Predicate struct {
	kind  predicateKind
	field string
	op    Operator
	value string
	date1 string
	date2 string
	left  *Predicate
	right *Predicate
	logic Logic
}

type predicateKind int

const (
	predNone predicateKind = iota
	predSimple
	predDate
	predComposite
)

// Simple creates a predicate that compares a field to a value.
// Returns nil if the field name is invalid or the operator is unrecognized.
func Simple(field string, op Operator, value string) *Predicate {
	if !isValidField(field) || !validOperators[op] {
		return nil
	}
	return &Predicate{
		kind:  predSimple,
		field: field,
		op:    op,
		value: value,
	}
}

// DateRange creates a predicate on occurred_at between two RFC 3339
// timestamps (inclusive).
func DateRange(date1, date2 string) *Predicate {
	return &Predicate{
		kind:  predDate,
		date1: date1,
		date2: date2,
	}
}

// Combine joins multiple predicates with the given logic (AND or OR).
// Returns nil for an empty slice. Returns the single predicate if only one is given.
// Nil predicates in the slice are skipped.
func Combine(preds []*Predicate, logic Logic) *Predicate {
	filtered := make([]*Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			filtered = append(filtered, p)
		}
	}

	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}

	// Left-leaning tree: ((a op b) op c) ...
	result := &Predicate{
		kind:  predComposite,
		left:  filtered[0],
		right: filtered[1],
		logic: logic,
	}
	for i := 2; i < len(filtered); i++ {
		result = &Predicate{
			kind:  predComposite,
			left:  result,
			right: filtered[i],
			logic: logic,
		}
	}
	return result
}

// WhereClause returns the SQL WHERE fragment and its parameter values using
// the default (SQLite) dialect. For example: "(type = ?)", []interface{}{"auto"}
func (p *Predicate) WhereClause() (string, []interface{}) {
	n := 0
	return p.whereClause(DefaultDialect, &n)
}

// WhereClauseFor renders the predicate for a specific dialect. next is the
// number of placeholders already used in the statement.
func (p *Predicate) WhereClauseFor(d QueryDialect, next *int) (string, []interface{}) {
	return p.whereClause(d, next)
}

func (p *Predicate) whereClause(d QueryDialect, next *int) (string, []interface{}) {
	if p == nil {
		return "", nil
	}

	switch p.kind {
	case predNone:
		return "", nil

	case predSimple:
		*next++
		col := d.QuoteColumn(p.field)
		ph := d.Placeholder(*next)
		if p.op == Like || p.op == NotLike {
			return fmt.Sprintf(`(LOWER(%s) %s LOWER(%s) ESCAPE '\')`, col, p.op, ph),
				[]interface{}{"%" + likeEscaper.Replace(p.value) + "%"}
		}
		return fmt.Sprintf("(%s %s %s)", col, p.op, ph),
			[]interface{}{p.value}

	case predDate:
		*next += 2
		return d.DateBetweenSQL(*next-1, *next),
			[]interface{}{p.date1, p.date2}

	case predComposite:
		leftSQL, leftArgs := p.left.whereClause(d, next)
		rightSQL, rightArgs := p.right.whereClause(d, next)

		if leftSQL == "" && rightSQL == "" {
			return "", nil
		}
		if leftSQL == "" {
			return rightSQL, rightArgs
		}
		if rightSQL == "" {
			return leftSQL, leftArgs
		}

		logicStr := "AND"
		if p.logic == OR {
			logicStr = "OR"
		}

		sql := fmt.Sprintf("(%s %s %s)", leftSQL, logicStr, rightSQL)
		args := append(leftArgs, rightArgs...)
		return sql, args

	default:
		return "", nil
	}
}

// Fields returns the list of field names referenced by this predicate tree.
func (p *Predicate) Fields() []string {
	if p == nil {
		return nil
	}

	switch p.kind {
	case predSimple:
		return []string{p.field}
	case predDate:
		return []string{"occurred_at"}
	case predComposite:
		seen := make(map[string]bool)
		var result []string
		for _, f := range append(p.left.Fields(), p.right.Fields()...) {
			if !seen[f] {
				seen[f] = true
				result = append(result, f)
			}
		}
		return result
	default:
		return nil
	}
}

// Query builds a full SELECT statement from predicates, ordering, and pagination.
type Query struct {
	dialect    QueryDialect
	predicates []*Predicate
	logic      Logic
	orderBy    string
	desc       bool
	pageSize   int
	page       int
}

// New creates a new Query with the given page size.
// Pass 0 for no pagination.
func New(pageSize int) *Query {
	return &Query{
		dialect:  DefaultDialect,
		logic:    AND,
		pageSize: pageSize,
		page:     1,
	}
}

// SetDialect switches the SQL flavour. Nil restores the default.
func (q *Query) SetDialect(d QueryDialect) {
	if d == nil {
		d = DefaultDialect
	}
	q.dialect = d
}

// SetLogic sets how top-level predicates are combined (AND or OR).
func (q *Query) SetLogic(logic Logic) {
	q.logic = logic
}

// AddPredicate appends a predicate to the query. Nil predicates are ignored.
func (q *Query) AddPredicate(p *Predicate) {
	if p != nil {
		q.predicates = append(q.predicates, p)
	}
}

// OrderBy sets the column to sort results by.
// Pass an empty string to clear ordering.
// Returns an error if the field name is not valid.
func (q *Query) OrderBy(field string, desc bool) error {
	if field == "" {
		q.orderBy = ""
		return nil
	}
	if !isValidField(field) {
		return fmt.Errorf("invalid order by field: %s", field)
	}
	q.orderBy = field
	q.desc = desc
	return nil
}

// SetPage sets the current page number (1-based).
func (q *Query) SetPage(page int) {
	if page >= 1 {
		q.page = page
	}
}

// PageNumber returns the current page number (1-based).
func (q *Query) PageNumber() int {
	return q.page
}

// Build generates the full SQL SELECT statement and its parameter values.
func (q *Query) Build() (string, []interface{}) {
	cols := make([]string, len(model.Fields))
	for i, f := range model.Fields {
		cols[i] = q.dialect.QuoteColumn(f)
	}
	sql := "SELECT " + strings.Join(cols, ", ") + " FROM events"

	where, args := q.where()
	if where != "" {
		sql += " WHERE " + where
	}

	if q.orderBy != "" {
		sql += " ORDER BY " + q.dialect.QuoteColumn(q.orderBy)
		if q.desc {
			sql += " DESC"
		}
	}

	if q.pageSize > 0 {
		offset := q.pageSize * (q.page - 1)
		sql += fmt.Sprintf(" LIMIT %d OFFSET %d", q.pageSize, offset)
	}

	return sql, args
}

// BuildCount generates a COUNT query using the same predicates.
func (q *Query) BuildCount() (string, []interface{}) {
	sql := "SELECT COUNT(*) FROM events"
	where, args := q.where()
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, args
}

// Where returns only the combined WHERE fragment (without the keyword).
func (q *Query) Where() (string, []interface{}) {
	return q.where()
}

func (q *Query) where() (string, []interface{}) {
	combined := Combine(q.predicates, q.logic)
	if combined == nil {
		return "", nil
	}
	n := 0
	return combined.whereClause(q.dialect, &n)
}

// PredicateFields returns all field names referenced across all predicates.
func (q *Query) PredicateFields() []string {
	seen := make(map[string]bool)
	var result []string
	for _, p := range q.predicates {
		for _, f := range p.Fields() {
			if !seen[f] {
				seen[f] = true
				result = append(result, f)
			}
		}
	}
	return result
}

// isValidField checks a field name against the known columns.
func isValidField(name string) bool {
	for _, f := range model.Fields {
		if f == name {
			return true
		}
	}
	return false
}
