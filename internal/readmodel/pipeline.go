// Package readmodel composes the SQL behind denormalised response shapes.
//
// A Pipeline collects stages in any order and renders them in a fixed one:
// projection and derived fields, source table, joins, filters, ordering and
// paging. Fragments use ? for parameters; Build rewrites them to $1..$n in
// render order so arguments always line up with their placeholders.
package readmodel

import (
	"strconv"
	"strings"
)

// Column is one entry of the projection allow-list. As may use dotted paths
// ("owner.userName") to name nested output fields.
type Column struct {
	Expr string
	As   string
	args []any
}

// Col projects expr under its own name.
func Col(expr string) Column { return Column{Expr: expr} }

// ColAs projects expr under the output name as.
func ColAs(expr, as string) Column { return Column{Expr: expr, As: as} }

type fragment struct {
	sql  string
	args []any
}

// Pipeline assembles a read query.
type Pipeline struct {
	from    string
	matches []fragment
	joins   []fragment
	project []Column
	fields  []Column
	sorts   []Sort
	page    *Page
}

// From starts a pipeline over table, which may carry an alias ("videos v").
func From(table string) *Pipeline {
	return &Pipeline{from: table}
}

// Match adds a filter. Multiple matches are combined with AND.
func (p *Pipeline) Match(expr string, args ...any) *Pipeline {
	p.matches = append(p.matches, fragment{sql: expr, args: args})
	return p
}

// MatchIf adds the filter only when cond holds.
func (p *Pipeline) MatchIf(cond bool, expr string, args ...any) *Pipeline {
	if !cond {
		return p
	}
	return p.Match(expr, args...)
}

// Lookup joins a related table, e.g. "JOIN users o ON o.id = v.owner_id".
func (p *Pipeline) Lookup(join string, args ...any) *Pipeline {
	p.joins = append(p.joins, fragment{sql: join, args: args})
	return p
}

// AddField appends a derived output column such as a count or a membership test.
// Derived fields render after the projection.
func (p *Pipeline) AddField(as, expr string, args ...any) *Pipeline {
	p.fields = append(p.fields, Column{Expr: expr, As: as, args: args})
	return p
}

// Project sets the allow-list of output columns.
func (p *Pipeline) Project(cols ...Column) *Pipeline {
	p.project = append(p.project, cols...)
	return p
}

// Sort appends ordering keys.
func (p *Pipeline) Sort(sorts ...Sort) *Pipeline {
	p.sorts = append(p.sorts, sorts...)
	return p
}

// Paginate limits the result to one page.
func (p *Pipeline) Paginate(page Page) *Pipeline {
	p.page = &page
	return p
}

// Build renders the full query.
func (p *Pipeline) Build() (string, []any) {
	var b builder

	b.write("SELECT ")
	cols := make([]Column, 0, len(p.project)+len(p.fields))
	cols = append(cols, p.project...)
	cols = append(cols, p.fields...)
	if len(cols) == 0 {
		b.write("*")
	}
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.fragment(c.Expr, c.args)
		if c.As != "" {
			b.write(` AS "` + c.As + `"`)
		}
	}

	p.writeSource(&b)

	if len(p.sorts) > 0 {
		b.write(" ORDER BY ")
		for i, s := range p.sorts {
			if i > 0 {
				b.write(", ")
			}
			b.write(s.sql())
		}
	}

	if p.page != nil {
		b.write(" LIMIT ")
		b.param(p.page.Limit)
		b.write(" OFFSET ")
		b.param(p.page.Offset())
	}

	return b.sb.String(), b.args
}

// BuildCount renders a query counting every row the pipeline matches,
// ignoring projection, ordering and paging.
func (p *Pipeline) BuildCount() (string, []any) {
	var b builder
	b.write("SELECT COUNT(*)")
	p.writeSource(&b)
	return b.sb.String(), b.args
}

func (p *Pipeline) writeSource(b *builder) {
	b.write(" FROM " + p.from)
	for _, j := range p.joins {
		b.write(" ")
		b.fragment(j.sql, j.args)
	}
	if len(p.matches) > 0 {
		b.write(" WHERE ")
		for i, m := range p.matches {
			if i > 0 {
				b.write(" AND ")
			}
			b.write("(")
			b.fragment(m.sql, m.args)
			b.write(")")
		}
	}
}

type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) write(s string) {
	b.sb.WriteString(s)
}

func (b *builder) param(v any) {
	b.args = append(b.args, v)
	b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
}

// fragment copies sql, binding each ? to the next argument in args.
func (b *builder) fragment(sql string, args []any) {
	next := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			b.sb.WriteByte(sql[i])
			continue
		}
		if next >= len(args) {
			panic("readmodel: fewer arguments than placeholders in " + strconv.Quote(sql))
		}
		b.param(args[next])
		next++
	}
	if next != len(args) {
		panic("readmodel: more arguments than placeholders in " + strconv.Quote(sql))
	}
}

// Contains turns free text into an ILIKE pattern, escaping wildcard characters.
func Contains(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(text) + "%"
}
