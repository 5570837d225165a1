package store

import (
	"context"
	"fmt"
	"strings"
)

// LabelKind says whether a label holds vertices or edges.
type LabelKind int

const (
	VertexLabel LabelKind = iota + 1
	EdgeLabel
)

func (k LabelKind) String() string {
	switch k {
	case VertexLabel:
		return "vertex"
	case EdgeLabel:
		return "edge"
	}
	return "unknown"
}

// Space is a label's native id space as read from the catalog.
type Space struct {
	LabelID int64
	// Seq is the SQL expression that draws the next label-local sequence
	// value (AgensGraph).
	Seq string
	// Next is the last sequence value already handed out (SQLite).
	Next int64
}

// Dialect captures the SQL that differs between targets. Statements are
// written with ? placeholders; Session rebinds them.
type Dialect interface {
	Name() string
	Rebind(query string) string

	// Table names a table that belongs to graph.
	Table(graph, name string) string
	// Index names an index on a table of graph.
	Index(graph, name string) string
	// JSONParam is the placeholder expression for a property document.
	JSONParam() string
	// HidesStagingDDL reports whether staging tables must be created while
	// the graph is out of the catalog.
	HidesStagingDDL() bool

	Bootstrap(graph string) []Stmt
	CreateStaging(graph, table string, kind LabelKind) []Stmt
	CreateLabel(graph, label string, kind LabelKind) []Stmt

	// GraphQuery selects (oid, nspid) of a visible graph.
	GraphQuery() string
	// HideQuery deletes a graph's catalog row, returning (oid, nspid).
	HideQuery() string
	// PublishQuery inserts a graph's catalog row, returning the new oid.
	PublishQuery() string
	// Repoint moves dependent catalog records from oldOID to newOID.
	Repoint(newOID, oldOID int64) []Stmt

	LabelSpace(ctx context.Context, s *Session, graph string, graphOID int64, label string) (Space, error)
	// AssignIDs adds the native id columns to a staging table and fills
	// the graphid column from sp.
	AssignIDs(graph, table, label string, graphOID int64, kind LabelKind, sp Space) []Stmt
}

// Column layout shared by both targets. Staged edges carry a synthetic
// ordinal that preserves insertion order.
const (
	colID       = "id"
	colProperty = "property"
	colOrd      = "ord"
	colFrom     = "_from"
	colTo       = "_to"
	colGraphID  = "graphid"
	colFromGID  = "from_gid"
	colToGID    = "to_gid"
)

// InsertStagedNode appends one node row: (natural id, properties).
func InsertStagedNode(d Dialect, graph, table string) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, %s)",
		d.Table(graph, table), colID, colProperty, d.JSONParam())
}

// InsertStagedEdge appends one edge row: (source id, target id, properties).
func InsertStagedEdge(d Dialect, graph, table string) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, %s)",
		d.Table(graph, table), colFrom, colTo, colProperty, d.JSONParam())
}

// ResolveEndpoints fills the native endpoint ids of an edge staging table
// from one node staging table.
func ResolveEndpoints(d Dialect, graph, edges, nodes string) []Stmt {
	e, n := d.Table(graph, edges), d.Table(graph, nodes)
	set := func(gid, natural string) Stmt {
		return Stmt{SQL: fmt.Sprintf(
			"UPDATE %s SET %s = n.%s FROM %s AS n WHERE %s.%s IS NULL AND %s.%s = n.%s",
			e, gid, colGraphID, n, e, gid, e, natural, colID)}
	}
	return []Stmt{set(colFromGID, colFrom), set(colToGID, colTo)}
}

// UnresolvedEdges selects (ord, source, target) of edges with a missing
// native endpoint.
func UnresolvedEdges(d Dialect, graph, edges string) string {
	return fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s IS NULL OR %s IS NULL ORDER BY %s",
		colOrd, colFrom, colTo, d.Table(graph, edges), colFromGID, colToGID, colOrd)
}

// CopyNodes moves staged nodes into the native vertex table.
func CopyNodes(d Dialect, graph, staging, label string) string {
	return fmt.Sprintf("INSERT INTO %s (id, properties) SELECT %s, %s FROM %s",
		d.Table(graph, label), colGraphID, colProperty, d.Table(graph, staging))
}

// CopyEdges moves staged edges into the native edge table in file order.
func CopyEdges(d Dialect, graph, staging, label string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, start, "end", properties) SELECT %s, %s, %s, %s FROM %s ORDER BY %s`,
		d.Table(graph, label), colGraphID, colFromGID, colToGID, colProperty, d.Table(graph, staging), colOrd)
}

// CountRows counts the rows of a table of graph.
func CountRows(d Dialect, graph, table string) string {
	return "SELECT COUNT(*) FROM " + d.Table(graph, table)
}

// DropTable removes a staging table.
func DropTable(d Dialect, graph, table string) string {
	return "DROP TABLE IF EXISTS " + d.Table(graph, table)
}

// rebindDollar rewrites ? placeholders outside quotes as $1, $2, ...
func rebindDollar(q string) string {
	if !strings.Contains(q, "?") {
		return q
	}
	var (
		b     strings.Builder
		n     int
		quote rune
	)
	b.Grow(len(q) + 8)
	for _, r := range q {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
