package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// LocalIDBits is the width of the label-local part of a native id. The label
// id occupies the bits above it, as in an AgensGraph graphid.
const LocalIDBits = 48

// NativeID composes a native id from a label id and a label-local sequence value.
func NativeID(labelID, local int64) int64 { return labelID<<LocalIDBits | local }

// SplitNativeID is the inverse of NativeID.
func SplitNativeID(id int64) (labelID, local int64) {
	return id >> LocalIDBits, id & (1<<LocalIDBits - 1)
}

// SQLite is the embedded dialect. It keeps the AgensGraph catalog shape in
// three plain tables (ag_graph, ag_label, ag_depend); having no schemas,
// a graph's tables are named "<graph>.<name>" (see TableName).
type SQLite struct{}

func (SQLite) Name() string               { return DriverSQLite }
func (SQLite) Rebind(query string) string { return query }

func (SQLite) Table(graph, name string) string { return pq.QuoteIdentifier(TableName(graph, name)) }
func (SQLite) Index(graph, name string) string { return pq.QuoteIdentifier(TableName(graph, name)) }
func (SQLite) JSONParam() string               { return "?" }
func (SQLite) HidesStagingDDL() bool           { return false }

// TableName is the unquoted SQLite name of a graph's table. SQLite matches
// identifiers without regard to ASCII case, so a part holding upper case
// letters or '~' gets a "~" suffix listing its upper case byte offsets:
// Person becomes Person~0 and no longer meets person.
func TableName(graph, name string) string {
	return caseSafe(graph) + "." + caseSafe(name)
}

func caseSafe(part string) string {
	var upper []string
	for i := 0; i < len(part); i++ {
		if c := part[i]; c >= 'A' && c <= 'Z' {
			upper = append(upper, strconv.Itoa(i))
		}
	}
	if len(upper) == 0 && !strings.Contains(part, "~") {
		return part
	}
	return part + "~" + strings.Join(upper, ".")
}

func (SQLite) Bootstrap(graph string) []Stmt {
	return []Stmt{
		{SQL: `CREATE TABLE IF NOT EXISTS ag_graph (
			oid INTEGER PRIMARY KEY AUTOINCREMENT,
			graphname TEXT NOT NULL UNIQUE,
			nspid INTEGER NOT NULL
		)`},
		{SQL: `CREATE TABLE IF NOT EXISTS ag_label (
			graphid INTEGER NOT NULL,
			labid INTEGER NOT NULL,
			labname TEXT NOT NULL,
			labkind TEXT NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (graphid, labname)
		)`},
		{SQL: `CREATE TABLE IF NOT EXISTS ag_depend (
			objname TEXT PRIMARY KEY,
			refobjid INTEGER NOT NULL
		)`},
		{SQL: "INSERT INTO ag_graph (graphname, nspid) VALUES (?, ?) ON CONFLICT (graphname) DO NOTHING",
			Args: []any{graph, int64(1)}},
	}
}

func (d SQLite) CreateStaging(graph, table string, kind LabelKind) []Stmt {
	t := d.Table(graph, table)
	if kind == VertexLabel {
		return []Stmt{{SQL: fmt.Sprintf("CREATE TABLE %s (%s TEXT PRIMARY KEY, %s TEXT)", t, colID, colProperty)}}
	}
	return []Stmt{
		{SQL: fmt.Sprintf("CREATE TABLE %s (%s INTEGER PRIMARY KEY, %s TEXT NOT NULL, %s TEXT NOT NULL, %s TEXT)",
			t, colOrd, colFrom, colTo, colProperty)},
		{SQL: fmt.Sprintf("CREATE INDEX %s ON %s (%s)", d.Index(graph, "idx_"+table+"_from"), t, colFrom)},
		{SQL: fmt.Sprintf("CREATE INDEX %s ON %s (%s)", d.Index(graph, "idx_"+table+"_to"), t, colTo)},
	}
}

// CreateLabel registers the label under the graph's current oid, creates its
// native table and records the table as a dependent of the graph.
func (d SQLite) CreateLabel(graph, label string, kind LabelKind) []Stmt {
	labkind, native := "v", fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, properties TEXT NOT NULL DEFAULT '{}')",
		d.Table(graph, label))
	if kind == EdgeLabel {
		labkind, native = "e", fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, start INTEGER NOT NULL, "end" INTEGER NOT NULL, properties TEXT NOT NULL DEFAULT '{}')`,
			d.Table(graph, label))
	}
	return []Stmt{
		{SQL: `INSERT INTO ag_label (graphid, labid, labname, labkind)
			SELECT g.oid, COALESCE((SELECT MAX(l.labid) FROM ag_label l WHERE l.graphid = g.oid), 0) + 1, ?, ?
			FROM ag_graph g WHERE g.graphname = ?
			ON CONFLICT (graphid, labname) DO NOTHING`,
			Args: []any{label, labkind, graph}},
		{SQL: native},
		{SQL: `INSERT INTO ag_depend (objname, refobjid)
			SELECT ?, oid FROM ag_graph WHERE graphname = ?
			ON CONFLICT (objname) DO NOTHING`,
			Args: []any{TableName(graph, label), graph}},
	}
}

func (SQLite) GraphQuery() string {
	return "SELECT oid, nspid FROM ag_graph WHERE graphname = ?"
}

func (SQLite) HideQuery() string {
	return "DELETE FROM ag_graph WHERE graphname = ? RETURNING oid, nspid"
}

func (SQLite) PublishQuery() string {
	return "INSERT INTO ag_graph (graphname, nspid) VALUES (?, ?) RETURNING oid"
}

func (SQLite) Repoint(newOID, oldOID int64) []Stmt {
	return []Stmt{
		{SQL: "UPDATE ag_depend SET refobjid = ? WHERE refobjid = ?", Args: []any{newOID, oldOID}},
		{SQL: "UPDATE ag_label SET graphid = ? WHERE graphid = ?", Args: []any{newOID, oldOID}},
	}
}

func (SQLite) LabelSpace(ctx context.Context, s *Session, _ string, graphOID int64, label string) (Space, error) {
	var sp Space
	err := s.QueryRow(ctx,
		"SELECT labid, seq FROM ag_label WHERE graphid = ? AND labname = ?",
		graphOID, label).Scan(&sp.LabelID, &sp.Next)
	if err != nil {
		return Space{}, fmt.Errorf("label space of %s: %w", label, err)
	}
	return sp, nil
}

// AssignIDs numbers staged rows after the label's sequence, in insertion
// order, and advances the sequence past them.
func (d SQLite) AssignIDs(graph, table, label string, graphOID int64, kind LabelKind, sp Space) []Stmt {
	t := d.Table(graph, table)
	ord := "rowid"
	stmts := []Stmt{{SQL: fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s INTEGER", t, colGraphID)}}
	if kind == EdgeLabel {
		ord = colOrd
		stmts = append(stmts,
			Stmt{SQL: fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s INTEGER", t, colFromGID)},
			Stmt{SQL: fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s INTEGER", t, colToGID)})
	}
	return append(stmts,
		Stmt{SQL: fmt.Sprintf("UPDATE %s SET %s = ? + %s", t, colGraphID, ord),
			Args: []any{NativeID(sp.LabelID, sp.Next)}},
		Stmt{SQL: fmt.Sprintf("UPDATE ag_label SET seq = seq + COALESCE((SELECT MAX(%s) FROM %s), 0) WHERE graphid = ? AND labname = ?", ord, t),
			Args: []any{graphOID, label}})
}
