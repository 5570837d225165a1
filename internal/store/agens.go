package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Agens is the AgensGraph dialect. Graphs live in a schema of the same name;
// every label is a table in it.
type Agens struct{}

func (Agens) Name() string               { return DriverAgens }
func (Agens) Rebind(query string) string { return rebindDollar(query) }

func (Agens) Table(graph, name string) string {
	return pq.QuoteIdentifier(graph) + "." + pq.QuoteIdentifier(name)
}

// Index names are schema local.
func (Agens) Index(_, name string) string { return pq.QuoteIdentifier(name) }

func (Agens) JSONParam() string { return "CAST(? AS jsonb)" }

func (Agens) HidesStagingDDL() bool { return true }

func (Agens) Bootstrap(graph string) []Stmt {
	g := pq.QuoteIdentifier(graph)
	return []Stmt{
		{SQL: "CREATE GRAPH IF NOT EXISTS " + g},
		{SQL: "SET graph_path = " + g},
		{SQL: "SET search_path = " + g},
	}
}

func (d Agens) CreateStaging(graph, table string, kind LabelKind) []Stmt {
	t := d.Table(graph, table)
	if kind == VertexLabel {
		return []Stmt{{SQL: fmt.Sprintf("CREATE TABLE %s (%s TEXT PRIMARY KEY, %s jsonb)", t, colID, colProperty)}}
	}
	return []Stmt{
		{SQL: fmt.Sprintf("CREATE TABLE %s (%s BIGSERIAL PRIMARY KEY, %s TEXT NOT NULL, %s TEXT NOT NULL, %s jsonb)",
			t, colOrd, colFrom, colTo, colProperty)},
		{SQL: fmt.Sprintf("CREATE INDEX %s ON %s (%s)", d.Index(graph, "idx_"+table+"_from"), t, colFrom)},
		{SQL: fmt.Sprintf("CREATE INDEX %s ON %s (%s)", d.Index(graph, "idx_"+table+"_to"), t, colTo)},
	}
}

// CreateLabel relies on graph_path set by Bootstrap.
func (Agens) CreateLabel(_, label string, kind LabelKind) []Stmt {
	stmt := "CREATE VLABEL IF NOT EXISTS "
	if kind == EdgeLabel {
		stmt = "CREATE ELABEL IF NOT EXISTS "
	}
	return []Stmt{{SQL: stmt + pq.QuoteIdentifier(label)}}
}

func (Agens) GraphQuery() string {
	return "SELECT oid, nspid FROM pg_catalog.ag_graph WHERE graphname = ?"
}

func (Agens) HideQuery() string {
	return "DELETE FROM pg_catalog.ag_graph WHERE graphname = ? RETURNING oid, nspid"
}

func (Agens) PublishQuery() string {
	return "INSERT INTO pg_catalog.ag_graph (graphname, nspid) VALUES (?, ?) RETURNING oid"
}

func (Agens) Repoint(newOID, oldOID int64) []Stmt {
	return []Stmt{
		{SQL: "UPDATE pg_catalog.pg_depend SET refobjid = ? WHERE refobjid = ?", Args: []any{newOID, oldOID}},
		{SQL: "UPDATE pg_catalog.ag_label SET graphid = ? WHERE graphid = ?", Args: []any{newOID, oldOID}},
	}
}

// LabelSpace reads the label id and the sequence feeding the label's id
// column default, which has the form graphid(<labid>, <seq expr>).
func (Agens) LabelSpace(ctx context.Context, s *Session, graph string, graphOID int64, label string) (Space, error) {
	var def sql.NullString
	err := s.QueryRow(ctx,
		"SELECT column_default FROM information_schema.columns WHERE table_schema = ? AND table_name = ? AND column_name = 'id'",
		graph, label).Scan(&def)
	if err != nil {
		return Space{}, fmt.Errorf("id default of %s: %w", label, err)
	}
	seq, err := parseIDDefault(def.String)
	if err != nil {
		return Space{}, fmt.Errorf("id default of %s: %w", label, err)
	}

	sp := Space{Seq: seq}
	err = s.QueryRow(ctx,
		"SELECT labid FROM pg_catalog.ag_label WHERE graphid = ? AND labname = ?",
		graphOID, label).Scan(&sp.LabelID)
	if err != nil {
		return Space{}, fmt.Errorf("label id of %s: %w", label, err)
	}
	return sp, nil
}

var errIDDefault = errors.New("unexpected id column default")

func parseIDDefault(def string) (string, error) {
	i := strings.IndexByte(def, ',')
	if i < 0 {
		return "", fmt.Errorf("%w: %q", errIDDefault, def)
	}
	rest := strings.TrimSpace(def[i+1:])
	if !strings.HasSuffix(rest, ")") || len(rest) == 1 {
		return "", fmt.Errorf("%w: %q", errIDDefault, def)
	}
	return strings.TrimSpace(rest[:len(rest)-1]), nil
}

// AssignIDs lets the column default draw native ids from the label's own
// sequence, so the sequence stays correct for later writes.
func (d Agens) AssignIDs(graph, table, _ string, _ int64, kind LabelKind, sp Space) []Stmt {
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s graphid DEFAULT graphid(%d, %s)",
		d.Table(graph, table), colGraphID, sp.LabelID, sp.Seq)
	if kind == EdgeLabel {
		alter += fmt.Sprintf(", ADD COLUMN %s graphid, ADD COLUMN %s graphid", colFromGID, colToGID)
	}
	return []Stmt{{SQL: alter}}
}
