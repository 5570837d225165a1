package ingest

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentic-research/agload/internal/store"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const social = `<?xml version="1.0" encoding="UTF-8"?>
<graphml xmlns="http://graphml.graphdrawing.org/xmlns">
  <key id="name" for="node" attr.name="name" attr.type="string"/>
  <key id="since" for="edge" attr.name="since" attr.type="int"/>
  <graph id="G" edgedefault="directed">
    <node id="n1" labels=":Person"><data key="name">Alice</data></node>
    <node id="n2" labels=":Person"><data key="name">Bob</data></node>
    <edge id="e1" source="n1" target="n2" label="KNOWS"><data key="since">2010</data></edge>
  </graph>
</graphml>`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "agload.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func runImport(t *testing.T, db *sql.DB, doc string, opts Options) (*Result, error) {
	t.Helper()
	if opts.Graph == "" {
		opts.Graph = "g"
	}
	e := NewEngine(store.NewSession(db, store.SQLite{}, nil), opts)
	return e.Import(context.Background(), strings.NewReader(doc))
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

// table names a table of graph g in the SQLite store.
func table(name string) string { return store.SQLite{}.Table("g", name) }

func TestImportEndToEnd(t *testing.T) {
	db := openDB(t)
	res, err := runImport(t, db, social, Options{ReadLabels: true})
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Entities)
	require.Len(t, res.Labels, 2)
	assert.Equal(t, "Person", res.Labels[0].Label)
	assert.Equal(t, int64(2), res.Labels[0].Rows)
	assert.Equal(t, "KNOWS", res.Labels[1].Label)
	assert.Equal(t, int64(1), res.Labels[1].Rows)
	require.NotNil(t, res.Summary)
	assert.Equal(t, int64(2), res.Summary.Vertices)
	assert.Equal(t, int64(1), res.Summary.Edges)
	assert.NotEmpty(t, res.RunID)

	ids := map[string]int64{}
	rows, err := db.Query(`SELECT id, json_extract(properties, '$.name') FROM ` + table("Person"))
	require.NoError(t, err)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		require.NoError(t, rows.Scan(&id, &name))
		ids[name] = id
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids["Alice"], ids["Bob"])

	var start, end int64
	var props string
	require.NoError(t, db.QueryRow(`SELECT start, "end", properties FROM ` + table("KNOWS")).Scan(&start, &end, &props))
	assert.Equal(t, ids["Alice"], start)
	assert.Equal(t, ids["Bob"], end)
	assert.JSONEq(t, `{"since":2010}`, props)

	var labid int64
	require.NoError(t, db.QueryRow(
		"SELECT l.labid FROM ag_label l JOIN ag_graph g ON g.oid = l.graphid WHERE g.graphname = 'g' AND l.labname = 'Person'",
	).Scan(&labid))
	got, _ := store.SplitNativeID(ids["Alice"])
	assert.Equal(t, labid, got, "native ids carry the label id")

	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM ag_graph WHERE graphname = 'g'"))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'g.ml_%'"),
		"staging tables are dropped")
	assert.Equal(t, 2, count(t, db,
		"SELECT COUNT(*) FROM ag_depend d JOIN ag_graph g ON g.oid = d.refobjid WHERE g.graphname = 'g'"),
		"dependents follow the published graph")
}

func TestImportUnresolvedEndpoint(t *testing.T) {
	db := openDB(t)
	doc := strings.Replace(social, `source="n1"`, `source="ghost"`, 1)

	_, err := runImport(t, db, doc, Options{ReadLabels: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedEdgeEndpoint))

	var ue *UnresolvedEndpointError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "KNOWS", ue.Label)
	assert.Equal(t, uint64(1), ue.Rows.GetCardinality())
	require.Len(t, ue.Sample, 1)
	assert.Equal(t, "ghost", ue.Sample[0].Source)

	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM ag_graph WHERE graphname = 'g'"),
		"graph is not published")
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM "+table("KNOWS")))
}

func TestImportKeepStaging(t *testing.T) {
	db := openDB(t)
	_, err := runImport(t, db, social, Options{ReadLabels: true, KeepStaging: true})
	require.NoError(t, err)
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM "+table("ml_Person")))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM "+table("ml_KNOWS")))

	// A kept staging table does not block the next run.
	_, err = runImport(t, db, social, Options{ReadLabels: true})
	require.NoError(t, err)
	assert.Equal(t, 4, count(t, db, "SELECT COUNT(*) FROM "+table("Person")))
}

func TestImportAppendsToExistingGraph(t *testing.T) {
	db := openDB(t)
	_, err := runImport(t, db, social, Options{ReadLabels: true})
	require.NoError(t, err)
	_, err = runImport(t, db, social, Options{ReadLabels: true})
	require.NoError(t, err)

	assert.Equal(t, 4, count(t, db, "SELECT COUNT(DISTINCT id) FROM "+table("Person")))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM "+table("KNOWS")))
	assert.Equal(t, 2, count(t, db,
		"SELECT COUNT(*) FROM "+table("KNOWS")+" k JOIN "+table("Person")+" a ON a.id = k.start JOIN "+table("Person")+` b ON b.id = k."end"`))
}

func TestImportStageOnly(t *testing.T) {
	db := openDB(t)
	res, err := runImport(t, db, social, Options{ReadLabels: true, StageOnly: true})
	require.NoError(t, err)
	assert.Nil(t, res.Summary)
	assert.Equal(t, int64(3), res.Entities)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM ag_graph WHERE graphname = 'g'"))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM "+table("Person")))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM "+table("ml_Person")))
}

func TestImportLabelKindConflict(t *testing.T) {
	db := openDB(t)
	doc := strings.Replace(social, `labels=":Person"><data key="name">Bob`, `labels=":KNOWS"><data key="name">Bob`, 1)
	_, err := runImport(t, db, doc, Options{ReadLabels: true})
	assert.ErrorIs(t, err, ErrLabelKindConflict)
}

func TestImportCaseDistinctLabels(t *testing.T) {
	db := openDB(t)
	doc := `<graphml><graph>
  <node id="a" labels=":Person"/><node id="b" labels=":person"/>
  <edge source="a" target="b" label="KNOWS"/>
</graph></graphml>`
	res, err := runImport(t, db, doc, Options{ReadLabels: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Summary.Vertices)
	assert.Equal(t, int64(1), res.Summary.Edges)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM "+table("Person")))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM "+table("person")))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM "+table("KNOWS")))
}

func TestImportDefaultLabels(t *testing.T) {
	db := openDB(t)
	doc := `<graphml><graph>
  <node id="a"/><node id="b"/>
  <edge source="a" target="b"/>
</graph></graphml>`
	res, err := runImport(t, db, doc, Options{IDProperty: "nid"})
	require.NoError(t, err)
	require.Len(t, res.Labels, 2)
	assert.Equal(t, "ag_vertex", res.Labels[0].Label)
	assert.Equal(t, "UNKNOWN", res.Labels[1].Label)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM "+table("ag_vertex")+` WHERE json_extract(properties, '$.nid') = 'a'`))
}

func TestImportFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "in/social.graphml", []byte(social), 0o644))

	db := openDB(t)
	e := NewEngine(store.NewSession(db, store.SQLite{}, nil), Options{Graph: "g", ReadLabels: true})
	res, err := e.ImportFile(context.Background(), fs, "in/social.graphml")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Entities)

	_, err = e.ImportFile(context.Background(), fs, "in/missing.graphml")
	assert.Error(t, err)
}

func TestImportParseErrorStopsBeforeFinalize(t *testing.T) {
	db := openDB(t)
	doc := strings.Replace(social, `<data key="since">2010</data>`, `<data key="since">soon</data>`, 1)
	_, err := runImport(t, db, doc, Options{ReadLabels: true})
	require.Error(t, err)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM ag_graph WHERE graphname = 'g'"),
		"catalog untouched when parsing fails")
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM "+table("Person")))
}
