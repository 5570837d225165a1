package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agentic-research/agload/internal/catalog"
	"github.com/agentic-research/agload/internal/graphml"
	"github.com/agentic-research/agload/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagerAgensDDLWindow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	s := store.NewSession(db, store.Agens{}, nil)
	cat := catalog.New(s, "g", nil)
	st := NewStager(s, cat, "ml_", nil)

	// Label DDL runs while visible, staging DDL while hidden.
	mock.ExpectExec(`CREATE VLABEL IF NOT EXISTS "Person"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("DELETE FROM pg_catalog.ag_graph WHERE graphname = $1 RETURNING oid, nspid").
		WithArgs("g").
		WillReturnRows(sqlmock.NewRows([]string{"oid", "nspid"}).AddRow(int64(10), int64(99)))
	mock.ExpectExec(`DROP TABLE IF EXISTS "g"."ml_Person"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE "g"."ml_Person" (id TEXT PRIMARY KEY, property jsonb)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO pg_catalog.ag_graph (graphname, nspid) VALUES ($1, $2) RETURNING oid").
		WithArgs("g", int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"oid"}).AddRow(int64(11)))
	mock.ExpectExec("UPDATE pg_catalog.pg_depend SET refobjid = $1 WHERE refobjid = $2").
		WithArgs(int64(11), int64(10)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE pg_catalog.ag_label SET graphid = $1 WHERE graphid = $2").
		WithArgs(int64(11), int64(10)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "g"."ml_Person" (id, property) VALUES ($1, CAST($2 AS jsonb))`).
		WithArgs("n1", `{"name":"Alice"}`).WillReturnResult(sqlmock.NewResult(0, 1))
	// Second row of a known label: no DDL.
	mock.ExpectExec(`INSERT INTO "g"."ml_Person" (id, property) VALUES ($1, CAST($2 AS jsonb))`).
		WithArgs("n2", `{}`).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	alice := &graphml.Entity{Kind: graphml.NodeEntity, ID: "n1", Label: "Person", Properties: map[string]any{"name": "Alice"}}
	bob := &graphml.Entity{Kind: graphml.NodeEntity, ID: "n2", Label: "Person", Properties: map[string]any{}}
	require.NoError(t, st.Stage(ctx, alice))
	require.NoError(t, st.Stage(ctx, bob))
	require.NoError(t, mock.ExpectationsWereMet())

	m, ok := st.Labels().Get("Person")
	require.True(t, ok)
	assert.Equal(t, "ml_Person", m.Table)
	assert.Equal(t, int64(2), m.Rows)
	assert.False(t, cat.Hidden())
}

func TestStagerRefusesDDLWhileHidden(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	s := store.NewSession(db, store.Agens{}, nil)
	cat := catalog.New(s, "g", nil)
	mock.ExpectQuery("DELETE FROM pg_catalog.ag_graph WHERE graphname = $1 RETURNING oid, nspid").
		WithArgs("g").
		WillReturnRows(sqlmock.NewRows([]string{"oid", "nspid"}).AddRow(int64(1), int64(1)))
	_, err = cat.Hide(context.Background())
	require.NoError(t, err)

	st := NewStager(s, cat, "ml_", nil)
	err = st.Stage(context.Background(), &graphml.Entity{Kind: graphml.EdgeEntity, Source: "a", Target: "b", Label: "X"})
	assert.ErrorIs(t, err, catalog.ErrCatalogSwap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStagerTableConflict(t *testing.T) {
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "stage.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	s := store.NewSession(db, store.SQLite{}, nil)
	require.NoError(t, s.Exec(ctx, store.SQLite{}.Bootstrap("g")...))
	st := NewStager(s, catalog.New(s, "g", nil), "ml_", nil)

	require.NoError(t, st.Stage(ctx, &graphml.Entity{Kind: graphml.NodeEntity, ID: "a", Label: "Person", Properties: map[string]any{}}))
	err = st.Stage(ctx, &graphml.Entity{Kind: graphml.NodeEntity, ID: "b", Label: "ml_Person", Properties: map[string]any{}})
	assert.ErrorIs(t, err, ErrTableConflict)

	m, ok := st.Labels().Get("Person")
	require.True(t, ok)
	assert.Equal(t, int64(1), m.Rows)
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM " + store.SQLite{}.Table("g", "ml_Person")).Scan(&n))
	assert.Equal(t, 1, n, "staged rows survive the rejected label")
}

func TestLabelsOrder(t *testing.T) {
	l := newLabels()
	l.add(&LabelMeta{Label: "B", Kind: store.VertexLabel, Rows: 2})
	l.add(&LabelMeta{Label: "R", Kind: store.EdgeLabel, Rows: 1})
	l.add(&LabelMeta{Label: "A", Kind: store.VertexLabel, Rows: 3})

	var names []string
	for _, m := range l.Of(store.VertexLabel) {
		names = append(names, m.Label)
	}
	assert.Equal(t, []string{"B", "A"}, names)
	assert.Len(t, l.Of(store.EdgeLabel), 1)
	assert.Equal(t, int64(6), l.Rows())
}
