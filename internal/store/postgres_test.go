package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresWithPool(mock), mock
}

func TestPostgres_SaveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveSnapshot(context.Background(), testSnapshot(7))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	payload := []byte(`{"run_id":"run-3","generation":3,"layers":{}}`)
	mock.ExpectQuery(`SELECT payload FROM snapshots`).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	snap, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "run-3", snap.RunID)
	assert.Equal(t, uint64(3), snap.Generation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestSnapshot_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM snapshots`).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}))

	snap, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestPostgres_PruneSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM snapshots`).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.PruneSnapshots(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertTracts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TEMP TABLE tmp_upsert_tracts`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom([]string{"tmp_upsert_tracts"}, tractColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO tracts`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`DROP TABLE IF EXISTS tmp_upsert_tracts`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))

	tracts := []Tract{
		{GEOID: "12086000100", Name: "Census Tract 1", Geom: []byte{0x01}},
		{GEOID: "12086000200", Name: "Census Tract 2", Geom: []byte{0x02}},
	}

	n, err := s.UpsertTracts(context.Background(), tracts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertTracts_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	n, err := s.UpsertTracts(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgres_CountTracts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tracts`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(812))

	n, err := s.CountTracts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 812, n)
}
