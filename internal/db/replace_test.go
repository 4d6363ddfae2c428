package db

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sliSpec = TableSpec{
	Table: "ons.crosswalk_sli",
	Columns: []Column{
		{Name: "postal_code", Type: "TEXT"},
		{Name: "ons_id", Type: "TEXT"},
	},
}

func TestTableSpec_CreateSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "ons"."crosswalk_sli" ("postal_code" TEXT NOT NULL, "ons_id" TEXT NOT NULL)`,
		sliSpec.createSQL(),
	)
}

func TestReplaceTable_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "ons"."crosswalk_sli"`)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "ons"."crosswalk_sli"`)).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"ons", "crosswalk_sli"}, []string{"postal_code", "ons_id"}).
		WillReturnResult(2)
	mock.ExpectCommit()

	n, err := ReplaceTable(context.Background(), mock, sliSpec, [][]any{{"K1H7S5", "7"}, {"K2P1L4", "3"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_EmptyRowsClearsTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`DELETE FROM`).WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCommit()

	n, err := ReplaceTable(context.Background(), mock, sliSpec, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`DELETE FROM`).WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"ons", "crosswalk_sli"}, []string{"postal_code", "ons_id"}).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	_, err = ReplaceTable(context.Background(), mock, sliSpec, [][]any{{"K1H7S5", "7"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO ons.crosswalk_sli")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(fmt.Errorf("no connection"))

	_, err = ReplaceTable(context.Background(), mock, sliSpec, [][]any{{"K1H7S5", "7"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_InvalidSpec(t *testing.T) {
	_, err := ReplaceTable(context.Background(), nil, TableSpec{Columns: sliSpec.Columns}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no table specified")

	_, err = ReplaceTable(context.Background(), nil, TableSpec{Table: "t"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}
