package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resource-matcher/internal/catalog"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var columns = []string{"id", "title", "category", "address", "phone", "hours", "link", "tags", "description", "verified"}

func TestListVerified(t *testing.T) {
	db, mock := setupMockDB(t)

	rows := sqlmock.NewRows(columns).
		AddRow("1", "Part of the Solution (POTS)", "food", "2759 Webster Ave, Bronx, NY 10458", "718-220-4892", "Mon-Fri", "https://potsbronx.org/", `{"food pantry","soup kitchen"}`, "Pantry", true).
		AddRow("12", "BronxWorks Housing", "housing", "60 E Tremont Ave, Bronx, NY 10453", nil, nil, nil, "{}", "Housing help", true)
	mock.ExpectQuery(regexp.QuoteMeta(listVerifiedQuery)).WillReturnRows(rows)

	got, err := NewRepository(db).ListVerified(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"1", "12"}, got.IDs())
	first := got.Items[0]
	assert.Equal(t, "718-220-4892", first.Phone)
	assert.Equal(t, catalog.Tags{"food pantry", "soup kitchen"}, first.Tags)
	assert.True(t, first.HasTag("soup"))

	second := got.Items[1]
	assert.Empty(t, second.Phone)
	assert.Empty(t, second.Link)
	assert.Empty(t, second.Tags)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListVerifiedQueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(listVerifiedQuery)).WillReturnError(errors.New("connection refused"))

	_, err := NewRepository(db).ListVerified(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSkipsExisting(t *testing.T) {
	db, mock := setupMockDB(t)

	resources := catalog.NewResources(
		&catalog.Resource{Title: "Pantry", Category: "food", Address: "1 Main St", Tags: catalog.Tags{"food"}, Verified: true},
		&catalog.Resource{Title: "Clinic", Category: "healthcare", Address: "2 Main St", Phone: "718-000-0000", Verified: true},
	)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).WithArgs("Pantry", "1 Main St").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).WithArgs("Clinic", "2 Main St").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(insertQuery)).
		WithArgs("Clinic", "healthcare", "2 Main St", "718-000-0000", nil, nil, sqlmock.AnyArg(), "", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("13"))
	mock.ExpectCommit()

	n, err := NewRepository(db).Insert(context.Background(), resources)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)

	resources := catalog.NewResources(
		&catalog.Resource{Title: "Pantry", Category: "food", Address: "1 Main St", Verified: true},
	)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).WithArgs("Pantry", "1 Main St").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(insertQuery)).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, err := NewRepository(db).Insert(context.Background(), resources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertValidatesBeforeWriting(t *testing.T) {
	db, mock := setupMockDB(t)

	_, err := NewRepository(db).Insert(context.Background(), catalog.NewResources(&catalog.Resource{Title: "No address", Category: "food"}))
	require.Error(t, err)

	n, err := NewRepository(db).Insert(context.Background(), catalog.NewResources())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
