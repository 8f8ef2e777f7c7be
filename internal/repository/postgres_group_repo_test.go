package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/vault/internal/model"
)

var groupRowColumns = []string{"id", "user_id", "name", "order", "created_at"}

func TestPostgresGroupRepo_ListByUser_OrderedByOrderKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresGroupRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM groups WHERE user_id = $1 ORDER BY "order", created_at`)).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).
			AddRow("g-1", "u-1", "Design Inspiration", 1, now).
			AddRow("g-2", "u-1", "Development", 2, now))

	groups, err := repo.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 1, groups[0].Order)
	assert.Equal(t, "Development", groups[1].Name)
}

func TestPostgresGroupRepo_FindByID_OtherOwnerIsNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresGroupRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM groups WHERE id = $1 AND user_id = $2")).
		WithArgs("g-1", "u-2").
		WillReturnRows(sqlmock.NewRows(groupRowColumns))

	g, err := repo.FindByID(context.Background(), "u-2", "g-1")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestPostgresGroupRepo_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresGroupRepo(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO groups (id, user_id, name, "order", created_at)`)).
		WithArgs("g-1", "u-1", "Reading", 5, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &model.Group{ID: "g-1", UserID: "u-1", Name: "Reading", Order: 5, CreatedAt: now})
	require.NoError(t, err)
}

func TestPostgresGroupRepo_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"owned group is deleted", 1, true},
		{"foreign or missing group", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPostgresGroupRepo(db)

			mock.ExpectExec(regexp.QuoteMeta("DELETE FROM groups WHERE id = $1 AND user_id = $2")).
				WithArgs("g-1", "u-1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.Delete(context.Background(), "u-1", "g-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
