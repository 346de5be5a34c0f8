package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"kadan/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newBlockMock(t *testing.T) (*BlockPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := NewBlockPostgres(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func TestBlockSplitsNewAndAlready(t *testing.T) {
	repo, mock := newBlockMock(t)

	candidates := []models.BlockCandidate{
		{Kind: models.AttrDiscordID, Value: "u1"},
		{Kind: models.AttrAccountRef, Value: "100"},
		{Kind: models.AttrNickname, Value: "M"},
		{Kind: models.AttrNickname, Value: "M"},
		{Kind: models.AttrNickname, Value: ""},
	}

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (guild_id, data_type, value) WHERE unblocked_at IS NULL DO NOTHING")).
		WithArgs("g1", sqlmock.AnyArg(), sqlmock.AnyArg(), "reason", "admin", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"data_type", "value"}).
			AddRow("discord_id", "u1").
			AddRow("nickname", "M"))

	newly, already, err := repo.Block(context.Background(), "g1", candidates, "reason", "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(newly) != 2 {
		t.Fatalf("expected 2 newly blocked, got %+v", newly)
	}
	if len(already) != 1 || already[0].Value != "100" {
		t.Fatalf("expected memberNo 100 already blocked, got %+v", already)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestBlockEmptyCandidatesSkipsQuery(t *testing.T) {
	repo, mock := newBlockMock(t)

	newly, already, err := repo.Block(context.Background(), "g1", nil, "reason", "admin")
	if err != nil || newly != nil || already != nil {
		t.Fatalf("expected empty result, got %v %v %v", newly, already, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIsAnyBlockedScansRows(t *testing.T) {
	repo, mock := newBlockMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("unnest($2::text[], $3::text[])")).
		WithArgs("g1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "guild_id", "data_type", "value", "reason", "blocked_by", "created_at", "unblocked_at", "unblocked_by"}).
			AddRow(4, "g1", "memberNo", "100", "abuse", "admin", fixedNow, nil, nil))

	rows, err := repo.IsAnyBlocked(context.Background(), "g1", []models.BlockCandidate{{Kind: models.AttrAccountRef, Value: "100"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Kind != models.AttrAccountRef || !rows[0].Active() {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestUnblockCountsOnlyActiveRows(t *testing.T) {
	repo, mock := newBlockMock(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ANY($1) AND unblocked_at IS NULL")).
		WithArgs(sqlmock.AnyArg(), fixedNow, "mod").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Unblock(context.Background(), []models.BlockedAttribute{{ID: 1}, {ID: 2}}, "mod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row unblocked, got %d", n)
	}
}
