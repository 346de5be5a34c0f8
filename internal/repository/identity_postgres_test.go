package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"kadan/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newIdentityMock(t *testing.T) (*IdentityPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := NewIdentityPostgres(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func secondaryRow(id, subNumber int, ref, nick string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "guild_id", "discord_user_id", "sub_number", "member_no", "nickname", "created_at"}).
		AddRow(id, "g1", "u1", subNumber, ref, nick, fixedNow.Add(-time.Hour))
}

func TestSavePrimaryUniqueViolation(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auth_accounts")).
		WithArgs("g1", "u1", "100", "모코코", fixedNow).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.SavePrimary(context.Background(), "g1", "u1", "100", "모코코")
	if !errors.Is(err, ErrPrimaryExists) {
		t.Fatalf("expected ErrPrimaryExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAddSecondaryAssignsNextNumber(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WithArgs("g1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(sub_number), 0)")).
		WithArgs("g1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"max", "count"}).AddRow(2, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auth_sub_accounts")).
		WithArgs("g1", "u1", 3, "300", "부캐", fixedNow).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	n, err := repo.AddSecondary(context.Background(), "g1", "u1", "300", "부캐", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected sub number 3, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAddSecondaryRespectsLimit(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(sub_number), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"max", "count"}).AddRow(1, 1))
	mock.ExpectRollback()

	_, err := repo.AddSecondary(context.Background(), "g1", "u1", "300", "부캐", 1)
	if !errors.Is(err, ErrSecondaryLimit) {
		t.Fatalf("expected ErrSecondaryLimit, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveSecondaryArchivesThenRenumbers(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_sub_accounts")).
		WithArgs("g1", "u1", 1).
		WillReturnRows(secondaryRow(11, 1, "200", "A"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_auth_sub_accounts")).
		WithArgs(11, "g1", "u1", 1, "200", "A", sqlmock.AnyArg(), fixedNow, fixedNow.Add(models.RetentionPeriod)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM auth_sub_accounts WHERE id = $1")).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET sub_number = sub_number - 1")).
		WithArgs("g1", "u1", 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	nick, err := repo.RemoveSecondary(context.Background(), "g1", "u1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nick == nil || *nick != "A" {
		t.Fatalf("expected removed nickname A, got %v", nick)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveMiddleSecondaryShiftsHigherNumbers(t *testing.T) {
	repo, mock := newIdentityMock(t)
	retainUntil := fixedNow.AddDate(0, 0, 180)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WithArgs("g1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_sub_accounts")).
		WithArgs("g1", "u1", 2).
		WillReturnRows(secondaryRow(12, 2, "602", "Bar"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_auth_sub_accounts")).
		WithArgs(12, "g1", "u1", 2, "602", "Bar", sqlmock.AnyArg(), fixedNow, retainUntil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM auth_sub_accounts WHERE id = $1")).
		WithArgs(12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET sub_number = sub_number - 1")).
		WithArgs("g1", "u1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	nick, err := repo.RemoveSecondary(context.Background(), "g1", "u1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nick == nil || *nick != "Bar" {
		t.Fatalf("expected removed nickname Bar, got %v", nick)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveSecondaryArchiveFailureKeepsLiveRow(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_sub_accounts")).
		WillReturnRows(secondaryRow(11, 1, "200", "A"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_auth_sub_accounts")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	nick, err := repo.RemoveSecondary(context.Background(), "g1", "u1", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if nick != nil {
		t.Fatalf("expected no nickname, got %q", *nick)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveSecondaryMissing(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_sub_accounts")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	nick, err := repo.RemoveSecondary(context.Background(), "g1", "u1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nick != nil {
		t.Fatalf("expected nil, got %q", *nick)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveAllForUser(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_accounts")).
		WithArgs("g1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "guild_id", "discord_user_id", "member_no", "nickname", "is_verified", "created_at", "verified_at", "expired_at"}).
			AddRow(1, "g1", "u1", "100", "M", true, fixedNow, fixedNow, nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_auth_accounts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM auth_accounts WHERE id = $1")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_sub_accounts")).
		WithArgs("g1", "u1").
		WillReturnRows(secondaryRow(11, 1, "200", "A").AddRow(12, "g1", "u1", 2, "300", "B", fixedNow))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_auth_sub_accounts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_auth_sub_accounts")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM auth_sub_accounts WHERE guild_id = $1 AND discord_user_id = $2")).
		WithArgs("g1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	removed, err := repo.RemoveAllForUser(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.PrimaryNickname == nil || *removed.PrimaryNickname != "M" {
		t.Fatalf("expected primary M, got %v", removed.PrimaryNickname)
	}
	if len(removed.Secondaries) != 2 || removed.Secondaries[1].Nickname != "B" {
		t.Fatalf("unexpected secondaries: %+v", removed.Secondaries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveAllForUserNothingStored(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_accounts")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_sub_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "guild_id", "discord_user_id", "sub_number", "member_no", "nickname", "created_at"}))
	mock.ExpectCommit()

	removed, err := repo.RemoveAllForUser(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !removed.Empty() {
		t.Fatalf("expected nothing removed, got %+v", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLinkedAttributesCollectsAllKinds(t *testing.T) {
	repo, mock := newIdentityMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM deleted_auth_sub_accounts WHERE guild_id = $1 AND member_no = $2")).
		WithArgs("g1", "100").
		WillReturnRows(sqlmock.NewRows([]string{"discord_user_id", "member_no", "nickname"}).
			AddRow("u1", "100", "M").
			AddRow("u1", "100", "M").
			AddRow("u2", "100", "N"))

	got, err := repo.LinkedAttributes(context.Background(), "g1", models.BlockCandidate{Kind: models.AttrAccountRef, Value: "100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []models.BlockCandidate{
		{Kind: models.AttrAccountRef, Value: "100"},
		{Kind: models.AttrDiscordID, Value: "u1"},
		{Kind: models.AttrNickname, Value: "M"},
		{Kind: models.AttrDiscordID, Value: "u2"},
		{Kind: models.AttrNickname, Value: "N"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d attributes, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("attribute %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestLinkedAttributesRejectsUnknownKind(t *testing.T) {
	repo, _ := newIdentityMock(t)
	if _, err := repo.LinkedAttributes(context.Background(), "g1", models.BlockCandidate{Kind: "email", Value: "x"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
