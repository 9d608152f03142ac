package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestCreateCommunicationStartsAsNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO communications (id, name, email, message, status, created_at, updated_at)`)).
		WithArgs(sqlmock.AnyArg(), "Ana", "ana@x.com", "Hi", "new", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := st.CreateCommunication(context.Background(), "Ana", "ana@x.com", "Hi")
	if err != nil {
		t.Fatalf("CreateCommunication: %v", err)
	}
	if c.Status != StatusNew || c.ID == "" || !c.CreatedAt.Equal(c.UpdatedAt) {
		t.Fatalf("unexpected record: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateCommunicationStatusTouchesOnlyStatusAndUpdatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE communications SET status=$2, updated_at=$3 WHERE id=$1`)).
		WithArgs("rec-1", "done", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.UpdateCommunicationStatus(context.Background(), "rec-1", "done"); err != nil {
		t.Fatalf("UpdateCommunicationStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateCommunicationStatusUnknownID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(`UPDATE communications`).
		WithArgs("missing", "dismissed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = st.UpdateCommunicationStatus(context.Background(), "missing", "dismissed")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCommunicationStatusRejectsUnknownStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	if err := st.UpdateCommunicationStatus(context.Background(), "rec-1", "archived"); err == nil {
		t.Fatalf("expected error for invalid status")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no queries expected: %v", err)
	}
}

func TestDeleteCommunication(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM communications WHERE id=$1`)).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM communications WHERE id=$1`)).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.DeleteCommunication(context.Background(), "rec-1"); err != nil {
		t.Fatalf("DeleteCommunication: %v", err)
	}
	if err := st.DeleteCommunication(context.Background(), "rec-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListCommunicationsByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, email, message, status, created_at, updated_at FROM communications WHERE status = $1 ORDER BY created_at DESC LIMIT $2`)).
		WithArgs("new", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "message", "status", "created_at", "updated_at"}).
			AddRow("r2", "Bo", "bo@x.com", "Yo", "new", now, now).
			AddRow("r1", "Ana", "ana@x.com", "Hi", "new", now.Add(-time.Minute), now.Add(-time.Minute)))

	recs, err := st.ListCommunications(context.Background(), CommunicationQuery{Status: "new"})
	if err != nil {
		t.Fatalf("ListCommunications: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "r2" || recs[1].Email != "ana@x.com" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
