package jobs

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func aTestRepository(t *testing.T) *JobRepository {
	t.Helper()
	r, err := Open("file:" + filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func aJob(status Status) *Job {
	return &Job{
		SourceWidth:  640,
		SourceHeight: 480,
		Lines:        288,
		Blocks:       2,
		FeedLines:    4,
		ByteSize:     13845,
		Transport:    "ble",
		Status:       status,
	}
}

func TestCreateAndGet(t *testing.T) {
	r := aTestRepository(t)

	j := aJob(Printed)
	if err := r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, j)
	}); err != nil {
		t.Fatal(err)
	}
	if j.Id == 0 || j.Uuid == uuid.Nil || j.CreatedAt.IsZero() {
		t.Fatalf("Create didn't fill in id, uuid and timestamp: %+v", j)
	}

	got, err := r.Get(j.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Job not found after creating it")
	}
	if !got.CreatedAt.Equal(j.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, j.CreatedAt)
	}
	got.CreatedAt = j.CreatedAt
	if *got != *j {
		t.Errorf("Got %+v\nwant %+v", got, j)
	}
}

func TestGetMissing(t *testing.T) {
	r := aTestRepository(t)

	got, err := r.Get(uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Expected no job, got %+v", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	r := aTestRepository(t)

	jobs, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("Expected an empty history, got %d jobs", len(jobs))
	}

	created := []*Job{aJob(Printed), aJob(Failed), aJob(Printed)}
	created[1].Error = "link lost"
	for _, j := range created {
		if err := r.Transact(func(tx *sql.Tx) error {
			return r.Create(tx, j)
		}); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err = r.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != len(created) {
		t.Fatalf("Got %d jobs, want %d", len(jobs), len(created))
	}
	for i, j := range jobs {
		want := created[len(created)-1-i]
		if j.Uuid != want.Uuid || j.Status != want.Status || j.Error != want.Error {
			t.Errorf("Job %d = %+v, want %+v", i, j, want)
		}
	}
}

func TestTransactRollsBack(t *testing.T) {
	r := aTestRepository(t)
	abort := errors.New("abort")

	j := aJob(Printed)
	err := r.Transact(func(tx *sql.Tx) error {
		if err := r.Create(tx, j); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("Expected the abort error, got %v", err)
	}

	got, err := r.Get(j.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("Job was committed despite the transaction failing")
	}
}

func TestCreateRejectsUnknownStatus(t *testing.T) {
	r := aTestRepository(t)

	err := r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, aJob(Status("queued")))
	})
	if err == nil {
		t.Error("Expected the status check constraint to fail")
	}
}

func TestCreateKeepsGivenIdentity(t *testing.T) {
	r := aTestRepository(t)

	j := aJob(Printed)
	j.Uuid = uuid.New()
	j.CreatedAt = time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	if err := r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, j)
	}); err != nil {
		t.Fatal(err)
	}

	got, err := r.Get(j.Uuid)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !got.CreatedAt.Equal(j.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, j.CreatedAt)
	}
}
