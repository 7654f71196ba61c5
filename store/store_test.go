package store_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hscells/qprober/store"
	"github.com/pkg/errors"
)

func TestStore(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	r, err := s.StartRun("moby")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.ID) != 36 {
		t.Errorf("expected a uuid, got %q", r.ID)
	}

	if err := s.AddCategories(r.ID, []string{"Root", "Fiction"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddCategories(r.ID, []string{"Sea"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddFailure(r.ID, "classification", "+whale -ship", errors.New("timeout")); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishRun(r.ID, 1234.5, 40, "moby.xml"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Run(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Finished || got.EstimatedSize != 1234.5 || got.SampleSize != 40 || got.SummaryPath != "moby.xml" {
		t.Errorf("unexpected run %+v", got)
	}
	if got.FinishedAt.Before(got.StartedAt) {
		t.Errorf("run finished before it started: %+v", got)
	}

	categories, err := s.Categories(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(categories, []string{"Root", "Fiction", "Sea"}) {
		t.Errorf("unexpected categories %v", categories)
	}

	failures, err := s.Failures(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 1 || failures[0].Stage != "classification" || failures[0].Message != "timeout" {
		t.Errorf("unexpected failures %+v", failures)
	}

	if err := s.FinishRun("missing", 0, 0, ""); err == nil {
		t.Error("expected an error for a missing run")
	}
}

func TestStore_Runs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	first, _ := s.StartRun("moby")
	if _, err := s.StartRun("dick"); err != nil {
		t.Fatal(err)
	}
	second, _ := s.StartRun("moby")
	s.Close()

	s, err = store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runs, err := s.Runs("moby")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	ids := map[string]bool{runs[0].ID: true, runs[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] || runs[0].Finished {
		t.Errorf("unexpected runs %+v", runs)
	}
}
