package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadTraining_DropsRowsWithMissingFeatures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, trainingFile, "id,feature1,feature2,target\n"+
		"1,0.1,0.2,0\n"+
		"2,,0.3,1\n"+ // missing feature1 -> dropped
		"3,0.4,0.5,0\n")

	rows, err := LoadTraining(dir)
	if err != nil {
		t.Fatalf("LoadTraining: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (row with missing feature dropped)", len(rows))
	}
	for _, r := range rows {
		if r.ID == "2" {
			t.Error("row with missing feature should have been dropped")
		}
	}
}

func TestLoadTournament_ParsesPartitionsAndEras(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, tournamentFile, "id,era,data_type,feature1,target\n"+
		"10,era1,validation,0.1,1\n"+
		"11,era1,validation,0.2,0\n"+
		"12,era2,test,0.3,\n"+
		"13,era2,live,0.4,\n")

	rows, err := LoadTournament(dir)
	if err != nil {
		t.Fatalf("LoadTournament: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}

	val := FilterPartition(rows, PartitionValidation)
	if len(val) != 2 {
		t.Fatalf("got %d validation rows, want 2", len(val))
	}
	for _, r := range val {
		if !r.HasTarget {
			t.Errorf("validation row %s should have a target", r.ID)
		}
	}

	test := FilterPartition(rows, PartitionTest)
	if len(test) != 1 || test[0].HasTarget {
		t.Errorf("test partition should have 1 row with no target, got %+v", test)
	}
}

func TestSortTournamentByID_Ascending(t *testing.T) {
	rows := []TournamentRow{{ID: "30"}, {ID: "10"}, {ID: "20"}}
	SortTournamentByID(rows)
	want := []string{"10", "20", "30"}
	for i, r := range rows {
		if r.ID != want[i] {
			t.Errorf("index %d: got %s, want %s", i, r.ID, want[i])
		}
	}
}

func TestJoinValidationByEraAndID_PairsByRowID(t *testing.T) {
	validation := []TournamentRow{
		{ID: "2", Era: "era1", Target: 1},
		{ID: "1", Era: "era1", Target: 0},
	}
	submission := []SubmissionRow{
		{ID: "1", Probability: 0.1},
		{ID: "2", Probability: 0.9},
	}
	labels, probs := JoinValidationByEraAndID(validation, "era1", submission)
	if len(labels) != 2 || len(probs) != 2 {
		t.Fatalf("expected 2 paired rows, got labels=%v probs=%v", labels, probs)
	}
	// Sorted by ID ascending: row "1" first, then "2".
	if labels[0] != 0 || probs[0] != 0.1 {
		t.Errorf("row 0: got label=%v prob=%v, want label=0 prob=0.1", labels[0], probs[0])
	}
	if labels[1] != 1 || probs[1] != 0.9 {
		t.Errorf("row 1: got label=%v prob=%v, want label=1 prob=0.9", labels[1], probs[1])
	}
}

func TestDistinctEras_SortedAndDeduped(t *testing.T) {
	rows := []TournamentRow{{Era: "era3"}, {Era: "era1"}, {Era: "era1"}, {Era: "era2"}}
	got := DistinctEras(rows)
	want := []string{"era1", "era2", "era3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLoadSubmission_ParsesIDAndProbability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub.csv")
	writeFile(t, dir, "sub.csv", "id,probability\n5,0.75\n3,0.25\n")

	rows, err := LoadSubmission(path)
	if err != nil {
		t.Fatalf("LoadSubmission: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}
