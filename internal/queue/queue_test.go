package queue

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func TestQueue_PutGet_FIFOOrder(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, "test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Put(SubmissionTask{SubmissionID: id}); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, want := range []string{"a", "b", "c"} {
		entry, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		var task SubmissionTask
		if err := json.Unmarshal(entry.Payload, &task); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if task.SubmissionID != want {
			t.Errorf("got %s, want %s", task.SubmissionID, want)
		}
		if err := q.TaskDone(entry.Offset); err != nil {
			t.Fatalf("TaskDone: %v", err)
		}
	}
}

func TestQueue_Durability_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, "durable")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	const n = 5
	for i := 0; i < n; i++ {
		if err := q.Put(SubmissionTask{SubmissionID: string(rune('a' + i))}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Restart: reopen the same backing file.
	q2, err := Open(dir, "durable")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer q2.Close()

	size, err := q2.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != n {
		t.Fatalf("Size after restart: got %d, want %d", size, n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		entry, err := q2.Get(ctx)
		if err != nil {
			t.Fatalf("Get after restart: %v", err)
		}
		var task SubmissionTask
		json.Unmarshal(entry.Payload, &task)
		want := string(rune('a' + i))
		if task.SubmissionID != want {
			t.Errorf("order after restart[%d]: got %s, want %s", i, task.SubmissionID, want)
		}
	}
}

func TestQueue_CrashBetweenGetAndTaskDone_Redelivers(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, "crash")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := q.Put(SubmissionTask{SubmissionID: "x"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	entry, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = entry // simulate a crash: never call TaskDone, never call Close gracefully

	// Recover (as done at process startup after a crash) should make the
	// entry eligible for redelivery again.
	if err := q.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	redelivered, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("Get after recover: %v", err)
	}
	var task SubmissionTask
	json.Unmarshal(redelivered.Payload, &task)
	if task.SubmissionID != "x" {
		t.Errorf("redelivered entry: got %s, want x", task.SubmissionID)
	}
	q.Close()
}

func TestOpenTriad_CreatesThreeIndependentQueues(t *testing.T) {
	dir := t.TempDir()
	triad, err := OpenTriad(dir)
	if err != nil {
		t.Fatalf("OpenTriad: %v", err)
	}
	defer triad.Close()

	if err := triad.Ingress.Put(SubmissionTask{SubmissionID: "s1"}); err != nil {
		t.Fatalf("Put ingress: %v", err)
	}
	for _, q := range []*Queue{triad.Originality, triad.Concordance} {
		size, err := q.Size()
		if err != nil {
			t.Fatalf("Size: %v", err)
		}
		if size != 0 {
			t.Errorf("expected independent queues, got size %d", size)
		}
	}

	if _, err := filepath.Abs(dir); err != nil {
		t.Fatalf("abs: %v", err)
	}
}
