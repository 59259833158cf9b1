package hub

import (
	"path/filepath"
	"testing"
)

func TestRunNameSequence(t *testing.T) {
	dbpath := filepath.Join(t.TempDir(), "sequence")
	seq, err := OpenRunNameSequence(dbpath)
	if err != nil {
		t.Fatal(err)
	}

	if name, err := seq.Next("myproject", "train"); err != nil || name != "train-1" {
		t.Fatalf("first name = %s, %v", name, err)
	}
	if name, err := seq.Next("myproject", "train"); err != nil || name != "train-2" {
		t.Fatalf("second name = %s, %v", name, err)
	}
	// counters are independent per workflow and project
	if name, err := seq.Next("myproject", "download"); err != nil || name != "download-1" {
		t.Fatalf("download name = %s, %v", name, err)
	}
	if name, err := seq.Next("other", "train"); err != nil || name != "train-1" {
		t.Fatalf("other project name = %s, %v", name, err)
	}

	// counters survive reopen
	if err := seq.Close(); err != nil {
		t.Fatal(err)
	}
	seq, err = OpenRunNameSequence(dbpath)
	if err != nil {
		t.Fatal(err)
	}
	defer seq.Close()
	if name, err := seq.Next("myproject", "train"); err != nil || name != "train-3" {
		t.Fatalf("name after reopen = %s, %v", name, err)
	}
}
