package hub

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	storage, err := NewLocalFSProvider(&Local{Basepath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	return &RunStore{Storage: storage}
}

func TestRunStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := types.Run{
		Workflow:    "train",
		Provider:    "task",
		Status:      types.StatusSubmitted,
		SubmittedAt: time.Now().UTC(),
	}
	if err := store.PutRun(ctx, "myproject", "train-1", run); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRun(ctx, "myproject", "train-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "train-1" || got.Project != "myproject" {
		t.Errorf("run identity not set: %+v", got)
	}
	if got.Workflow != "train" || got.Status != types.StatusSubmitted {
		t.Errorf("run fields lost: %+v", got)
	}

	ok, err := store.ExistsRun(ctx, "myproject", "train-1")
	if err != nil || !ok {
		t.Errorf("ExistsRun = %v, %v", ok, err)
	}
}

func TestRunStoreGetRunUnknown(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "myproject", "missing")
	if !errors.IsErrCode(err, errors.ErrCodeRunUnknown) {
		t.Fatalf("expected run unknown, got %v", err)
	}
}

func TestRunStoreIndexRefresh(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, name := range []string{"train-1", "train-2", "download-1"} {
		run := types.Run{Workflow: "train", Provider: "task", Status: types.StatusRunning}
		if err := store.PutRun(ctx, "myproject", name, run); err != nil {
			t.Fatal(err)
		}
	}

	index, err := store.GetIndex(ctx, "myproject", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(index.Runs) != 3 {
		t.Fatalf("index runs = %d, want 3", len(index.Runs))
	}
	// sorted by name
	if index.Runs[0].Name != "download-1" {
		t.Errorf("first run = %s, want download-1", index.Runs[0].Name)
	}
	if got := index.Runs[0].Annotations[types.AnnotationStatus]; got != types.StatusRunning {
		t.Errorf("status annotation = %s", got)
	}

	filtered, err := store.GetIndex(ctx, "myproject", "^train-")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered.Runs) != 2 {
		t.Errorf("filtered runs = %d, want 2", len(filtered.Runs))
	}

	global, err := store.GetGlobalIndex(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(global.Runs) != 1 || global.Runs[0].Name != "myproject" {
		t.Errorf("global index = %+v", global.Runs)
	}
}

func TestRunStoreSetStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := types.Run{Workflow: "train", Provider: "task", Status: types.StatusRunning}
	if err := store.PutRun(ctx, "myproject", "train-1", run); err != nil {
		t.Fatal(err)
	}
	if err := store.SetRunStatus(ctx, "myproject", "train-1", types.StatusStopped); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetRun(ctx, "myproject", "train-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusStopped {
		t.Errorf("status = %s, want stopped", got.Status)
	}
}

func TestRunStoreDeleteRunRemovesArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	content := []byte("artifact-bytes")
	dgst := digest.FromBytes(content)
	if err := store.PutArtifact(ctx, "myproject", dgst, BlobContent{
		Content:       io.NopCloser(bytes.NewReader(content)),
		ContentLength: int64(len(content)),
		ContentType:   types.MediaTypeArtifactDirTarGz,
	}); err != nil {
		t.Fatal(err)
	}

	run := types.Run{
		Workflow: "train",
		Provider: "task",
		Status:   types.StatusDone,
		Artifacts: []types.Descriptor{
			{Name: "output", MediaType: types.MediaTypeArtifactDirTarGz, Digest: dgst},
		},
	}
	if err := store.PutRun(ctx, "myproject", "train-1", run); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteRun(ctx, "myproject", "train-1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.ExistsRun(ctx, "myproject", "train-1"); ok {
		t.Error("run still exists after delete")
	}
	if ok, _ := store.ExistsArtifact(ctx, "myproject", dgst); ok {
		t.Error("artifact still exists after delete")
	}
}

func TestRunStoreArtifactRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	content := []byte("some-tgz-bytes")
	dgst := digest.FromBytes(content)
	if err := store.PutArtifact(ctx, "myproject", dgst, BlobContent{
		Content:       io.NopCloser(bytes.NewReader(content)),
		ContentLength: int64(len(content)),
		ContentType:   types.MediaTypeArtifactDirTarGz,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetArtifact(ctx, "myproject", dgst)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Close()
	raw, err := io.ReadAll(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, content) {
		t.Error("artifact content mismatch")
	}
	if got.ContentType != types.MediaTypeArtifactDirTarGz {
		t.Errorf("content type = %s", got.ContentType)
	}

	_, err = store.GetArtifact(ctx, "myproject", digest.FromString("other"))
	if !errors.IsErrCode(err, errors.ErrCodeArtifactUnknown) {
		t.Fatalf("expected artifact unknown, got %v", err)
	}
}

func TestRunStoreRedirectDisabled(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetArtifactLocation(context.Background(), "myproject", digest.FromString("x"))
	if !errors.IsErrCode(err, errors.ErrCodeUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}
