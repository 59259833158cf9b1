package client

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/hub"
	"github.com/tnissen375/dstack/pkg/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	storage, err := hub.NewLocalFSProvider(&hub.Local{Basepath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	sequence, err := hub.OpenRunNameSequence(filepath.Join(t.TempDir(), "sequence"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sequence.Close() })
	h := &hub.Hub{
		Store:    &hub.RunStore{Storage: storage},
		Sequence: sequence,
	}
	server := httptest.NewServer(h.Handler())
	t.Cleanup(server.Close)
	return server, NewClient(server.URL, "", false)
}

func TestClientSubmitAndStop(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	name, err := c.SubmitRun(ctx, "myproject", types.Run{
		Workflow: "train",
		Provider: "task",
		Status:   types.StatusSubmitted,
	})
	if err != nil {
		t.Fatal(err)
	}
	if name != "train-1" {
		t.Fatalf("name = %s", name)
	}

	run, err := c.GetRun(ctx, "myproject", name)
	if err != nil {
		t.Fatal(err)
	}
	if run.Workflow != "train" || run.Status != types.StatusSubmitted {
		t.Errorf("run = %+v", run)
	}

	if err := c.StopRun(ctx, "myproject", name); err != nil {
		t.Fatal(err)
	}
	run, err = c.GetRun(ctx, "myproject", name)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != types.StatusStopped {
		t.Errorf("status = %s", run.Status)
	}

	index, err := c.GetIndex(ctx, "myproject", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(index.Runs) != 1 {
		t.Errorf("index runs = %d", len(index.Runs))
	}
}

func TestClientErrorDecoding(t *testing.T) {
	_, c := newTestServer(t)

	_, err := c.GetRun(context.Background(), "myproject", "missing-1")
	if !errors.IsErrCode(err, errors.ErrCodeRunUnknown) {
		t.Fatalf("expected run unknown, got %v", err)
	}
	info := errors.ErrorInfo{}
	if !stderrors.As(err, &info) {
		t.Fatal("error is not an ErrorInfo")
	}
	if info.HttpStatus != http.StatusNotFound {
		t.Errorf("http status = %d", info.HttpStatus)
	}
}

func TestClientPushPullFileArtifact(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	basedir := t.TempDir()
	if err := os.WriteFile(filepath.Join(basedir, "model.bin"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	name, err := c.SubmitRun(ctx, "myproject", types.Run{
		Workflow: "train",
		Provider: "task",
		Status:   types.StatusDone,
		Jobs: []types.JobSpec{
			{Image: "dstackai/base:py3.10-0.1", Artifacts: []types.Artifact{{Path: "model.bin"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	run, err := c.GetRun(ctx, "myproject", name)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PushArtifacts(ctx, "myproject", run, basedir); err != nil {
		t.Fatal(err)
	}
	if len(run.Artifacts) != 1 {
		t.Fatalf("artifacts = %+v", run.Artifacts)
	}
	if run.Artifacts[0].MediaType != types.MediaTypeArtifactFile {
		t.Errorf("media type = %s", run.Artifacts[0].MediaType)
	}
	if run.Artifacts[0].Size != int64(len("weights")) {
		t.Errorf("size = %d", run.Artifacts[0].Size)
	}

	into := t.TempDir()
	if err := c.PullArtifacts(ctx, "myproject", name, into); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(into, "model.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "weights" {
		t.Errorf("pulled content = %q", raw)
	}

	// a second pull finds the digest already present and leaves the file
	if err := c.PullArtifacts(ctx, "myproject", name, into); err != nil {
		t.Fatal(err)
	}
}

func TestClientPushPullArtifacts(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	basedir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(basedir, "output"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(basedir, "output", "model.bin"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	name, err := c.SubmitRun(ctx, "myproject", types.Run{
		Workflow: "train",
		Provider: "task",
		Status:   types.StatusDone,
		Jobs: []types.JobSpec{
			{Image: "dstackai/base:py3.10-0.1", Artifacts: []types.Artifact{{Path: "output"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	run, err := c.GetRun(ctx, "myproject", name)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PushArtifacts(ctx, "myproject", run, basedir); err != nil {
		t.Fatal(err)
	}
	if len(run.Artifacts) != 1 || run.Artifacts[0].Name != "output" {
		t.Fatalf("artifacts = %+v", run.Artifacts)
	}
	if run.Artifacts[0].Digest == "" {
		t.Fatal("artifact digest not set")
	}

	into := t.TempDir()
	if err := c.PullArtifacts(ctx, "myproject", name, into); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(into, "output", "model.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "weights" {
		t.Errorf("pulled content = %q", raw)
	}
}
