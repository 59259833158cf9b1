package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	storage, err := NewLocalFSProvider(&Local{Basepath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	sequence, err := OpenRunNameSequence(filepath.Join(t.TempDir(), "sequence"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sequence.Close() })
	return &Hub{
		Store:    &RunStore{Storage: storage},
		Sequence: sequence,
	}
}

func TestHubHealthz(t *testing.T) {
	server := httptest.NewServer(newTestHub(t).route())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHubRunLifecycle(t *testing.T) {
	server := httptest.NewServer(newTestHub(t).route())
	defer server.Close()
	client := server.Client()

	// allocate a name
	resp, err := client.Post(server.URL+"/myproject/runs?workflow=train", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	var allocated types.Run
	if err := json.NewDecoder(resp.Body).Decode(&allocated); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if allocated.Name != "train-1" {
		t.Fatalf("allocated name = %s", allocated.Name)
	}

	// submit the run record
	run := types.Run{Workflow: "train", Provider: "task", Status: types.StatusSubmitted}
	raw, _ := json.Marshal(run)
	req, _ := http.NewRequest(http.MethodPut, server.URL+"/myproject/runs/train-1", bytes.NewReader(raw))
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("put run status = %d", resp.StatusCode)
	}

	// fetch it back
	resp, err = client.Get(server.URL + "/myproject/runs/train-1")
	if err != nil {
		t.Fatal(err)
	}
	var got types.Run
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got.Name != "train-1" || got.Workflow != "train" {
		t.Errorf("run = %+v", got)
	}

	// stop it
	resp, err = client.Post(server.URL+"/myproject/runs/train-1?status=stopped", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status = %d", resp.StatusCode)
	}

	// project index reflects the status
	resp, err = client.Get(server.URL + "/myproject/index")
	if err != nil {
		t.Fatal(err)
	}
	var index types.Index
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(index.Runs) != 1 || index.Runs[0].Annotations[types.AnnotationStatus] != types.StatusStopped {
		t.Errorf("index = %+v", index.Runs)
	}

	// delete
	req, _ = http.NewRequest(http.MethodDelete, server.URL+"/myproject/runs/train-1", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
}

func TestHubRunNotFound(t *testing.T) {
	server := httptest.NewServer(newTestHub(t).route())
	defer server.Close()

	resp, err := http.Get(server.URL + "/myproject/runs/missing-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var info errors.ErrorInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Code != errors.ErrCodeRunUnknown {
		t.Errorf("code = %s", info.Code)
	}
}

func TestHubArtifactUpload(t *testing.T) {
	server := httptest.NewServer(newTestHub(t).route())
	defer server.Close()
	client := server.Client()

	content := []byte("tgz-bytes")
	dgst := digest.FromBytes(content)

	// missing before upload
	req, _ := http.NewRequest(http.MethodHead, server.URL+"/myproject/artifacts/"+dgst.String(), nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("head before upload = %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPut, server.URL+"/myproject/artifacts/"+dgst.String(), bytes.NewReader(content))
	req.Header.Set("Content-Type", types.MediaTypeArtifactDirTarGz)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("put artifact = %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodHead, server.URL+"/myproject/artifacts/"+dgst.String(), nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("head after upload = %d", resp.StatusCode)
	}

	resp, err = client.Get(server.URL + "/myproject/artifacts/" + dgst.String())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get artifact = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(body, content) {
		t.Error("artifact content mismatch")
	}
}

func TestHubInvalidDigest(t *testing.T) {
	server := httptest.NewServer(newTestHub(t).route())
	defer server.Close()

	// non-hex encoding never matches the route pattern
	resp, err := http.Get(server.URL + "/myproject/artifacts/sha256:zzzz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	// 32 hex chars pass the route pattern but are too short for sha256
	short := "sha256:" + strings.Repeat("ab", 16)
	resp, err = http.Get(server.URL + "/myproject/artifacts/" + short)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var info errors.ErrorInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Code != errors.ErrCodeDigestInvalid {
		t.Errorf("code = %s", info.Code)
	}
}

func TestNewHubSequencePath(t *testing.T) {
	opts := DefaultOptions()
	opts.S3 = nil
	opts.Local = &Local{Basepath: t.TempDir()}
	opts.SequencePath = filepath.Join(t.TempDir(), "sequence")

	h, err := NewHub(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Sequence.Close()

	name, err := h.Sequence.Next("myproject", "train")
	if err != nil {
		t.Fatal(err)
	}
	if name != "train-1" {
		t.Errorf("name = %s", name)
	}
	if _, err := os.Stat(opts.SequencePath); err != nil {
		t.Errorf("sequence db not at configured path: %v", err)
	}
}
