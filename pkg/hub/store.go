package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

const IndexFileName = "index.json"

// RunStore keeps run records, per-project indexes and artifact blobs on
// an FSProvider. Layout under the storage root:
//
//	<project>/runs/<name>          run record (json)
//	<project>/artifacts/<alg>/<hex> artifact blob
//	<project>/index.json           per-project index
//	index.json                     global index
type RunStore struct {
	Storage        FSProvider
	EnableRedirect bool
}

func RunPath(project, name string) string {
	return path.Join(project, "runs", name)
}

func ArtifactPath(project string, d digest.Digest) string {
	if d == "" {
		d = ":"
	}
	return path.Join(project, "artifacts", d.Algorithm().String(), d.Hex())
}

func IndexPath(project string) string {
	return path.Join(project, IndexFileName)
}

func (m *RunStore) ExistsRun(ctx context.Context, project, name string) (bool, error) {
	ok, err := m.Storage.Exists(ctx, RunPath(project, name))
	if err != nil {
		return false, errors.NewInternalError(err)
	}
	return ok, nil
}

func (m *RunStore) GetRun(ctx context.Context, project, name string) (*types.Run, error) {
	body, err := m.Storage.Get(ctx, RunPath(project, name))
	if err != nil {
		if IsStorageNotFound(err) {
			return nil, errors.NewRunUnknownError(name)
		}
		return nil, errors.NewInternalError(err)
	}
	defer body.Close()

	run := &types.Run{}
	if err := json.NewDecoder(body).Decode(run); err != nil {
		return nil, errors.NewRunInvalidError(err)
	}
	return run, nil
}

func (m *RunStore) PutRun(ctx context.Context, project, name string, run types.Run) error {
	run.Name = name
	run.Project = project
	content, err := json.Marshal(run)
	if err != nil {
		return errors.NewRunInvalidError(err)
	}
	blob := BlobContent{
		Content:       io.NopCloser(bytes.NewReader(content)),
		ContentLength: int64(len(content)),
		ContentType:   types.MediaTypeRunJson,
	}
	if err := m.Storage.Put(ctx, RunPath(project, name), blob); err != nil {
		return errors.NewInternalError(err)
	}
	return m.RefreshIndex(ctx, project)
}

func (m *RunStore) SetRunStatus(ctx context.Context, project, name, status string) error {
	run, err := m.GetRun(ctx, project, name)
	if err != nil {
		return err
	}
	run.Status = status
	return m.PutRun(ctx, project, name, *run)
}

func (m *RunStore) DeleteRun(ctx context.Context, project, name string) error {
	run, err := m.GetRun(ctx, project, name)
	if err != nil {
		return err
	}
	for _, artifact := range run.Artifacts {
		if artifact.Digest == "" {
			continue
		}
		if err := m.Storage.Remove(ctx, ArtifactPath(project, artifact.Digest), false); err != nil && !IsStorageNotFound(err) {
			return errors.NewInternalError(err)
		}
	}
	if err := m.Storage.Remove(ctx, RunPath(project, name), false); err != nil {
		return errors.NewInternalError(err)
	}
	return m.RefreshIndex(ctx, project)
}

// GetIndex returns the per-project index, optionally filtered by a
// search regexp over run names.
func (m *RunStore) GetIndex(ctx context.Context, project string, search string) (types.Index, error) {
	body, err := m.Storage.Get(ctx, IndexPath(project))
	if err != nil {
		if IsStorageNotFound(err) {
			return types.Index{}, errors.NewProjectUnknownError(project)
		}
		return types.Index{}, errors.NewInternalError(err)
	}
	defer body.Close()

	var index types.Index
	if err := json.NewDecoder(body).Decode(&index); err != nil {
		return types.Index{}, errors.NewInternalError(err)
	}
	if search != "" {
		index.Runs, err = filterDescriptors(index.Runs, search)
		if err != nil {
			return types.Index{}, err
		}
	}
	return index, nil
}

func (m *RunStore) PutIndex(ctx context.Context, project string, index types.Index) error {
	slices.SortFunc(index.Runs, types.SortDescriptorName)
	index.SchemaVersion = 1
	index.MediaType = types.MediaTypeIndexJson

	content, err := json.Marshal(index)
	if err != nil {
		return errors.NewInternalError(err)
	}
	blob := BlobContent{
		Content:       io.NopCloser(bytes.NewReader(content)),
		ContentLength: int64(len(content)),
		ContentType:   types.MediaTypeIndexJson,
	}
	if err := m.Storage.Put(ctx, IndexPath(project), blob); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

// RefreshIndex rebuilds the project index from the stored run records
// and then refreshes the global index.
func (m *RunStore) RefreshIndex(ctx context.Context, project string) error {
	filemetas, err := m.Storage.List(ctx, path.Join(project, "runs"), false)
	if err != nil {
		return errors.NewInternalError(err)
	}

	eg := errgroup.Group{}
	runs := sync.Map{}
	for _, meta := range filemetas {
		meta := meta
		eg.Go(func() error {
			run, err := m.GetRun(ctx, project, meta.Name)
			if err != nil {
				return err
			}
			desc := types.Descriptor{
				Name:      meta.Name,
				MediaType: types.MediaTypeRunJson,
				Size:      meta.Size,
				Modified:  meta.LastModified,
				Annotations: map[string]string{
					types.AnnotationWorkflow: run.Workflow,
					types.AnnotationProvider: run.Provider,
					types.AnnotationStatus:   run.Status,
				},
			}
			runs.Store(meta.Name, desc)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.NewInternalError(err)
	}

	index := types.Index{}
	runs.Range(func(key, value any) bool {
		index.Runs = append(index.Runs, value.(types.Descriptor))
		return true
	})
	if err := m.PutIndex(ctx, project, index); err != nil {
		return err
	}
	return m.RefreshGlobalIndex(ctx)
}

func (m *RunStore) GetGlobalIndex(ctx context.Context, search string) (types.Index, error) {
	body, err := m.Storage.Get(ctx, IndexPath(""))
	if err != nil {
		if IsStorageNotFound(err) {
			return types.Index{SchemaVersion: 1, MediaType: types.MediaTypeIndexJson}, nil
		}
		return types.Index{}, errors.NewInternalError(err)
	}
	defer body.Close()

	var index types.Index
	if err := json.NewDecoder(body).Decode(&index); err != nil {
		return types.Index{}, errors.NewInternalError(err)
	}
	if search != "" {
		index.Runs, err = filterDescriptors(index.Runs, search)
		if err != nil {
			return types.Index{}, err
		}
	}
	return index, nil
}

// RefreshGlobalIndex lists every project index and aggregates them into
// one descriptor per project.
func (m *RunStore) RefreshGlobalIndex(ctx context.Context) error {
	filemetas, err := m.Storage.List(ctx, "", true)
	if err != nil {
		return errors.NewInternalError(err)
	}

	eg := errgroup.Group{}
	projects := sync.Map{}
	for _, meta := range filemetas {
		if meta.Name == IndexFileName || path.Base(meta.Name) != IndexFileName {
			continue
		}
		project := path.Dir(meta.Name)
		eg.Go(func() error {
			index, err := m.GetIndex(ctx, project, "")
			if err != nil {
				return err
			}
			desc := types.Descriptor{
				Name:        project,
				MediaType:   types.MediaTypeIndexJson,
				Annotations: index.Annotations,
			}
			projects.Store(project, desc)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.NewInternalError(err)
	}

	index := types.Index{}
	projects.Range(func(key, value any) bool {
		index.Runs = append(index.Runs, value.(types.Descriptor))
		return true
	})
	return m.PutIndex(ctx, "", index)
}

func (m *RunStore) ExistsArtifact(ctx context.Context, project string, d digest.Digest) (bool, error) {
	ok, err := m.Storage.Exists(ctx, ArtifactPath(project, d))
	if err != nil {
		return false, errors.NewInternalError(err)
	}
	return ok, nil
}

func (m *RunStore) PutArtifact(ctx context.Context, project string, d digest.Digest, content BlobContent) error {
	if err := m.Storage.Put(ctx, ArtifactPath(project, d), content); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func (m *RunStore) GetArtifact(ctx context.Context, project string, d digest.Digest) (BlobContent, error) {
	content, err := m.Storage.Get(ctx, ArtifactPath(project, d))
	if err != nil {
		if IsStorageNotFound(err) {
			return BlobContent{}, errors.NewArtifactUnknownError(d)
		}
		return BlobContent{}, errors.NewInternalError(err)
	}
	return content, nil
}

// GetArtifactLocation returns a URL the client can use directly. An
// unsupported error tells the caller to stream through the hub instead.
func (m *RunStore) GetArtifactLocation(ctx context.Context, project string, d digest.Digest) (string, error) {
	if !m.EnableRedirect {
		return "", errors.NewUnsupportedError("redirect disabled")
	}
	return m.Storage.GetLocation(ctx, ArtifactPath(project, d))
}

func (m *RunStore) PutArtifactLocation(ctx context.Context, project string, d digest.Digest) (string, error) {
	if !m.EnableRedirect {
		return "", errors.NewUnsupportedError("redirect disabled")
	}
	return m.Storage.PutLocation(ctx, ArtifactPath(project, d))
}

func filterDescriptors(descs []types.Descriptor, search string) ([]types.Descriptor, error) {
	searchregexp, err := regexp.Compile(search)
	if err != nil {
		return nil, errors.NewParameterInvalidError(fmt.Sprintf("search %s: %v", search, err))
	}
	filtered := []types.Descriptor{}
	for _, desc := range descs {
		if searchregexp.MatchString(desc.Name) {
			filtered = append(filtered, desc)
		}
	}
	return filtered, nil
}
