package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/tnissen375/dstack/pkg/types"
)

const PushConcurrency = 5

var EmptyFileDigest = digest.Canonical.FromBytes(nil)

func newProgressWriter() progress.Writer {
	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stdout)
	pw.SetTrackerLength(40)
	pw.SetAutoStop(false)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = true
	return pw
}

type trackedReader struct {
	reader  io.ReadCloser
	tracker *progress.Tracker
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.reader.Read(p)
	t.tracker.Increment(int64(n))
	return n, err
}

func (t *trackedReader) Close() error {
	return t.reader.Close()
}

// PushArtifacts uploads each artifact of the run the hub does not have
// yet, directories as tar.gz archives and plain files as is, then
// updates the run record with the resulting descriptors.
func (c Client) PushArtifacts(ctx context.Context, project string, run *types.Run, basedir string) error {
	artifacts := []types.Artifact{}
	for _, job := range run.Jobs {
		artifacts = append(artifacts, job.Artifacts...)
	}
	if len(artifacts) == 0 {
		return nil
	}

	pw := newProgressWriter()
	go pw.Render()
	defer pw.Stop()

	descs := make([]types.Descriptor, len(artifacts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(PushConcurrency)
	for i, artifact := range artifacts {
		i, artifact := i, artifact
		eg.Go(func() error {
			desc, err := c.pushArtifact(ctx, project, basedir, artifact, pw)
			if err != nil {
				return err
			}
			descs[i] = *desc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	slices.SortFunc(descs, types.SortDescriptorName)
	run.Artifacts = descs
	return c.Remote.PutRun(ctx, project, run.Name, *run)
}

// pushArtifact uploads one artifact path: directories as tar.gz
// archives, plain files digested in place.
func (c Client) pushArtifact(ctx context.Context, project string, basedir string, artifact types.Artifact, pw progress.Writer) (*types.Descriptor, error) {
	entry := filepath.Join(basedir, artifact.Path)
	fi, err := os.Stat(entry)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return c.pushArtifactDirectory(ctx, project, basedir, artifact, fi, pw)
	}
	return c.pushArtifactFile(ctx, project, entry, artifact, fi, pw)
}

func (c Client) pushArtifactFile(ctx context.Context, project string, entry string, artifact types.Artifact, fi os.FileInfo, pw progress.Writer) (*types.Descriptor, error) {
	f, err := os.Open(entry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dgst, err := digest.Canonical.FromReader(f)
	if err != nil {
		return nil, err
	}
	desc := types.Descriptor{
		Name:      artifact.Path,
		MediaType: types.MediaTypeArtifactFile,
		Digest:    dgst,
		Size:      fi.Size(),
		Mode:      fi.Mode(),
		Modified:  fi.ModTime(),
	}

	exist, err := c.Remote.HeadArtifact(ctx, project, dgst)
	if err != nil {
		return nil, err
	}
	if exist {
		return &desc, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	tracker := &progress.Tracker{
		Message: artifact.Path,
		Total:   desc.Size,
		Units:   progress.UnitsBytes,
	}
	pw.AppendTracker(tracker)

	body := &trackedReader{reader: f, tracker: tracker}
	if err := c.Remote.UploadArtifact(ctx, project, desc, body); err != nil {
		tracker.MarkAsErrored()
		return nil, err
	}
	tracker.MarkAsDone()
	return &desc, nil
}

func (c Client) pushArtifactDirectory(ctx context.Context, project string, basedir string, artifact types.Artifact, fi os.FileInfo, pw progress.Writer) (*types.Descriptor, error) {
	entrydir := filepath.Join(basedir, artifact.Path)

	tgzfile := filepath.Join(basedir, ".dstack", "cache", artifact.Path+".tar.gz")
	dgst, err := TGZ(ctx, entrydir, tgzfile)
	if err != nil {
		return nil, err
	}
	tgzfi, err := os.Stat(tgzfile)
	if err != nil {
		return nil, err
	}

	desc := types.Descriptor{
		Name:      artifact.Path,
		MediaType: types.MediaTypeArtifactDirTarGz,
		Digest:    dgst,
		Size:      tgzfi.Size(),
		Mode:      fi.Mode(),
		Modified:  fi.ModTime(),
	}

	exist, err := c.Remote.HeadArtifact(ctx, project, dgst)
	if err != nil {
		return nil, err
	}
	if exist {
		return &desc, nil
	}

	f, err := os.Open(tgzfile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tracker := &progress.Tracker{
		Message: artifact.Path,
		Total:   desc.Size,
		Units:   progress.UnitsBytes,
	}
	pw.AppendTracker(tracker)

	body := &trackedReader{reader: f, tracker: tracker}
	if err := c.Remote.UploadArtifact(ctx, project, desc, body); err != nil {
		tracker.MarkAsErrored()
		return nil, err
	}
	tracker.MarkAsDone()
	return &desc, nil
}

// PullArtifacts downloads every artifact of a run into the target
// directory, skipping archives whose content is already present.
func (c Client) PullArtifacts(ctx context.Context, project string, name string, into string) error {
	run, err := c.Remote.GetRun(ctx, project, name)
	if err != nil {
		return err
	}
	if dirInfo, err := os.Stat(into); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(into, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %v", into, err)
		}
	} else if !dirInfo.IsDir() {
		return fmt.Errorf("%s is not a directory", into)
	}

	pw := newProgressWriter()
	go pw.Render()
	defer pw.Stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(PushConcurrency)
	for _, desc := range run.Artifacts {
		desc := desc
		eg.Go(func() error {
			if desc.MediaType == types.MediaTypeArtifactFile {
				return c.pullArtifactFile(ctx, project, desc, into, pw)
			}
			return c.pullArtifactDirectory(ctx, project, desc, into, pw)
		})
	}
	return eg.Wait()
}

func (c Client) pullArtifactFile(ctx context.Context, project string, desc types.Descriptor, basedir string, pw progress.Writer) error {
	intofile := filepath.Join(basedir, desc.Name)
	if f, err := os.Open(intofile); err == nil {
		local, derr := digest.Canonical.FromReader(f)
		f.Close()
		if derr == nil && local == desc.Digest {
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(intofile), 0o755); err != nil {
		return err
	}

	content, contentlen, err := c.Remote.GetArtifact(ctx, project, desc.Digest)
	if err != nil {
		return err
	}
	defer content.Close()

	mode := desc.Mode
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(intofile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if contentlen <= 0 {
		contentlen = desc.Size
	}
	tracker := &progress.Tracker{
		Message: desc.Name,
		Total:   contentlen,
		Units:   progress.UnitsBytes,
	}
	pw.AppendTracker(tracker)

	src := &trackedReader{reader: content, tracker: tracker}
	if _, err := io.Copy(out, src); err != nil {
		tracker.MarkAsErrored()
		return err
	}
	tracker.MarkAsDone()
	return nil
}

func (c Client) pullArtifactDirectory(ctx context.Context, project string, desc types.Descriptor, basedir string, pw progress.Writer) error {
	intodir := filepath.Join(basedir, desc.Name)
	if local, err := TGZ(ctx, intodir, ""); err == nil && local == desc.Digest {
		return nil
	}

	if desc.Digest == EmptyFileDigest {
		return os.MkdirAll(intodir, 0o755)
	}

	content, contentlen, err := c.Remote.GetArtifact(ctx, project, desc.Digest)
	if err != nil {
		return err
	}
	defer content.Close()

	if contentlen <= 0 {
		contentlen = desc.Size
	}
	tracker := &progress.Tracker{
		Message: desc.Name,
		Total:   contentlen,
		Units:   progress.UnitsBytes,
	}
	pw.AppendTracker(tracker)

	src := &trackedReader{reader: content, tracker: tracker}
	if err := c.UnTGZInto(ctx, intodir, src); err != nil {
		tracker.MarkAsErrored()
		return err
	}
	tracker.MarkAsDone()
	return nil
}

func (c Client) UnTGZInto(ctx context.Context, intodir string, src io.Reader) error {
	if err := os.MkdirAll(intodir, 0o755); err != nil {
		return err
	}
	return UnTGZ(ctx, intodir, src)
}
