package hub

import (
	"context"
	"encoding/json"
	"io"
	"os"
	iopath "path"
	"path/filepath"
	"strings"

	dstackerrors "github.com/tnissen375/dstack/pkg/errors"
)

const (
	DefaultFileMode = 0o644
	DefaultDirMode  = 0o755
)

var _ FSProvider = &LocalFSProvider{}

// LocalFSProvider stores objects as plain files with a .meta sidecar
// holding the content type.
type LocalFSProvider struct {
	basepath string
}

func NewLocalFSProvider(opts *Local) (*LocalFSProvider, error) {
	if err := os.MkdirAll(opts.Basepath, DefaultDirMode); err != nil {
		return nil, err
	}
	return &LocalFSProvider{basepath: opts.Basepath}, nil
}

type localFileMeta struct {
	ContentType     string `json:"contentType,omitempty"`
	ContentLength   int64  `json:"contentLength,omitempty"`
	ContentEncoding string `json:"contentEncoding,omitempty"`
}

func (f *LocalFSProvider) Put(ctx context.Context, path string, content BlobContent) error {
	if err := f.writemeta(path, content); err != nil {
		return err
	}
	return f.writedata(path, content)
}

func (f *LocalFSProvider) PutLocation(ctx context.Context, path string) (string, error) {
	return "", dstackerrors.NewUnsupportedError("PutLocation is not supported for local filesystem")
}

func (f *LocalFSProvider) Get(ctx context.Context, path string) (BlobContent, error) {
	meta, err := f.readmeta(path)
	if err != nil {
		return BlobContent{}, err
	}
	stream, err := os.Open(iopath.Join(f.basepath, path))
	if err != nil {
		return BlobContent{}, err
	}
	return BlobContent{
		ContentType:     meta.ContentType,
		ContentLength:   meta.ContentLength,
		ContentEncoding: meta.ContentEncoding,
		Content:         stream,
	}, nil
}

func (f *LocalFSProvider) GetLocation(ctx context.Context, path string) (string, error) {
	return "", dstackerrors.NewUnsupportedError("GetLocation is not supported for local filesystem")
}

func (f *LocalFSProvider) Remove(ctx context.Context, path string, recursive bool) error {
	if recursive {
		return os.RemoveAll(iopath.Join(f.basepath, path))
	}
	if err := os.Remove(iopath.Join(f.basepath, path)); err != nil {
		return err
	}
	os.Remove(iopath.Join(f.basepath, path+".meta"))
	return nil
}

func (f *LocalFSProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(iopath.Join(f.basepath, path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (f *LocalFSProvider) List(ctx context.Context, path string, recursive bool) ([]FsObjectMeta, error) {
	out := []FsObjectMeta{}
	if recursive {
		root := iopath.Join(f.basepath, path)
		err := filepath.WalkDir(root, func(walked string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipAll
				}
				return err
			}
			if d.IsDir() || strings.HasSuffix(walked, ".meta") {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, walked)
			if err != nil {
				return err
			}
			out = append(out, FsObjectMeta{
				Name:         filepath.ToSlash(rel),
				Size:         fi.Size(),
				LastModified: fi.ModTime(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	files, err := os.ReadDir(iopath.Join(f.basepath, path))
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	for _, fi := range files {
		if fi.IsDir() || strings.HasSuffix(fi.Name(), ".meta") {
			continue
		}
		finfo, err := fi.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, FsObjectMeta{
			Name:         fi.Name(),
			Size:         finfo.Size(),
			LastModified: finfo.ModTime(),
		})
	}
	return out, nil
}

func (f *LocalFSProvider) writemeta(path string, content BlobContent) error {
	meta := localFileMeta{
		ContentType:     content.ContentType,
		ContentLength:   content.ContentLength,
		ContentEncoding: content.ContentEncoding,
	}
	jsonData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	metafile := iopath.Join(f.basepath, path+".meta")
	if err := os.MkdirAll(iopath.Dir(metafile), DefaultDirMode); err != nil {
		return err
	}
	return os.WriteFile(metafile, jsonData, DefaultFileMode)
}

func (f *LocalFSProvider) writedata(path string, content BlobContent) error {
	datafile := iopath.Join(f.basepath, path)
	fi, err := os.OpenFile(datafile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, DefaultFileMode)
	if err != nil {
		return err
	}
	defer fi.Close()
	_, err = io.Copy(fi, content.Content)
	return err
}

func (f *LocalFSProvider) readmeta(path string) (*localFileMeta, error) {
	raw, err := os.ReadFile(iopath.Join(f.basepath, path+".meta"))
	if err != nil {
		return nil, err
	}
	var meta localFileMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
