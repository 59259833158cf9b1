package images

import (
	"fmt"
	"strings"
)

const (
	BaseImageRepo = "dstackai/base"
	CudaVersion   = "12.1"
)

// Tag identifies one published base image:
// dstackai/base:py<python>-<version>[-<arch>][-cuda-<cuda>].
type Tag struct {
	Python  string
	Version string
	Arch    string
	Cuda    string
}

func (t Tag) String() string {
	tag := fmt.Sprintf("py%s-%s", t.Python, t.Version)
	if t.Arch != "" {
		tag += "-" + t.Arch
	}
	if t.Cuda != "" {
		tag += "-cuda-" + t.Cuda
	}
	return BaseImageRepo + ":" + tag
}

// BaseImage returns the image a job should run on. Cuda variants are
// selected when the job requests gpus.
func BaseImage(python string, version string, cuda bool) string {
	t := Tag{Python: python, Version: version}
	if cuda {
		t.Cuda = CudaVersion
	}
	return t.String()
}

func ParseTag(image string) (Tag, error) {
	repo, tag, found := strings.Cut(image, ":")
	if !found || repo != BaseImageRepo {
		return Tag{}, fmt.Errorf("not a base image: %s", image)
	}
	if !strings.HasPrefix(tag, "py") {
		return Tag{}, fmt.Errorf("invalid tag: %s", tag)
	}
	out := Tag{}
	rest := strings.TrimPrefix(tag, "py")
	if idx := strings.Index(rest, "-cuda-"); idx >= 0 {
		out.Cuda = rest[idx+len("-cuda-"):]
		rest = rest[:idx]
	}
	parts := strings.SplitN(rest, "-", 3)
	if len(parts) < 2 {
		return Tag{}, fmt.Errorf("invalid tag: %s", tag)
	}
	out.Python, out.Version = parts[0], parts[1]
	if len(parts) == 3 {
		out.Arch = parts[2]
	}
	if out.Python == "" || out.Version == "" {
		return Tag{}, fmt.Errorf("invalid tag: %s", tag)
	}
	return out, nil
}

// AMIName returns the machine image name published for a release. Cloud
// backends look images up by this name and pick the newest build.
func AMIName(version string, cuda bool) string {
	if cuda {
		return "dstack-cuda-" + version
	}
	return "dstack-" + version
}
