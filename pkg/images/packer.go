package images

import (
	"encoding/json"
	"fmt"
	"os"
)

// Versions mirrors the versions.json variable file fed to the machine
// image builds: which python versions are baked in and which cuda
// toolkit the gpu variant carries.
type Versions struct {
	PythonVersions []string `json:"python_versions"`
	CudaVersion    string   `json:"cuda_version"`
	ImageVersion   string   `json:"image_version"`
}

// BuildVars mirrors the per-cloud variable files (e.g. aws-vars-prod.json)
// that parameterize a publish.
type BuildVars struct {
	ImageVersion string `json:"image_version"`
	BuildPrefix  string `json:"build_prefix,omitempty"`
	Region       string `json:"region,omitempty"`
	Staging      bool   `json:"staging,omitempty"`
}

func LoadVersions(path string) (*Versions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v := &Versions{}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(v.PythonVersions) == 0 {
		return nil, fmt.Errorf("%s: no python versions", path)
	}
	return v, nil
}

func (v *Versions) Save(path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func LoadBuildVars(path string) (*BuildVars, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v := &BuildVars{}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if v.ImageVersion == "" {
		return nil, fmt.Errorf("%s: image_version not set", path)
	}
	return v, nil
}

func (v *BuildVars) Save(path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Tags expands the version matrix to every docker tag a release publishes.
func (v *Versions) Tags() []Tag {
	tags := make([]Tag, 0, 2*len(v.PythonVersions))
	for _, py := range v.PythonVersions {
		tags = append(tags,
			Tag{Python: py, Version: v.ImageVersion},
			Tag{Python: py, Version: v.ImageVersion, Cuda: v.CudaVersion},
		)
	}
	return tags
}
