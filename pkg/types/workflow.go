package types

import (
	"encoding/json"
	"fmt"

	"github.com/tnissen375/dstack/pkg/units"
)

// WorkflowsFile is the parsed form of .dstack/workflows.yaml.
type WorkflowsFile struct {
	Workflows []Workflow `json:"workflows"`
}

type Workflow struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Help     string `json:"help,omitempty"`

	Deps      []string   `json:"deps,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Resources *Resources `json:"resources,omitempty"`

	// provider fields
	Python       string            `json:"python,omitempty"`
	Version      string            `json:"version,omitempty"`
	Requirements string            `json:"requirements,omitempty"`
	Environment  map[string]string `json:"environment,omitempty"`
	Commands     []string          `json:"commands,omitempty"`
	BeforeRun    []string          `json:"before_run,omitempty"`
	WorkingDir   string            `json:"working_dir,omitempty"`
	Ports        int               `json:"ports,omitempty"`
	Port         int               `json:"port,omitempty"`
}

type Artifact struct {
	Path  string `json:"path"`
	Mount bool   `json:"mount,omitempty"`
}

type Resources struct {
	CPU           int    `json:"cpu,omitempty"`
	Memory        string `json:"memory,omitempty"`
	GPU           *GPU   `json:"gpu,omitempty"`
	ShmSize       string `json:"shm_size,omitempty"`
	Interruptible bool   `json:"interruptible,omitempty"`
	Local         bool   `json:"local,omitempty"`
}

type GPU struct {
	Name   string `json:"name,omitempty"`
	Count  int    `json:"count,omitempty"`
	Memory string `json:"memory,omitempty"`
}

// UnmarshalJSON accepts both the short form `gpu: 1` and the object form
// `gpu: {name: V100, count: 4}`.
func (g *GPU) UnmarshalJSON(data []byte) error {
	var count int
	if err := json.Unmarshal(data, &count); err == nil {
		g.Count = count
		return nil
	}
	type plain GPU
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*g = GPU(p)
	return nil
}

// Requirements is the resolved form of Resources with sizes in bytes.
type Requirements struct {
	CPUs          int    `json:"cpus,omitempty"`
	Memory        int64  `json:"memory,omitempty"`
	GPUCount      int    `json:"gpuCount,omitempty"`
	GPUName       string `json:"gpuName,omitempty"`
	GPUMemory     int64  `json:"gpuMemory,omitempty"`
	ShmSize       int64  `json:"shmSize,omitempty"`
	Interruptible bool   `json:"interruptible,omitempty"`
	Local         bool   `json:"local,omitempty"`
}

// Parse resolves the declared resources to byte-exact requirements. A gpu
// block without an explicit count requests one gpu.
func (r *Resources) Parse() (*Requirements, error) {
	if r == nil {
		return nil, nil
	}
	req := &Requirements{
		CPUs:          r.CPU,
		Interruptible: r.Interruptible,
		Local:         r.Local,
	}
	if r.CPU < 0 {
		return nil, fmt.Errorf("cpu count must not be negative")
	}
	if r.Memory != "" {
		mem, err := units.RAMInBytes(r.Memory)
		if err != nil {
			return nil, fmt.Errorf("memory: %w", err)
		}
		req.Memory = mem
	}
	if r.ShmSize != "" {
		shm, err := units.RAMInBytes(r.ShmSize)
		if err != nil {
			return nil, fmt.Errorf("shm_size: %w", err)
		}
		req.ShmSize = shm
	}
	if r.GPU != nil {
		req.GPUCount = r.GPU.Count
		if req.GPUCount == 0 {
			req.GPUCount = 1
		}
		if req.GPUCount < 0 {
			return nil, fmt.Errorf("gpu count must not be negative")
		}
		req.GPUName = r.GPU.Name
		if r.GPU.Memory != "" {
			gpumem, err := units.RAMInBytes(r.GPU.Memory)
			if err != nil {
				return nil, fmt.Errorf("gpu memory: %w", err)
			}
			req.GPUMemory = gpumem
		}
	}
	return req, nil
}
