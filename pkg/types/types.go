package types

import (
	"io/fs"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

const (
	MediaTypeIndexJson         = "application/vnd.dstack.index.v1.json"
	MediaTypeRunJson           = "application/vnd.dstack.run.v1.json"
	MediaTypeArtifactFile      = "application/vnd.dstack.artifact.file.v1"
	MediaTypeArtifactDirTarGz  = "application/vnd.dstack.artifact.directory.v1.tar+gz"
	MediaTypeWorkflowsFileYaml = "application/vnd.dstack.workflows.v1.yaml"
)

const (
	AnnotationWorkflow = "dstack.run.workflow"
	AnnotationProvider = "dstack.run.provider"
	AnnotationStatus   = "dstack.run.status"
)

// Run status strings stored in run records. The hub records what it is
// told; it does not drive transitions.
const (
	StatusSubmitted = "submitted"
	StatusRunning   = "running"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusStopped   = "stopped"
)

type Descriptor struct {
	Name        string            `json:"name"`
	MediaType   string            `json:"mediaType,omitempty"`
	Digest      digest.Digest     `json:"digest,omitempty"`
	Size        int64             `json:"size,omitempty"`
	Mode        fs.FileMode       `json:"mode,omitempty"`
	Modified    time.Time         `json:"modified,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func SortDescriptorName(a, b Descriptor) bool {
	return strings.Compare(a.Name, b.Name) < 0
}

type Index struct {
	SchemaVersion int               `json:"schemaVersion"`
	MediaType     string            `json:"mediaType,omitempty"`
	Runs          []Descriptor      `json:"runs"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

// Run is the metadata record the hub stores for a submitted run.
type Run struct {
	Name        string            `json:"name"`
	Project     string            `json:"project,omitempty"`
	Workflow    string            `json:"workflow"`
	Provider    string            `json:"provider"`
	Status      string            `json:"status"`
	SubmittedAt time.Time         `json:"submittedAt,omitempty"`
	Jobs        []JobSpec         `json:"jobs,omitempty"`
	Artifacts   []Descriptor      `json:"artifacts,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// JobSpec is what a provider emits for a workflow: everything a compute
// backend needs to start the job.
type JobSpec struct {
	Image        string            `json:"image"`
	Commands     []string          `json:"commands,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	WorkingDir   string            `json:"workingDir,omitempty"`
	PortCount    int               `json:"portCount,omitempty"`
	Artifacts    []Artifact        `json:"artifacts,omitempty"`
	Requirements *Requirements     `json:"requirements,omitempty"`
	Apps         []AppSpec         `json:"apps,omitempty"`
}

// AppSpec describes a user-facing endpoint exposed by a job, e.g. a
// notebook or IDE bound to one of the job ports.
type AppSpec struct {
	PortIndex      int               `json:"portIndex"`
	Name           string            `json:"name"`
	URLQueryParams map[string]string `json:"urlQueryParams,omitempty"`
}
