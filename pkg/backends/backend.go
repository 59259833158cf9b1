package backends

import (
	"context"

	"github.com/tnissen375/dstack/pkg/types"
)

// LaunchRequest is what a backend needs to start one job instance.
// InstanceType overrides the resolution from Requirements when set.
type LaunchRequest struct {
	Project      string
	RunName      string
	InstanceType string
	Requirements *types.Requirements
	DiskSize     int64
	UserData     string
	Spot         bool
	Cuda         bool
	// Subnet pins the instance to a subnet; when empty the backend
	// picks one from the configured VPC.
	Subnet           string
	AllocatePublicIP bool
}

type Instance struct {
	ID        string
	Backend   string
	Region    string
	PublicIP  string
	PrivateIP string
}

// Compute provisions and releases job instances.
type Compute interface {
	Name() string
	Launch(ctx context.Context, req LaunchRequest) (*Instance, error)
	Terminate(ctx context.Context, instanceID string) error
}

// InstanceTypeFor maps resolved job requirements to a backend instance
// type. Backends translate the generic requirements themselves.
type InstanceTypeFor func(req *types.Requirements) (string, error)
