package aws

import (
	"fmt"
	"strings"

	"github.com/tnissen375/dstack/pkg/backends"
	dstackerrors "github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

const DefaultInstanceType = "m5.large"

const gib = int64(1) << 30

type instanceOffer struct {
	name     string
	cpus     int
	memory   int64
	gpuName  string
	gpuCount int
}

// offers ordered smallest first within each family so the scan picks
// the least instance type that still satisfies the requirements.
var instanceOffers = []instanceOffer{
	{name: "m5.large", cpus: 2, memory: 8 * gib},
	{name: "m5.xlarge", cpus: 4, memory: 16 * gib},
	{name: "m5.2xlarge", cpus: 8, memory: 32 * gib},
	{name: "m5.4xlarge", cpus: 16, memory: 64 * gib},
	{name: "m5.8xlarge", cpus: 32, memory: 128 * gib},
	{name: "m5.12xlarge", cpus: 48, memory: 192 * gib},
	{name: "m5.16xlarge", cpus: 64, memory: 256 * gib},
	{name: "m5.24xlarge", cpus: 96, memory: 384 * gib},

	{name: "g4dn.xlarge", cpus: 4, memory: 16 * gib, gpuName: "T4", gpuCount: 1},
	{name: "g4dn.2xlarge", cpus: 8, memory: 32 * gib, gpuName: "T4", gpuCount: 1},
	{name: "g4dn.12xlarge", cpus: 48, memory: 192 * gib, gpuName: "T4", gpuCount: 4},
	{name: "p2.xlarge", cpus: 4, memory: 61 * gib, gpuName: "K80", gpuCount: 1},
	{name: "p2.8xlarge", cpus: 32, memory: 488 * gib, gpuName: "K80", gpuCount: 8},
	{name: "p2.16xlarge", cpus: 64, memory: 732 * gib, gpuName: "K80", gpuCount: 16},
	{name: "p3.2xlarge", cpus: 8, memory: 61 * gib, gpuName: "V100", gpuCount: 1},
	{name: "p3.8xlarge", cpus: 32, memory: 244 * gib, gpuName: "V100", gpuCount: 4},
	{name: "p3.16xlarge", cpus: 64, memory: 488 * gib, gpuName: "V100", gpuCount: 8},
	{name: "p4d.24xlarge", cpus: 96, memory: 1152 * gib, gpuName: "A100", gpuCount: 8},
}

var _ backends.InstanceTypeFor = InstanceTypeFor

// InstanceTypeFor picks the smallest instance type satisfying the job
// requirements. A request without a gpu never lands on a gpu offer.
func InstanceTypeFor(req *types.Requirements) (string, error) {
	if req == nil {
		return DefaultInstanceType, nil
	}
	for _, offer := range instanceOffers {
		if offer.cpus < req.CPUs || offer.memory < req.Memory {
			continue
		}
		if req.GPUCount == 0 {
			if offer.gpuCount > 0 {
				continue
			}
			return offer.name, nil
		}
		if offer.gpuCount < req.GPUCount {
			continue
		}
		if req.GPUName != "" && !strings.EqualFold(req.GPUName, offer.gpuName) {
			continue
		}
		return offer.name, nil
	}
	return "", dstackerrors.NewResourceNotFoundError(fmt.Sprintf("no instance type matches requirements: %+v", *req))
}
