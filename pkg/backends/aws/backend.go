package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/cenkalti/backoff/v4"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/pointer"

	"github.com/tnissen375/dstack/pkg/backends"
	dstackerrors "github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/version"
)

const BackendName = "aws"

type Options struct {
	Region  string
	VPCName string
}

type Backend struct {
	ec2     EC2API
	iam     IAMAPI
	region  string
	vpcName string
}

func New(ctx context.Context, opts Options) (*Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, err
	}
	return &Backend{
		ec2:     ec2.NewFromConfig(cfg),
		iam:     iam.NewFromConfig(cfg),
		region:  opts.Region,
		vpcName: opts.VPCName,
	}, nil
}

func (b *Backend) Name() string {
	return BackendName
}

// Launch provisions one instance for a run: resolves the instance type
// and image, makes sure the project role, profile and security group
// exist, picks a subnet and waits until the instance is running.
func (b *Backend) Launch(ctx context.Context, req backends.LaunchRequest) (*backends.Instance, error) {
	instanceType := req.InstanceType
	if instanceType == "" {
		resolved, err := InstanceTypeFor(req.Requirements)
		if err != nil {
			return nil, err
		}
		instanceType = resolved
	}
	imageID, err := GetImageID(ctx, b.ec2, version.Get().Version, req.Cuda)
	if err != nil {
		return nil, err
	}
	profileArn, err := CreateInstanceProfile(ctx, b.iam, req.Project)
	if err != nil {
		return nil, err
	}

	vpcID, err := GetVPCID(ctx, b.ec2, b.vpcName)
	if err != nil {
		return nil, err
	}
	groupID, err := CreateSecurityGroup(ctx, b.ec2, req.Project, vpcID)
	if err != nil {
		return nil, err
	}
	subnetID := req.Subnet
	if subnetID == "" {
		subnetID, err = SelectSubnet(ctx, b.ec2, vpcID, req.AllocatePublicIP)
		if err != nil {
			return nil, err
		}
	}

	diskSize := int32(req.DiskSize / (1 << 30))
	if diskSize <= 0 {
		diskSize = 100
	}
	input := RunInstancesInput(InstanceSpec{
		DiskSize:              diskSize,
		ImageID:               imageID,
		InstanceType:          instanceType,
		IamInstanceProfileArn: profileArn,
		UserData:              req.UserData,
		Tags: append(projectTags(req.Project), ec2types.Tag{
			Key:   awssdk.String("Name"),
			Value: awssdk.String("dstack-" + req.RunName),
		}),
		SecurityGroupID:  groupID,
		Spot:             req.Spot,
		SubnetID:         subnetID,
		AllocatePublicIP: req.AllocatePublicIP,
	})

	var out *ec2.RunInstancesOutput
	run := func() error {
		out, err = b.ec2.RunInstances(ctx, input)
		return err
	}
	if err := backoff.Retry(run, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)); err != nil {
		return nil, err
	}
	if len(out.Instances) == 0 {
		return nil, dstackerrors.NewInternalError(fmt.Errorf("run instances returned no instance"))
	}
	instanceID := pointer.StringDeref(out.Instances[0].InstanceId, "")

	instance, err := b.waitRunning(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return &backends.Instance{
		ID:        instanceID,
		Backend:   BackendName,
		Region:    b.region,
		PublicIP:  pointer.StringDeref(instance.PublicIpAddress, ""),
		PrivateIP: pointer.StringDeref(instance.PrivateIpAddress, ""),
	}, nil
}

func (b *Backend) waitRunning(ctx context.Context, instanceID string) (*ec2types.Instance, error) {
	var found *ec2types.Instance
	err := wait.PollUntilWithContext(ctx, 5*time.Second, func(ctx context.Context) (bool, error) {
		out, err := b.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{instanceID},
		})
		if err != nil {
			return false, err
		}
		for _, reservation := range out.Reservations {
			for i, instance := range reservation.Instances {
				if pointer.StringDeref(instance.InstanceId, "") != instanceID {
					continue
				}
				switch instance.State.Name {
				case ec2types.InstanceStateNameRunning:
					found = &reservation.Instances[i]
					return true, nil
				case ec2types.InstanceStateNamePending:
					return false, nil
				default:
					return false, fmt.Errorf("instance %s entered state %s", instanceID, instance.State.Name)
				}
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (b *Backend) Terminate(ctx context.Context, instanceID string) error {
	_, err := b.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return err
}
