package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"k8s.io/utils/pointer"

	dstackerrors "github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/images"
)

const (
	ownerTagKey   = "owner"
	ownerTagValue = "dstack"
	projectTagKey = "dstack_project"
)

func projectTags(project string) []ec2types.Tag {
	return []ec2types.Tag{
		{Key: awssdk.String(ownerTagKey), Value: awssdk.String(ownerTagValue)},
		{Key: awssdk.String(projectTagKey), Value: awssdk.String(project)},
	}
}

func projectSuffix(project string) string {
	return strings.ToLower(strings.ReplaceAll(project, "-", "_"))
}

// GetImageID finds the newest available machine image published for a
// release, cuda variant included when requested.
func GetImageID(ctx context.Context, api EC2API, version string, cuda bool) (string, error) {
	name := images.AMIName(version, cuda)
	out, err := api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Filters: []ec2types.Filter{
			{Name: awssdk.String("name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", err
	}
	available := []ec2types.Image{}
	for _, image := range out.Images {
		if image.State == ec2types.ImageStateAvailable {
			available = append(available, image)
		}
	}
	if len(available) == 0 {
		return "", dstackerrors.NewResourceNotFoundError(fmt.Sprintf("image %s not found", name))
	}
	sort.Slice(available, func(i, j int) bool {
		return pointer.StringDeref(available[i].CreationDate, "") > pointer.StringDeref(available[j].CreationDate, "")
	})
	return pointer.StringDeref(available[0].ImageId, ""), nil
}

// GetGatewayImageID finds the newest Ubuntu 22.04 server image for
// gateway instances.
func GetGatewayImageID(ctx context.Context, api EC2API) (string, error) {
	out, err := api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Filters: []ec2types.Filter{
			{Name: awssdk.String("name"), Values: []string{"ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*"}},
			{Name: awssdk.String("owner-alias"), Values: []string{"amazon"}},
		},
	})
	if err != nil {
		return "", err
	}
	if len(out.Images) == 0 {
		return "", dstackerrors.NewResourceNotFoundError("gateway image not found")
	}
	images := out.Images
	sort.Slice(images, func(i, j int) bool {
		return pointer.StringDeref(images[i].CreationDate, "") > pointer.StringDeref(images[j].CreationDate, "")
	})
	return pointer.StringDeref(images[0].ImageId, ""), nil
}

// CreateRoleAndPolicy ensures the per-project role exists: a policy
// scoped to resources tagged with the project, and a role EC2 can
// assume. Returns the role name.
func CreateRoleAndPolicy(ctx context.Context, api IAMAPI, project string) (string, error) {
	policyName := "dstack_policy_" + projectSuffix(project)
	roleName := "dstack_role_" + projectSuffix(project)

	if _, err := api.GetRole(ctx, &iam.GetRoleInput{RoleName: awssdk.String(roleName)}); err == nil {
		return roleName, nil
	} else if !isNoSuchEntity(err) {
		return "", err
	}

	policyDoc, err := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect":   "Allow",
				"Action":   "ec2:*",
				"Resource": "*",
				"Condition": map[string]any{
					"StringEquals": map[string]string{
						"aws:ResourceTag/" + projectTagKey: project,
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	policyOut, err := api.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     awssdk.String(policyName),
		Description:    awssdk.String("Generated by dstack"),
		PolicyDocument: awssdk.String(string(policyDoc)),
		Tags:           iamProjectTags(project),
	})
	if err != nil {
		return "", err
	}

	assumeDoc, err := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Action":    "sts:AssumeRole",
				"Effect":    "Allow",
				"Principal": map[string]string{"Service": "ec2.amazonaws.com"},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if _, err := api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 awssdk.String(roleName),
		AssumeRolePolicyDocument: awssdk.String(string(assumeDoc)),
		Description:              awssdk.String("Generated by dstack"),
		MaxSessionDuration:       awssdk.Int32(3600),
		Tags:                     iamProjectTags(project),
	}); err != nil {
		return "", err
	}
	if _, err := api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  awssdk.String(roleName),
		PolicyArn: policyOut.Policy.Arn,
	}); err != nil {
		return "", err
	}
	return roleName, nil
}

// CreateInstanceProfile ensures the per-project instance profile exists
// with the project role attached. Returns the profile arn.
func CreateInstanceProfile(ctx context.Context, api IAMAPI, project string) (string, error) {
	roleName, err := CreateRoleAndPolicy(ctx, api, project)
	if err != nil {
		return "", err
	}

	if out, err := api.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: awssdk.String(roleName),
	}); err == nil {
		return pointer.StringDeref(out.InstanceProfile.Arn, ""), nil
	} else if !isNoSuchEntity(err) {
		return "", err
	}

	out, err := api.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: awssdk.String(roleName),
		Tags:                iamProjectTags(project),
	})
	if err != nil {
		return "", err
	}
	if _, err := api.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: awssdk.String(roleName),
		RoleName:            awssdk.String(roleName),
	}); err != nil {
		return "", err
	}
	return pointer.StringDeref(out.InstanceProfile.Arn, ""), nil
}

// CreateSecurityGroup ensures the per-project group exists with ssh
// ingress, intra-group traffic and unrestricted egress. Rules already
// present are left alone.
func CreateSecurityGroup(ctx context.Context, api EC2API, project string, vpcID string) (string, error) {
	groupName := "dstack_security_group_" + projectSuffix(project)

	filters := []ec2types.Filter{
		{Name: awssdk.String("group-name"), Values: []string{groupName}},
	}
	if vpcID != "" {
		filters = append(filters, ec2types.Filter{
			Name: awssdk.String("vpc-id"), Values: []string{vpcID},
		})
	}
	out, err := api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: filters})
	if err != nil {
		return "", err
	}

	var group ec2types.SecurityGroup
	if len(out.SecurityGroups) > 0 {
		group = out.SecurityGroups[0]
	} else {
		input := &ec2.CreateSecurityGroupInput{
			Description: awssdk.String("Generated by dstack"),
			GroupName:   awssdk.String(groupName),
			TagSpecifications: []ec2types.TagSpecification{
				{
					ResourceType: ec2types.ResourceTypeSecurityGroup,
					Tags:         projectTags(project),
				},
			},
		}
		if vpcID != "" {
			input.VpcId = awssdk.String(vpcID)
		}
		created, err := api.CreateSecurityGroup(ctx, input)
		if err != nil {
			return "", err
		}
		group = ec2types.SecurityGroup{GroupId: created.GroupId}
	}
	groupID := pointer.StringDeref(group.GroupId, "")

	sshRule := ec2types.IpPermission{
		FromPort:   awssdk.Int32(22),
		ToPort:     awssdk.Int32(22),
		IpProtocol: awssdk.String("tcp"),
		IpRanges:   []ec2types.IpRange{{CidrIp: awssdk.String("0.0.0.0/0")}},
	}
	intraRule := ec2types.IpPermission{
		IpProtocol:       awssdk.String("-1"),
		UserIdGroupPairs: []ec2types.UserIdGroupPair{{GroupId: awssdk.String(groupID)}},
	}
	egressRule := ec2types.IpPermission{IpProtocol: awssdk.String("-1")}

	if !ruleExists(sshRule, group.IpPermissions) {
		if _, err := api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       awssdk.String(groupID),
			IpPermissions: []ec2types.IpPermission{sshRule},
		}); err != nil {
			return "", err
		}
	}
	if !ruleExists(intraRule, group.IpPermissions) {
		if _, err := api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       awssdk.String(groupID),
			IpPermissions: []ec2types.IpPermission{intraRule},
		}); err != nil {
			return "", err
		}
	}
	if !ruleExists(egressRule, group.IpPermissionsEgress) {
		if _, err := api.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       awssdk.String(groupID),
			IpPermissions: []ec2types.IpPermission{egressRule},
		}); err != nil {
			return "", err
		}
	}
	return groupID, nil
}

// CreateGatewaySecurityGroup ensures the per-project gateway group
// exists. Gateways accept traffic on any tcp port, so the group is
// created with its rules once and returned as is afterwards.
func CreateGatewaySecurityGroup(ctx context.Context, api EC2API, project string) (string, error) {
	groupName := "dstack_gw_sg_" + projectSuffix(project)

	out, err := api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: awssdk.String("group-name"), Values: []string{groupName}},
		},
	})
	if err != nil {
		return "", err
	}
	if len(out.SecurityGroups) > 0 {
		return pointer.StringDeref(out.SecurityGroups[0].GroupId, ""), nil
	}

	created, err := api.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		Description: awssdk.String("Generated by dstack"),
		GroupName:   awssdk.String(groupName),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeSecurityGroup,
				Tags: append(projectTags(project), ec2types.Tag{
					Key:   awssdk.String("role"),
					Value: awssdk.String("gateway"),
				}),
			},
		},
	})
	if err != nil {
		return "", err
	}
	groupID := pointer.StringDeref(created.GroupId, "")

	if _, err := api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: awssdk.String(groupID),
		IpPermissions: []ec2types.IpPermission{
			{
				FromPort:   awssdk.Int32(0),
				ToPort:     awssdk.Int32(65535),
				IpProtocol: awssdk.String("tcp"),
				IpRanges:   []ec2types.IpRange{{CidrIp: awssdk.String("0.0.0.0/0")}},
			},
		},
	}); err != nil {
		return "", err
	}
	if _, err := api.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
		GroupId:       awssdk.String(groupID),
		IpPermissions: []ec2types.IpPermission{{IpProtocol: awssdk.String("-1")}},
	}); err != nil {
		return "", err
	}
	return groupID, nil
}

// ruleExists reports whether an existing permission already covers the
// rule: every field set on the rule must match, extra fields on the
// existing permission are fine.
func ruleExists(rule ec2types.IpPermission, existing []ec2types.IpPermission) bool {
	for _, other := range existing {
		if ruleContains(rule, other) {
			return true
		}
	}
	return false
}

func ruleContains(rule, other ec2types.IpPermission) bool {
	if rule.IpProtocol != nil && pointer.StringDeref(other.IpProtocol, "") != *rule.IpProtocol {
		return false
	}
	if rule.FromPort != nil && pointer.Int32Deref(other.FromPort, -1) != *rule.FromPort {
		return false
	}
	if rule.ToPort != nil && pointer.Int32Deref(other.ToPort, -1) != *rule.ToPort {
		return false
	}
	if len(rule.IpRanges) > 0 {
		if len(rule.IpRanges) != len(other.IpRanges) {
			return false
		}
		for i := range rule.IpRanges {
			if pointer.StringDeref(rule.IpRanges[i].CidrIp, "") != pointer.StringDeref(other.IpRanges[i].CidrIp, "") {
				return false
			}
		}
	}
	if len(rule.UserIdGroupPairs) > 0 {
		if len(rule.UserIdGroupPairs) != len(other.UserIdGroupPairs) {
			return false
		}
		for i := range rule.UserIdGroupPairs {
			if pointer.StringDeref(rule.UserIdGroupPairs[i].GroupId, "") != pointer.StringDeref(other.UserIdGroupPairs[i].GroupId, "") {
				return false
			}
		}
	}
	return true
}

// RunInstancesInput assembles the launch request for one job instance.
// AWS accepts either NetworkInterfaces with a specific subnet or
// instance-level SecurityGroupIds, not both.
func RunInstancesInput(req InstanceSpec) *ec2.RunInstancesInput {
	input := &ec2.RunInstancesInput{
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{
			{
				DeviceName: awssdk.String("/dev/sda1"),
				Ebs: &ec2types.EbsBlockDevice{
					VolumeSize: awssdk.Int32(req.DiskSize),
					VolumeType: ec2types.VolumeTypeGp2,
				},
			},
		},
		ImageId:      awssdk.String(req.ImageID),
		InstanceType: ec2types.InstanceType(req.InstanceType),
		MinCount:     awssdk.Int32(1),
		MaxCount:     awssdk.Int32(1),
		UserData:     awssdk.String(req.UserData),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags:         req.Tags,
			},
		},
	}
	if req.IamInstanceProfileArn != "" {
		input.IamInstanceProfile = &ec2types.IamInstanceProfileSpecification{
			Arn: awssdk.String(req.IamInstanceProfileArn),
		}
	}
	if req.Spot {
		input.InstanceMarketOptions = &ec2types.InstanceMarketOptionsRequest{
			MarketType: ec2types.MarketTypeSpot,
			SpotOptions: &ec2types.SpotMarketOptions{
				SpotInstanceType:             ec2types.SpotInstanceTypeOneTime,
				InstanceInterruptionBehavior: ec2types.InstanceInterruptionBehaviorTerminate,
			},
		}
	}
	if req.SubnetID != "" {
		input.NetworkInterfaces = []ec2types.InstanceNetworkInterfaceSpecification{
			{
				AssociatePublicIpAddress: awssdk.Bool(req.AllocatePublicIP),
				DeviceIndex:              awssdk.Int32(0),
				SubnetId:                 awssdk.String(req.SubnetID),
				Groups:                   []string{req.SecurityGroupID},
			},
		}
	} else {
		input.SecurityGroupIds = []string{req.SecurityGroupID}
	}
	return input
}

// InstanceSpec carries the resolved parameters for RunInstancesInput.
type InstanceSpec struct {
	DiskSize              int32
	ImageID               string
	InstanceType          string
	IamInstanceProfileArn string
	UserData              string
	Tags                  []ec2types.Tag
	SecurityGroupID       string
	Spot                  bool
	SubnetID              string
	AllocatePublicIP      bool
}

func iamProjectTags(project string) []iamtypes.Tag {
	return []iamtypes.Tag{
		{Key: awssdk.String(ownerTagKey), Value: awssdk.String(ownerTagValue)},
		{Key: awssdk.String(projectTagKey), Value: awssdk.String(project)},
	}
}

func isNoSuchEntity(err error) bool {
	var nse *iamtypes.NoSuchEntityException
	return errors.As(err, &nse)
}
