package aws

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"k8s.io/utils/pointer"

	dstackerrors "github.com/tnissen375/dstack/pkg/errors"
)

// GetVPCID resolves a VPC by its Name tag, or the default VPC when no
// name is configured.
func GetVPCID(ctx context.Context, api EC2API, name string) (string, error) {
	input := &ec2.DescribeVpcsInput{}
	if name != "" {
		input.Filters = []ec2types.Filter{
			{Name: awssdk.String("tag:Name"), Values: []string{name}},
		}
	} else {
		input.Filters = []ec2types.Filter{
			{Name: awssdk.String("is-default"), Values: []string{"true"}},
		}
	}
	out, err := api.DescribeVpcs(ctx, input)
	if err != nil {
		return "", err
	}
	if len(out.Vpcs) == 0 {
		if name != "" {
			return "", dstackerrors.NewResourceNotFoundError(fmt.Sprintf("vpc %s not found", name))
		}
		return "", dstackerrors.NewResourceNotFoundError("no default vpc")
	}
	return pointer.StringDeref(out.Vpcs[0].VpcId, ""), nil
}

// SelectSubnet picks a subnet in the VPC whose route table gives the
// reachability the instance needs: a route through an internet gateway
// for public instances, a NAT route otherwise. Subnets with an explicit
// route table association win over ones falling through to the main
// table.
func SelectSubnet(ctx context.Context, api EC2API, vpcID string, public bool) (string, error) {
	subnetsOut, err := api.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: awssdk.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", err
	}
	tablesOut, err := api.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{Name: awssdk.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", err
	}

	bySubnet := map[string]ec2types.RouteTable{}
	var mainTable *ec2types.RouteTable
	for i, table := range tablesOut.RouteTables {
		for _, assoc := range table.Associations {
			if pointer.BoolDeref(assoc.Main, false) {
				mainTable = &tablesOut.RouteTables[i]
			}
			if assoc.SubnetId != nil {
				bySubnet[*assoc.SubnetId] = table
			}
		}
	}

	for _, subnet := range subnetsOut.Subnets {
		subnetID := pointer.StringDeref(subnet.SubnetId, "")
		table, ok := bySubnet[subnetID]
		if !ok {
			if mainTable == nil {
				continue
			}
			table = *mainTable
		}
		if public && hasGatewayRoute(table, "igw-") {
			return subnetID, nil
		}
		if !public && hasNATRoute(table) {
			return subnetID, nil
		}
	}
	if public {
		return "", dstackerrors.NewResourceNotFoundError(fmt.Sprintf("no public subnet in vpc %s", vpcID))
	}
	return "", dstackerrors.NewResourceNotFoundError(fmt.Sprintf("no private subnet with NAT in vpc %s", vpcID))
}

func hasGatewayRoute(table ec2types.RouteTable, prefix string) bool {
	for _, route := range table.Routes {
		if strings.HasPrefix(pointer.StringDeref(route.GatewayId, ""), prefix) {
			return true
		}
	}
	return false
}

func hasNATRoute(table ec2types.RouteTable) bool {
	for _, route := range table.Routes {
		if strings.HasPrefix(pointer.StringDeref(route.NatGatewayId, ""), "nat-") {
			return true
		}
	}
	return false
}
