package resources

import (
	"fmt"

	"github.com/klothoplatform/infratopo/pkg/construct"
)

type (
	Vpc struct {
		Name               string `yaml:"-"`
		CidrBlock          string `yaml:"cidr_block"`
		EnableDnsSupport   bool   `yaml:"enable_dns_support"`
		EnableDnsHostnames bool   `yaml:"enable_dns_hostnames"`
	}

	// SubnetKind is the reachability tier of a subnet.
	SubnetKind string

	Subnet struct {
		Name                string               `yaml:"-"`
		Vpc                 construct.ResourceId `yaml:"vpc"`
		Tier                string               `yaml:"tier"`
		Kind                SubnetKind           `yaml:"kind"`
		AvailabilityZone    string               `yaml:"availability_zone"`
		CidrBlock           string               `yaml:"cidr_block"`
		MapPublicIpOnLaunch bool                 `yaml:"map_public_ip_on_launch,omitempty"`
		// RouteTarget is the default route of the subnet: an internet gateway for public subnets, a nat
		// gateway for private subnets with egress and nothing for isolated subnets.
		RouteTarget construct.ResourceId `yaml:"route_target,omitempty"`
	}

	InternetGateway struct {
		Name string               `yaml:"-"`
		Vpc  construct.ResourceId `yaml:"vpc"`
	}

	ElasticIp struct {
		Name string `yaml:"-"`
	}

	NatGateway struct {
		Name      string               `yaml:"-"`
		Subnet    construct.ResourceId `yaml:"subnet"`
		ElasticIp construct.ResourceId `yaml:"elastic_ip"`
	}

	VpcEndpointKind string

	VpcEndpoint struct {
		Name              string                 `yaml:"-"`
		Vpc               construct.ResourceId   `yaml:"vpc"`
		Kind              VpcEndpointKind        `yaml:"kind"`
		ServiceName       string                 `yaml:"service_name"`
		PrivateDnsEnabled bool                   `yaml:"private_dns_enabled,omitempty"`
		Subnets           []construct.ResourceId `yaml:"subnets,omitempty"`
	}
)

const (
	PublicSubnet            SubnetKind = "public"
	PrivateIsolatedSubnet   SubnetKind = "private_isolated"
	PrivateWithEgressSubnet SubnetKind = "private_with_egress"

	GatewayEndpoint   VpcEndpointKind = "gateway"
	InterfaceEndpoint VpcEndpointKind = "interface"
)

var SubnetKinds = []SubnetKind{PublicSubnet, PrivateIsolatedSubnet, PrivateWithEgressSubnet}

func (k SubnetKind) Valid() bool {
	switch k {
	case PublicSubnet, PrivateIsolatedSubnet, PrivateWithEgressSubnet:
		return true
	}
	return false
}

func (k SubnetKind) IsPrivate() bool {
	return k == PrivateIsolatedSubnet || k == PrivateWithEgressSubnet
}

func (k VpcEndpointKind) Valid() bool {
	return k == GatewayEndpoint || k == InterfaceEndpoint
}

// EndpointServiceName returns the regional service name of an AWS service, e.g. com.amazonaws.us-east-1.s3.
func EndpointServiceName(region, service string) string {
	return fmt.Sprintf("com.amazonaws.%s.%s", region, service)
}

func (vpc *Vpc) Id() construct.ResourceId {
	return awsId(VPC_TYPE, "", vpc.Name)
}

func (vpc *Vpc) References() []construct.ResourceId {
	return nil
}

func (subnet *Subnet) Id() construct.ResourceId {
	return awsId(SUBNET_TYPE, subnet.Vpc.Name, subnet.Name)
}

func (subnet *Subnet) References() []construct.ResourceId {
	return append([]construct.ResourceId{subnet.Vpc}, optional(subnet.RouteTarget)...)
}

func (igw *InternetGateway) Id() construct.ResourceId {
	return awsId(INTERNET_GATEWAY_TYPE, igw.Vpc.Name, igw.Name)
}

func (igw *InternetGateway) References() []construct.ResourceId {
	return []construct.ResourceId{igw.Vpc}
}

func (eip *ElasticIp) Id() construct.ResourceId {
	return awsId(ELASTIC_IP_TYPE, "", eip.Name)
}

func (eip *ElasticIp) References() []construct.ResourceId {
	return nil
}

func (nat *NatGateway) Id() construct.ResourceId {
	return awsId(NAT_GATEWAY_TYPE, nat.Subnet.Namespace, nat.Name)
}

func (nat *NatGateway) References() []construct.ResourceId {
	return []construct.ResourceId{nat.Subnet, nat.ElasticIp}
}

func (vpce *VpcEndpoint) Id() construct.ResourceId {
	return awsId(VPC_ENDPOINT_TYPE, vpce.Vpc.Name, vpce.Name)
}

func (vpce *VpcEndpoint) References() []construct.ResourceId {
	return append([]construct.ResourceId{vpce.Vpc}, vpce.Subnets...)
}
