package network

import (
	"errors"
	"fmt"
	"net"
	"slices"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/iancoleman/strcase"
	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/klothoplatform/infratopo/pkg/sanitization/aws"
	"go.uber.org/zap"
)

const component = "network"

const (
	minVpcPrefix    = 16
	maxSubnetPrefix = 28
	maxZones        = 6
)

type (
	Params struct {
		Name      string
		CidrBlock string
		Region    string
		// AvailabilityZones defaults to the first ZoneCount zones of Region.
		AvailabilityZones []string
		ZoneCount         int
		Tiers             []Tier
		Endpoints         []Endpoint
		// NatGateways defaults to one per zone. Fewer gateways are shared round robin.
		NatGateways int
	}

	Tier struct {
		Name     string
		CidrMask int
		Kind     resources.SubnetKind
	}

	Endpoint struct {
		Kind    resources.VpcEndpointKind
		Service string
	}

	// Network is the handle to a registered VPC. Downstream builders use it to find subnets by tier and to
	// declare security groups that belong to the VPC.
	Network struct {
		Name              string
		Vpc               construct.ResourceId
		CidrBlock         string
		Region            string
		AvailabilityZones []string
		Endpoints         []construct.ResourceId

		subnets map[resources.SubnetKind][]construct.ResourceId
		groups  []construct.ResourceId
		reg     *construct.Registry
	}
)

var (
	DefaultTiers = []Tier{
		{Name: "Public", CidrMask: 24, Kind: resources.PublicSubnet},
		{Name: "PrivateIsolated", CidrMask: 24, Kind: resources.PrivateIsolatedSubnet},
		{Name: "PrivateSubnetWithNat", CidrMask: 24, Kind: resources.PrivateWithEgressSubnet},
	}

	// DefaultEndpoints let isolated subnets reach S3 and Systems Manager without internet egress.
	DefaultEndpoints = []Endpoint{
		{Kind: resources.GatewayEndpoint, Service: "s3"},
		{Kind: resources.InterfaceEndpoint, Service: "ssm"},
	}
)

func (p Params) withDefaults() Params {
	if p.ZoneCount == 0 {
		p.ZoneCount = 2
	}
	if len(p.AvailabilityZones) == 0 && p.Region != "" && p.ZoneCount <= maxZones {
		for i := 0; i < p.ZoneCount; i++ {
			p.AvailabilityZones = append(p.AvailabilityZones, fmt.Sprintf("%s%c", p.Region, 'a'+i))
		}
	}
	if len(p.Tiers) == 0 {
		p.Tiers = DefaultTiers
	}
	if p.Endpoints == nil {
		p.Endpoints = DefaultEndpoints
	}
	if p.NatGateways == 0 {
		p.NatGateways = len(p.AvailabilityZones)
	}
	return p
}

func (p Params) validate(block *net.IPNet) error {
	var errs error
	if len(p.AvailabilityZones) == 0 {
		errs = joinConfig(errs, "availability_zones", "no availability zones (region %q, zone count %d)", p.Region, p.ZoneCount)
	}
	seenZones := make(map[string]struct{})
	for _, az := range p.AvailabilityZones {
		if _, ok := seenZones[az]; ok {
			errs = joinConfig(errs, "availability_zones", "duplicate zone %q", az)
		}
		seenZones[az] = struct{}{}
	}

	prefix, _ := block.Mask.Size()
	seenTiers := make(map[string]struct{})
	hasPublic, hasEgress := false, false
	for _, tier := range p.Tiers {
		if tier.Name == "" {
			errs = joinConfig(errs, "tiers", "tier has no name")
		}
		if _, ok := seenTiers[tier.Name]; ok {
			errs = joinConfig(errs, "tiers", "duplicate tier %q", tier.Name)
		}
		seenTiers[tier.Name] = struct{}{}
		if !tier.Kind.Valid() {
			errs = joinConfig(errs, "tiers", "tier %q has unknown kind %q", tier.Name, tier.Kind)
		}
		if tier.CidrMask <= prefix || tier.CidrMask > maxSubnetPrefix {
			errs = joinConfig(errs, "tiers",
				"tier %q mask /%d must be longer than the network's /%d and at most /%d",
				tier.Name, tier.CidrMask, prefix, maxSubnetPrefix)
		}
		hasPublic = hasPublic || tier.Kind == resources.PublicSubnet
		hasEgress = hasEgress || tier.Kind == resources.PrivateWithEgressSubnet
	}
	if hasEgress && !hasPublic {
		errs = joinConfig(errs, "tiers", "private subnets with egress need a public tier for their nat gateways")
	}
	if p.NatGateways < 0 || p.NatGateways > len(p.AvailabilityZones) {
		errs = joinConfig(errs, "nat_gateways", "%d nat gateways for %d zones", p.NatGateways, len(p.AvailabilityZones))
	}
	if len(p.Endpoints) > 0 && p.Region == "" {
		errs = joinConfig(errs, "region", "service endpoints need a region")
	}
	for _, ep := range p.Endpoints {
		if !ep.Kind.Valid() || ep.Service == "" {
			errs = joinConfig(errs, "endpoints", "invalid endpoint %q (%s)", ep.Service, ep.Kind)
		}
	}
	return errs
}

func joinConfig(errs error, field, format string, args ...any) error {
	return errors.Join(errs, topo_errs.Configf(component, field, format, args...))
}

// Build registers the VPC, one subnet per tier per availability zone, the gateways the tiers need and the
// service endpoints. Subnet blocks are allocated in order from the start of the VPC block, tier by tier.
func Build(reg *construct.Registry, params Params) (*Network, error) {
	params = params.withDefaults()
	if params.Name == "" {
		return nil, topo_errs.Configf(component, "name", "network has no name")
	}
	block, err := parseBlock(params.CidrBlock)
	if err != nil {
		return nil, err
	}
	if err := params.validate(block); err != nil {
		return nil, err
	}

	var masks []int
	for _, tier := range params.Tiers {
		for range params.AvailabilityZones {
			masks = append(masks, tier.CidrMask)
		}
	}
	blocks, err := Allocate(block, masks)
	if err != nil {
		return nil, topo_errs.ConfigurationError{
			Component: component,
			Field:     "cidr_block",
			Reason: fmt.Sprintf("%s cannot hold %d tiers in %d zones",
				block, len(params.Tiers), len(params.AvailabilityZones)),
			Err: err,
		}
	}

	name := aws.NetworkNameSanitizer.Apply(strcase.ToKebab(params.Name))
	n := &Network{
		Name:              name,
		CidrBlock:         block.String(),
		Region:            params.Region,
		AvailabilityZones: params.AvailabilityZones,
		subnets:           make(map[resources.SubnetKind][]construct.ResourceId),
		reg:               reg,
	}
	vpc := &resources.Vpc{
		Name:               name,
		CidrBlock:          block.String(),
		EnableDnsSupport:   true,
		EnableDnsHostnames: true,
	}
	if err := reg.Add(vpc); err != nil {
		return nil, err
	}
	n.Vpc = vpc.Id()

	// public tiers first: nat gateways are placed in the public subnets and private subnets route to them
	order := make([]int, 0, len(params.Tiers))
	for i, tier := range params.Tiers {
		if tier.Kind == resources.PublicSubnet {
			order = append(order, i)
		}
	}
	for i, tier := range params.Tiers {
		if tier.Kind != resources.PublicSubnet {
			order = append(order, i)
		}
	}

	var igw, nats []construct.ResourceId
	for _, ti := range order {
		tier := params.Tiers[ti]
		if tier.Kind == resources.PublicSubnet && len(igw) == 0 {
			gw := &resources.InternetGateway{Name: name + "-igw", Vpc: n.Vpc}
			if err := reg.Add(gw); err != nil {
				return nil, err
			}
			igw = append(igw, gw.Id())
		}
		if tier.Kind == resources.PrivateWithEgressSubnet && len(nats) == 0 {
			if nats, err = n.addNatGateways(params.NatGateways); err != nil {
				return nil, err
			}
		}
		for zi, az := range params.AvailabilityZones {
			subnet := &resources.Subnet{
				Name:             strcase.ToSnake(fmt.Sprintf("%s%d", tier.Name, zi+1)),
				Vpc:              n.Vpc,
				Tier:             tier.Name,
				Kind:             tier.Kind,
				AvailabilityZone: az,
				CidrBlock:        blocks[ti*len(params.AvailabilityZones)+zi].String(),
			}
			switch tier.Kind {
			case resources.PublicSubnet:
				subnet.MapPublicIpOnLaunch = true
				subnet.RouteTarget = igw[0]
			case resources.PrivateWithEgressSubnet:
				subnet.RouteTarget = nats[zi%len(nats)]
			}
			if err := reg.Add(subnet); err != nil {
				return nil, err
			}
			n.subnets[tier.Kind] = append(n.subnets[tier.Kind], subnet.Id())
			zap.L().Named(component).Debug("allocated subnet",
				logging.ResourceField(subnet.Id()),
				zap.String("cidr", subnet.CidrBlock),
				zap.String("zone", az),
			)
		}
	}

	for _, ep := range params.Endpoints {
		if err := n.addEndpoint(ep); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Network) addNatGateways(count int) ([]construct.ResourceId, error) {
	public := n.subnets[resources.PublicSubnet]
	var nats []construct.ResourceId
	for i := 0; i < count; i++ {
		eip := &resources.ElasticIp{Name: fmt.Sprintf("%s-nat%d", n.Name, i+1)}
		if err := n.reg.Add(eip); err != nil {
			return nil, err
		}
		nat := &resources.NatGateway{
			Name:      fmt.Sprintf("nat%d", i+1),
			Subnet:    public[i%len(public)],
			ElasticIp: eip.Id(),
		}
		if err := n.reg.Add(nat); err != nil {
			return nil, err
		}
		nats = append(nats, nat.Id())
	}
	return nats, nil
}

func (n *Network) addEndpoint(ep Endpoint) error {
	vpce := &resources.VpcEndpoint{
		Name:        strcase.ToKebab(ep.Service) + "-" + string(ep.Kind),
		Vpc:         n.Vpc,
		Kind:        ep.Kind,
		ServiceName: resources.EndpointServiceName(n.Region, ep.Service),
	}
	switch ep.Kind {
	case resources.GatewayEndpoint:
		// gateway endpoints are routes, added to every private route table
		vpce.Subnets = n.PrivateSubnets()
	case resources.InterfaceEndpoint:
		vpce.PrivateDnsEnabled = true
		vpce.Subnets = n.Subnets(resources.PrivateIsolatedSubnet)
		if len(vpce.Subnets) == 0 {
			vpce.Subnets = n.Subnets(resources.PrivateWithEgressSubnet)
		}
	}
	if len(vpce.Subnets) == 0 {
		return topo_errs.Configf(component, "endpoints", "endpoint %s needs a private tier", vpce.Name)
	}
	if err := n.reg.Add(vpce); err != nil {
		return err
	}
	n.Endpoints = append(n.Endpoints, vpce.Id())
	return nil
}

// Subnets returns the subnets of the given kind, in tier then zone order.
func (n *Network) Subnets(kind resources.SubnetKind) []construct.ResourceId {
	return slices.Clone(n.subnets[kind])
}

func (n *Network) PrivateSubnets() []construct.ResourceId {
	return append(n.Subnets(resources.PrivateIsolatedSubnet), n.subnets[resources.PrivateWithEgressSubnet]...)
}

func (n *Network) HasTier(kind resources.SubnetKind) bool {
	return len(n.subnets[kind]) > 0
}

// SubnetKind returns the kind of a subnet in this network.
func (n *Network) SubnetKind(subnet construct.ResourceId) (resources.SubnetKind, bool) {
	for kind, ids := range n.subnets {
		if slices.Contains(ids, subnet) {
			return kind, true
		}
	}
	return "", false
}

// Stack is the stack the network and its security groups are registered in.
func (n *Network) Stack() string {
	return n.reg.StackOf(n.Vpc)
}

// Validate re-checks the registered subnets: every block is inside the VPC block and no two overlap.
func (n *Network) Validate() error {
	_, block, err := net.ParseCIDR(n.CidrBlock)
	if err != nil {
		return topo_errs.ConfigurationError{Component: component, Field: "cidr_block", Reason: "invalid vpc block", Err: err}
	}
	var subnets []*net.IPNet
	for _, subnet := range construct.ListOf[*resources.Subnet](n.reg) {
		if subnet.Vpc != n.Vpc {
			continue
		}
		_, sn, err := net.ParseCIDR(subnet.CidrBlock)
		if err != nil {
			return topo_errs.ConfigurationError{Component: component, Field: "cidr_block", Reason: subnet.Id().String(), Err: err}
		}
		subnets = append(subnets, sn)
	}
	if err := cidr.VerifyNoOverlap(subnets, block); err != nil {
		return topo_errs.ConfigurationError{Component: component, Field: "cidr_block", Reason: "subnet allocation is invalid", Err: err}
	}
	return nil
}

func parseBlock(s string) (*net.IPNet, error) {
	ip, block, err := net.ParseCIDR(s)
	if err != nil {
		return nil, topo_errs.ConfigurationError{Component: component, Field: "cidr_block", Reason: "invalid address block", Err: err}
	}
	if ip.To4() == nil {
		return nil, topo_errs.Configf(component, "cidr_block", "%s is not an IPv4 block", s)
	}
	if !ip.Equal(block.IP) {
		return nil, topo_errs.Configf(component, "cidr_block", "%s has host bits set (network address is %s)", s, block.IP)
	}
	prefix, _ := block.Mask.Size()
	if prefix < minVpcPrefix || prefix > maxSubnetPrefix {
		return nil, topo_errs.Configf(component, "cidr_block", "%s must be between /%d and /%d", s, minVpcPrefix, maxSubnetPrefix)
	}
	return block, nil
}

// Allocate carves consecutive subnets with the given prefix lengths out of block. Each subnet starts at the
// first properly aligned address after the previous one.
func Allocate(block *net.IPNet, masks []int) ([]*net.IPNet, error) {
	prefix, _ := block.Mask.Size()
	subnets := make([]*net.IPNet, 0, len(masks))
	var prev *net.IPNet
	for i, mask := range masks {
		if mask <= prefix {
			return nil, fmt.Errorf("subnet %d: /%d does not subdivide /%d", i, mask, prefix)
		}
		var next *net.IPNet
		if prev == nil {
			var err error
			if next, err = cidr.Subnet(block, mask-prefix, 0); err != nil {
				return nil, fmt.Errorf("subnet %d: %w", i, err)
			}
		} else {
			var rollover bool
			next, rollover = cidr.NextSubnet(prev, mask)
			if rollover {
				return nil, fmt.Errorf("subnet %d: address space exhausted", i)
			}
		}
		first, last := cidr.AddressRange(next)
		if !block.Contains(first) || !block.Contains(last) {
			return nil, fmt.Errorf("subnet %d (/%d) does not fit, %d subnets requested", i, mask, len(masks))
		}
		subnets = append(subnets, next)
		prev = next
	}
	if err := cidr.VerifyNoOverlap(subnets, block); err != nil {
		return nil, err
	}
	return subnets, nil
}
