package edge

import (
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/klothoplatform/infratopo/pkg/compute"
	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/klothoplatform/infratopo/pkg/network"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/klothoplatform/infratopo/pkg/sanitization/aws"
	"go.uber.org/zap"
)

const component = "edge"

const (
	DnsOutput   = "LoadBalancerDnsName"
	DefaultPort = 80
)

type (
	Params struct {
		Name string
		// Target must be an elastic pool. Any other unit is rejected.
		Target        compute.Unit
		SecurityGroup *network.SecurityGroup
		Port          int
		// TargetPort is the port the pool instances listen on, defaulting to Port.
		TargetPort int
		// RequestTargetPerMinute, when positive, scales the pool on requests per instance.
		RequestTargetPerMinute int
		// OpenIngress admits any IPv4 address on Port.
		OpenIngress     bool
		HealthCheckPath string
		OutputName      string
	}

	Router struct {
		Id            construct.ResourceId
		TargetGroup   construct.ResourceId
		Listener      construct.ResourceId
		SecurityGroup *network.SecurityGroup
		// Pool is the id of the auto scaling group receiving traffic.
		Pool          construct.ResourceId
		ScalingPolicy construct.ResourceId
	}
)

func (p Params) resolveTarget(reg *construct.Registry) (*compute.ElasticPool, error) {
	consumer := p.Name
	if consumer == "" {
		consumer = component
	}
	if p.Target == nil {
		return nil, topo_errs.ReferenceError{Consumer: consumer, Reason: "elastic pool was never produced"}
	}
	pool, ok := p.Target.(*compute.ElasticPool)
	if !ok {
		refErr := topo_errs.ReferenceError{Consumer: consumer, Reason: fmt.Sprintf("%T is not an elastic pool", p.Target)}
		if fixed, isFixed := p.Target.(*compute.FixedInstance); !isFixed || fixed != nil {
			refErr.Ref = p.Target.ResourceId().String()
		}
		return nil, refErr
	}
	if pool == nil {
		return nil, topo_errs.ReferenceError{Consumer: consumer, Reason: "elastic pool was never produced"}
	}
	if _, err := construct.Resolve[*resources.AutoScalingGroup](reg, consumer, pool.ResourceId()); err != nil {
		return nil, err
	}
	return pool, nil
}

// Build registers an internet-facing load balancer in the public subnets of net with one listener forwarding
// to the target pool. The pool's security groups admit the router's group on the target port.
func Build(reg *construct.Registry, net *network.Network, params Params) (*Router, error) {
	if net == nil {
		return nil, topo_errs.ReferenceError{Consumer: component, Reason: "network was never produced"}
	}
	pool, err := params.resolveTarget(reg)
	if err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, topo_errs.Configf(component, "name", "router has no name")
	}
	if params.SecurityGroup == nil {
		return nil, topo_errs.ReferenceError{Consumer: params.Name, Reason: "security group was never produced"}
	}
	sg, err := net.SecurityGroup(params.SecurityGroup.Id)
	if err != nil {
		return nil, err
	}
	if params.Port == 0 {
		params.Port = DefaultPort
	}
	if params.TargetPort == 0 {
		params.TargetPort = params.Port
	}
	public := net.Subnets(resources.PublicSubnet)
	if len(public) == 0 {
		return nil, topo_errs.Configf(component, "subnets", "%s: network %s has no public subnets", params.Name, net.Name)
	}

	if params.OpenIngress {
		if err := sg.AllowAnyIPv4(params.Port, "public http"); err != nil {
			return nil, err
		}
	}
	for _, poolSg := range pool.SecurityGroups() {
		if poolSg.Id == sg.Id {
			continue
		}
		if err := poolSg.AllowFrom(sg, params.TargetPort, fmt.Sprintf("traffic from %s", sg.Id.Name)); err != nil {
			return nil, err
		}
	}

	name := strcase.ToKebab(params.Name)
	lb := &resources.LoadBalancer{
		Name:             aws.LoadBalancerSanitizer.Apply(name),
		LoadBalancerType: resources.APPLICATION_LOAD_BALANCER,
		Scheme:           resources.INTERNET_FACING,
		Subnets:          public,
		SecurityGroups:   []construct.ResourceId{sg.Id},
	}
	if err := reg.Add(lb); err != nil {
		return nil, err
	}

	tg := &resources.TargetGroup{
		Name:       aws.TargetGroupSanitizer.Apply(name + "-targets"),
		Vpc:        net.Vpc,
		Port:       params.TargetPort,
		Protocol:   resources.HTTP,
		TargetType: resources.INSTANCE_TARGET_TYPE,
		Targets:    []construct.ResourceId{pool.Id},
	}
	if params.HealthCheckPath != "" {
		tg.HealthCheck = &resources.HealthCheck{Path: params.HealthCheckPath, HealthyThreshold: 2, UnhealthyThreshold: 5}
	}
	if err := reg.Add(tg); err != nil {
		return nil, err
	}

	listener := &resources.Listener{
		Name:         fmt.Sprintf("%s-%d", resources.HTTP, params.Port),
		LoadBalancer: lb.Id(),
		Port:         params.Port,
		Protocol:     resources.HTTP,
		DefaultAction: resources.ListenerAction{
			Type:        resources.FORWARD_ACTION,
			TargetGroup: tg.Id(),
		},
	}
	if err := reg.Add(listener); err != nil {
		return nil, err
	}

	router := &Router{
		Id:            lb.Id(),
		TargetGroup:   tg.Id(),
		Listener:      listener.Id(),
		SecurityGroup: sg,
		Pool:          pool.Id,
	}
	if params.RequestTargetPerMinute > 0 {
		router.ScalingPolicy, err = pool.ScaleOnRequestCount(tg.Id(), params.RequestTargetPerMinute)
		if err != nil {
			return nil, err
		}
	}

	outputName := params.OutputName
	if outputName == "" {
		outputName = DnsOutput
	}
	err = reg.AddOutput(outputName, construct.Output{
		Ref:         lb.Id(),
		Property:    "dns_name",
		Description: fmt.Sprintf("public DNS name of %s", lb.Name),
	})
	if err != nil {
		return nil, err
	}
	zap.L().Named(component).Debug("registered edge router",
		logging.ResourceField(router.Id),
		zap.Stringer("pool", pool.Id),
		zap.Int("port", params.Port),
	)
	return router, nil
}
