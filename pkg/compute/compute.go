package compute

import (
	"errors"
	"fmt"
	"slices"

	"github.com/iancoleman/strcase"
	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/identity"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/klothoplatform/infratopo/pkg/network"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/klothoplatform/infratopo/pkg/sanitization"
	"github.com/klothoplatform/infratopo/pkg/sanitization/aws"
	"go.uber.org/zap"
)

const component = "compute"

type (
	// Bootstrapped is the capability both compute variants share: instances started with a bootstrap script,
	// running as a role, inside security groups, placed in a subnet selection.
	Bootstrapped struct {
		Name         string
		InstanceType string
		// Image defaults to the latest Amazon Linux 2.
		Image string
		// BootstrapScript is opaque text executed once at instance start.
		BootstrapScript string
		Role            *identity.Role
		SecurityGroups  []*network.SecurityGroup
		Subnets         SubnetSelection
		Environment     map[string]string
		// Secrets the bootstrap script reads at start.
		Secrets []construct.ResourceId
	}

	// SubnetSelection picks subnets of a network. With no Kind the candidates are all private subnets
	// (isolated then with egress). Indexes, when set, pick candidates by position.
	SubnetSelection struct {
		Kind    resources.SubnetKind
		Indexes []int
	}

	FixedInstanceParams struct {
		Bootstrapped
	}

	ElasticPoolParams struct {
		Bootstrapped
		Min     int
		Max     int
		Desired int
		// Steps default to DefaultSteps when nil. An empty list disables step scaling.
		Steps         []resources.ScalingStep
		ScalingMetric string
	}

	// Unit is a registered compute unit of either variant.
	Unit interface {
		ResourceId() construct.ResourceId
		SecurityGroups() []*network.SecurityGroup
		Role() *identity.Role
	}

	unit struct {
		Id              construct.ResourceId
		InstanceProfile construct.ResourceId
		role            *identity.Role
		groups          []*network.SecurityGroup
	}

	FixedInstance struct {
		unit
		Subnet construct.ResourceId
	}

	ElasticPool struct {
		unit
		Min      int
		Max      int
		Policies []construct.ResourceId
		reg      *construct.Registry
	}
)

func (u unit) ResourceId() construct.ResourceId { return u.Id }

func (u unit) SecurityGroups() []*network.SecurityGroup { return u.groups }

func (u unit) Role() *identity.Role { return u.role }

func (b Bootstrapped) validate(net *network.Network) error {
	var errs error
	if b.Name == "" {
		errs = errors.Join(errs, topo_errs.Configf(component, "name", "compute unit has no name"))
	}
	if b.InstanceType == "" {
		errs = errors.Join(errs, topo_errs.Configf(component, "instance_type", "%s has no instance type", b.Name))
	}
	if b.Role == nil || b.Role.Id.IsZero() {
		errs = errors.Join(errs, topo_errs.ReferenceError{Consumer: b.Name, Reason: "role was never produced"})
	}
	if len(b.SecurityGroups) == 0 {
		errs = errors.Join(errs, topo_errs.ReferenceError{Consumer: b.Name, Reason: "no security group was produced"})
	}
	for _, sg := range b.SecurityGroups {
		if sg == nil {
			errs = errors.Join(errs, topo_errs.ReferenceError{Consumer: b.Name, Reason: "security group was never produced"})
			continue
		}
		if _, err := net.SecurityGroup(sg.Id); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// Select resolves the selection against a network.
func (s SubnetSelection) Select(net *network.Network) ([]construct.ResourceId, error) {
	var candidates []construct.ResourceId
	if s.Kind == "" {
		candidates = net.PrivateSubnets()
	} else {
		if !s.Kind.Valid() {
			return nil, topo_errs.Configf(component, "subnets", "unknown subnet kind %q", s.Kind)
		}
		candidates = net.Subnets(s.Kind)
	}
	if len(s.Indexes) == 0 {
		if len(candidates) == 0 {
			return nil, topo_errs.Configf(component, "subnets", "network %s has no %s subnets", net.Name, s.Kind)
		}
		return candidates, nil
	}
	selected := make([]construct.ResourceId, 0, len(s.Indexes))
	for _, idx := range s.Indexes {
		if idx < 0 || idx >= len(candidates) {
			return nil, topo_errs.Configf(component, "subnets", "subnet index %d out of range, %d candidates", idx, len(candidates))
		}
		if slices.Contains(selected, candidates[idx]) {
			return nil, topo_errs.Configf(component, "subnets", "subnet index %d selected twice", idx)
		}
		selected = append(selected, candidates[idx])
	}
	return selected, nil
}

func (b Bootstrapped) register(reg *construct.Registry) (unit, error) {
	profile := &resources.InstanceProfile{
		Name: aws.IamRoleSanitizer.Apply(strcase.ToKebab(b.Name) + "-profile"),
		Role: b.Role.Id,
	}
	if err := reg.Add(profile); err != nil {
		return unit{}, err
	}
	return unit{InstanceProfile: profile.Id(), role: b.Role, groups: b.SecurityGroups}, nil
}

func (b Bootstrapped) groupIds() []construct.ResourceId {
	ids := make([]construct.ResourceId, len(b.SecurityGroups))
	for i, sg := range b.SecurityGroups {
		ids[i] = sg.Id
	}
	return ids
}

// environment returns the variables with keys usable as shell variable names.
func (b Bootstrapped) environment() map[string]string {
	if b.Environment == nil {
		return nil
	}
	env := make(map[string]string, len(b.Environment))
	for k, v := range b.Environment {
		env[sanitization.EnvVarKeySanitizer.Apply(k)] = v
	}
	return env
}

func (b Bootstrapped) image() string {
	if b.Image == "" {
		return resources.LATEST_AMAZON_LINUX_2
	}
	return b.Image
}

// BuildFixedInstance registers a single instance in the first selected subnet. Without a subnet kind the
// instance is placed in a public subnet.
func BuildFixedInstance(reg *construct.Registry, net *network.Network, params FixedInstanceParams) (*FixedInstance, error) {
	if net == nil {
		return nil, topo_errs.ReferenceError{Consumer: component, Reason: "network was never produced"}
	}
	if err := params.validate(net); err != nil {
		return nil, err
	}
	selection := params.Subnets
	if selection.Kind == "" && len(selection.Indexes) == 0 {
		selection.Kind = resources.PublicSubnet
	}
	subnets, err := selection.Select(net)
	if err != nil {
		return nil, err
	}

	u, err := params.register(reg)
	if err != nil {
		return nil, err
	}
	instance := &resources.Ec2Instance{
		Name:            aws.Ec2InstanceSanitizer.Apply(strcase.ToKebab(params.Name)),
		InstanceType:    params.InstanceType,
		Image:           params.image(),
		Subnet:          subnets[0],
		SecurityGroups:  params.groupIds(),
		InstanceProfile: u.InstanceProfile,
		UserData:        params.BootstrapScript,
		Environment:     params.environment(),
		Secrets:         params.Secrets,
	}
	if err := reg.Add(instance); err != nil {
		return nil, err
	}
	u.Id = instance.Id()
	zap.L().Named(component).Debug("registered fixed instance", logging.ResourceField(u.Id))
	return &FixedInstance{unit: u, Subnet: instance.Subnet}, nil
}

// BuildElasticPool registers an auto scaling group bounded by [Min, Max] and its step scaling policy. Without
// a subnet kind the pool is placed in the private subnets with egress.
func BuildElasticPool(reg *construct.Registry, net *network.Network, params ElasticPoolParams) (*ElasticPool, error) {
	if net == nil {
		return nil, topo_errs.ReferenceError{Consumer: component, Reason: "network was never produced"}
	}
	errs := params.validate(net)
	if params.Desired == 0 {
		params.Desired = params.Min
	}
	if params.Min < 1 || params.Min > params.Desired || params.Desired > params.Max {
		errs = errors.Join(errs, topo_errs.Configf(component, "capacity",
			"%s: capacity must satisfy 1 <= min (%d) <= desired (%d) <= max (%d)", params.Name, params.Min, params.Desired, params.Max))
	}
	steps := params.Steps
	if steps == nil {
		steps = DefaultSteps()
	}
	resolved, err := ResolveSteps(steps)
	errs = errors.Join(errs, err)
	if errs != nil {
		return nil, errs
	}

	selection := params.Subnets
	if selection.Kind == "" && len(selection.Indexes) == 0 {
		selection.Kind = resources.PrivateWithEgressSubnet
	}
	subnets, err := selection.Select(net)
	if err != nil {
		return nil, err
	}
	for _, subnet := range subnets {
		if kind, _ := net.SubnetKind(subnet); kind == resources.PrivateIsolatedSubnet {
			return nil, topo_errs.Configf(component, "subnets", "%s: pool instances need egress, %s is isolated", params.Name, subnet)
		}
	}

	u, err := params.register(reg)
	if err != nil {
		return nil, err
	}
	asg := &resources.AutoScalingGroup{
		Name:            aws.AutoScalingGroupSanitizer.Apply(strcase.ToKebab(params.Name)),
		InstanceType:    params.InstanceType,
		Image:           params.image(),
		MinSize:         params.Min,
		MaxSize:         params.Max,
		DesiredCapacity: params.Desired,
		Subnets:         subnets,
		SecurityGroups:  params.groupIds(),
		InstanceProfile: u.InstanceProfile,
		UserData:        params.BootstrapScript,
		Environment:     params.environment(),
		Secrets:         params.Secrets,
	}
	if err := reg.Add(asg); err != nil {
		return nil, err
	}
	u.Id = asg.Id()
	pool := &ElasticPool{unit: u, Min: params.Min, Max: params.Max, reg: reg}

	if len(resolved) > 0 {
		metric := params.ScalingMetric
		if metric == "" {
			metric = resources.CPU_UTILIZATION
		}
		policy := &resources.ScalingPolicy{
			Name:             strcase.ToKebab(metric) + "-steps",
			AutoScalingGroup: asg.Id(),
			PolicyType:       resources.StepScaling,
			MetricName:       metric,
			AdjustmentType:   resources.CHANGE_IN_CAPACITY,
			Steps:            resolved,
		}
		if err := reg.Add(policy); err != nil {
			return nil, err
		}
		pool.Policies = append(pool.Policies, policy.Id())
	}
	zap.L().Named(component).Debug("registered elastic pool",
		logging.ResourceField(u.Id),
		zap.Int("min", params.Min),
		zap.Int("max", params.Max),
		zap.Int("policies", len(pool.Policies)),
	)
	return pool, nil
}

// ScaleOnRequestCount adds a target tracking policy keeping each instance near perMinute requests per minute
// as counted by the target group.
func (p *ElasticPool) ScaleOnRequestCount(targetGroup construct.ResourceId, perMinute int) (construct.ResourceId, error) {
	if perMinute <= 0 {
		return construct.ResourceId{}, topo_errs.Configf(component, "request_target_per_minute",
			"%s: request target must be positive, got %d", p.Id, perMinute)
	}
	if _, err := construct.Resolve[*resources.TargetGroup](p.reg, p.Id.String(), targetGroup); err != nil {
		return construct.ResourceId{}, err
	}
	policy := &resources.ScalingPolicy{
		Name:             fmt.Sprintf("requests-per-%s", targetGroup.Name),
		AutoScalingGroup: p.Id,
		PolicyType:       resources.TargetTrackingScaling,
		PredefinedMetric: resources.ALB_REQUEST_COUNT_PER_TARGET,
		TargetGroup:      targetGroup,
		TargetValue:      float64(perMinute),
	}
	if err := p.reg.Add(policy); err != nil {
		return construct.ResourceId{}, err
	}
	p.Policies = append(p.Policies, policy.Id())
	return policy.Id(), nil
}
