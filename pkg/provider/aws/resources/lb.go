package resources

import "github.com/klothoplatform/infratopo/pkg/construct"

type (
	LoadBalancer struct {
		Name             string                 `yaml:"-"`
		LoadBalancerType string                 `yaml:"load_balancer_type"`
		Scheme           string                 `yaml:"scheme"`
		Subnets          []construct.ResourceId `yaml:"subnets"`
		SecurityGroups   []construct.ResourceId `yaml:"security_groups"`
	}

	TargetGroup struct {
		Name        string                 `yaml:"-"`
		Vpc         construct.ResourceId   `yaml:"vpc"`
		Port        int                    `yaml:"port"`
		Protocol    string                 `yaml:"protocol"`
		TargetType  string                 `yaml:"target_type"`
		Targets     []construct.ResourceId `yaml:"targets"`
		HealthCheck *HealthCheck           `yaml:"health_check,omitempty"`
	}

	HealthCheck struct {
		Path               string `yaml:"path"`
		HealthyThreshold   int    `yaml:"healthy_threshold"`
		UnhealthyThreshold int    `yaml:"unhealthy_threshold"`
	}

	Listener struct {
		Name          string               `yaml:"-"`
		LoadBalancer  construct.ResourceId `yaml:"load_balancer"`
		Port          int                  `yaml:"port"`
		Protocol      string               `yaml:"protocol"`
		DefaultAction ListenerAction       `yaml:"default_action"`
	}

	ListenerAction struct {
		Type        string               `yaml:"type"`
		TargetGroup construct.ResourceId `yaml:"target_group"`
	}
)

const (
	APPLICATION_LOAD_BALANCER = "application"
	INTERNET_FACING           = "internet-facing"
	HTTP                      = "HTTP"
	TCP                       = "tcp"
	FORWARD_ACTION            = "forward"
	INSTANCE_TARGET_TYPE      = "instance"
)

func (lb *LoadBalancer) Id() construct.ResourceId {
	return awsId(LOAD_BALANCER_TYPE, "", lb.Name)
}

func (lb *LoadBalancer) References() []construct.ResourceId {
	refs := append([]construct.ResourceId{}, lb.Subnets...)
	return append(refs, lb.SecurityGroups...)
}

func (tg *TargetGroup) Id() construct.ResourceId {
	return awsId(TARGET_GROUP_TYPE, "", tg.Name)
}

func (tg *TargetGroup) References() []construct.ResourceId {
	return append([]construct.ResourceId{tg.Vpc}, tg.Targets...)
}

func (listener *Listener) Id() construct.ResourceId {
	return awsId(LISTENER_TYPE, listener.LoadBalancer.Name, listener.Name)
}

func (listener *Listener) References() []construct.ResourceId {
	return []construct.ResourceId{listener.LoadBalancer, listener.DefaultAction.TargetGroup}
}
