package resources

import (
	"fmt"

	"github.com/klothoplatform/infratopo/pkg/construct"
)

const LATEST_AMAZON_LINUX_2 = "amazon-linux-2"

type (
	Ec2Instance struct {
		Name            string                 `yaml:"-"`
		InstanceType    string                 `yaml:"instance_type"`
		Image           string                 `yaml:"image"`
		Subnet          construct.ResourceId   `yaml:"subnet"`
		SecurityGroups  []construct.ResourceId `yaml:"security_groups"`
		InstanceProfile construct.ResourceId   `yaml:"instance_profile"`
		UserData        string                 `yaml:"user_data,omitempty"`
		Environment     map[string]string      `yaml:"environment,omitempty"`
		// Secrets are read by the bootstrap script at start.
		Secrets []construct.ResourceId `yaml:"secrets,omitempty"`
	}

	AutoScalingGroup struct {
		Name            string                 `yaml:"-"`
		InstanceType    string                 `yaml:"instance_type"`
		Image           string                 `yaml:"image"`
		MinSize         int                    `yaml:"min_size"`
		MaxSize         int                    `yaml:"max_size"`
		DesiredCapacity int                    `yaml:"desired_capacity"`
		Subnets         []construct.ResourceId `yaml:"subnets"`
		SecurityGroups  []construct.ResourceId `yaml:"security_groups"`
		InstanceProfile construct.ResourceId   `yaml:"instance_profile"`
		UserData        string                 `yaml:"user_data,omitempty"`
		Environment     map[string]string      `yaml:"environment,omitempty"`
		Secrets         []construct.ResourceId `yaml:"secrets,omitempty"`
	}

	ScalingPolicyType string

	ScalingPolicy struct {
		Name             string               `yaml:"-"`
		AutoScalingGroup construct.ResourceId `yaml:"auto_scaling_group"`
		PolicyType       ScalingPolicyType    `yaml:"policy_type"`

		// target tracking
		PredefinedMetric string               `yaml:"predefined_metric,omitempty"`
		TargetGroup      construct.ResourceId `yaml:"target_group,omitempty"`
		TargetValue      float64              `yaml:"target_value,omitempty"`

		// step scaling
		MetricName     string        `yaml:"metric_name,omitempty"`
		AdjustmentType string        `yaml:"adjustment_type,omitempty"`
		Steps          []ScalingStep `yaml:"steps,omitempty"`
	}

	// ScalingStep changes capacity by Change while the metric is in [Lower, Upper). A nil bound is open.
	ScalingStep struct {
		Lower  *float64 `yaml:"lower,omitempty"`
		Upper  *float64 `yaml:"upper,omitempty"`
		Change int      `yaml:"change"`
	}
)

const (
	TargetTrackingScaling ScalingPolicyType = "TargetTrackingScaling"
	StepScaling           ScalingPolicyType = "StepScaling"

	ALB_REQUEST_COUNT_PER_TARGET = "ALBRequestCountPerTarget"
	CPU_UTILIZATION              = "CPUUtilization"
	CHANGE_IN_CAPACITY           = "ChangeInCapacity"
)

func (step ScalingStep) String() string {
	bound := func(b *float64) string {
		if b == nil {
			return "∞"
		}
		return fmt.Sprintf("%g", *b)
	}
	lower := "-∞"
	if step.Lower != nil {
		lower = bound(step.Lower)
	}
	return fmt.Sprintf("[%s, %s) %+d", lower, bound(step.Upper), step.Change)
}

func (instance *Ec2Instance) Id() construct.ResourceId {
	return awsId(EC2_INSTANCE_TYPE, "", instance.Name)
}

func (instance *Ec2Instance) References() []construct.ResourceId {
	refs := []construct.ResourceId{instance.Subnet}
	refs = append(refs, instance.SecurityGroups...)
	refs = append(refs, instance.InstanceProfile)
	return append(refs, instance.Secrets...)
}

func (asg *AutoScalingGroup) Id() construct.ResourceId {
	return awsId(AUTO_SCALING_GROUP_TYPE, "", asg.Name)
}

func (asg *AutoScalingGroup) References() []construct.ResourceId {
	refs := append([]construct.ResourceId{}, asg.Subnets...)
	refs = append(refs, asg.SecurityGroups...)
	refs = append(refs, asg.InstanceProfile)
	return append(refs, asg.Secrets...)
}

func (policy *ScalingPolicy) Id() construct.ResourceId {
	return awsId(SCALING_POLICY_TYPE, policy.AutoScalingGroup.Name, policy.Name)
}

func (policy *ScalingPolicy) References() []construct.ResourceId {
	return append([]construct.ResourceId{policy.AutoScalingGroup}, optional(policy.TargetGroup)...)
}
