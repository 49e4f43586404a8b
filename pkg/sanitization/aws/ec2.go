package aws

import (
	"regexp"

	"github.com/klothoplatform/infratopo/pkg/sanitization"
)

// Ec2InstanceSanitizer returns a sanitized EC2 instance name when applied.
var Ec2InstanceSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^a-zA-Z\d-]`),
			Replacement: "_",
		},
		{
			Pattern:     regexp.MustCompile(`^[^a-zA-Z]+`),
			Replacement: "",
		},
	},
	100,
)

// NetworkNameSanitizer is used for the Name tag of VPCs, subnets, gateways and endpoints.
var NetworkNameSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^\w\-.]`),
			Replacement: "_",
		},
	},
	255,
)

// SecurityGroupSanitizer returns a sanitized security group name. Names starting with sg- are reserved.
var SecurityGroupSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^a-zA-Z0-9 ._\-:/()#,@\[\]+=&;{}!$*]`),
			Replacement: "_",
		},
		{
			Pattern:     regexp.MustCompile(`^sg-`),
			Replacement: "",
		},
	},
	255,
)

// AutoScalingGroupSanitizer returns a sanitized auto scaling group name.
var AutoScalingGroupSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^\w\-.]`),
			Replacement: "-",
		},
	},
	255,
)
