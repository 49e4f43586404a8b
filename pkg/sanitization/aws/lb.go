package aws

import (
	"regexp"

	"github.com/klothoplatform/infratopo/pkg/sanitization"
)

// LoadBalancerSanitizer returns a sanitized load balancer name when applied.
var LoadBalancerSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^a-zA-Z\d-]`),
			Replacement: "-",
		},
		{
			Pattern:     regexp.MustCompile(`^internal-`),
			Replacement: "",
		},
		{
			Pattern:     regexp.MustCompile(`^-+`),
			Replacement: "",
		},
		{
			Pattern:     regexp.MustCompile(`-+$`),
			Replacement: "",
		},
	},
	32,
)

// TargetGroupSanitizer returns a sanitized target group name when applied.
var TargetGroupSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^a-zA-Z\d-]`),
			Replacement: "-",
		},
		{
			Pattern:     regexp.MustCompile(`^-+`),
			Replacement: "",
		},
		{
			Pattern:     regexp.MustCompile(`-+$`),
			Replacement: "",
		},
	},
	32,
)
