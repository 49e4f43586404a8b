package aws

import (
	"regexp"

	"github.com/klothoplatform/infratopo/pkg/sanitization"
)

// IamRoleSanitizer returns a sanitized role name when applied.
var IamRoleSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^\w+=,.@-]`),
			Replacement: "_",
		},
	}, 64)

// IamPolicySanitizer returns a sanitized inline policy name when applied.
var IamPolicySanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^\w+=,.@-]`),
			Replacement: "_",
		},
	}, 128)
