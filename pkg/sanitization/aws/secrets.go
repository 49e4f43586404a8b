package aws

import (
	"regexp"

	"github.com/klothoplatform/infratopo/pkg/sanitization"
)

var SecretSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^\w/+=.@-]`),
			Replacement: "-",
		},
	},
	512,
)
