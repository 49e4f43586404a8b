package aws

import (
	"regexp"

	"github.com/klothoplatform/infratopo/pkg/sanitization"
)

// RdsClusterSanitizer returns a sanitized cluster or instance identifier when applied.
// Identifiers are case-insensitive and stored lowercase, so callers lowercase before applying.
var RdsClusterSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^\da-z-]`),
			Replacement: "-",
		},
		// Identifier must start with a letter
		{
			Pattern:     regexp.MustCompile(`^[^a-zA-Z]+`),
			Replacement: "",
		},
		// Identifier must not contain consecutive hyphens
		{
			Pattern:     regexp.MustCompile(`--+`),
			Replacement: "-",
		},
		// Identifier must not end with a hyphen
		{
			Pattern:     regexp.MustCompile(`-+$`),
			Replacement: "",
		},
	}, 63)

// RdsSubnetGroupSanitizer returns a sanitized subnet group name when applied.
var RdsSubnetGroupSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		{
			Pattern:     regexp.MustCompile(`[^a-z0-9_.-]+`),
			Replacement: "",
		},
	}, 255)

// RdsDBNameSanitizer returns a sanitized default database (schema) name when applied.
var RdsDBNameSanitizer = sanitization.NewSanitizer(
	[]sanitization.Rule{
		// Identifier must contain only alphanumeric characters or underscores
		{
			Pattern:     regexp.MustCompile(`[^a-zA-Z0-9_]+`),
			Replacement: "",
		},
		// Identifier must start with a letter
		{
			Pattern:     regexp.MustCompile(`^[^a-zA-Z]+`),
			Replacement: "",
		},
	}, 64)
