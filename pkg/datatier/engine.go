package datatier

import (
	"fmt"
	"strings"

	"github.com/coreos/go-semver/semver"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
)

const auroraMarker = ".mysql_aurora."

// mysqlCompat maps each supported Aurora MySQL major version to the MySQL version it is compatible with.
var mysqlCompat = map[int64]string{
	2: "5.7",
	3: "8.0",
}

// EngineVersion parses an Aurora MySQL engine version given either as the Aurora version alone (2.07.2) or in
// the full form the RDS API uses (5.7.mysql_aurora.2.07.2). It returns the full form.
func EngineVersion(v string) (string, error) {
	compat, aurora, hasCompat := strings.Cut(v, auroraMarker)
	if !hasCompat {
		aurora, compat = v, ""
	}
	parsed, err := semver.NewVersion(aurora)
	if err != nil {
		return "", topo_errs.ConfigurationError{
			Component: component,
			Field:     "engine_version",
			Reason:    fmt.Sprintf("%q is not an aurora mysql version", v),
			Err:       err,
		}
	}
	want, ok := mysqlCompat[parsed.Major]
	if !ok {
		return "", topo_errs.Configf(component, "engine_version", "unsupported aurora mysql major version %d in %q", parsed.Major, v)
	}
	if compat != "" && compat != want {
		return "", topo_errs.Configf(component, "engine_version", "aurora mysql %d is compatible with mysql %s, not %s", parsed.Major, want, compat)
	}
	return want + auroraMarker + aurora, nil
}
