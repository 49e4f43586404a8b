package provisioning

import (
	"context"

	"github.com/klothoplatform/infratopo/pkg/construct"
)

//go:generate mockgen -source=./backend.go --destination=../topology/backend_mock_test.go --package=topology

type (
	// Outputs maps output names to their values once the backend has materialized the topology.
	Outputs map[string]string

	// Backend turns a topology document into real infrastructure. Resources are created in document order
	// and each dependency edge is honored for creation and teardown.
	Backend interface {
		Provision(ctx context.Context, doc *construct.Document) (Outputs, error)
	}
)
