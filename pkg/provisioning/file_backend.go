package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klothoplatform/infratopo/pkg/construct"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	TopologyFile = "topology.yaml"
	GraphFile    = "topology.dot"
)

// FileBackend writes the topology document and its dependency graph to a directory instead of provisioning it.
// Outputs are returned as placeholders for the values a real backend would resolve.
type FileBackend struct {
	FS  afero.Fs
	Dir string
}

func NewFileBackend(fs afero.Fs, dir string) *FileBackend {
	return &FileBackend{FS: fs, Dir: dir}
}

func (b *FileBackend) writeFile(path string, write func(io.Writer) error) (err error) {
	path = filepath.Join(b.Dir, path)
	err = b.FS.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}

	f, err := b.FS.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return write(f)
}

func (b *FileBackend) Provision(ctx context.Context, doc *construct.Document) (Outputs, error) {
	log := logging.GetLogger(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("Writing topology", zap.String("dir", b.Dir), zap.Int("resources", len(doc.Resources)))
	err := b.writeFile(TopologyFile, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", TopologyFile, err)
	}

	if err := b.writeFile(GraphFile, doc.WriteDOT); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", GraphFile, err)
	}

	outputs := make(Outputs, len(doc.Outputs))
	for _, name := range doc.OutputNames() {
		outputs[name] = doc.Outputs[name].Placeholder()
	}
	return outputs, nil
}
