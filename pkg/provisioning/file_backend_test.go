package provisioning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klothoplatform/infratopo/pkg/construct"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type bucket struct {
	Name string `yaml:"-"`
}

func (b *bucket) Id() construct.ResourceId {
	return construct.ResourceId{Provider: "test", Type: "bucket", Name: b.Name}
}

func (b *bucket) References() []construct.ResourceId { return nil }

type reader struct {
	Name   string               `yaml:"-"`
	Bucket construct.ResourceId `yaml:"bucket"`
}

func (r *reader) Id() construct.ResourceId {
	return construct.ResourceId{Provider: "test", Type: "reader", Name: r.Name}
}

func (r *reader) References() []construct.ResourceId { return []construct.ResourceId{r.Bucket} }

func testDocument(t *testing.T) *construct.Document {
	reg := construct.NewRegistry()
	reg.SetStack("storage")
	b := &bucket{Name: "artifacts"}
	require.NoError(t, reg.Add(b))
	reg.SetStack("compute")
	require.NoError(t, reg.Add(&reader{Name: "worker", Bucket: b.Id()}))
	require.NoError(t, reg.AddOutput("BucketArn", construct.Output{Ref: b.Id(), Property: "arn"}))
	doc, err := reg.Document(map[string]string{"AWS_REGION": "us-east-1"})
	require.NoError(t, err)
	return doc
}

func TestFileBackend_Provision(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fs := afero.NewMemMapFs()
	backend := NewFileBackend(fs, "out/demo")
	outputs, err := backend.Provision(context.Background(), testDocument(t))
	require.NoError(err)
	assert.Equal(Outputs{"BucketArn": "${test:bucket:artifacts#arn}"}, outputs)

	content, err := afero.ReadFile(fs, filepath.Join("out/demo", TopologyFile))
	require.NoError(err)
	var written map[string]any
	require.NoError(yaml.Unmarshal(content, &written))
	assert.Equal([]any{"storage", "compute"}, written["stacks"])
	assert.Contains(written["resources"], "test:reader:worker")
	assert.Equal(map[string]any{"test:bucket:artifacts -> test:reader:worker": "reference"}, written["edges"])

	dot, err := afero.ReadFile(fs, filepath.Join("out/demo", GraphFile))
	require.NoError(err)
	assert.True(strings.HasPrefix(string(dot), "strict digraph"), "got %s", dot)
	assert.Contains(string(dot), `"worker"`)
}

func TestFileBackend_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileBackend(fs, "out").Provision(ctx, testDocument(t))
	assert.ErrorIs(t, err, context.Canceled)

	exists, err := afero.Exists(fs, filepath.Join("out", TopologyFile))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileBackend_ReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	_, err := NewFileBackend(fs, "out").Provision(context.Background(), testDocument(t))
	assert.Error(t, err)
}

var errFlush = errors.New("flush failed")

// flushFailFs hands out files whose Close fails, as a full disk would on the final flush.
type flushFailFs struct {
	afero.Fs
}

type flushFailFile struct {
	afero.File
}

func (f flushFailFile) Close() error {
	_ = f.File.Close()
	return errFlush
}

func (fs flushFailFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return flushFailFile{File: f}, nil
}

func TestFileBackend_CloseError(t *testing.T) {
	_, err := NewFileBackend(flushFailFs{Fs: afero.NewMemMapFs()}, "out").Provision(context.Background(), testDocument(t))
	assert.ErrorIs(t, err, errFlush)
	assert.Contains(t, err.Error(), TopologyFile)
}
