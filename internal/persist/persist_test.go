package persist

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchmodbus/panel/log2"
)

type blob struct{ b []byte }

func (x *blob) MarshalBinary() ([]byte, error) {
	if x.b == nil {
		return nil, errors.New("blob empty")
	}
	return x.b, nil
}

func (x *blob) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return errors.NotValidf("blob length=%d", len(b))
	}
	x.b = append([]byte(nil), b...)
	return nil
}

func tempRoot(t testing.TB) string {
	dir, err := ioutil.TempDir("", "persist-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()

	root := tempRoot(t)
	log := log2.NewTest(t, log2.LDebug)
	var p Persist
	target := &blob{}
	require.NoError(t, p.Init("calibration", target, root, log))
	assert.Equal(t, ErrNoData, p.Load())

	target.b = []byte{1, 2, 3, 4}
	require.NoError(t, p.Store())

	var p2 Persist
	target2 := &blob{}
	require.NoError(t, p2.Init("calibration", target2, root, log))
	require.NoError(t, p2.Load())
	assert.Equal(t, []byte{1, 2, 3, 4}, target2.b)

	require.NoError(t, p2.Format())
	assert.Equal(t, ErrNoData, p2.Load())
}

func TestPersistCorrupt(t *testing.T) {
	t.Parallel()

	root := tempRoot(t)
	var p Persist
	target := &blob{}
	require.NoError(t, p.Init("calibration", target, root, log2.NewTest(t, log2.LDebug)))
	require.NoError(t, os.MkdirAll(p.Dir(), 0755))
	files, _ := filepath.Glob(filepath.Join(p.Dir(), "*"))
	assert.Empty(t, files)
	for _, name := range []string{"extremofile.v1.main", "extremofile.v1.backup"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(p.Dir(), name), []byte("garbage-not-checksummed"), 0644))
	}

	err := p.Load()
	require.Error(t, err)
	assert.NotEqual(t, ErrNoData, err)

	require.NoError(t, p.Format())
	assert.Equal(t, ErrNoData, p.Load())
}

func TestPersistUnmarshalError(t *testing.T) {
	t.Parallel()

	root := tempRoot(t)
	log := log2.NewTest(t, log2.LDebug)
	var p Persist
	target := &blob{b: []byte{9}}
	require.NoError(t, p.Init("short", target, root, log))
	require.NoError(t, p.Store())
	err := p.Load()
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(errors.Cause(err)), err.Error())
}

func TestPersistInitRoot(t *testing.T) {
	t.Parallel()

	var p Persist
	err := p.Init("x", &blob{}, "", log2.NewTest(t, log2.LDebug))
	assert.True(t, errors.IsNotValid(err))
}
