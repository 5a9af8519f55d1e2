package capture

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineSource(t *testing.T) {
	out := make(chan Trigger, 1)
	err := LineSource(context.Background(), strings.NewReader("press\n\n  \npress\npress\n"), out)
	require.NoError(t, err)

	// One slot: the first trigger is queued, later ones are dropped.
	require.Len(t, out, 1)
	assert.Equal(t, "line", (<-out).Source)
}

func TestFileCamera(t *testing.T) {
	_, err := NewFileCamera(t.TempDir() + "/missing.jpg").Capture(context.Background())
	assert.Error(t, err)
}

func TestCommandCamera(t *testing.T) {
	img, err := NewCommandCamera([]string{"sh", "-c", "printf jpegbytes"}).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(img))

	_, err = NewCommandCamera([]string{"sh", "-c", "echo no camera >&2; exit 1"}).Capture(context.Background())
	assert.ErrorContains(t, err, "no camera")

	_, err = NewCommandCamera([]string{"true"}).Capture(context.Background())
	assert.ErrorContains(t, err, "no image")
}
