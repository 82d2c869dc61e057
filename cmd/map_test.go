package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zip-mapper/internal/pipeline"
)

func TestReadCodesInput_Flag(t *testing.T) {
	codes, err := readCodesInput("06106, 06511,,06106", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"06106", "06511"}, codes)
}

func TestReadCodesInput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.txt")
	require.NoError(t, os.WriteFile(path, []byte("06902\n\n06106,10001\n"), 0o600))

	codes, err := readCodesInput("06106", path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"06106", "06902", "10001"}, codes)
}

func TestReadCodesInput_Stdin(t *testing.T) {
	codes, err := readCodesInput("", "-", strings.NewReader("02108\n 03301 \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"02108", "03301"}, codes)
}

func TestReadCodesInput_MissingFile(t *testing.T) {
	_, err := readCodesInput("", filepath.Join(t.TempDir(), "nope.txt"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestReadCodesInput_Empty(t *testing.T) {
	_, err := readCodesInput(" , ", "", nil)
	assert.ErrorIs(t, err, pipeline.ErrNoPostalCodes)
}

func TestWriteJSON(t *testing.T) {
	var compact, pretty bytes.Buffer
	v := map[string]int{"total": 2}

	require.NoError(t, writeJSON(&compact, v, false))
	require.NoError(t, writeJSON(&pretty, v, true))

	assert.Equal(t, "{\"total\":2}\n", compact.String())
	assert.Equal(t, "{\n  \"total\": 2\n}\n", pretty.String())
}
