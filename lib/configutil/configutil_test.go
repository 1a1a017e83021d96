package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string   `json:"name"`
	Token   string   `json:"token"`
	Retries int      `json:"retries"`
	Dots    []string `json:"dots"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// comments are fine
		name: "default",
		retries: 3,
		dots: ["1"],
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		name: "local",
	}`), 0644))

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "local", config.Name)
	require.Equal(t, 3, config.Retries)
	require.Equal(t, []string{"1"}, config.Dots)
}

func TestReadConfigExpandsEnv(t *testing.T) {
	t.Setenv("FMCSA_TEST_TOKEN", "secret")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		token: "${FMCSA_TEST_TOKEN}",
		name: "${FMCSA_TEST_UNSET_VARIABLE}",
	}`), 0644))

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "secret", config.Token)
	require.Equal(t, "${FMCSA_TEST_UNSET_VARIABLE}", config.Name)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
