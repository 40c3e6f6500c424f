package admincli

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/auth"
	"github.com/dmitrijs2005/autolot/internal/server/config"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/repomanager"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{}
	c.LoadDefaults()
	c.CatalogBackend = config.CatalogBackendBadger
	c.BadgerDir = filepath.Join(dir, "catalog")
	c.AssetBackend = config.AssetBackendFS
	c.UploadDir = filepath.Join(dir, "uploads")
	c.ImageEngine = "native"
	c.LogLevel = "error"
	return c
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(cfg)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 6), G: uint8(y * 8), B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func TestHashPassword_PrintsVerifiableHash(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }

	out, err := run(t, testConfig(t), "hash-password")
	require.NoError(t, err)

	ok, err := auth.CheckPassword(strings.TrimSpace(out), "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPassword_Mismatch(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	answers := [][]byte{[]byte("one"), []byte("two")}
	readPassword = func(int) ([]byte, error) {
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}

	_, err := run(t, testConfig(t), "hash-password")
	assert.ErrorIs(t, err, errPasswordMismatch)
}

func TestCatalogCommands_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	imgDir := t.TempDir()
	front := writePNG(t, imgDir, "front.png")
	rear := writePNG(t, imgDir, "rear.png")

	out, err := run(t, cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	out, err = run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No vehicles found")

	out, err = run(t, cfg, "add", "--make", "Saab", "--model", "900", "--price", "7500",
		"--year", "1991", "--image", front, "--image", rear)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 of 2 images stored)")
	id := strings.Fields(out)[1]

	out, err = run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Saab")

	out, err = run(t, cfg, "list", "--make", "Volvo")
	require.NoError(t, err)
	assert.Contains(t, out, "No vehicles found")

	out, err = run(t, cfg, "list", "--make", "Saab", "--year", "1991", "--sort", "price-desc")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, cfg, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "1 listings verified")

	stored, err := filepath.Glob(filepath.Join(cfg.UploadDir, "*.webp"))
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NoError(t, os.Remove(stored[0]))

	out, err = run(t, cfg, "verify", id)
	assert.ErrorIs(t, err, errMissingAssets)
	assert.Contains(t, out, id)

	out, err = run(t, cfg, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)

	stored, err = filepath.Glob(filepath.Join(cfg.UploadDir, "*.webp"))
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAdd_RequiresCoreFlags(t *testing.T) {
	_, err := run(t, testConfig(t), "add", "--make", "Saab")
	require.Error(t, err)
}

func TestAdd_UnreadableImage(t *testing.T) {
	_, err := run(t, testConfig(t), "add", "--make", "Saab", "--model", "900", "--price", "1",
		"--image", filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read image")
}

func TestPersistentFlagsOverrideConfig(t *testing.T) {
	cfg := testConfig(t)

	origRepos := openRepos
	t.Cleanup(func() { openRepos = origRepos })

	var seen config.Config
	openRepos = func(ctx context.Context, c *config.Config, l logging.Logger) (repomanager.RepositoryManager, error) {
		seen = *c
		return nil, errors.New("stop")
	}

	_, err := run(t, cfg, "list", "-k", "postgres", "-d", "postgres://u:p@db/cat")
	require.Error(t, err)
	assert.Equal(t, "postgres", seen.CatalogBackend)
	assert.Equal(t, "postgres://u:p@db/cat", seen.DatabaseDSN)
}
