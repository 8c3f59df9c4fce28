package engine

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiel/sealbox/internal/crypt"
	"github.com/akiel/sealbox/internal/kdf"
	"github.com/akiel/sealbox/internal/resolve"
)

const testThreshold = 8 * 1024 // keep streaming tests small and fast

var testPassword = []byte("Tr0ub4dor&3")

func testConfig(op Op, files []string, outDir string) Config {
	return Config{
		Op:              op,
		Files:           files,
		OutputDir:       outDir,
		Password:        testPassword,
		Workers:         2,
		ChunkSize:       crypt.MinChunkSize,
		StreamThreshold: testThreshold,
		Iterations:      kdf.MinIterations,
	}
}

func writeRandomFile(t *testing.T, path string, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return data
}

func TestRun_EncryptDecryptBatch(t *testing.T) {
	srcDir := t.TempDir()
	encDir := t.TempDir()
	decDir := t.TempDir()

	// Three files: tiny, above-threshold, empty.
	small := filepath.Join(srcDir, "a.txt")
	require.NoError(t, os.WriteFile(small, []byte("hi"), 0o644))
	big := filepath.Join(srcDir, "b.txt")
	bigData := writeRandomFile(t, big, testThreshold+testThreshold/2)
	empty := filepath.Join(srcDir, "c.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	res := Run(context.Background(), testConfig(OpEncrypt, []string{small, big, empty}, encDir))
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Successful)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 1, res.Streamed)

	// Results preserve input order.
	require.Len(t, res.Files, 3)
	assert.Equal(t, small, res.Files[0].InputPath)
	assert.False(t, res.Files[0].Streamed)
	assert.Equal(t, big, res.Files[1].InputPath)
	assert.True(t, res.Files[1].Streamed)
	assert.False(t, res.Files[2].Streamed)

	// Decrypt each container back and compare contents.
	sealed := []string{
		filepath.Join(encDir, "a.txt.sealed"),
		filepath.Join(encDir, "b.txt.sealed"),
		filepath.Join(encDir, "c.txt.sealed"),
	}
	dres := Run(context.Background(), testConfig(OpDecrypt, sealed, decDir))
	require.NoError(t, dres.Err)
	assert.Equal(t, 3, dres.Successful)
	assert.Equal(t, 1, dres.Streamed)

	got, err := os.ReadFile(filepath.Join(decDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	got, err = os.ReadFile(filepath.Join(decDir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, bigData, got)

	got, err = os.ReadFile(filepath.Join(decDir, "c.txt"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRun_Totals(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	f := filepath.Join(srcDir, "f.txt")
	writeRandomFile(t, f, 1024)

	res := Run(context.Background(), testConfig(OpEncrypt, []string{f}, outDir))
	require.NoError(t, res.Err)
	assert.Equal(t, res.Total, res.Successful+res.Failed)
	assert.LessOrEqual(t, res.Streamed, res.Total)
	assert.Equal(t, int64(1024), res.BytesIn)
	assert.Positive(t, res.BytesOut)
	assert.Positive(t, res.Elapsed)
}

func TestRun_FailIndependent(t *testing.T) {
	srcDir := t.TempDir()
	encDir := t.TempDir()
	decDir := t.TempDir()

	var files []string
	var contents [][]byte
	for _, name := range []string{"one", "two", "three"} {
		p := filepath.Join(srcDir, name)
		contents = append(contents, writeRandomFile(t, p, 512))
		files = append(files, p)
	}

	res := Run(context.Background(), testConfig(OpEncrypt, files, encDir))
	require.NoError(t, res.Err)
	require.Equal(t, 3, res.Successful)

	// Corrupt the middle container.
	corruptPath := filepath.Join(encDir, "two.sealed")
	raw, err := os.ReadFile(corruptPath)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(corruptPath, raw, 0o644))

	sealed := []string{
		filepath.Join(encDir, "one.sealed"),
		corruptPath,
		filepath.Join(encDir, "three.sealed"),
	}
	dres := Run(context.Background(), testConfig(OpDecrypt, sealed, decDir))
	require.NoError(t, dres.Err)
	assert.Equal(t, 3, dres.Total)
	assert.Equal(t, 2, dres.Successful)
	assert.Equal(t, 1, dres.Failed)

	assert.True(t, dres.Files[0].Success)
	require.Error(t, dres.Files[1].Err)
	assert.ErrorIs(t, dres.Files[1].Err, crypt.ErrDecryptionFailed)
	assert.True(t, dres.Files[2].Success)

	// The unaffected outputs are intact.
	got, err := os.ReadFile(filepath.Join(decDir, "one"))
	require.NoError(t, err)
	assert.Equal(t, contents[0], got)
	got, err = os.ReadFile(filepath.Join(decDir, "three"))
	require.NoError(t, err)
	assert.Equal(t, contents[2], got)

	// The failed file left no partial output behind.
	assert.NoFileExists(t, filepath.Join(decDir, "two"))
}

func TestRun_WrongPassword(t *testing.T) {
	srcDir := t.TempDir()
	encDir := t.TempDir()
	f := filepath.Join(srcDir, "secret.txt")
	writeRandomFile(t, f, 256)

	res := Run(context.Background(), testConfig(OpEncrypt, []string{f}, encDir))
	require.NoError(t, res.Err)

	cfg := testConfig(OpDecrypt, []string{filepath.Join(encDir, "secret.txt.sealed")}, t.TempDir())
	cfg.Password = []byte("not the password")
	dres := Run(context.Background(), cfg)
	require.NoError(t, dres.Err)
	assert.Equal(t, 1, dres.Failed)
	assert.ErrorIs(t, dres.Files[0].Err, crypt.ErrDecryptionFailed)
}

func TestRun_ForceStream(t *testing.T) {
	srcDir := t.TempDir()
	encDir := t.TempDir()
	f := filepath.Join(srcDir, "tiny.txt")
	data := writeRandomFile(t, f, 100)

	cfg := testConfig(OpEncrypt, []string{f}, encDir)
	cfg.ForceStream = true
	res := Run(context.Background(), cfg)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Streamed)

	decDir := t.TempDir()
	dres := Run(context.Background(), testConfig(OpDecrypt, []string{filepath.Join(encDir, "tiny.txt.sealed")}, decDir))
	require.NoError(t, dres.Err)
	assert.Equal(t, 1, dres.Streamed)

	got, err := os.ReadFile(filepath.Join(decDir, "tiny.txt"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRun_ConflictStrategies(t *testing.T) {
	t.Run("skip", func(t *testing.T) {
		srcDir, encDir := t.TempDir(), t.TempDir()
		f := filepath.Join(srcDir, "a.txt")
		writeRandomFile(t, f, 64)
		existing := filepath.Join(encDir, "a.txt.sealed")
		require.NoError(t, os.WriteFile(existing, []byte("existing"), 0o644))

		cfg := testConfig(OpEncrypt, []string{f}, encDir)
		cfg.OnConflict = resolve.Skip
		res := Run(context.Background(), cfg)
		require.NoError(t, res.Err)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 1, res.Successful)

		got, err := os.ReadFile(existing)
		require.NoError(t, err)
		assert.Equal(t, []byte("existing"), got, "skip must not overwrite")
	})

	t.Run("overwrite", func(t *testing.T) {
		srcDir, encDir := t.TempDir(), t.TempDir()
		f := filepath.Join(srcDir, "a.txt")
		writeRandomFile(t, f, 64)
		existing := filepath.Join(encDir, "a.txt.sealed")
		require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

		cfg := testConfig(OpEncrypt, []string{f}, encDir)
		cfg.OnConflict = resolve.Overwrite
		res := Run(context.Background(), cfg)
		require.NoError(t, res.Err)
		assert.Zero(t, res.Skipped)

		got, err := os.ReadFile(existing)
		require.NoError(t, err)
		assert.NotEqual(t, []byte("old"), got, "overwrite must replace")
	})

	t.Run("rename", func(t *testing.T) {
		srcDir, encDir := t.TempDir(), t.TempDir()
		f := filepath.Join(srcDir, "a.txt")
		writeRandomFile(t, f, 64)
		existing := filepath.Join(encDir, "a.txt.sealed")
		require.NoError(t, os.WriteFile(existing, []byte("original"), 0o644))

		cfg := testConfig(OpEncrypt, []string{f}, encDir)
		cfg.OnConflict = resolve.Rename
		res := Run(context.Background(), cfg)
		require.NoError(t, res.Err)
		require.Equal(t, 1, res.Successful)

		renamed := filepath.Join(encDir, "a.txt (1).sealed")
		assert.Equal(t, renamed, res.Files[0].OutputPath)
		assert.FileExists(t, renamed)

		got, err := os.ReadFile(existing)
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), got, "rename must leave the original untouched")
	})

	t.Run("backup", func(t *testing.T) {
		srcDir, encDir := t.TempDir(), t.TempDir()
		f := filepath.Join(srcDir, "a.txt")
		writeRandomFile(t, f, 64)
		existing := filepath.Join(encDir, "a.txt.sealed")
		require.NoError(t, os.WriteFile(existing, []byte("precious"), 0o644))

		cfg := testConfig(OpEncrypt, []string{f}, encDir)
		cfg.OnConflict = resolve.Backup
		res := Run(context.Background(), cfg)
		require.NoError(t, res.Err)
		require.Equal(t, 1, res.Successful)
		assert.Equal(t, existing+".bak", res.Files[0].BackupPath)

		got, err := os.ReadFile(existing + ".bak")
		require.NoError(t, err)
		assert.Equal(t, []byte("precious"), got, "backup must preserve the original content")
		assert.FileExists(t, existing, "primary operation must still complete")
	})
}

func TestRun_DryRun(t *testing.T) {
	srcDir, encDir := t.TempDir(), t.TempDir()
	f := filepath.Join(srcDir, "a.txt")
	writeRandomFile(t, f, 64)

	cfg := testConfig(OpEncrypt, []string{f}, encDir)
	cfg.DryRun = true
	res := Run(context.Background(), cfg)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Successful)
	assert.NoFileExists(t, filepath.Join(encDir, "a.txt.sealed"))
}

func TestRun_Preserve(t *testing.T) {
	srcDir, encDir := t.TempDir(), t.TempDir()
	f := filepath.Join(srcDir, "a.txt")
	writeRandomFile(t, f, 64)
	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(f, past, past))
	require.NoError(t, os.Chmod(f, 0o640))

	cfg := testConfig(OpEncrypt, []string{f}, encDir)
	cfg.Preserve = true
	res := Run(context.Background(), cfg)
	require.NoError(t, res.Err)

	info, err := os.Stat(filepath.Join(encDir, "a.txt.sealed"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(past), "mtime %v != %v", info.ModTime(), past)
}

func TestRun_Validation(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "ok.txt")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no files", func(c *Config) { c.Files = nil }},
		{"empty password", func(c *Config) { c.Password = nil }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"missing file", func(c *Config) { c.Files = []string{filepath.Join(dir, "nope")} }},
		{"directory input", func(c *Config) { c.Files = []string{dir} }},
		{"bad conflict strategy", func(c *Config) { c.OnConflict = "explode" }},
		{"bad chunk size", func(c *Config) { c.ChunkSize = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(OpEncrypt, []string{existing}, dir)
			tt.mutate(&cfg)
			res := Run(context.Background(), cfg)
			assert.ErrorIs(t, res.Err, ErrInvalidInput)
			assert.Zero(t, res.Total)
		})
	}
}

func TestRun_Cancellation(t *testing.T) {
	srcDir, encDir := t.TempDir(), t.TempDir()
	var files []string
	for i := 0; i < 8; i++ {
		p := filepath.Join(srcDir, string(rune('a'+i))+".txt")
		writeRandomFile(t, p, 256)
		files = append(files, p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(OpEncrypt, files, encDir)
	res := Run(ctx, cfg)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 8, res.Total)
	assert.Equal(t, res.Total, res.Successful+res.Failed)

	// No partial outputs remain.
	for _, fr := range res.Files {
		if fr.Err != nil {
			assert.NoFileExists(t, fr.OutputPath)
		}
	}
}
