package onnx

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForPlatform(t *testing.T) {
	r, err := ForPlatform("/opt/lib", "linux", "amd64")
	require.NoError(t, err)
	require.Equal(t, "/opt/lib/onnxruntime-linux-x64-1.20.0/lib/libonnxruntime.1.20.0.so", r.LibPath())
	require.Equal(t, releaseURL+"v1.20.0/onnxruntime-linux-x64-1.20.0.tgz", r.DownloadURL())

	r, err = ForPlatform("/opt/lib", "darwin", "arm64")
	require.NoError(t, err)
	require.Equal(t, "/opt/lib/onnxruntime-osx-arm64-1.20.0/lib/libonnxruntime.1.20.0.dylib", r.LibPath())

	_, err = ForPlatform("/opt/lib", "windows", "amd64")
	require.Error(t, err)
	_, err = ForPlatform("/opt/lib", "linux", "386")
	require.Error(t, err)
}

func archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestUnpack(t *testing.T) {
	dir := t.TempDir()
	tgz := filepath.Join(dir, "rt.tgz")
	require.NoError(t, os.WriteFile(tgz, archive(t, map[string]string{"rt/lib/lib.so": "elf"}), 0o644))

	require.NoError(t, Unpack(tgz, dir))
	b, err := os.ReadFile(filepath.Join(dir, "rt", "lib", "lib.so"))
	require.NoError(t, err)
	require.Equal(t, "elf", string(b))
}

func TestUnpackRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	tgz := filepath.Join(dir, "evil.tgz")
	require.NoError(t, os.WriteFile(tgz, archive(t, map[string]string{"../evil": "x"}), 0o644))
	require.ErrorContains(t, Unpack(tgz, filepath.Join(dir, "dst")), "escapes")
}

func symlinkArchive(t *testing.T, name, target string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Linkname: target, Typeflag: tar.TypeSymlink}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestUnpackSymlinks(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")
	for _, target := range []string{"/etc/passwd", "../../../evil", "../../../../tmp"} {
		tgz := filepath.Join(dir, "link.tgz")
		require.NoError(t, os.WriteFile(tgz, symlinkArchive(t, "rt/lib/evil", target), 0o644))
		require.ErrorContains(t, Unpack(tgz, dst), "escapes", target)
		_, err := os.Lstat(filepath.Join(dst, "rt", "lib", "evil"))
		require.True(t, os.IsNotExist(err), target)
	}

	tgz := filepath.Join(dir, "ok.tgz")
	require.NoError(t, os.WriteFile(tgz, symlinkArchive(t, "rt/lib/libonnxruntime.so", "libonnxruntime.so.1.20.0"), 0o644))
	require.NoError(t, Unpack(tgz, dst))
	link, err := os.Readlink(filepath.Join(dst, "rt", "lib", "libonnxruntime.so"))
	require.NoError(t, err)
	require.Equal(t, "libonnxruntime.so.1.20.0", link)
}

func TestFetchSkipsExisting(t *testing.T) {
	r, err := ForPlatform(t.TempDir(), "linux", "amd64")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(r.LibPath()), 0o755))
	require.NoError(t, os.WriteFile(r.LibPath(), nil, 0o644))

	// a client that cannot dial proves no download is attempted
	client := &http.Client{Transport: failingTransport{}}
	require.NoError(t, r.Fetch(context.Background(), client, slog.Default()))
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, os.ErrPermission
}
