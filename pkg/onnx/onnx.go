// Package onnx locates the ONNX runtime shared library and downloads the
// release archive into the user's lib dir when it is missing.
package onnx

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/multierr"
)

const (
	releaseURL = "https://github.com/microsoft/onnxruntime/releases/download/"
	target     = "onnxruntime"
	version    = "1.20.0"
)

// Runtime describes where the shared library lives for one platform.
type Runtime struct {
	Dir  string
	OS   string
	Arch string
}

// DefaultRuntime targets ~/.local/lib on the running platform.
func DefaultRuntime() (Runtime, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Runtime{}, err
	}
	return ForPlatform(filepath.Join(home, ".local", "lib"), runtime.GOOS, runtime.GOARCH)
}

func ForPlatform(dir, goos, goarch string) (Runtime, error) {
	r := Runtime{Dir: dir}
	switch goos {
	case "darwin":
		r.OS = "osx"
	case "linux":
		r.OS = "linux"
	default:
		return Runtime{}, fmt.Errorf("OS '%s' is not supported", goos)
	}
	switch goarch {
	case "arm64":
		r.Arch = "arm64"
	case "amd64":
		r.Arch = "x64"
	default:
		return Runtime{}, fmt.Errorf("architecture '%s' is not supported", goarch)
	}
	return r, nil
}

func (r Runtime) release() string {
	return fmt.Sprintf("%s-%s-%s-%s", target, r.OS, r.Arch, version)
}

func (r Runtime) LibPath() string {
	ext := "so"
	if r.OS == "osx" {
		ext = "dylib"
	}
	return filepath.Join(r.Dir, r.release(), "lib", fmt.Sprintf("lib%s.%s.%s", target, version, ext))
}

func (r Runtime) DownloadURL() string {
	return fmt.Sprintf("%sv%s/%s.tgz", releaseURL, version, r.release())
}

// Fetch downloads and unpacks the runtime unless LibPath already exists.
func (r Runtime) Fetch(ctx context.Context, client *http.Client, logger *slog.Logger) error {
	if _, err := os.Stat(r.LibPath()); err == nil {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	logger.Info("downloading onnx runtime", "url", r.DownloadURL(), "dir", r.Dir)
	if err := r.download(ctx, client); err != nil {
		return fmt.Errorf("failed to download onnx runtime: %w", err)
	}
	return nil
}

func (r Runtime) download(ctx context.Context, client *http.Client) (err error) {
	if err = os.MkdirAll(r.Dir, 0o755); err != nil {
		return err
	}
	tgz := filepath.Join(r.Dir, version+".tgz")
	out, err := os.Create(tgz)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, os.Remove(tgz))
	}()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.DownloadURL(), nil)
	if err != nil {
		return multierr.Append(err, out.Close())
	}
	resp, err := client.Do(req)
	if err != nil {
		return multierr.Append(err, out.Close())
	}
	defer func() {
		err = multierr.Append(err, resp.Body.Close())
	}()
	if resp.StatusCode != http.StatusOK {
		return multierr.Append(fmt.Errorf("bad status code %d", resp.StatusCode), out.Close())
	}
	if _, err = io.Copy(out, resp.Body); err != nil {
		return multierr.Append(fmt.Errorf("failed to write archive: %w", err), out.Close())
	}
	if err = out.Close(); err != nil {
		return err
	}
	return Unpack(tgz, r.Dir)
}

// Unpack extracts a .tgz archive below dst, rejecting entries that escape it.
func Unpack(tgzPath, dst string) (err error) {
	file, err := os.Open(tgzPath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", tgzPath, err)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()
	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to read gzip archive: %w", err)
	}
	defer func() {
		err = multierr.Append(err, gz.Close())
	}()
	tr := tar.NewReader(gz)
	root := filepath.Clean(dst) + string(os.PathSeparator)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar archive: %w", err)
		}
		path := filepath.Join(dst, header.Name)
		if !strings.HasPrefix(path+string(os.PathSeparator), root) {
			return fmt.Errorf("archive entry %q escapes %s", header.Name, dst)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err = writeFile(path, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			target := filepath.Join(filepath.Dir(path), header.Linkname)
			if filepath.IsAbs(header.Linkname) || !strings.HasPrefix(target+string(os.PathSeparator), root) {
				return fmt.Errorf("archive link %q -> %q escapes %s", header.Name, header.Linkname, dst)
			}
			if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err = os.Symlink(header.Linkname, path); err != nil && !os.IsExist(err) {
				return fmt.Errorf("failed to create symlink: %w", err)
			}
		}
	}
}

func writeFile(path string, r io.Reader, mode os.FileMode) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o200)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()
	if _, err = io.Copy(out, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
