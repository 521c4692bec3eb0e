package adb

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
)

// BundleName returns the platform-tools archive name for a host platform,
// or an error wrapping ErrPlatformUnsupported for anything unrecognized.
func BundleName(goos string) (string, error) {
	switch goos {
	case "linux", "darwin", "windows":
		return "platform-tools-latest-" + goos + ".zip", nil
	default:
		return "", errors.NewTransportError("adb",
			fmt.Sprintf("no platform-tools bundle for %s", goos),
			errors.ErrPlatformUnsupported).WithFatal()
	}
}

// binaryName returns the adb executable name for a host platform.
func binaryName(goos string) string {
	if goos == "windows" {
		return "adb.exe"
	}
	return "adb"
}

// Resolve locates a usable adb executable. Order: explicit override,
// search PATH, previously unpacked bundle, freshly downloaded bundle.
// Presence is the only check; version or corruption problems surface
// later when commands fail.
func Resolve(ctx context.Context, log *logging.Logger, cfg config.ToolsConfig) (Endpoint, error) {
	log = log.WithTransport("adb")

	if cfg.AdbPath != "" {
		if _, err := os.Stat(cfg.AdbPath); err != nil {
			return Endpoint{}, errors.NewTransportError("adb",
				fmt.Sprintf("configured adb_path %s not found", cfg.AdbPath), err).WithFatal()
		}
		log.Debug("using configured adb", "path", cfg.AdbPath)
		return Endpoint{Path: cfg.AdbPath, Available: true}, nil
	}

	if path, err := exec.LookPath("adb"); err == nil {
		log.Debug("found adb on PATH", "path", path)
		return Endpoint{Path: path, Available: true}, nil
	}

	bundle, err := BundleName(runtime.GOOS)
	if err != nil {
		return Endpoint{}, err
	}

	unpacked := filepath.Join(cfg.Dir, "platform-tools", binaryName(runtime.GOOS))
	if _, err := os.Stat(unpacked); err == nil {
		log.Debug("using previously unpacked adb", "path", unpacked)
		return Endpoint{Path: unpacked, Available: true}, nil
	}

	url := strings.TrimRight(cfg.PlatformToolsBaseURL, "/") + "/" + bundle
	log.Info("downloading platform tools", "url", url)

	archivePath := filepath.Join(cfg.Dir, bundle)
	if err := download(ctx, url, archivePath); err != nil {
		return Endpoint{}, errors.NewTransportError("adb", "platform-tools download failed", err).WithFatal()
	}
	if err := extractZip(archivePath, cfg.Dir); err != nil {
		return Endpoint{}, errors.NewTransportError("adb", "platform-tools unpack failed", err).WithFatal()
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(unpacked, 0755); err != nil {
			return Endpoint{}, errors.NewTransportError("adb", "failed to mark adb executable", err).WithFatal()
		}
	}

	log.Info("platform tools ready", "path", unpacked)
	return Endpoint{Path: unpacked, Available: true}, nil
}

// download fetches url into dest, creating parent directories as needed.
func download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}

// extractZip unpacks archive into destDir, refusing entries that would
// escape the destination.
func extractZip(archive, destDir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		src, err := f.Open()
		if err != nil {
			return err
		}

		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			src.Close()
			return err
		}

		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
