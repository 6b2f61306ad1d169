// ABOUTME: Update manifest checking, download verification and atomic install
// ABOUTME: Compares versions with semver and renders release notes with goldmark

package updater

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/mod/semver"
)

var (
	// ErrNoEndpoints is returned when no manifest endpoint is configured.
	ErrNoEndpoints = errors.New("no update endpoints configured")

	// ErrNoPlatform is returned when a newer release has no build for the
	// running platform.
	ErrNoPlatform = errors.New("no release for this platform")

	// ErrBadVersion is returned for versions that are not semantic versions.
	ErrBadVersion = errors.New("invalid version")
)

const (
	defaultTimeout   = 30 * time.Second
	maxManifestBytes = 1 << 20
)

// Manifest is the static update manifest served by an endpoint.
type Manifest struct {
	Version   string              `json:"version"`
	Notes     string              `json:"notes"`
	PubDate   string              `json:"pub_date"`
	Platforms map[string]Platform `json:"platforms"`
}

// Platform is one platform's release artifact.
type Platform struct {
	Signature string `json:"signature"`
	URL       string `json:"url"`
}

// Update describes an available update.
type Update struct {
	Version        string `json:"version"`
	CurrentVersion string `json:"current_version"`
	Notes          string `json:"notes"`
	NotesHTML      string `json:"notes_html"`
	PubDate        string `json:"pub_date,omitempty"`
	URL            string `json:"url"`
	Signature      string `json:"signature"`
	Target         string `json:"target"`
}

// Config configures an Updater.
type Config struct {
	Endpoints      []string
	PublicKey      string
	CurrentVersion string
	// InstallPath is replaced by downloaded updates. Defaults to the
	// running executable.
	InstallPath string
	// Timeout bounds each manifest request.
	Timeout time.Duration
	// Target overrides the platform key, e.g. "linux-x86_64".
	Target string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Updater checks for and installs updates.
type Updater struct {
	cfg    Config
	key    PublicKey
	client *http.Client
	logger *slog.Logger
}

// New creates an Updater. The public key is parsed up front.
func New(cfg Config) (*Updater, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	key, err := ParsePublicKey(cfg.PublicKey)
	if err != nil {
		return nil, err
	}
	if _, err := canonical(cfg.CurrentVersion); err != nil {
		return nil, fmt.Errorf("current version: %w", err)
	}
	if cfg.Target == "" {
		cfg.Target = Target(runtime.GOOS, runtime.GOARCH)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Updater{
		cfg:    cfg,
		key:    key,
		client: client,
		logger: logger.With("component", "updater"),
	}, nil
}

// Target returns the manifest platform key for goos/goarch.
func Target(goos, goarch string) string {
	return goos + "-" + Arch(goarch)
}

// Arch maps a Go architecture name to the manifest architecture name.
func Arch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	case "arm":
		return "armv7"
	default:
		return goarch
	}
}

func canonical(v string) (string, error) {
	c := "v" + strings.TrimPrefix(strings.TrimSpace(v), "v")
	if !semver.IsValid(c) {
		return "", fmt.Errorf("%w: %q", ErrBadVersion, v)
	}
	return c, nil
}

func (u *Updater) endpointURL(endpoint string) string {
	goos, arch, _ := strings.Cut(u.cfg.Target, "-")
	return strings.NewReplacer(
		"{{current_version}}", u.cfg.CurrentVersion,
		"{{target}}", goos,
		"{{arch}}", arch,
	).Replace(endpoint)
}

// Check queries the endpoints in order and returns the available update,
// or nil when the current version is up to date.
func (u *Updater) Check(ctx context.Context) (*Update, error) {
	var errs []error
	for _, endpoint := range u.cfg.Endpoints {
		url := u.endpointURL(endpoint)
		m, err := u.fetchManifest(ctx, url)
		if err != nil {
			u.logger.Warn("update endpoint failed", "url", url, "error", err)
			errs = append(errs, err)
			continue
		}
		if m == nil {
			return nil, nil
		}
		return u.evaluate(m)
	}
	return nil, fmt.Errorf("checking for updates: %w", errors.Join(errs...))
}

func (u *Updater) fetchManifest(ctx context.Context, url string) (*Manifest, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("fetching manifest: unexpected status %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestBytes)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

func (u *Updater) evaluate(m *Manifest) (*Update, error) {
	remote, err := canonical(m.Version)
	if err != nil {
		return nil, fmt.Errorf("manifest version: %w", err)
	}
	current, _ := canonical(u.cfg.CurrentVersion)
	if semver.Compare(remote, current) <= 0 {
		u.logger.Info("app is up to date", "version", u.cfg.CurrentVersion)
		return nil, nil
	}

	platform, ok := m.Platforms[u.cfg.Target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPlatform, u.cfg.Target)
	}

	var notes bytes.Buffer
	if err := goldmark.Convert([]byte(m.Notes), &notes); err != nil {
		return nil, fmt.Errorf("rendering release notes: %w", err)
	}

	upd := &Update{
		Version:        strings.TrimPrefix(m.Version, "v"),
		CurrentVersion: u.cfg.CurrentVersion,
		Notes:          m.Notes,
		NotesHTML:      notes.String(),
		PubDate:        m.PubDate,
		URL:            platform.URL,
		Signature:      platform.Signature,
		Target:         u.cfg.Target,
	}
	u.logger.Info("update available", "version", upd.Version, "current", upd.CurrentVersion)
	return upd, nil
}

// DownloadAndInstall downloads the update, verifies its signature and
// atomically replaces the install path.
func (u *Updater) DownloadAndInstall(ctx context.Context, upd *Update) error {
	sig, err := ParseSignature(upd.Signature)
	if err != nil {
		return err
	}

	data, err := u.download(ctx, upd.URL)
	if err != nil {
		return err
	}

	if err := u.key.Verify(data, sig); err != nil {
		return fmt.Errorf("verifying update %s: %w", upd.Version, err)
	}

	path, err := u.installPath()
	if err != nil {
		return err
	}
	if err := replaceFile(path, data); err != nil {
		return fmt.Errorf("installing update %s: %w", upd.Version, err)
	}

	u.logger.Info("update installed", "version", upd.Version, "path", path)
	return nil
}

func (u *Updater) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading update: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("downloading update: %w", err)
	}
	return data, nil
}

func (u *Updater) installPath() (string, error) {
	if u.cfg.InstallPath != "" {
		return u.cfg.InstallPath, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	return exe, nil
}

// replaceFile writes data next to path and renames it into place.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".update-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0755); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
