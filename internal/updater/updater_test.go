package updater

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTarget = "linux-x86_64"

// releaseServer serves a manifest at /manifest and the artifact at /artifact.
type releaseServer struct {
	*httptest.Server
	manifest Manifest
	artifact []byte
	status   int
	paths    []string
}

func newReleaseServer(t *testing.T, key testKey, version string, artifact []byte) *releaseServer {
	t.Helper()
	rs := &releaseServer{artifact: artifact, status: http.StatusOK}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.paths = append(rs.paths, r.URL.Path)
		switch r.URL.Path {
		case "/artifact":
			w.Write(rs.artifact)
		default:
			if rs.status != http.StatusOK {
				w.WriteHeader(rs.status)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rs.manifest)
		}
	}))
	t.Cleanup(rs.Close)

	rs.manifest = Manifest{
		Version: version,
		Notes:   "**Faster** product sync",
		PubDate: "2026-01-02T15:04:05Z",
		Platforms: map[string]Platform{
			testTarget: {
				Signature: key.sign(artifact, true, "file:engagemate"),
				URL:       rs.URL + "/artifact",
			},
		},
	}
	return rs
}

func newTestUpdater(t *testing.T, key testKey, endpoints ...string) *Updater {
	t.Helper()
	u, err := New(Config{
		Endpoints:      endpoints,
		PublicKey:      key.publicKey(),
		CurrentVersion: "1.0.0",
		InstallPath:    filepath.Join(t.TempDir(), "engagemate"),
		Target:         testTarget,
	})
	require.NoError(t, err)
	return u
}

func TestCheck_NewerVersion(t *testing.T) {
	key := newTestKey(t, 1)
	rs := newReleaseServer(t, key, "1.2.0", []byte("binary"))
	u := newTestUpdater(t, key, rs.URL+"/manifest")

	upd, err := u.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, upd)

	assert.Equal(t, "1.2.0", upd.Version)
	assert.Equal(t, "1.0.0", upd.CurrentVersion)
	assert.Equal(t, rs.URL+"/artifact", upd.URL)
	assert.Equal(t, testTarget, upd.Target)
	assert.Equal(t, "2026-01-02T15:04:05Z", upd.PubDate)
	assert.Contains(t, upd.NotesHTML, "<strong>Faster</strong>")
}

func TestCheck_NotNewer(t *testing.T) {
	key := newTestKey(t, 1)
	for _, version := range []string{"1.0.0", "v1.0.0", "0.9.9"} {
		rs := newReleaseServer(t, key, version, []byte("binary"))
		u := newTestUpdater(t, key, rs.URL+"/manifest")

		upd, err := u.Check(context.Background())
		require.NoError(t, err, version)
		assert.Nil(t, upd, version)
	}
}

func TestCheck_NoContent(t *testing.T) {
	key := newTestKey(t, 1)
	rs := newReleaseServer(t, key, "9.9.9", nil)
	rs.status = http.StatusNoContent
	u := newTestUpdater(t, key, rs.URL+"/manifest")

	upd, err := u.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, upd)
}

func TestCheck_EndpointTemplate(t *testing.T) {
	key := newTestKey(t, 1)
	rs := newReleaseServer(t, key, "1.0.0", nil)
	u := newTestUpdater(t, key, rs.URL+"/{{target}}/{{arch}}/{{current_version}}")

	_, err := u.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/linux/x86_64/1.0.0"}, rs.paths)
}

func TestCheck_FallsBackToNextEndpoint(t *testing.T) {
	key := newTestKey(t, 1)
	broken := newReleaseServer(t, key, "1.1.0", nil)
	broken.status = http.StatusInternalServerError
	good := newReleaseServer(t, key, "1.1.0", []byte("binary"))
	u := newTestUpdater(t, key, broken.URL+"/manifest", good.URL+"/manifest")

	upd, err := u.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, upd)
	assert.Equal(t, "1.1.0", upd.Version)
}

func TestCheck_AllEndpointsFail(t *testing.T) {
	key := newTestKey(t, 1)
	rs := newReleaseServer(t, key, "1.1.0", nil)
	rs.status = http.StatusBadGateway
	u := newTestUpdater(t, key, rs.URL+"/manifest")

	_, err := u.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestCheck_NoPlatform(t *testing.T) {
	key := newTestKey(t, 1)
	rs := newReleaseServer(t, key, "2.0.0", nil)
	rs.manifest.Platforms = map[string]Platform{"windows-x86_64": {URL: "x"}}
	u := newTestUpdater(t, key, rs.URL+"/manifest")

	_, err := u.Check(context.Background())
	assert.ErrorIs(t, err, ErrNoPlatform)
}

func TestCheck_BadVersion(t *testing.T) {
	key := newTestKey(t, 1)
	rs := newReleaseServer(t, key, "latest", nil)
	u := newTestUpdater(t, key, rs.URL+"/manifest")

	_, err := u.Check(context.Background())
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestNew_Validation(t *testing.T) {
	key := newTestKey(t, 1)

	_, err := New(Config{PublicKey: key.publicKey(), CurrentVersion: "1.0.0"})
	assert.ErrorIs(t, err, ErrNoEndpoints)

	_, err = New(Config{Endpoints: []string{"http://x"}, PublicKey: "garbage", CurrentVersion: "1.0.0"})
	assert.Error(t, err)

	_, err = New(Config{Endpoints: []string{"http://x"}, PublicKey: key.publicKey(), CurrentVersion: "dev"})
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestDownloadAndInstall(t *testing.T) {
	key := newTestKey(t, 1)
	rs := newReleaseServer(t, key, "1.2.0", []byte("new binary"))
	u := newTestUpdater(t, key, rs.URL+"/manifest")
	require.NoError(t, os.WriteFile(u.cfg.InstallPath, []byte("old binary"), 0755))

	upd, err := u.Check(context.Background())
	require.NoError(t, err)
	require.NoError(t, u.DownloadAndInstall(context.Background(), upd))

	data, err := os.ReadFile(u.cfg.InstallPath)
	require.NoError(t, err)
	assert.Equal(t, "new binary", string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(u.cfg.InstallPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	}

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(u.cfg.InstallPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownloadAndInstall_BadSignatureKeepsOldBinary(t *testing.T) {
	key := newTestKey(t, 1)
	rs := newReleaseServer(t, key, "1.2.0", []byte("new binary"))
	u := newTestUpdater(t, key, rs.URL+"/manifest")
	require.NoError(t, os.WriteFile(u.cfg.InstallPath, []byte("old binary"), 0755))

	upd, err := u.Check(context.Background())
	require.NoError(t, err)
	rs.artifact = []byte("tampered binary")

	err = u.DownloadAndInstall(context.Background(), upd)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	data, _ := os.ReadFile(u.cfg.InstallPath)
	assert.Equal(t, "old binary", string(data))
}

func TestTarget(t *testing.T) {
	tests := map[[2]string]string{
		{"linux", "amd64"}:   "linux-x86_64",
		{"darwin", "arm64"}:  "darwin-aarch64",
		{"windows", "386"}:   "windows-i686",
		{"linux", "arm"}:     "linux-armv7",
		{"linux", "riscv64"}: "linux-riscv64",
	}
	for in, want := range tests {
		assert.Equal(t, want, Target(in[0], in[1]))
	}
}
