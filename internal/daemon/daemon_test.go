package daemon

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/theinhumaneme/hikari/internal/bundle"
	"github.com/theinhumaneme/hikari/internal/catalog"
	"github.com/theinhumaneme/hikari/internal/config"
)

type fakeRunner struct{ upCalls, downCalls int }

func (f *fakeRunner) Materialize(homeDir, filename string, spec catalog.ComposeSpec) (string, error) {
	return filepath.Join(homeDir, filename), nil
}
func (f *fakeRunner) Pull(ctx context.Context, path string) bool { return true }
func (f *fakeRunner) Up(ctx context.Context, path string) bool   { f.upCalls++; return true }
func (f *fakeRunner) Down(ctx context.Context, path string) bool { f.downCalls++; return true }

// writeEncryptedBundle writes a catalog JSON document encrypted as a bundle
// at outPath and returns the private key PEM path to decrypt it with.
func writeEncryptedBundle(t *testing.T, dir string, catalogJSON string) (bundlePath, privateKeyPath string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pubPath := filepath.Join(dir, "pub.pem")
	if err := os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600); err != nil {
		t.Fatal(err)
	}

	privDER := x509.MarshalPKCS1PrivateKey(key)
	privateKeyPath = filepath.Join(dir, "priv.pem")
	if err := os.WriteFile(privateKeyPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		t.Fatal(err)
	}

	inPath := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(inPath, []byte(catalogJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	bundlePath = filepath.Join(dir, "bundle.enc")
	if err := bundle.Encrypt(inPath, bundlePath, pubPath); err != nil {
		t.Fatal(err)
	}
	return bundlePath, privateKeyPath
}

func TestRunOnceReconcilesFromDownloadedBundle(t *testing.T) {
	dir := t.TempDir()
	catalogJSON := `{"version":"1","deploy_configs":{"d1":{"name":"d1","client":"acme","environment":"prod","solution":"s1",
		"deploy_stacks":[{"stack_name":"web","filename":"web.yaml","home_directory":"/srv",
		"compose_spec":{"services":{"app":{"container_name":"app","image":"nginx","restart":"always"}}}}]}}}`
	bundlePath, privKeyPath := writeEncryptedBundle(t, dir, catalogJSON)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(bundlePath)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	identity := configIdentity()
	opts := configOptions(dir, srv.URL)
	runner := &fakeRunner{}
	d := New(identity, opts, privKeyPath, runner, nil)

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if runner.upCalls != 1 {
		t.Errorf("up calls = %d, want 1", runner.upCalls)
	}

	var written catalog.HikariCatalog
	refData, err := os.ReadFile(opts.ReferenceFilePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(refData, &written); err != nil {
		t.Fatal(err)
	}
	if _, ok := written.DeployConfigs["d1"]; !ok {
		t.Error("expected reference file to contain deployment d1")
	}
}

func TestRunOnceFailsFatallyOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	bundlePath, privKeyPath := writeEncryptedBundle(t, dir, `{"version":"2","deploy_configs":{}}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := os.ReadFile(bundlePath) //nolint:errcheck
		w.Write(data)                      //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	d := New(configIdentity(), configOptions(dir, srv.URL), privKeyPath, &fakeRunner{}, nil)

	err := d.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected error on version mismatch")
	}
	if _, ok := err.(*FatalError); !ok {
		t.Errorf("expected *FatalError, got %T: %v", err, err)
	}
}

func configIdentity() config.NodeIdentity {
	return config.NodeIdentity{Version: "1", Client: "acme", Environment: "prod", Solution: "s1"}
}

func configOptions(dir, remoteURL string) config.UpdateOptions {
	return config.UpdateOptions{
		RemoteURL:         remoteURL,
		PollInterval:      60,
		EncryptedFilePath: filepath.Join(dir, "downloaded.enc"),
		DecryptedFilePath: filepath.Join(dir, "downloaded.json"),
		ReferenceFilePath: filepath.Join(dir, "reference.json"),
	}
}
