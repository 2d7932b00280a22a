// Package ocipush distributes packaged charts to an OCI registry.
package ocipush

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// Media types for Helm chart artifacts in OCI registries.
const (
	configMediaType = "application/vnd.cncf.helm.config.v1+json"
	chartMediaType  = "application/vnd.cncf.helm.chart.content.v1.tar+gzip"
)

// Adapter implements ports.RegistryPort using oras. The chart version
// becomes the artifact tag, matching `helm push` layout.
type Adapter struct {
	registry string // e.g. "ghcr.io/acme"
	username string
	password string
	logger   *slog.Logger
}

// New creates an OCI push adapter for the given registry host.
// Credentials may be empty for registries allowing anonymous push
// (rare; normally a token is required).
func New(registry, username, password string, logger *slog.Logger) *Adapter {
	return &Adapter{registry: registry, username: username, password: password, logger: logger}
}

// Push uploads the chart archive at artifactPath to
// {registry}/{reference}:{version}.
func (a *Adapter) Push(ctx context.Context, artifactPath, reference, version string) error {
	workDir, err := os.MkdirTemp("", "chart-herald-oci-*")
	if err != nil {
		return fmt.Errorf("creating oci staging dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	store, err := file.New(workDir)
	if err != nil {
		return fmt.Errorf("creating oci file store: %w", err)
	}
	defer store.Close()

	layer, err := store.Add(ctx, filepath.Base(artifactPath), chartMediaType, artifactPath)
	if err != nil {
		return fmt.Errorf("adding chart layer: %w", err)
	}

	manifest, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, configMediaType,
		oras.PackManifestOptions{Layers: []ocispec.Descriptor{layer}})
	if err != nil {
		return fmt.Errorf("packing oci manifest: %w", err)
	}
	if err := store.Tag(ctx, manifest, version); err != nil {
		return fmt.Errorf("tagging oci manifest: %w", err)
	}

	target := a.registry + "/" + strings.TrimPrefix(reference, "/")
	repo, err := remote.NewRepository(target)
	if err != nil {
		return fmt.Errorf("resolving oci repository %s: %w", target, err)
	}
	// Credentials attach to the registry host, not the namespaced path.
	host, _, _ := strings.Cut(a.registry, "/")
	repo.Client = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: auth.StaticCredential(host, auth.Credential{
			Username: a.username,
			Password: a.password,
		}),
	}

	if _, err := oras.Copy(ctx, store, version, repo, version, oras.DefaultCopyOptions); err != nil {
		return fmt.Errorf("pushing %s:%s: %w", target, version, err)
	}

	a.logger.Info("chart pushed to oci registry", "reference", target, "tag", version)
	return nil
}
