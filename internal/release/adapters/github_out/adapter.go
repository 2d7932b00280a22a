// Package githubout publishes releases and manages labels through the
// GitHub API.
package githubout

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nathantilsley/chart-herald/internal/release/ports"
)

// Adapter implements ports.ReleaseHostPort for a single repository.
type Adapter struct {
	client *gogithub.Client
	owner  string
	repo   string
	logger *slog.Logger
}

// New creates a GitHub release adapter for owner/repo.
func New(client *gogithub.Client, owner, repo string, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, owner: owner, repo: repo, logger: logger}
}

// GetReleaseByTag looks up a release by its tag. A missing tag is not
// an error: it returns (nil, nil) so the caller can distinguish "not
// released yet" from transport failures.
func (a *Adapter) GetReleaseByTag(ctx context.Context, tag string) (*ports.Release, error) {
	release, resp, err := a.client.Repositories.GetReleaseByTag(ctx, a.owner, a.repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting release by tag %s: %w", tag, err)
	}
	return toRelease(release), nil
}

// CreateRelease publishes a new release for the given tag.
func (a *Adapter) CreateRelease(ctx context.Context, tag, name, body string) (*ports.Release, error) {
	release, _, err := a.client.Repositories.CreateRelease(ctx, a.owner, a.repo, &gogithub.RepositoryRelease{
		TagName: gogithub.Ptr(tag),
		Name:    gogithub.Ptr(name),
		Body:    gogithub.Ptr(body),
	})
	if err != nil {
		return nil, fmt.Errorf("creating release %s: %w", tag, err)
	}

	a.logger.Info("release created", "tag", tag, "url", release.GetHTMLURL())
	return toRelease(release), nil
}

// UploadAsset attaches the file at artifactPath to an existing release.
func (a *Adapter) UploadAsset(ctx context.Context, releaseID int64, artifactPath string) error {
	f, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("opening release asset: %w", err)
	}
	defer f.Close()

	opts := &gogithub.UploadOptions{Name: filepath.Base(artifactPath)}
	if _, _, err := a.client.Repositories.UploadReleaseAsset(ctx, a.owner, a.repo, releaseID, opts, f); err != nil {
		return fmt.Errorf("uploading asset %s: %w", opts.Name, err)
	}

	a.logger.Info("asset uploaded", "releaseID", releaseID, "asset", opts.Name)
	return nil
}

// Releases returns a lazy sequence over all releases of the repository,
// fetching pages on demand. Stopping iteration stops pagination; no
// further requests are made once the caller breaks out.
func (a *Adapter) Releases(ctx context.Context) iter.Seq2[ports.Release, error] {
	return func(yield func(ports.Release, error) bool) {
		opts := &gogithub.ListOptions{PerPage: 100}
		for {
			releases, resp, err := a.client.Repositories.ListReleases(ctx, a.owner, a.repo, opts)
			if err != nil {
				yield(ports.Release{}, fmt.Errorf("listing releases: %w", err))
				return
			}
			for _, r := range releases {
				if !yield(*toRelease(r), nil) {
					return
				}
			}
			if resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

// EnsureLabels creates any of the given labels (name -> hex color) that
// do not already exist in the repository. Existing labels are left
// untouched.
func (a *Adapter) EnsureLabels(ctx context.Context, labels map[string]string) error {
	existing := make(map[string]struct{})
	opts := &gogithub.ListOptions{PerPage: 100}
	for {
		page, resp, err := a.client.Issues.ListLabels(ctx, a.owner, a.repo, opts)
		if err != nil {
			return fmt.Errorf("listing labels: %w", err)
		}
		for _, l := range page {
			existing[l.GetName()] = struct{}{}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	var errs []error
	for name, color := range labels {
		if _, ok := existing[name]; ok {
			continue
		}
		_, _, err := a.client.Issues.CreateLabel(ctx, a.owner, a.repo, &gogithub.Label{
			Name:  gogithub.Ptr(name),
			Color: gogithub.Ptr(color),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("creating label %s: %w", name, err))
			continue
		}
		a.logger.Info("label created", "label", name)
	}
	return errors.Join(errs...)
}

func toRelease(r *gogithub.RepositoryRelease) *ports.Release {
	return &ports.Release{
		ID:   r.GetID(),
		Tag:  r.GetTagName(),
		Name: r.GetName(),
		URL:  r.GetHTMLURL(),
	}
}
