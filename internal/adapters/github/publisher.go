// Package github implements the release publisher against the GitHub
// REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	apiBase           = "https://api.github.com"
	uploadBase        = "https://uploads.github.com"
	httpClientTimeout = 5 * time.Minute
)

// TokenEnvVar names the environment variable holding the API token.
const TokenEnvVar = "GITHUB_TOKEN" //nolint:gosec // Variable name, not a credential

var _ ports.Publisher = (*Publisher)(nil)

// Publisher implements ports.Publisher using the GitHub releases API.
type Publisher struct {
	apiBase    string
	uploadBase string
	token      string
	httpClient *http.Client
	logger     ports.Logger
}

// NewPublisher creates a Publisher authenticated by the GITHUB_TOKEN
// environment variable. A missing token is not checked here; it fails
// the publish call itself, the same way an unauthenticated CI job does.
func NewPublisher(logger ports.Logger) *Publisher {
	return &Publisher{
		apiBase:    apiBase,
		uploadBase: uploadBase,
		token:      os.Getenv(TokenEnvVar),
		httpClient: &http.Client{Timeout: httpClientTimeout},
		logger:     logger,
	}
}

// newPublisherWithBase creates a Publisher against custom endpoints (used for testing).
func newPublisherWithBase(api, upload, token string, client *http.Client, logger ports.Logger) *Publisher {
	return &Publisher{
		apiBase:    api,
		uploadBase: upload,
		token:      token,
		httpClient: client,
		logger:     logger,
	}
}

// Publish attaches the file at artifactPath to the release for tag,
// creating the release if it does not exist yet.
func (p *Publisher) Publish(ctx context.Context, spec domain.ReleaseSpec, tag domain.Tag, artifactPath string) (*domain.Asset, error) {
	if p.token == "" {
		return nil, domain.ErrMissingToken
	}

	release, assets, err := p.getRelease(ctx, spec, tag)
	if err != nil {
		return nil, err
	}
	if release == nil {
		release, err = p.createRelease(ctx, spec, tag)
		if err != nil {
			return nil, err
		}
	}

	name := filepath.Base(artifactPath)
	for _, asset := range assets {
		if asset.Name == name {
			conflict := zerr.With(domain.ErrAssetConflict, "asset", name)
			return nil, zerr.With(conflict, "tag", tag.String())
		}
	}

	p.logger.Info(fmt.Sprintf("uploading %s to %s/%s release %s", name, spec.Owner, spec.Repo, tag))
	return p.uploadAsset(ctx, spec, release.ID, name, artifactPath)
}

// releaseDTO mirrors the subset of the GitHub release object we read.
type releaseDTO struct {
	ID     int64      `json:"id"`
	Assets []assetDTO `json:"assets"`
}

type assetDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"browser_download_url"`
}

// getRelease fetches the release for tag. A missing release is not an
// error; it returns nil, nil, nil so the caller can create it.
func (p *Publisher) getRelease(ctx context.Context, spec domain.ReleaseSpec, tag domain.Tag) (*domain.Release, []domain.Asset, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s",
		p.apiBase, spec.Owner, spec.Repo, url.PathEscape(tag.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to build release lookup request")
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "release lookup failed")
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close in defer

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, apiError("release lookup", resp)
	}

	var dto releaseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, nil, zerr.Wrap(err, "failed to decode release")
	}

	assets := make([]domain.Asset, len(dto.Assets))
	for i, a := range dto.Assets {
		assets[i] = domain.Asset{ID: a.ID, Name: a.Name, Size: a.Size, URL: a.URL}
	}

	return &domain.Release{ID: dto.ID, Tag: tag}, assets, nil
}

func (p *Publisher) createRelease(ctx context.Context, spec domain.ReleaseSpec, tag domain.Tag) (*domain.Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases", p.apiBase, spec.Owner, spec.Repo)

	body, err := json.Marshal(map[string]string{
		"tag_name": tag.String(),
		"name":     tag.String(),
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode release request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build release create request")
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, zerr.Wrap(err, "release create failed")
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close in defer

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError("release create", resp)
	}

	var dto releaseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, zerr.Wrap(err, "failed to decode created release")
	}

	return &domain.Release{ID: dto.ID, Tag: tag}, nil
}

func (p *Publisher) uploadAsset(ctx context.Context, spec domain.ReleaseSpec, releaseID int64, name, path string) (*domain.Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrArtifactMissing, err.Error()), "path", path)
	}

	file, err := os.Open(path) //nolint:gosec // Path comes from the validated plan
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open artifact")
	}
	defer file.Close() //nolint:errcheck // Read-only file

	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets?name=%s",
		p.uploadBase, spec.Owner, spec.Repo, releaseID, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build asset upload request")
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = info.Size()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, zerr.Wrap(err, "asset upload failed")
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close in defer

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError("asset upload", resp)
	}

	var dto assetDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, zerr.Wrap(err, "failed to decode uploaded asset")
	}

	return &domain.Asset{ID: dto.ID, Name: dto.Name, Size: dto.Size, URL: dto.URL}, nil
}

func (p *Publisher) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := zerr.With(zerr.New(op+" returned unexpected status"), "status", resp.StatusCode)
	return zerr.With(err, "body", string(body))
}
