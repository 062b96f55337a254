package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxArtifactBytes bounds a downloaded local-binary artifact, mirroring the
// download-size ceiling the catalog's registry provider applies to index
// fetches.
const maxArtifactBytes = 100 * 1024 * 1024

// DownloadArtifact fetches a RuntimeLocalBinary manifest's artifact over
// HTTP. Package-runner and container manifests never call this: npx/uvx/
// docker resolve their own packages.
func DownloadArtifact(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build artifact request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download artifact: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read artifact body: %w", err)
	}
	if len(data) > maxArtifactBytes {
		return nil, fmt.Errorf("artifact exceeds %d byte limit", maxArtifactBytes)
	}
	return data, nil
}
