package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// gitHubCommitResponse is the subset of GitHub's commit API response the
// orchestrator needs.
type gitHubCommitResponse struct {
	SHA string `json:"sha"`
}

// resolveGitHubRef resolves a GitHub reference (tag, branch, or commit) to a
// full commit SHA, so a github: dependency pins to something stable in the
// store rather than a moving ref.
func resolveGitHubRef(ctx context.Context, owner, repo, ref string) (string, error) {
	if ref == "" {
		ref = "HEAD"
	}

	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/commits/%s", owner, repo, ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("manager: building github request for %s/%s#%s: %w", owner, repo, ref, err)
	}
	req.Header.Set("User-Agent", "snpm")
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("manager: fetching github ref %s/%s#%s: %w", owner, repo, ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("manager: github api error for %s/%s#%s: %d %s", owner, repo, ref, resp.StatusCode, string(body))
	}

	var commit gitHubCommitResponse
	if err := json.NewDecoder(resp.Body).Decode(&commit); err != nil {
		return "", fmt.Errorf("manager: parsing github api response for %s/%s#%s: %w", owner, repo, ref, err)
	}
	if commit.SHA == "" {
		return "", fmt.Errorf("manager: no commit sha in github api response for %s/%s#%s", owner, repo, ref)
	}

	return commit.SHA, nil
}
