package auth

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// credsLoaderScript is written once per scratch directory and pointed at by
// GIT_ASKPASS so git never prompts on a terminal it doesn't have.
const credsLoaderScript = `#!/bin/sh
case "$1" in
Username*) echo "$GIT_FILTER_MIRROR_USERNAME" ;;
Password*) echo "$GIT_FILTER_MIRROR_PASSWORD" ;;
esac
`

// Auth describes how to authenticate against a single remote (the source
// mirror or the destination). At most one of the credential styles below is
// expected to be set; Env favours SSH, then GitHub App, then basic HTTPS, in
// that order, matching repository/auth.go#authEnv.
type Auth struct {
	// SSH key/known_hosts based auth, used for ssh:// and scp-like remotes.
	SSHKeyPath        string `yaml:"sshKeyPath"`
	SSHKnownHostsPath string `yaml:"sshKnownHostsPath"`

	// GitHub App installation token auth, used for https:// remotes against
	// github.com or a GitHub Enterprise host.
	GithubAppID             string `yaml:"githubAppID"`
	GithubAppInstallationID string `yaml:"githubAppInstallationID"`
	GithubAppPrivateKeyPath string `yaml:"githubAppPrivateKeyPath"`

	// Plain HTTPS basic auth, used for https:// remotes that take a static
	// username/password or token.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	mu           sync.Mutex
	cachedToken  string
	cachedExpiry time.Time
}

// IsZero reports whether a is unset, in which case Env returns the caller's
// environment unmodified and git relies on ambient credentials (e.g. an
// agent-backed SSH key or a credential helper already configured).
func (a *Auth) IsZero() bool {
	if a == nil {
		return true
	}
	return a.SSHKeyPath == "" && a.GithubAppID == "" && a.Username == ""
}

// Env returns the extra environment variables a git subprocess needs to
// authenticate against its configured remote, writing any helper scripts it
// needs under scratchDir. Ported from repository/auth.go#authEnv/
// gitSSHCommand/ensureCredsLoader, split into a method so a run can hold one
// Auth for the source mirror and a second, independent Auth for the
// destination push.
func (a *Auth) Env(ctx context.Context, log *slog.Logger, scratchDir string) ([]string, error) {
	if a.IsZero() {
		return nil, nil
	}

	if a.SSHKeyPath != "" {
		return a.sshEnv(), nil
	}

	if a.GithubAppID != "" {
		token, err := a.githubAppToken(ctx, log)
		if err != nil {
			return nil, fmt.Errorf("minting github app token: %w", err)
		}
		return a.credsLoaderEnv(scratchDir, "x-access-token", token)
	}

	if a.Username != "" {
		return a.credsLoaderEnv(scratchDir, a.Username, a.Password)
	}

	return nil, nil
}

func (a *Auth) sshEnv() []string {
	return []string{"GIT_SSH_COMMAND=" + gitSSHCommand(a.SSHKeyPath, a.SSHKnownHostsPath)}
}

// gitSSHCommand builds the ssh(1) invocation git should use for this
// remote: an explicit identity file, and either an explicit known_hosts
// file or relaxed host-key checking when none was configured.
func gitSSHCommand(keyPath, knownHostsPath string) string {
	cmd := fmt.Sprintf("ssh -i %s -o IdentitiesOnly=yes", keyPath)
	if knownHostsPath != "" {
		cmd += fmt.Sprintf(" -o UserKnownHostsFile=%s -o StrictHostKeyChecking=yes", knownHostsPath)
	} else {
		cmd += " -o StrictHostKeyChecking=accept-new"
	}
	return cmd
}

// credsLoaderEnv points GIT_ASKPASS at a small shell script that echoes the
// username/password back from the environment, so credentials never touch
// the process argument list or a config file on disk.
func (a *Auth) credsLoaderEnv(scratchDir, username, password string) ([]string, error) {
	scriptPath, err := ensureCredsLoader(scratchDir)
	if err != nil {
		return nil, err
	}
	return []string{
		"GIT_ASKPASS=" + scriptPath,
		"GIT_FILTER_MIRROR_USERNAME=" + username,
		"GIT_FILTER_MIRROR_PASSWORD=" + password,
	}, nil
}

func ensureCredsLoader(scratchDir string) (string, error) {
	scriptPath := filepath.Join(scratchDir, "creds-askpass.sh")
	if _, err := os.Stat(scriptPath); err == nil {
		return scriptPath, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}
	if err := os.WriteFile(scriptPath, []byte(credsLoaderScript), 0o700); err != nil {
		return "", err
	}
	return scriptPath, nil
}

// githubAppTokenExpiryBuffer is subtracted from a cached token's expiry so a
// long-running run never hands git a token that expires mid-push.
const githubAppTokenExpiryBuffer = 10 * time.Minute

func (a *Auth) githubAppToken(ctx context.Context, log *slog.Logger) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cachedToken != "" && time.Now().Before(a.cachedExpiry) {
		return a.cachedToken, nil
	}

	log.Log(ctx, -8, "minting github app installation token", "appID", a.GithubAppID)

	tok, expiresAt, err := mintGithubAppInstallationToken(ctx, a.GithubAppID, a.GithubAppInstallationID, a.GithubAppPrivateKeyPath)
	if err != nil {
		return "", err
	}

	a.cachedToken = tok
	a.cachedExpiry = expiresAt.Add(-githubAppTokenExpiryBuffer)

	return tok, nil
}

// githubAppTokenResponse is the body of the GitHub App installation
// access-token endpoint response; only the fields Env needs are kept.
type githubAppTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// mintGithubAppInstallationToken signs a JWT as appID using the RSA
// private key at privateKeyPath, then exchanges it for an installation
// access token scoped to push access on repo contents - the only
// permission a destination push ever needs.
func mintGithubAppInstallationToken(ctx context.Context, appID, installationID, privateKeyPath string) (string, time.Time, error) {
	privatePEMData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return "", time.Time{}, err
	}

	block, _ := pem.Decode(privatePEMData)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return "", time.Time{}, fmt.Errorf("failed to decode PEM block containing private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return "", time.Time{}, err
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: privateKey}, nil)
	if err != nil {
		return "", time.Time{}, err
	}

	cl := jwt.Claims{
		Issuer:   appID,
		IssuedAt: jwt.NewNumericDate(time.Now().Add(-60 * time.Second)), // allow for clock drift
		Expiry:   jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),  // GitHub's JWT max
	}

	jwtToken, err := jwt.Signed(signer).Claims(cl).Serialize()
	if err != nil {
		return "", time.Time{}, err
	}

	reqBody, err := json.Marshal(map[string]any{
		"permissions": map[string]string{"contents": "write"},
	})
	if err != nil {
		return "", time.Time{}, err
	}

	url := fmt.Sprintf("https://api.github.com/app/installations/%s/access_tokens", installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		errMessage, _ := io.ReadAll(resp.Body)
		return "", time.Time{}, fmt.Errorf("github app token response status %d, body: %q", resp.StatusCode, errMessage)
	}

	var tokenResp githubAppTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, err
	}

	return tokenResp.Token, tokenResp.ExpiresAt, nil
}
