// Package auth builds the environment variables a git subprocess needs to
// authenticate against a remote: SSH key/known-hosts configuration, basic
// HTTPS username/password or token, or a minted GitHub App installation
// token.
package auth
