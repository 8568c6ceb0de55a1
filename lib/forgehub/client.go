// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package forgehub talks to GitHub (and GitHub Enterprise) on behalf
// of Forgeplan: fetching workflow files for remote linting, verifying
// webhook signatures, and translating webhook payloads into the
// provider-agnostic event model in lib/schema/forge.
//
// This is the only package that imports the GitHub SDK; everything
// else works with forge events and plain workflow bytes.
package forgehub

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/google/go-github/v80/github"
)

// WorkflowDir is where the platform looks for workflow definitions.
const WorkflowDir = ".github/workflows"

// Credentials are read from the environment only; tokens never appear
// in config files.
type Credentials struct {
	// Token authenticates API calls. Anonymous access works for
	// public repositories, with a much lower rate limit.
	Token string `env:"FORGEPLAN_GITHUB_TOKEN"`

	// WebhookSecret is the shared HMAC secret webhook deliveries are
	// signed with.
	WebhookSecret string `env:"FORGEPLAN_WEBHOOK_SECRET"`
}

// CredentialsFromEnv parses credentials from the process environment.
func CredentialsFromEnv() (Credentials, error) {
	var credentials Credentials
	if err := env.Parse(&credentials); err != nil {
		return Credentials{}, fmt.Errorf("parsing forge credentials from environment: %w", err)
	}
	return credentials, nil
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Token authenticates requests. Empty means anonymous.
	Token string

	// BaseURL points at a GitHub Enterprise instance. Empty means
	// github.com.
	BaseURL string
}

// Client fetches repository content through the GitHub API.
type Client struct {
	github *github.Client
}

// NewClient creates a client for github.com or, when BaseURL is set,
// a GitHub Enterprise instance.
func NewClient(cfg ClientConfig) (*Client, error) {
	client := github.NewClient(nil)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URL: %w", err)
		}
	}
	return &Client{github: client}, nil
}

// WorkflowFile is one fetched workflow definition.
type WorkflowFile struct {
	// Name is the bare filename, "ci.yml".
	Name string
	// Path is the repository path, ".github/workflows/ci.yml".
	Path string
	// Content is the decoded file content.
	Content string
}

// ListWorkflowFiles fetches every .yml/.yaml file under the workflow
// directory at the given ref (empty means the default branch). The
// directory listing does not carry file bodies, so each file costs a
// second request.
func (c *Client) ListWorkflowFiles(ctx context.Context, owner, repo, ref string) ([]*WorkflowFile, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	_, entries, _, err := c.github.Repositories.GetContents(ctx, owner, repo, WorkflowDir, opts)
	if err != nil {
		return nil, fmt.Errorf("listing %s in %s/%s: %w", WorkflowDir, owner, repo, err)
	}

	var files []*WorkflowFile
	for _, entry := range entries {
		if entry.GetType() != "file" {
			continue
		}
		name := entry.GetName()
		if !strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml") {
			continue
		}
		file, err := c.GetWorkflowFile(ctx, owner, repo, entry.GetPath(), ref)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// GetWorkflowFile fetches a single file by repository path.
func (c *Client) GetWorkflowFile(ctx context.Context, owner, repo, path, ref string) (*WorkflowFile, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	content, _, _, err := c.github.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, fmt.Errorf("fetching %s from %s/%s: %w", path, owner, repo, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%s in %s/%s is a directory, not a workflow file", path, owner, repo)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &WorkflowFile{
		Name:    content.GetName(),
		Path:    content.GetPath(),
		Content: decoded,
	}, nil
}
