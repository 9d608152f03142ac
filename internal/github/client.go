// Package github wraps the GitHub "contents" REST API: read a file with its
// revision, write it conditioned on the last-read revision, delete it, and
// list a directory. Text and binary payloads both travel base64 encoded.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
)

// Ref addresses a path inside a repository. An empty Repo means the client's default repository.
type Ref struct {
	Repo string
	Path string
}

// File is the decoded content of a file together with its blob revision.
type File struct {
	Content  []byte
	Revision string
}

// Entry is one item of a directory listing.
type Entry struct {
	Name     string
	Path     string
	Revision string
	Type     string // "file", "dir", "symlink" or "submodule"
	Size     int64
}

// WriteResult describes a successful write.
type WriteResult struct {
	Revision string // blob sha of the new content, the next expected revision
	Commit   string // commit sha created by the write
}

// Contents is the compare-and-swap contract over repository files.
//
// Put with an empty expectedRevision creates the file; with a revision it
// replaces the file only if that revision is still current, otherwise the
// host rejects it and Put returns an error matching ErrConflict.
type Contents interface {
	Get(ctx context.Context, ref Ref) (File, bool, error)
	Put(ctx context.Context, ref Ref, content []byte, message, expectedRevision string) (WriteResult, error)
	Delete(ctx context.Context, ref Ref, message, revision string) error
	List(ctx context.Context, ref Ref) ([]Entry, error)
}

// Options configures a Client.
type Options struct {
	Token       string
	Branch      string
	BaseURL     string
	DefaultRepo string
	UserAgent   string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client talks to the contents API over a single http.Client with a uniform timeout.
type Client struct {
	http      *http.Client
	baseURL   string
	token     string
	branch    string
	repo      string
	userAgent string
}

var _ Contents = (*Client)(nil)

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "portfolio-backend"
	}
	return &Client{http: hc, baseURL: base, token: opts.Token, branch: opts.Branch, repo: opts.DefaultRepo, userAgent: ua}
}

type contentItem struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

type writeResponse struct {
	Content *struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) Get(ctx context.Context, ref Ref) (File, bool, error) {
	var raw json.RawMessage
	found, err := c.do(ctx, http.MethodGet, c.contentsURL(ref, true), nil, &raw)
	if err != nil || !found {
		return File{}, false, err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		return File{}, false, &Error{Kind: KindUpstream, Message: fmt.Sprintf("%s is a directory", ref.Path)}
	}
	var item contentItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return File{}, false, &Error{Kind: KindUpstream, Message: "decode contents response", Err: err}
	}
	var data []byte
	if item.Encoding == "none" || (item.Content == "" && item.Size > 0) {
		// files over 1 MB come back without inline content
		data, err = c.blob(ctx, ref, item.SHA)
	} else {
		data, err = decodeContent(item.Content)
	}
	if err != nil {
		return File{}, false, err
	}
	return File{Content: data, Revision: item.SHA}, true, nil
}

func (c *Client) blob(ctx context.Context, ref Ref, sha string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/git/blobs/%s", c.baseURL, c.repoOf(ref), url.PathEscape(sha))
	var item contentItem
	found, err := c.do(ctx, http.MethodGet, u, nil, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &Error{Kind: KindUpstream, Status: http.StatusNotFound, Message: "blob " + sha + " not found"}
	}
	return decodeContent(item.Content)
}

func decodeContent(s string) ([]byte, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &Error{Kind: KindUpstream, Message: "decode base64 content", Err: err}
	}
	return b, nil
}

func (c *Client) Put(ctx context.Context, ref Ref, content []byte, message, expectedRevision string) (WriteResult, error) {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if expectedRevision != "" {
		body["sha"] = expectedRevision
	}
	if c.branch != "" {
		body["branch"] = c.branch
	}
	var resp writeResponse
	found, err := c.do(ctx, http.MethodPut, c.contentsURL(ref, false), body, &resp)
	if err != nil {
		return WriteResult{}, err
	}
	if !found {
		return WriteResult{}, &Error{Kind: KindUpstream, Status: http.StatusNotFound, Message: fmt.Sprintf("repository for %s not found", ref.Path)}
	}
	out := WriteResult{Commit: resp.Commit.SHA}
	if resp.Content != nil {
		out.Revision = resp.Content.SHA
	}
	return out, nil
}

// Delete removes the file at revision. A file that is already gone is not an error.
func (c *Client) Delete(ctx context.Context, ref Ref, message, revision string) error {
	body := map[string]string{"message": message, "sha": revision}
	if c.branch != "" {
		body["branch"] = c.branch
	}
	_, err := c.do(ctx, http.MethodDelete, c.contentsURL(ref, false), body, nil)
	return err
}

func (c *Client) List(ctx context.Context, ref Ref) ([]Entry, error) {
	var raw json.RawMessage
	found, err := c.do(ctx, http.MethodGet, c.contentsURL(ref, true), nil, &raw)
	if err != nil || !found {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil
	}
	var items []contentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &Error{Kind: KindUpstream, Message: "decode directory listing", Err: err}
	}
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, Entry{Name: it.Name, Path: it.Path, Revision: it.SHA, Type: it.Type, Size: it.Size})
	}
	return out, nil
}

func (c *Client) repoOf(ref Ref) string {
	if ref.Repo != "" {
		return ref.Repo
	}
	return c.repo
}

func (c *Client) contentsURL(ref Ref, withRef bool) string {
	segs := strings.Split(strings.Trim(ref.Path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	u := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, c.repoOf(ref), strings.Join(segs, "/"))
	if withRef && c.branch != "" {
		u += "?ref=" + url.QueryEscape(c.branch)
	}
	return u
}

// do performs one request. It returns found=false on 404 and a typed *Error for every other failure.
func (c *Client) do(ctx context.Context, method, u string, body any, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return false, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, &Error{Kind: KindUpstream, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return true, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return true, &Error{Kind: KindUpstream, Status: resp.StatusCode, Message: "decode response", Err: err}
		}
		return true, nil
	}
	return false, classify(resp)
}

func classify(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = resp.Status
	}
	e := &Error{Status: resp.StatusCode, Message: msg}
	lower := strings.ToLower(msg)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
	case resp.StatusCode == http.StatusForbidden:
		if strings.Contains(lower, "rate limit") || resp.Header.Get("X-RateLimit-Remaining") == "0" {
			e.Kind = KindRateLimited
		} else {
			e.Kind = KindForbidden
		}
	case resp.StatusCode == http.StatusConflict:
		e.Kind = KindConflict
	case resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(lower, "sha"):
		e.Kind = KindConflict
	default:
		e.Kind = KindUpstream
	}
	return e
}
