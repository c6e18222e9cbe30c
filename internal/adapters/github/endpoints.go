package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	perr "repoharvest/internal/platform/errors"
)

// SearchQuery is one repository search request
type SearchQuery struct {
	Q       string
	Sort    string // stars, forks, help-wanted-issues, updated; empty for best match
	Order   string // asc or desc
	Page    int    // 1-based
	PerPage int    // at most 100
}

func (q SearchQuery) path() string {
	v := url.Values{}
	v.Set("q", q.Q)
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	v.Set("per_page", strconv.Itoa(min(max(q.PerPage, 1), 100)))
	v.Set("page", strconv.Itoa(max(q.Page, 1)))
	return "/search/repositories?" + v.Encode()
}

// SearchRepositories fetches one page of repository search results.
// An undecodable body is ErrorCodeJSON so callers can treat it as transient.
func (c *Client) SearchRepositories(ctx context.Context, q SearchQuery) (SearchPage, error) {
	p := q.path()
	resp, err := c.Do(ctx, p)
	if err != nil {
		return SearchPage{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", p).Msg("github close body failed")
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return SearchPage{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "github read search body")
	}
	var out SearchPage
	if err := json.Unmarshal(b, &out); err != nil {
		return SearchPage{}, perr.Wrap(err, perr.ErrorCodeJSON, "github decode search page")
	}
	return out, nil
}

// Readme returns the decoded README text for owner/repo. A repository
// without a README yields ("", nil).
func (c *Client) Readme(ctx context.Context, owner, repo string) (string, error) {
	p := fmt.Sprintf("/repos/%s/%s/readme", url.PathEscape(owner), url.PathEscape(repo))
	resp, err := c.Do(ctx, p)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", p).Msg("github close body failed")
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "github read readme body")
	}
	var doc contentDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "github decode readme")
	}
	return decodeContent(doc)
}

func decodeContent(doc contentDoc) (string, error) {
	switch strings.ToLower(doc.Encoding) {
	case "base64":
		// GitHub wraps the payload at 60 columns
		raw := strings.NewReplacer("\n", "", "\r", "").Replace(doc.Content)
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return "", perr.Wrap(err, perr.ErrorCodeMalformed, "github readme base64")
		}
		return string(b), nil
	case "", "none", "utf-8":
		return doc.Content, nil
	default:
		return "", perr.Malformedf("github readme: unsupported encoding %q", doc.Encoding)
	}
}
