package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/multierr"
)

const storageBase = "https://storage.googleapis.com/storage/v1"

// ErrObjectNotExist is returned when an object operation targets a key that
// is not present in the bucket.
var ErrObjectNotExist = errors.New("gcs: object does not exist")

func (b *Bucket) objectURL(key string) string {
	return fmt.Sprintf("%s/b/%s/o/%s", storageBase, url.PathEscape(b.name), url.PathEscape(key))
}

func (b *Bucket) do(ctx context.Context, method, u string, body io.Reader) (*http.Response, error) {
	token, err := b.client.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return b.client.httpClient.Do(req)
}

func drainError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(raw) > 0 {
		return fmt.Errorf("gcs: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return fmt.Errorf("gcs: %s", resp.Status)
}

// Download returns the full contents of the object at key.
func (b *Bucket) Download(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.do(ctx, http.MethodGet, b.objectURL(key)+"?alt=media", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, ErrObjectNotExist
	default:
		return nil, drainError(resp)
	}
}

// Upload writes data to the object at key, replacing any existing content.
func (b *Bucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	u := fmt.Sprintf(
		"https://storage.googleapis.com/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		url.PathEscape(b.name), url.QueryEscape(key),
	)
	token, err := b.client.tokenSource.Token(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := b.client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return drainError(resp)
	}
	return nil
}

// Copy duplicates the object at src under dst within the same bucket.
func (b *Bucket) Copy(ctx context.Context, src, dst string) error {
	u := fmt.Sprintf(
		"%s/b/%s/o/%s/rewriteTo/b/%s/o/%s",
		storageBase,
		url.PathEscape(b.name), url.PathEscape(src),
		url.PathEscape(b.name), url.PathEscape(dst),
	)

	// The rewrite API may require multiple calls for large objects; loop on
	// the returned token until done.
	token := ""
	for {
		call := u
		if token != "" {
			call = u + "?rewriteToken=" + url.QueryEscape(token)
		}
		resp, err := b.do(ctx, http.MethodPost, call, nil)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusNotFound {
			_ = resp.Body.Close()
			return ErrObjectNotExist
		}
		if resp.StatusCode != http.StatusOK {
			err := drainError(resp)
			_ = resp.Body.Close()
			return err
		}

		var rewrite struct {
			Done         bool   `json:"done"`
			RewriteToken string `json:"rewriteToken"`
		}
		err = json.NewDecoder(resp.Body).Decode(&rewrite)
		_ = resp.Body.Close()
		if err != nil {
			return err
		}
		if rewrite.Done {
			return nil
		}
		token = rewrite.RewriteToken
	}
}

// Delete removes the object at key. Missing objects yield ErrObjectNotExist.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	resp, err := b.do(ctx, http.MethodDelete, b.objectURL(key), nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrObjectNotExist
	default:
		return drainError(resp)
	}
}

// List returns the keys under prefix, following result pages.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pageToken := ""
	for {
		u := fmt.Sprintf(
			"%s/b/%s/o?prefix=%s&fields=items(name),nextPageToken",
			storageBase, url.PathEscape(b.name), url.QueryEscape(prefix),
		)
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}
		resp, err := b.do(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			err := drainError(resp)
			_ = resp.Body.Close()
			return nil, err
		}

		var page struct {
			Items []struct {
				Name string `json:"name"`
			} `json:"items"`
			NextPageToken string `json:"nextPageToken"`
		}
		err = json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			keys = append(keys, item.Name)
		}
		if page.NextPageToken == "" {
			return keys, nil
		}
		pageToken = page.NextPageToken
	}
}

// DeletePrefix removes every object under prefix and returns how many were
// deleted. Individual failures are aggregated; already-gone objects are not
// failures.
func (b *Bucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := b.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	var errs error
	for _, key := range keys {
		switch err := b.Delete(ctx, key); {
		case err == nil:
			deleted++
		case errors.Is(err, ErrObjectNotExist):
		default:
			errs = multierr.Append(errs, fmt.Errorf("deleting %s: %w", key, err))
		}
	}
	return deleted, errs
}
