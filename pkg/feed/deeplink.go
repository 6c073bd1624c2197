package feed

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/klauspost/compress/flate"
)

// EncodePost serializes a post into a compact URL-safe string: JSON,
// deflate-compressed, base64url without padding.
func EncodePost(post Post) (string, error) {
	data, err := json.Marshal(post)
	if err != nil {
		return "", fmt.Errorf("failed to encode post: %w", err)
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("failed to create compressor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("failed to compress post: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to flush compressor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodePost reverses EncodePost.
func DecodePost(encoded string) (Post, error) {
	if encoded == "" {
		return Post{}, fmt.Errorf("empty deep link")
	}

	compressed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Post{}, fmt.Errorf("failed to decode deep link: %w", err)
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return Post{}, fmt.Errorf("failed to decompress deep link: %w", err)
	}

	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return Post{}, fmt.Errorf("failed to decode post: %w", err)
	}
	return post, nil
}

// BuildShareURL returns a link that carries the full post in its query
// string, so it renders on any device without backend state.
func BuildShareURL(base string, post Post) (string, error) {
	if post.ID == "" {
		return "", fmt.Errorf("post must have an id")
	}
	encoded, err := EncodePost(post)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("post", post.ID)
	q.Set("d", encoded)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
