package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// maxArtSize bounds a downloaded cover.
const maxArtSize = 5 << 20

// ArtCache downloads remote artwork so notification servers, which only
// accept local paths, can show it.
type ArtCache struct {
	dir        string
	httpClient *http.Client
}

// NewArtCache creates a cache in dir, or in the xdg cache directory when
// dir is empty.
func NewArtCache(dir string) (*ArtCache, error) {
	if dir == "" {
		p, err := xdg.CacheFile(filepath.Join("scrobbled", "art", ".keep"))
		if err != nil {
			return nil, fmt.Errorf("cache dir: %w", err)
		}
		dir = filepath.Dir(p)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return &ArtCache{
		dir:        dir,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Path returns a local file holding the artwork at artURL, downloading it
// on first use. Local paths are returned unchanged.
func (c *ArtCache) Path(ctx context.Context, artURL string) (string, error) {
	if artURL == "" {
		return "", nil
	}
	if !strings.HasPrefix(artURL, "http://") && !strings.HasPrefix(artURL, "https://") {
		return strings.TrimPrefix(artURL, "file://"), nil
	}

	sum := sha256.Sum256([]byte(artURL))
	name := hex.EncodeToString(sum[:16]) + artExt(artURL)
	target := filepath.Join(c.dir, name)
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download art: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download art: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxArtSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write art: %w", err)
	}
	if n > maxArtSize {
		return "", errors.New("artwork too large")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}
	return target, nil
}

func artExt(artURL string) string {
	u, _, _ := strings.Cut(artURL, "?")
	switch ext := strings.ToLower(path.Ext(u)); ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	}
	return ".jpg"
}
