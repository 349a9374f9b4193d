// Package media talks to the external image host that stores product thumbnails.
package media

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// HostedDomain identifies URLs served by the media host
const HostedDomain = "res.cloudinary.com"

var publicIDPattern = regexp.MustCompile(`/upload/(?:v\d+/)?([^/.]+)`)

// Host removes assets from the media host
type Host interface {
	Destroy(ctx context.Context, publicID string) error
}

// IsHosted reports whether url points at the media host
func IsHosted(url string) bool {
	return strings.Contains(url, HostedDomain)
}

// PublicID extracts the asset identifier from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/abc123.png
func PublicID(url string) (string, bool) {
	m := publicIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Cloudinary is the Host backed by the Cloudinary upload API
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinary creates a client from account credentials
func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

// Destroy deletes the asset. A "not found" result counts as success.
func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	if res.Error.Message != "" {
		return errors.New(res.Error.Message)
	}
	switch res.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("destroy %s: %s", publicID, res.Result)
	}
}
