package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Archiver stores scored submission bundles as raw Cloudinary assets.
type Archiver struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary archiver.
func New(cfg Config, logger zerolog.Logger) (*Archiver, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = "gradebook/submissions"
	}

	return &Archiver{
		client: cld,
		folder: folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
		now:    time.Now,
	}, nil
}

// Archive uploads the bundle and returns its secure URL.
func (a *Archiver) Archive(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       a.folder,
		PublicID:     PublicID(name, a.now()),
		ResourceType: "raw",
	}

	result, err := a.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to archive bundle: %w", err)
	}

	a.logger.Info().Str("public_id", result.PublicID).Msg("submission bundle archived")
	return result.SecureURL, nil
}

// PublicID derives a URL-safe identifier from a bundle name and timestamp. Raw
// assets keep their extension.
func PublicID(name string, at time.Time) string {
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(name, "\\", "/")), path.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)
	for strings.Contains(base, "--") {
		base = strings.ReplaceAll(base, "--", "-")
	}
	base = strings.Trim(base, "-")
	if base == "" {
		base = "bundle"
	}
	return fmt.Sprintf("%s-%d%s", strings.ToLower(base), at.Unix(), ext)
}
