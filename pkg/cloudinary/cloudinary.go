package cloudinary

import (
	"context"
	"fmt"
	"io"
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

// Store keeps analysis media in Cloudinary and hands back secure URLs.
type Store struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary media store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Store{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Put uploads the media under a public id derived from name. Audio is
// stored as a video resource, which is how Cloudinary classifies it.
func (s *Store) Put(ctx context.Context, name, mimeType string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     BuildPublicID(name, time.Now()),
		ResourceType: ResourceType(mimeType),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("mime", mimeType).Msg("media uploaded to cloudinary")

	return result.SecureURL, nil
}

// ResourceType maps a MIME type to a Cloudinary resource type.
func ResourceType(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"), strings.HasPrefix(mimeType, "audio/"):
		return "video"
	default:
		return "raw"
	}
}

// BuildPublicID normalises name into a Cloudinary-safe id suffixed with the timestamp.
func BuildPublicID(name string, at time.Time) string {
	base := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, name)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "media"
	}

	return fmt.Sprintf("%s-%d", base, at.Unix())
}
