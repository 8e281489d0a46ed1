package cloudinary

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Uploader stores profile images shown next to partnerships.
type Uploader interface {
	UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (url, thumbnailURL string, err error)
}

// Avatars are square crops; thumbnails are what partner lists render.
const (
	AvatarWidth = 400
	ThumbWidth  = 96
)

const avatarEager = "q_auto,f_auto,w_96,h_96,c_thumb,g_face"

var eagerAsyncFalse = false

// BuildOptimizedImageURL returns a delivery URL with auto quality and format at the given width.
func BuildOptimizedImageURL(cloudName, publicID string, width int) string {
	if width <= 0 {
		width = AvatarWidth
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,c_fill/%s",
		cloudName, width, publicID)
}

type client struct {
	cloudName string
	uploader  *uploader.API
}

// UploadImage uploads an image and eagerly builds its thumbnail.
func (c *client) UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (url, thumbnailURL string, err error) {
	overwrite := true
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     folder,
		PublicID:   publicID,
		Overwrite:  &overwrite,
		Eager:      avatarEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return "", "", err
	}
	url = result.SecureURL
	if len(result.Eager) > 0 {
		thumbnailURL = result.Eager[0].SecureURL
	}
	if thumbnailURL == "" {
		thumbnailURL = BuildOptimizedImageURL(c.cloudName, result.PublicID, ThumbWidth)
	}
	return url, thumbnailURL, nil
}

// NewUploader builds an Uploader from Cloudinary cloud name, API key, and secret.
func NewUploader(cloudName, apiKey, apiSecret string) (Uploader, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &client{cloudName: cloudName, uploader: up}, nil
}
