package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/account-portal/internal/supabase"
)

// imageCacheMaxAge is the Cache-Control max-age, in seconds, stored with
// every profile image. Names are never reused, so an object never changes.
const imageCacheMaxAge = "31536000"

// imageExtensions is the MIME allow-list for profile images.
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/tiff": ".tiff",
	"image/webp": ".webp",
}

// ImageFile is an uploaded file as the handler received it.
type ImageFile struct {
	ContentType string
	Body        io.Reader
}

// ObjectUploader stores a blob in the profile image bucket.
// *supabase.Bucket satisfies it.
type ObjectUploader interface {
	Upload(ctx context.Context, name string, data []byte, opts supabase.UploadOptions) (string, error)
}

// ImageService uploads profile images.
type ImageService struct {
	bucket ObjectUploader
	logger *slog.Logger
}

func NewImageService(bucket ObjectUploader, logger *slog.Logger) *ImageService {
	return &ImageService{
		bucket: bucket,
		logger: logger,
	}
}

// UploadProfileImage stores f under a fresh random name and returns the stored
// path. It returns "" when the content type is not an allowed image, without
// touching storage, and "" when the upload fails.
//
// Earlier images of the same user are left in the bucket.
func (s *ImageService) UploadProfileImage(ctx context.Context, f ImageFile) string {
	ext, ok := imageExtensions[f.ContentType]
	if !ok {
		s.logger.Debug("ImageService:UploadProfileImage rejected content type", slog.String("contentType", f.ContentType))
		return ""
	}

	data, err := io.ReadAll(f.Body)
	if err != nil {
		s.logger.Error("ImageService:UploadProfileImage", slog.String("error", err.Error()))
		return ""
	}

	name := xid.New().String() + ext
	path, err := s.bucket.Upload(ctx, name, data, supabase.UploadOptions{
		ContentType:  f.ContentType,
		Upsert:       true,
		CacheControl: imageCacheMaxAge,
	})
	if err != nil {
		s.logger.Error("ImageService:UploadProfileImage",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return path
}
