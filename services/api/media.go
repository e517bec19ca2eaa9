package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	gos3 "hearthside/pkg/s3"
)

const (
	mediaUploadURLExpiry  = 15 * time.Minute
	mediaResolveURLExpiry = 15 * time.Minute
)

// mediaAddressKey builds the deterministic storage key for an asset. The key
// is derived from the identity bound to the recipient at upload time and is
// persisted on the media record; it is never rebuilt from whoever owns the
// containing content later.
func mediaAddressKey(ownerIdentityID, contentID, fileID uuid.UUID) string {
	return fmt.Sprintf("memories/%s/%s/%s", ownerIdentityID, contentID, fileID)
}

// MediaService addresses and resolves stored assets through object storage.
type MediaService struct {
	s3     *gos3.Client
	bucket string
}

// NewMediaService returns a MediaService writing to the given bucket.
func NewMediaService(client *gos3.Client, bucket string) (*MediaService, error) {
	if bucket == "" {
		return nil, errors.New("media bucket is required")
	}
	return &MediaService{s3: client, bucket: bucket}, nil
}

// UploadURL presigns a PUT for the asset's address key so the respondent's
// client can upload bytes directly to object storage.
func (s *MediaService) UploadURL(ctx context.Context, asset MediaAsset) (string, error) {
	if s == nil || s.s3 == nil {
		return "", errors.New("media storage not configured")
	}
	return s.s3.PresignPut(ctx, s.bucket, asset.AddressKey, mediaUploadURLExpiry)
}

// ResolveURL presigns a GET for the asset. Resolution always goes through
// the address key persisted at store time, so a later identity claim or
// re-point never breaks existing links.
func (s *MediaService) ResolveURL(ctx context.Context, asset MediaAsset) (string, error) {
	if s == nil || s.s3 == nil {
		return "", errors.New("media storage not configured")
	}
	return s.s3.PresignGet(ctx, s.bucket, asset.AddressKey, mediaResolveURLExpiry)
}

// Uploaded reports whether the asset's bytes have landed in object storage.
func (s *MediaService) Uploaded(ctx context.Context, asset MediaAsset) (bool, error) {
	if s == nil || s.s3 == nil {
		return false, errors.New("media storage not configured")
	}
	return s.s3.ObjectExists(ctx, s.bucket, asset.AddressKey)
}
