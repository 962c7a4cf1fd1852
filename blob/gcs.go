////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package blob

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"google.golang.org/api/option"
)

// DefaultGCSBaseURL is the public host of Cloud Storage objects.
const DefaultGCSBaseURL = "https://storage.googleapis.com"

// GCSConfig describes the bucket images are uploaded to.
type GCSConfig struct {
	Bucket string

	// CredentialsFile is a service account key. If empty the default
	// credentials of the environment are used.
	CredentialsFile string

	// Endpoint overrides the Cloud Storage API endpoint, for emulators. When
	// set no authentication is used.
	Endpoint string

	// BaseURL is the host download URLs are built on. Defaults to
	// DefaultGCSBaseURL.
	BaseURL string
}

// GCSStore keeps blobs in a Cloud Storage bucket. Download URLs are public
// object URLs.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSStore connects to the bucket in the config.
func NewGCSStore(ctx context.Context, c GCSConfig) (*GCSStore, error) {
	if c.Bucket == "" {
		return nil, errors.New("no bucket configured")
	}

	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint),
			option.WithoutAuthentication())
	} else if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage client")
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultGCSBaseURL
	}
	return &GCSStore{
		client:  client,
		bucket:  c.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Put uploads data to path.
func (s *GCSStore) Put(ctx context.Context, path string, data []byte,
	contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", errors.Wrapf(err, "failed to upload %s", path)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to finish upload of %s", path)
	}

	jww.DEBUG.Printf("Uploaded %d bytes to gs://%s/%s", len(data), s.bucket,
		path)
	return s.DownloadURL(ctx, path)
}

// Get downloads the object a URL of this store points to.
func (s *GCSStore) Get(ctx context.Context, url string) ([]byte, error) {
	path, ok := s.objectPath(url)
	if !ok {
		return nil, errors.WithMessagef(ErrNotFound,
			"not in bucket %s: %s", s.bucket, url)
	}

	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, errors.WithMessagef(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to download %s", path)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}

// DownloadURL returns the public URL of path.
func (s *GCSStore) DownloadURL(_ context.Context, path string) (string, error) {
	return s.baseURL + "/" + s.bucket + "/" + path, nil
}

// Close closes the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// objectPath returns the object path of a download URL, without any query.
func (s *GCSStore) objectPath(url string) (string, bool) {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	path := strings.TrimPrefix(url, s.baseURL+"/"+s.bucket+"/")
	return path, path != url && path != ""
}
