////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package blob

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/parley/client/identity"
	"gitlab.com/parley/client/session"
)

func testPNG(t *testing.T, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestCache(t *testing.T) *BadgerCache {
	c, err := NewBadgerCache("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPaths(t *testing.T) {
	if p := DisplayPicturePath("u1"); p != "displayPictures/u1/u1.JPG" {
		t.Errorf("Unexpected display picture path."+
			"\nexpected: %s\nreceived: %s", "displayPictures/u1/u1.JPG", p)
	}
	expected := "conversations/c1/images/1600000000123.jpg"
	p := ConversationImagePath("c1", time.UnixMilli(1600000000123))
	if p != expected {
		t.Errorf("Unexpected image path.\nexpected: %s\nreceived: %s",
			expected, p)
	}
}

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	s := NewKVStore(ekv.MakeMemstore())

	url, err := s.Put(ctx, "a/b.jpg", []byte("data"), JPEGContentType)
	require.NoError(t, err)
	require.Equal(t, KVScheme+"a/b.jpg", url)

	data, err := s.Get(ctx, url)
	require.NoError(t, err)
	require.Equal(t, []byte("data"), data)

	_, err = s.Get(ctx, KVScheme+"missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "https://elsewhere/a/b.jpg")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerCache(t *testing.T) {
	c := newTestCache(t)

	_, found, err := c.Get("k")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Put("k", []byte("v")))
	data, found, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), data)

	require.NoError(t, c.EvictAll())
	_, found, err = c.Get("k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPrepareImage(t *testing.T) {
	out, err := PrepareImage(testPNG(t, 400, 200), 100, 80)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 100, img.Bounds().Dx())
	require.Equal(t, 50, img.Bounds().Dy())

	// Small images keep their size
	out, err = PrepareImage(testPNG(t, 20, 10), 100, 80)
	require.NoError(t, err)
	img, _, err = image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())

	_, err = PrepareImage([]byte("not an image"), 100, 80)
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestMedia(t *testing.T) {
	ctx := context.Background()
	ids := identity.NewMockManager()
	s, err := session.Open(ctx, ids, ids.AddUser("amy"))
	require.NoError(t, err)

	store := NewKVStore(ekv.MakeMemstore())
	cache := newTestCache(t)
	m := NewMedia(store, cache, ids, MediaParams{MaxDimension: 64,
		JPEGQuality: 75})
	m.now = func() time.Time { return time.UnixMilli(42) }

	url, err := m.UploadDisplayPicture(ctx, s, testPNG(t, 128, 128))
	require.NoError(t, err)
	require.Equal(t, KVScheme+DisplayPicturePath(s.UID()), url)

	p, err := ids.ResolveProfile(ctx, s.UID())
	require.NoError(t, err)
	require.Equal(t, url, p.DisplayPicture)

	url, err = m.UploadConversationImage(ctx, "c1", testPNG(t, 10, 10))
	require.NoError(t, err)
	require.Equal(t, KVScheme+"conversations/c1/images/42.jpg", url)

	// Uploads are cached
	cached, found, err := cache.Get(url)
	require.NoError(t, err)
	require.True(t, found)

	fetched, err := m.Fetch(ctx, url)
	require.NoError(t, err)
	require.Equal(t, cached, fetched)

	// After eviction the store is read and the cache filled again
	require.NoError(t, m.EvictAll())
	fetched, err = m.Fetch(ctx, url)
	require.NoError(t, err)
	require.Equal(t, cached, fetched)
	_, found, err = cache.Get(url)
	require.NoError(t, err)
	require.True(t, found)

	_, err = m.UploadConversationImage(ctx, "c1", []byte("text"))
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestGCSStore_URLs(t *testing.T) {
	s := &GCSStore{bucket: "pics", baseURL: DefaultGCSBaseURL}

	url, err := s.DownloadURL(context.Background(), "a/b.jpg")
	require.NoError(t, err)
	require.Equal(t, "https://storage.googleapis.com/pics/a/b.jpg", url)

	path, ok := s.objectPath(url + "?alt=media")
	require.True(t, ok)
	require.Equal(t, "a/b.jpg", path)

	_, ok = s.objectPath("https://storage.googleapis.com/other/a/b.jpg")
	require.False(t, ok)
}

// Runs against a Cloud Storage emulator when PARLEY_TEST_GCS_ENDPOINT is
// set. The bucket "parley-test" must exist.
func TestGCSStore_Emulator(t *testing.T) {
	endpoint := os.Getenv("PARLEY_TEST_GCS_ENDPOINT")
	if endpoint == "" {
		t.Skip("PARLEY_TEST_GCS_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := NewGCSStore(ctx, GCSConfig{
		Bucket:   "parley-test",
		Endpoint: endpoint,
		BaseURL:  endpoint,
	})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	url, err := s.Put(ctx, "x/y.jpg", []byte("blob"), JPEGContentType)
	require.NoError(t, err)
	data, err := s.Get(ctx, url)
	require.NoError(t, err)
	require.Equal(t, []byte("blob"), data)

	missing, _ := s.DownloadURL(ctx, "x/missing.jpg")
	_, err = s.Get(ctx, missing)
	require.ErrorIs(t, err, ErrNotFound)
}
