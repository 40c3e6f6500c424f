package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/assets"
	"github.com/dmitrijs2005/autolot/internal/server/models"
	"github.com/dmitrijs2005/autolot/internal/server/transcode"
)

// fakeNormalizer echoes its input, fails on payloads starting with "bad",
// and records the peak number of concurrent calls.
type fakeNormalizer struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	onCall   func(raw []byte)
}

func (f *fakeNormalizer) Normalize(raw []byte, mediaType string) ([]byte, transcode.Outcome, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.onCall != nil {
		f.onCall(raw)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if strings.HasPrefix(string(raw), "bad") {
		return nil, transcode.OutcomeTranscoded, fmt.Errorf("%w: corrupt", common.ErrDecodeFailed)
	}
	return append([]byte("webp:"), raw...), transcode.OutcomeTranscoded, nil
}

func jpeg(payload string) models.RawUpload {
	return models.RawUpload{Data: []byte(payload), MediaType: "image/jpeg", Filename: payload + ".jpg", Size: int64(len(payload))}
}

func newTestIngestor(t *testing.T, n Normalizer, p Policy) (*Ingestor, *assets.FileStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := assets.NewFileStoreFs(fs, "/uploads")
	return NewIngestor(n, store, p, logging.NewDiscardLogger()), store, fs
}

func storedFiles(t *testing.T, fs afero.Fs) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

func readRef(t *testing.T, store *assets.FileStore, fs afero.Fs, ref string) string {
	t.Helper()
	name, ok := store.NameFromReference(ref)
	require.True(t, ok, ref)
	data, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	return string(data)
}

func TestIngest_PreservesSubmissionOrder(t *testing.T) {
	norm := &fakeNormalizer{delay: time.Millisecond}
	in, store, fs := newTestIngestor(t, norm, Policy{MaxFiles: 12, MaxFileBytes: 1 << 20, Concurrency: 3, NameAttempts: 3})

	uploads := []models.RawUpload{jpeg("a"), jpeg("b"), jpeg("c"), jpeg("d"), jpeg("e")}
	refs, err := in.Ingest(context.Background(), uploads)
	require.NoError(t, err)
	require.Len(t, refs, 5)

	for i, ref := range refs {
		assert.True(t, strings.HasPrefix(ref, "/uploads/"), ref)
		assert.True(t, strings.HasSuffix(ref, ".webp"), ref)
		assert.Equal(t, "webp:"+string(uploads[i].Data), readRef(t, store, fs, ref))
	}
}

func TestIngest_NeverExceedsConcurrency(t *testing.T) {
	norm := &fakeNormalizer{delay: 5 * time.Millisecond}
	in, _, _ := newTestIngestor(t, norm, Policy{MaxFiles: 12, MaxFileBytes: 1 << 20, Concurrency: 2, NameAttempts: 3})

	var uploads []models.RawUpload
	for i := 0; i < 9; i++ {
		uploads = append(uploads, jpeg(fmt.Sprintf("img%d", i)))
	}

	refs, err := in.Ingest(context.Background(), uploads)
	require.NoError(t, err)
	assert.Len(t, refs, 9)
	assert.LessOrEqual(t, norm.peak.Load(), int32(2))
}

func TestIngest_PartialFailureContained(t *testing.T) {
	in, store, fs := newTestIngestor(t, &fakeNormalizer{}, DefaultPolicy)

	uploads := []models.RawUpload{jpeg("a"), jpeg("bad1"), jpeg("c"), jpeg("bad2"), jpeg("e")}
	refs, err := in.Ingest(context.Background(), uploads)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, "webp:a", readRef(t, store, fs, refs[0]))
	assert.Equal(t, "webp:c", readRef(t, store, fs, refs[1]))
	assert.Equal(t, "webp:e", readRef(t, store, fs, refs[2]))
	assert.Len(t, storedFiles(t, fs), 3)
}

// flakyStore fails Write for one payload with an error the ingestor has no
// special handling for.
type flakyStore struct {
	assets.Store
	failOn string
	writes atomic.Int32
}

func (f *flakyStore) Write(ctx context.Context, name string, data []byte) error {
	f.writes.Add(1)
	if string(data) == f.failOn {
		return errors.New("disk quota exceeded")
	}
	return f.Store.Write(ctx, name, data)
}

func TestIngest_StoreWriteFailureDropsOnlyThatImage(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := assets.NewFileStoreFs(fs, "/uploads")
	store := &flakyStore{Store: files, failOn: "webp:c"}
	in := NewIngestor(&fakeNormalizer{}, store, Policy{MaxFiles: 12, MaxFileBytes: 1 << 20, Concurrency: 2, NameAttempts: 3}, logging.NewDiscardLogger())

	uploads := []models.RawUpload{jpeg("a"), jpeg("b"), jpeg("c"), jpeg("d"), jpeg("e")}
	refs, err := in.Ingest(context.Background(), uploads)
	require.NoError(t, err)
	require.Len(t, refs, len(uploads)-1)

	var got []string
	for _, ref := range refs {
		got = append(got, readRef(t, files, fs, ref))
	}
	assert.Equal(t, []string{"webp:a", "webp:b", "webp:d", "webp:e"}, got)
	assert.Len(t, storedFiles(t, fs), 4)
	assert.Equal(t, int32(5), store.writes.Load(), "a plain write error is not retried under a new name")
}

func TestIngest_AllFailYieldsEmptyList(t *testing.T) {
	in, _, _ := newTestIngestor(t, &fakeNormalizer{}, DefaultPolicy)

	refs, err := in.Ingest(context.Background(), []models.RawUpload{jpeg("bad")})
	require.NoError(t, err)
	assert.NotNil(t, refs)
	assert.Empty(t, refs)
}

func TestIngest_EmptyBatch(t *testing.T) {
	in, _, _ := newTestIngestor(t, &fakeNormalizer{}, DefaultPolicy)

	refs, err := in.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestValidate_RejectsWholeBatchWithoutWrites(t *testing.T) {
	tests := []struct {
		name    string
		uploads func() []models.RawUpload
		wantErr error
	}{
		{
			name: "too many files",
			uploads: func() []models.RawUpload {
				var u []models.RawUpload
				for i := 0; i < 13; i++ {
					u = append(u, jpeg(fmt.Sprintf("f%d", i)))
				}
				return u
			},
			wantErr: common.ErrBatchTooLarge,
		},
		{
			name: "one file too large",
			uploads: func() []models.RawUpload {
				big := jpeg("big")
				big.Size = 26 << 20
				return []models.RawUpload{jpeg("a"), big}
			},
			wantErr: common.ErrFileTooLarge,
		},
		{
			name: "unsupported type",
			uploads: func() []models.RawUpload {
				return []models.RawUpload{jpeg("a"), {Data: []byte("%PDF"), MediaType: "application/pdf", Filename: "x.pdf"}}
			},
			wantErr: common.ErrUnsupportedMediaType,
		},
		{
			name: "empty file",
			uploads: func() []models.RawUpload {
				return []models.RawUpload{{MediaType: "image/png", Filename: "x.png"}}
			},
			wantErr: common.ErrorValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			norm := &fakeNormalizer{}
			in, _, fs := newTestIngestor(t, norm, DefaultPolicy)

			refs, err := in.Ingest(context.Background(), tt.uploads())
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, errors.Is(err, common.ErrorValidation))
			assert.Nil(t, refs)
			assert.Empty(t, storedFiles(t, fs), "no asset may be written")
			assert.Zero(t, norm.peak.Load(), "no transcode may run")
		})
	}
}

func TestIngest_RegeneratesNameOnCollision(t *testing.T) {
	in, store, fs := newTestIngestor(t, &fakeNormalizer{}, DefaultPolicy)

	fixed := time.UnixMilli(1700000000000)
	in.now = func() time.Time { return fixed }

	var mu sync.Mutex
	suffixes := []string{"aaaaaaaaaa", "aaaaaaaaaa", "bbbbbbbbbb"}
	in.randHex = func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s, nil
	}

	refs, err := in.Ingest(context.Background(), []models.RawUpload{jpeg("one")})
	require.NoError(t, err)
	require.Equal(t, []string{"/uploads/1700000000000-aaaaaaaaaa.webp"}, refs)

	refs, err = in.Ingest(context.Background(), []models.RawUpload{jpeg("two")})
	require.NoError(t, err)
	require.Equal(t, []string{"/uploads/1700000000000-bbbbbbbbbb.webp"}, refs)

	assert.Equal(t, "webp:one", readRef(t, store, fs, "/uploads/1700000000000-aaaaaaaaaa.webp"))
	assert.Equal(t, "webp:two", readRef(t, store, fs, refs[0]))
}

func TestIngest_NameAttemptsExhausted(t *testing.T) {
	in, _, fs := newTestIngestor(t, &fakeNormalizer{}, Policy{MaxFiles: 5, MaxFileBytes: 1 << 20, Concurrency: 1, NameAttempts: 2})
	in.now = func() time.Time { return time.UnixMilli(1) }
	in.randHex = func(int) (string, error) { return "0000000000", nil }

	refs, err := in.Ingest(context.Background(), []models.RawUpload{jpeg("a"), jpeg("b")})
	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/1-0000000000.webp"}, refs, "second file is dropped, not overwritten")
	assert.Len(t, storedFiles(t, fs), 1)
}

func TestIngest_CancellationRemovesWrittenAssets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	norm := &fakeNormalizer{onCall: func(raw []byte) {
		if string(raw) == "b" {
			cancel()
		}
	}}
	in, _, fs := newTestIngestor(t, norm, Policy{MaxFiles: 12, MaxFileBytes: 1 << 20, Concurrency: 2, NameAttempts: 3})

	refs, err := in.Ingest(ctx, []models.RawUpload{jpeg("a"), jpeg("b"), jpeg("c"), jpeg("d")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, refs)
	assert.Empty(t, storedFiles(t, fs), "assets of a cancelled ingest must be removed")
}

func TestDiscard_IgnoresMissingAndForeign(t *testing.T) {
	in, store, fs := newTestIngestor(t, &fakeNormalizer{}, DefaultPolicy)
	ctx := context.Background()

	refs, err := in.Ingest(ctx, []models.RawUpload{jpeg("a"), jpeg("b")})
	require.NoError(t, err)

	name, _ := store.NameFromReference(refs[0])
	require.NoError(t, store.Delete(ctx, name))

	in.Discard(ctx, append(refs, "https://elsewhere.example/x.webp"))
	assert.Empty(t, storedFiles(t, fs))
}
