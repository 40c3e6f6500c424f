// Package ingest turns a batch of raw uploads into stored webp assets.
//
// Files are processed in consecutive sub-batches of Policy.Concurrency;
// each sub-batch finishes before the next starts, so no more than
// Concurrency decoded images are held at once. A file that fails to
// transcode or store is logged and dropped; the rest of the batch goes on.
// The returned references keep submission order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/assets"
	"github.com/dmitrijs2005/autolot/internal/server/models"
	"github.com/dmitrijs2005/autolot/internal/server/transcode"
)

// Normalizer is the transcoding step. *transcode.Transcoder implements it.
type Normalizer interface {
	Normalize(raw []byte, mediaType string) ([]byte, transcode.Outcome, error)
}

// Policy bounds a single ingest call.
type Policy struct {
	MaxFiles     int
	MaxFileBytes int64
	Concurrency  int
	NameAttempts int
}

// DefaultPolicy mirrors the server configuration defaults.
var DefaultPolicy = Policy{
	MaxFiles:     12,
	MaxFileBytes: 25 << 20,
	Concurrency:  2,
	NameAttempts: 3,
}

// Ingestor runs uploads through a Normalizer into an assets.Store.
type Ingestor struct {
	normalizer Normalizer
	store      assets.Store
	policy     Policy
	logger     logging.Logger
	now        func() time.Time
	randHex    func(int) (string, error)
}

func NewIngestor(n Normalizer, store assets.Store, p Policy, logger logging.Logger) *Ingestor {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.NameAttempts < 1 {
		p.NameAttempts = 1
	}
	return &Ingestor{
		normalizer: n,
		store:      store,
		policy:     p,
		logger:     logger.With("component", "ingest"),
		now:        time.Now,
		randHex:    common.MakeRandHexString,
	}
}

// Store returns the asset store the ingestor writes to.
func (in *Ingestor) Store() assets.Store {
	return in.store
}

// Validate rejects the whole batch when any file breaks the policy. It
// performs no I/O.
func (in *Ingestor) Validate(uploads []models.RawUpload) error {
	if in.policy.MaxFiles > 0 && len(uploads) > in.policy.MaxFiles {
		return fmt.Errorf("%w: %d files, at most %d allowed", common.ErrBatchTooLarge, len(uploads), in.policy.MaxFiles)
	}
	for i, u := range uploads {
		if len(u.Data) == 0 {
			return fmt.Errorf("%w: file %d (%q) is empty", common.ErrorValidation, i, u.Filename)
		}
		if in.policy.MaxFileBytes > 0 && u.Len() > in.policy.MaxFileBytes {
			return fmt.Errorf("%w: file %d (%q) is %d bytes, limit %d", common.ErrFileTooLarge, i, u.Filename, u.Len(), in.policy.MaxFileBytes)
		}
		if _, err := transcode.ResolveMediaType(u.MediaType, u.Filename); err != nil {
			return fmt.Errorf("file %d: %w", i, err)
		}
	}
	return nil
}

// Ingest validates uploads, then normalizes and stores each one. It returns
// the public references of the files that made it, in submission order.
//
// If ctx is cancelled, the current sub-batch is allowed to settle, every
// asset written by this call is removed and ctx.Err() is returned.
func (in *Ingestor) Ingest(ctx context.Context, uploads []models.RawUpload) ([]string, error) {
	if err := in.Validate(uploads); err != nil {
		return nil, err
	}

	names := make([]string, len(uploads))
	step := in.policy.Concurrency

	for start := 0; start < len(uploads); start += step {
		if err := ctx.Err(); err != nil {
			in.discard(context.WithoutCancel(ctx), names)
			return nil, err
		}

		end := min(start+step, len(uploads))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				name, err := in.ingestOne(ctx, uploads[i])
				if err != nil {
					in.logger.Warn(ctx, "image dropped", "index", i, "filename", uploads[i].Filename, "error", err)
					return nil
				}
				names[i] = name
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		in.discard(context.WithoutCancel(ctx), names)
		return nil, err
	}

	refs := make([]string, 0, len(uploads))
	for _, name := range names {
		if name != "" {
			refs = append(refs, in.store.PublicReference(name))
		}
	}

	if dropped := len(uploads) - len(refs); dropped > 0 {
		in.logger.Info(ctx, "batch ingested with drops", "submitted", len(uploads), "stored", len(refs))
	}
	return refs, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, u models.RawUpload) (string, error) {
	mediaType, err := transcode.ResolveMediaType(u.MediaType, u.Filename)
	if err != nil {
		return "", err
	}

	data, outcome, err := in.normalizer.Normalize(u.Data, mediaType)
	if err != nil {
		return "", err
	}
	in.logger.Debug(ctx, "image normalized", "filename", u.Filename, "outcome", outcome.String(), "in", len(u.Data), "out", len(data))

	for attempt := 0; attempt < in.policy.NameAttempts; attempt++ {
		name, err := in.newName()
		if err != nil {
			return "", err
		}
		err = in.store.Write(ctx, name, data)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, assets.ErrAssetExists) {
			return "", err
		}
		in.logger.Debug(ctx, "asset name taken, regenerating", "name", name)
	}
	return "", fmt.Errorf("no free asset name after %d attempts", in.policy.NameAttempts)
}

func (in *Ingestor) newName() (string, error) {
	suffix, err := in.randHex(5)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s%s", in.now().UnixMilli(), suffix, common.AssetExtension), nil
}

// Discard removes previously ingested assets by public reference. Failures
// are logged and otherwise ignored.
func (in *Ingestor) Discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		name, ok := in.store.NameFromReference(ref)
		if !ok {
			in.logger.Warn(ctx, "cannot map reference to asset", "ref", ref)
			continue
		}
		if err := in.store.Delete(ctx, name); err != nil {
			in.logger.Warn(ctx, "asset cleanup failed", "name", name, "error", err)
		}
	}
}

func (in *Ingestor) discard(ctx context.Context, names []string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := in.store.Delete(ctx, name); err != nil {
			in.logger.Warn(ctx, "asset cleanup failed", "name", name, "error", err)
		}
	}
}
