// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package pipeline implements the invocation/receipt processor: the
// component that authenticates an inbound archive, persists it,
// records its link graph, resolves receipts back to their originating
// invocations, and publishes normalized records for downstream
// consumers.
//
// Failure at any step aborts the whole request. That is safe because
// every write is idempotent on content identifiers — the caller
// retries the entire request and converges on the same state.
package pipeline

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/storacha/ucanstream/lib/archive"
	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/clock"
	"github.com/storacha/ucanstream/lib/codec"
	"github.com/storacha/ucanstream/lib/store"
	"github.com/storacha/ucanstream/lib/stream"
	"github.com/storacha/ucanstream/lib/ucan"
)

// Request is the transport-neutral view of an inbound archive
// submission.
type Request struct {
	// Authorization is the raw Authorization header value.
	Authorization string

	// ContentType identifies the body encoding.
	ContentType string

	// Body is the serialized archive.
	Body []byte
}

// Processor orchestrates decode → persist → link → normalize →
// publish for one archive per call. Stateless across requests; all
// shared state lives in the stores and the stream.
type Processor struct {
	self      ucan.Signer
	authToken string
	blobs     store.BlobStore
	links     store.LinkStore
	tasks     store.TaskStore
	publisher stream.Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

// Config holds the processor's dependencies. All fields are required
// except Clock, which defaults to the real clock.
type Config struct {
	// Self is the service identity. Constructed explicitly and
	// injected — the processor never reads identity from ambient
	// state.
	Self ucan.Signer

	// AuthToken is the shared secret callers present as a Basic
	// credential.
	AuthToken string

	// Blobs stores raw archive bytes by root CID.
	Blobs store.BlobStore

	// Links records which archive each invocation and receipt
	// arrived in.
	Links store.LinkStore

	// Tasks stores task results and task→invocation links.
	Tasks store.TaskStore

	// Publisher appends normalized records to the stream.
	Publisher stream.Publisher

	// Clock stamps stream records. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger
}

// New validates the configuration and builds a Processor.
func New(cfg Config) (*Processor, error) {
	if cfg.Self.IsZero() {
		return nil, fmt.Errorf("pipeline: Self is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("pipeline: AuthToken is required")
	}
	if cfg.Blobs == nil || cfg.Links == nil || cfg.Tasks == nil {
		return nil, fmt.Errorf("pipeline: Blobs, Links, and Tasks are required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("pipeline: Publisher is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("pipeline: Logger is required")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Processor{
		self:      cfg.Self,
		authToken: cfg.AuthToken,
		blobs:     cfg.Blobs,
		links:     cfg.Links,
		tasks:     cfg.Tasks,
		publisher: cfg.Publisher,
		clock:     clk,
		logger:    cfg.Logger,
	}, nil
}

// Self returns the service identity the processor was built with.
func (p *Processor) Self() ucan.DID { return p.self.DID() }

// Process runs the full pipeline on one request and returns the
// decoded archive as acknowledgement. Any error means nothing about
// the request should be considered acknowledged; the caller retries
// the whole request.
func (p *Processor) Process(ctx context.Context, request Request) (*archive.Archive, error) {
	if err := p.authenticate(request.Authorization); err != nil {
		return nil, err
	}
	if len(request.Body) == 0 {
		return nil, classify(KindMalformed, ErrMissingBody)
	}
	if request.ContentType != archive.ContentType {
		return nil, classify(KindMalformed,
			fmt.Errorf("%w: %q", ErrUnsupportedContentType, request.ContentType))
	}

	decoded, err := archive.Decode(request.Body)
	if err != nil {
		return nil, classify(KindDecode, err)
	}

	p.logger.Info("processing archive",
		"archive", decoded.Root.Ref(),
		"invocations", len(decoded.Invocations),
		"receipts", len(decoded.Receipts),
	)

	// Persist the archive and its link graph before projecting
	// records: receipt resolution (possibly for receipts in this
	// same archive) reads through the link and blob stores.
	if err := p.persist(ctx, decoded); err != nil {
		return nil, err
	}

	// Invocations and receipts are independent data; project and
	// publish them concurrently.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return p.processInvocations(groupCtx, decoded)
	})
	group.Go(func() error {
		return p.processReceipts(groupCtx, decoded)
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return decoded, nil
}

// authenticate verifies the Basic credential against the configured
// secret. Comparison is constant-time.
func (p *Processor) authenticate(header string) error {
	if header == "" {
		return classify(KindAuth, ErrNoToken)
	}
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return classify(KindAuth, ErrNotBasicAuth)
	}
	token := header[len(prefix):]
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.authToken)) != 1 {
		return classify(KindAuth, ErrInvalidToken)
	}
	return nil
}

// persist writes the archive blob and every invocation/receipt link.
// All writes are independent and idempotent, so they run together.
func (p *Processor) persist(ctx context.Context, decoded *archive.Archive) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := p.blobs.Put(groupCtx, decoded.Root, decoded.Bytes); err != nil {
			return classifyf(KindStorage, "persisting archive %s: %w", decoded.Root.Ref(), err)
		}
		return nil
	})

	for _, invocation := range decoded.Invocations {
		group.Go(func() error {
			if err := p.links.PutLink(groupCtx, invocation.CID(), decoded.Root, store.Inbound); err != nil {
				return classifyf(KindStorage, "linking invocation %s: %w", invocation.CID().Ref(), err)
			}
			return nil
		})
	}

	for _, receipt := range decoded.Receipts {
		group.Go(func() error {
			if err := p.links.PutLink(groupCtx, receipt.TaskID(), decoded.Root, store.Outbound); err != nil {
				return classifyf(KindStorage, "linking receipt task %s: %w", receipt.TaskID().Ref(), err)
			}
			return nil
		})
	}

	return group.Wait()
}

// processInvocations projects each invocation into a workflow record
// and publishes the batch.
func (p *Processor) processInvocations(ctx context.Context, decoded *archive.Archive) error {
	if len(decoded.Invocations) == 0 {
		return nil
	}

	ts := p.clock.Now().UnixMilli()
	records := make([]stream.Record, 0, len(decoded.Invocations))
	for _, invocation := range decoded.Invocations {
		records = append(records, stream.NewWorkflowRecord(decoded.Root, invocation, ts))
	}

	if err := p.publisher.Publish(ctx, records); err != nil {
		return classifyf(KindStorage, "publishing workflow records for %s: %w", decoded.Root.Ref(), err)
	}
	return nil
}

// resolvedReceipt pairs a receipt with its originating invocation and
// the CBOR-encoded task result, ready for storage and publication.
type resolvedReceipt struct {
	receipt    *ucan.Receipt
	invocation *ucan.Invocation
	result     []byte
}

// processReceipts resolves every receipt to its originating
// invocation, stores task results, and publishes the batch of receipt
// records. One unresolvable receipt fails the batch: nothing is
// published for this archive's receipts, and the request errors.
func (p *Processor) processReceipts(ctx context.Context, decoded *archive.Archive) error {
	if len(decoded.Receipts) == 0 {
		return nil
	}

	// Resolve in deterministic order so retried requests publish
	// records identically.
	receipts := make([]*ucan.Receipt, 0, len(decoded.Receipts))
	for _, receipt := range decoded.Receipts {
		receipts = append(receipts, receipt)
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].CID().String() < receipts[j].CID().String()
	})

	ts := p.clock.Now().UnixMilli()
	resolved := make([]resolvedReceipt, 0, len(receipts))
	records := make([]stream.Record, 0, len(receipts))
	for _, receipt := range receipts {
		invocation, err := p.resolveInvocation(ctx, receipt)
		if err != nil {
			return err
		}

		result, err := codec.Marshal(struct {
			Out ucan.Result `cbor:"out"`
		}{Out: receipt.Out()})
		if err != nil {
			return classifyf(KindStorage, "encoding task result for %s: %w", receipt.TaskID().Ref(), err)
		}

		resolved = append(resolved, resolvedReceipt{
			receipt:    receipt,
			invocation: invocation,
			result:     result,
		})
		records = append(records, stream.NewReceiptRecord(decoded.Root, invocation, receipt.Out(), ts))
	}

	// Store results across receipts concurrently; each write is
	// independent and idempotent.
	group, groupCtx := errgroup.WithContext(ctx)
	for _, r := range resolved {
		group.Go(func() error {
			if err := p.tasks.PutResult(groupCtx, r.receipt.TaskID(), r.result); err != nil {
				return classifyf(KindStorage, "storing result for task %s: %w", r.receipt.TaskID().Ref(), err)
			}
			return nil
		})
		group.Go(func() error {
			if err := p.tasks.PutInvocationLink(groupCtx, r.receipt.TaskID(), r.invocation.CID()); err != nil {
				return classifyf(KindStorage, "linking task %s to invocation: %w", r.receipt.TaskID().Ref(), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// Publish all receipt records in one call — per-archive batch
	// atomicity for downstream consumers.
	if err := p.publisher.Publish(ctx, records); err != nil {
		return classifyf(KindStorage, "publishing receipt records for %s: %w", decoded.Root.Ref(), err)
	}
	return nil
}

// resolveInvocation follows the content-addressed link graph from a
// receipt back to the invocation it answers: inbound link → archive
// blob → decode → locate by CID. Each missing hop is a distinct
// integrity failure.
func (p *Processor) resolveInvocation(ctx context.Context, receipt *ucan.Receipt) (*ucan.Invocation, error) {
	invocationCID := receipt.Ran()

	archiveCID, err := p.links.GetLink(ctx, invocationCID, store.Inbound)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, classify(KindIntegrity,
				fmt.Errorf("%w: invocation %s", ErrNoArchiveForReceipt, invocationCID.Ref()))
		}
		return nil, classifyf(KindStorage, "looking up archive for invocation %s: %w", invocationCID.Ref(), err)
	}

	data, err := p.blobs.Get(ctx, archiveCID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, classify(KindIntegrity,
				fmt.Errorf("%w: archive %s", ErrNoArchiveBytes, archiveCID.Ref()))
		}
		return nil, classifyf(KindStorage, "fetching archive %s: %w", archiveCID.Ref(), err)
	}

	source, err := archive.Decode(data)
	if err != nil {
		return nil, classifyf(KindIntegrity, "decoding stored archive %s: %w", archiveCID.Ref(), err)
	}

	invocation := source.Invocation(invocationCID)
	if invocation == nil {
		return nil, classify(KindIntegrity,
			fmt.Errorf("%w: invocation %s in archive %s", ErrInvocationNotFound,
				invocationCID.Ref(), archiveCID.Ref()))
	}
	return invocation, nil
}

// TaskResult is the decoded form of a stored task result.
type TaskResult struct {
	Out ucan.Result `cbor:"out"`
}

// LookupTaskResult fetches and decodes the stored result for a task.
// Serves the read side of the task store for callers that need to
// answer "what happened to this invocation".
func (p *Processor) LookupTaskResult(ctx context.Context, task cid.CID) (TaskResult, error) {
	data, err := p.tasks.GetResult(ctx, task)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TaskResult{}, classifyf(KindIntegrity, "result for task %s: %w", task.Ref(), err)
		}
		return TaskResult{}, classifyf(KindStorage, "fetching result for task %s: %w", task.Ref(), err)
	}

	var result TaskResult
	if err := codec.Unmarshal(data, &result); err != nil {
		return TaskResult{}, classifyf(KindIntegrity, "decoding result for task %s: %w", task.Ref(), err)
	}
	return result, nil
}
