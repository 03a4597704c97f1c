package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/bramvault/ctn1/internal/aead"
	"github.com/bramvault/ctn1/internal/bufpool"
	"github.com/bramvault/ctn1/internal/container"
	"github.com/bramvault/ctn1/internal/ctn1err"
	"github.com/bramvault/ctn1/internal/keywrap"
	"github.com/bramvault/ctn1/internal/secure"
)

// decodeJob is one ciphertext chunk read and index-stamped by the reader.
type decodeJob struct {
	index        uint64
	declaredIdx  int32
	ciphertext   []byte // plaintext-length bytes
	tag          [container.WrapTagSize]byte
	plaintextLen int64
}

// Decrypt drives the full decrypt pipeline of spec.md §4.5: it reads and
// validates the 84-byte file header, unseals the file key, then reads
// chunk records, opens them across opts.Workers goroutines, and writes
// plaintext to w in strict chunk-index order.
func Decrypt(ctx context.Context, masterKey []byte, r io.Reader, w io.Writer, opts DecryptOptions) (err error) {
	opts, err = normalizeDecrypt(opts)
	if err != nil {
		return err
	}
	if r == nil || w == nil {
		return ctn1err.New("pipeline.decrypt", ctn1err.KindInvalidArgument, nil)
	}

	hdrBuf := make([]byte, container.FileHeaderLen)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ctn1err.New("pipeline.decrypt", ctn1err.KindTruncated, err)
		}
		return ctn1err.New("pipeline.decrypt", ctn1err.KindIO, err)
	}
	hdr, err := container.ReadFileHeader(hdrBuf)
	if err != nil {
		return err
	}
	if hdr.KeyID != opts.KeyID {
		return ctn1err.New("pipeline.decrypt", ctn1err.KindKeyIDMismatch, nil)
	}

	fileKey, err := keywrap.Unseal(masterKey, keywrap.Sealed{
		Nonce:      hdr.WrapNonce,
		Tag:        hdr.WrapTag,
		Ciphertext: hdr.WrappedKey,
	})
	if err != nil {
		return err
	}
	fileKeyBuf, err := secure.NewFromBytes(fileKey)
	if err != nil {
		return ctn1err.New("pipeline.decrypt", ctn1err.KindIO, err)
	}
	defer fileKeyBuf.Destroy()
	secure.Zero(fileKey)

	cipher, err := aead.New(fileKeyBuf.Data())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Peek the first chunk header to size the ciphertext pool to the
	// stream's actual working chunk size (spec.md §4.3: "sized to the
	// working chunk size"), instead of the protocol maximum: bufpool.Return
	// zeroes a buffer's full capacity, so a MaxChunkSize-sized pool would
	// memset-zero up to 64 MiB per chunk regardless of how small the chunk
	// actually is.
	var firstChunkHdr *container.ChunkHeader
	firstHdrBuf := make([]byte, container.ChunkHeaderLen)
	_, peekErr := io.ReadFull(r, firstHdrBuf)
	switch {
	case peekErr == io.EOF:
		// Empty container: no chunks at all.
	case peekErr == io.ErrUnexpectedEOF:
		return ctn1err.New("pipeline.decrypt", ctn1err.KindInvalidData, peekErr)
	case peekErr != nil:
		return ctn1err.New("pipeline.decrypt", ctn1err.KindIO, peekErr)
	default:
		hdr0, perr := container.ReadChunkHeader(firstHdrBuf)
		if perr != nil {
			return perr
		}
		firstChunkHdr = &hdr0
	}

	ctPool := bufpool.New(decryptPoolChunkSize(firstChunkHdr))

	var firstChunkBuf []byte
	if firstChunkHdr != nil {
		buf := ctPool.Rent(int(firstChunkHdr.PlaintextLen))
		if _, rerr := io.ReadFull(r, buf); rerr != nil {
			ctPool.Return(buf)
			if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
				return ctn1err.New("pipeline.decrypt", ctn1err.KindTruncated, rerr)
			}
			return ctn1err.New("pipeline.decrypt", ctn1err.KindIO, rerr)
		}
		firstChunkBuf = buf
	}

	reorder := newReorderBuffer(ctx)
	jobs := make(chan decodeJob, opts.Workers)
	tokens := make(chan struct{}, opts.WindowCap)

	var failOnce sync.Once
	var pipelineErr error
	fail := func(e error) {
		if e == nil {
			return
		}
		failOnce.Do(func() {
			pipelineErr = e
			reorder.setErr(e)
			cancel()
		})
	}

	var wg sync.WaitGroup
	aadPrefix := container.InitAADPrefix(opts.KeyID)
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					ctPool.Return(job.ciphertext)
					continue
				}

				nonce := container.ComposeNonce(hdr.NoncePrefix, job.index)
				aad := aadPrefix
				container.FillAAD(&aad, job.index, job.plaintextLen)

				combined := make([]byte, 0, len(job.ciphertext)+container.WrapTagSize)
				combined = append(combined, job.ciphertext...)
				combined = append(combined, job.tag[:]...)
				ctPool.Return(job.ciphertext)

				plain, operr := cipher.Open(nil, nonce[:], combined, aad[:])
				if operr != nil {
					fail(ctn1err.WithChunk("pipeline.decrypt", ctn1err.KindAuthFailed, job.index, operr))
					continue
				}

				reorder.put(job.index, slot{data: plain, plaintextLen: int64(len(plain))})
			}
		}()
	}

	emitterErrCh := make(chan error, 1)
	var totalEmitted int64
	go func() {
		emitterErrCh <- runDecryptEmitter(ctx, reorder, w, tokens, &totalEmitted, cancel)
	}()

	var counter uint64
	seen := make(map[int32]struct{})
	dispatch := func(chHdr container.ChunkHeader, ct []byte) error {
		if _, dup := seen[chHdr.ChunkIndex]; dup || uint32(chHdr.ChunkIndex) != uint32(counter) {
			ctPool.Return(ct)
			return ctn1err.New("pipeline.decrypt", ctn1err.KindOutOfOrder, nil)
		}
		seen[chHdr.ChunkIndex] = struct{}{}

		idx := counter
		counter++

		select {
		case tokens <- struct{}{}:
		case <-ctx.Done():
			ctPool.Return(ct)
			return ctn1err.New("pipeline.decrypt", ctn1err.KindCancelled, ctx.Err())
		}
		select {
		case jobs <- decodeJob{index: idx, declaredIdx: chHdr.ChunkIndex, ciphertext: ct, tag: chHdr.Tag, plaintextLen: chHdr.PlaintextLen}:
		case <-ctx.Done():
			ctPool.Return(ct)
			return ctn1err.New("pipeline.decrypt", ctn1err.KindCancelled, ctx.Err())
		}
		return nil
	}

	readErr := func() error {
		if firstChunkHdr != nil {
			if err := dispatch(*firstChunkHdr, firstChunkBuf); err != nil {
				return err
			}
		}
		for {
			if ctx.Err() != nil {
				return ctn1err.New("pipeline.decrypt", ctn1err.KindCancelled, ctx.Err())
			}
			chHdrBuf := make([]byte, container.ChunkHeaderLen)
			_, rerr := io.ReadFull(r, chHdrBuf)
			if rerr == io.EOF {
				return nil
			}
			if rerr == io.ErrUnexpectedEOF {
				// Leftover bytes too short to form another chunk header:
				// trailing garbage, not a truncated chunk body.
				return ctn1err.New("pipeline.decrypt", ctn1err.KindInvalidData, rerr)
			}
			if rerr != nil {
				return ctn1err.New("pipeline.decrypt", ctn1err.KindIO, rerr)
			}
			chHdr, perr := container.ReadChunkHeader(chHdrBuf)
			if perr != nil {
				return perr
			}

			ct := ctPool.Rent(int(chHdr.PlaintextLen))
			if _, rerr := io.ReadFull(r, ct); rerr != nil {
				ctPool.Return(ct)
				if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
					return ctn1err.New("pipeline.decrypt", ctn1err.KindTruncated, rerr)
				}
				return ctn1err.New("pipeline.decrypt", ctn1err.KindIO, rerr)
			}

			if err := dispatch(chHdr, ct); err != nil {
				return err
			}
		}
	}()

	close(jobs)
	wg.Wait()

	if readErr != nil {
		fail(readErr)
	} else {
		reorder.close(counter)
	}

	emitErr := <-emitterErrCh
	if emitErr != nil {
		fail(emitErr)
	}
	cancel()

	if pipelineErr != nil {
		return pipelineErr
	}
	if readErr != nil {
		return readErr
	}
	if emitErr != nil {
		return emitErr
	}

	if opts.StrictLengthCheck && hdr.TotalPlaintextLen > 0 {
		if totalEmitted != hdr.TotalPlaintextLen {
			return ctn1err.New("pipeline.decrypt", ctn1err.KindAuthFailed, nil)
		}
	}
	return nil
}

// decryptPoolChunkSize picks the ciphertext pool's buffer size from the
// first chunk header actually present on the stream, falling back to
// DefaultChunkSize for an empty (header-only) container.
func decryptPoolChunkSize(firstChunkHdr *container.ChunkHeader) int {
	if firstChunkHdr == nil {
		return container.DefaultChunkSize
	}
	return int(firstChunkHdr.PlaintextLen)
}

// runDecryptEmitter drains reorder in strict index order, writing to w and
// releasing one window token per emitted chunk. On a write failure it
// cancels ctx so the reader and workers unblock instead of deadlocking on
// a tokens/jobs channel nothing is draining anymore.
func runDecryptEmitter(ctx context.Context, reorder *reorderBuffer, w io.Writer, tokens chan struct{}, totalEmitted *int64, cancel context.CancelFunc) error {
	for {
		s, _, ok, err := reorder.next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := w.Write(s.data); err != nil {
			werr := ctn1err.New("pipeline.emit", ctn1err.KindIO, err)
			reorder.setErr(werr)
			cancel()
			return werr
		}
		*totalEmitted += s.plaintextLen
		<-tokens
	}
}
