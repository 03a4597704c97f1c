package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/bramvault/ctn1/internal/aead"
	"github.com/bramvault/ctn1/internal/bufpool"
	"github.com/bramvault/ctn1/internal/container"
	"github.com/bramvault/ctn1/internal/ctn1err"
	"github.com/bramvault/ctn1/internal/keywrap"
	"github.com/bramvault/ctn1/internal/secure"
)

// readJob is one plaintext chunk assigned an index by the single reader.
type readJob struct {
	index uint64
	plain []byte
	n     int
}

// Encrypt drives the full encrypt pipeline of spec.md §4.4: it generates
// the file key and nonce prefix, wraps the file key under masterKey,
// writes the 84-byte file header, then reads r in chunkSize pieces,
// dispatches seals across opts.Workers goroutines, and writes sealed
// chunks to w in strict input order.
//
// totalPlaintextLen is the declared total plaintext length for the file
// header (0 if the input is not seekable / length is unknown).
func Encrypt(ctx context.Context, masterKey []byte, r io.Reader, totalPlaintextLen int64, w io.Writer, opts EncryptOptions) (err error) {
	opts, err = normalizeEncrypt(opts)
	if err != nil {
		return err
	}
	if r == nil || w == nil {
		return ctn1err.New("pipeline.encrypt", ctn1err.KindInvalidArgument, nil)
	}

	rng := opts.RNG
	if rng == nil {
		rng = rand.Reader
	}

	fileKeyBuf, err := secure.New(container.FileKeySize)
	if err != nil {
		return ctn1err.New("pipeline.encrypt", ctn1err.KindIO, err)
	}
	defer fileKeyBuf.Destroy()
	if _, err := io.ReadFull(rng, fileKeyBuf.Data()); err != nil {
		return ctn1err.New("pipeline.encrypt", ctn1err.KindIO, err)
	}
	fileKey := fileKeyBuf.Data()

	var noncePrefixBytes [4]byte
	if _, err := io.ReadFull(rng, noncePrefixBytes[:]); err != nil {
		return ctn1err.New("pipeline.encrypt", ctn1err.KindIO, err)
	}
	noncePrefix := binary.LittleEndian.Uint32(noncePrefixBytes[:])

	sealedKey, err := keywrap.Seal(masterKey, fileKey, rng)
	if err != nil {
		return err
	}

	hdr := container.BuildFileHeader(container.FileHeader{
		TotalPlaintextLen: totalPlaintextLen,
		KeyID:             opts.KeyID,
		NoncePrefix:       noncePrefix,
		WrapNonce:         sealedKey.Nonce,
		WrapTag:           sealedKey.Tag,
		WrappedKey:        sealedKey.Ciphertext,
	})
	if _, err := w.Write(hdr); err != nil {
		return ctn1err.New("pipeline.encrypt", ctn1err.KindIO, err)
	}

	cipher, err := aead.New(fileKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	plainPool := bufpool.New(opts.ChunkSize)
	sealedPool := bufpool.New(opts.ChunkSize + container.WrapTagSize)

	reorder := newReorderBuffer(ctx)
	jobs := make(chan readJob, opts.Workers)
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
					secure.Zero(job.plain[:job.n])
					plainPool.Return(job.plain)
					continue
				}

				nonce := container.ComposeNonce(noncePrefix, job.index)
				aad := aadPrefix
				container.FillAAD(&aad, job.index, int64(job.n))

				sealedBuf := sealedPool.Rent(job.n + cipher.Overhead())
				sealed := cipher.Seal(sealedBuf, nonce[:], job.plain[:job.n], aad[:])

				secure.Zero(job.plain[:job.n])
				plainPool.Return(job.plain)

				var tag [container.WrapTagSize]byte
				copy(tag[:], sealed[job.n:job.n+container.WrapTagSize])
				chunkHdr := container.BuildChunkHeader(container.ChunkHeader{
					PlaintextLen: int64(job.n),
					ChunkIndex:   int32(uint32(job.index)),
					Tag:          tag,
				})

				out := make([]byte, 0, len(chunkHdr)+job.n)
				out = append(out, chunkHdr...)
				out = append(out, sealed[:job.n]...)
				sealedPool.Return(sealedBuf)

				reorder.put(job.index, slot{data: out, plaintextLen: int64(job.n)})
			}
		}()
	}

	emitterErrCh := make(chan error, 1)
	go func() {
		emitterErrCh <- runEmitter(ctx, reorder, w, tokens, cancel)
	}()

	var counter uint64
	readErr := func() error {
		for {
			if ctx.Err() != nil {
				return ctn1err.New("pipeline.encrypt", ctn1err.KindCancelled, ctx.Err())
			}
			buf := plainPool.Rent(opts.ChunkSize)
			n, eof, rerr := fillBuffer(r, buf)
			if rerr != nil {
				plainPool.Return(buf)
				return ctn1err.New("pipeline.encrypt", ctn1err.KindIO, rerr)
			}
			if n == 0 {
				plainPool.Return(buf)
				if eof {
					return nil
				}
				continue
			}
			if counter == math.MaxUint64 {
				plainPool.Return(buf)
				return ctn1err.New("pipeline.encrypt", ctn1err.KindNonceOverflow, nil)
			}
			idx := counter
			counter++

			select {
			case tokens <- struct{}{}:
			case <-ctx.Done():
				plainPool.Return(buf)
				return ctn1err.New("pipeline.encrypt", ctn1err.KindCancelled, ctx.Err())
			}
			select {
			case jobs <- readJob{index: idx, plain: buf, n: n}:
			case <-ctx.Done():
				plainPool.Return(buf)
				return ctn1err.New("pipeline.encrypt", ctn1err.KindCancelled, ctx.Err())
			}
			if eof {
				return nil
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
	return emitErr
}

// runEmitter drains reorder in strict index order, writing to w and
// releasing one window token per emitted chunk. On a write failure it
// cancels ctx so the reader and workers unblock instead of deadlocking on
// a tokens/jobs channel nothing is draining anymore.
func runEmitter(ctx context.Context, reorder *reorderBuffer, w io.Writer, tokens chan struct{}, cancel context.CancelFunc) error {
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
		<-tokens
	}
}

// fillBuffer reads into buf, tolerating short reads, stopping once buf is
// full or the reader reports EOF. It never returns a zero-length chunk for
// non-empty input; a final Read that returns (0, io.EOF) after prior data
// is simply end-of-input with no trailing empty chunk.
func fillBuffer(r io.Reader, buf []byte) (n int, eof bool, err error) {
	for n < len(buf) {
		m, rerr := r.Read(buf[n:])
		n += m
		if rerr == io.EOF {
			return n, true, nil
		}
		if rerr != nil {
			return n, false, rerr
		}
		if m == 0 {
			// Reader returned (0, nil); read again until data, EOF or an
			// error arrives.
			continue
		}
	}
	return n, false, nil
}
