// Package zkim is the root orchestration layer of the post-quantum file
// format: it wires the wire codec, the three-layer encryption engine,
// the content processor, the search index, the trapdoor lifecycle
// manager, and the recovery engine behind a single Service facade.
package zkim

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zkimio/zkim-core/internal/bucket"
	"github.com/zkimio/zkim-core/internal/config"
	"github.com/zkimio/zkim-core/internal/content"
	"github.com/zkimio/zkim-core/internal/crypto"
	"github.com/zkimio/zkim-core/internal/lifecycle"
	"github.com/zkimio/zkim-core/internal/logging"
	"github.com/zkimio/zkim-core/internal/metrics"
	"github.com/zkimio/zkim-core/internal/recovery"
	"github.com/zkimio/zkim-core/internal/search"
	"github.com/zkimio/zkim-core/internal/storage"
	"github.com/zkimio/zkim-core/pkg/wire"
)

// cleanupTimeout bounds Service.Close, the same role CLEANUP_TIMEOUT
// plays in spec.md §5's resource model.
const cleanupTimeout = 10 * time.Second

// Domain-separation contexts for the per-file signing identities.
// Distinct from the key-derivation contexts in internal/crypto/keys.go
// so a signing key can never be mistaken for an AEAD key even though
// both are derived from the same shared secret.
const (
	privateKeyWrapContext = "zkim-private-key-wrap-v1"
	sigPlatformContext    = "zkim-sig-platform-v1"
	sigUserContext        = "zkim-sig-user-v1"
	sigContentContext     = "zkim-sig-content-v1"
)

// layer1Payload is the plaintext JSON shape sealed under platformKey_eff.
type layer1Payload struct {
	Metadata       Metadata `json:"metadata"`
	SearchableText string   `json:"searchableText"`
}

// layer2Payload is the plaintext JSON shape sealed under userKey_eff.
type layer2Payload struct {
	FileID        string   `json:"fileId"`
	ContentKeyB64 string   `json:"contentKey"`
	Metadata      Metadata `json:"metadata"`
}

// Service is the construction and orchestration layer described in
// spec.md §6: every public operation is a method here, delegating to
// the internal packages that own the actual cryptography, wire
// layout, search index, and lifecycle state.
type Service struct {
	cfg       config.Config
	backend   storage.Backend
	codec     content.Codec
	processor *content.Processor
	index     *search.Index
	lifecycle *lifecycle.Manager
	cache     *crypto.ContentKeyCache
	logger    *logging.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	registry map[string]*File // fileID (hex) -> last-known plaintext-metadata view
	closed   bool
}

// New constructs a Service. backend is required. A caller-supplied
// codec always wins; passing nil instead defers codec selection to
// cfg.CompressionAlgorithm ("gzip" or "none" — any other tag,
// including "brotli", has no shipped codec and falls back to "none").
// EnableCompression=false forces the identity codec regardless of
// either.
func New(cfg config.Config, backend storage.Backend, codec content.Codec) (*Service, error) {
	if backend == nil {
		return nil, newError(ErrNotInitialized, "storage backend is required")
	}
	if codec == nil {
		codec = codecForTag(cfg.CompressionAlgorithm)
	}
	if !cfg.EnableCompression {
		codec = content.NoopCodec{}
	}

	processor := content.NewProcessor(codec, cfg.ChunkSize, cfg.CompressionLevel)

	oprfKey, err := search.NewOPRFKey()
	if err != nil {
		return nil, wrapError(ErrEncryptionFailed, err)
	}
	idx := search.NewIndex(oprfKey, cfg.MaxQueriesPerEpoch)

	lm := lifecycle.NewManager(lifecycle.Config{
		RotationInterval:       cfg.RotationInterval,
		GracePeriod:            cfg.GracePeriod,
		MaxActiveTrapdoors:     cfg.MaxActiveTrapdoors,
		EnableRotation:         cfg.EnableRotation,
		EnableRevocation:       cfg.EnableRevocation,
		EnableUsageTracking:    cfg.EnableUsageTracking,
		EnableAnomalyDetection: cfg.EnableAnomalyDetection,
		EnableAuditLogging:     cfg.EnableAuditLogging,
		RotationThreshold:      cfg.RotationThreshold,
		RevocationThreshold:    cfg.RevocationThreshold,
	}, nil, nil)

	logger := logging.New(logging.Config{Level: "info", Format: "json"}).WithComponent("service")

	return &Service{
		cfg:       cfg,
		backend:   storage.NewRetrying(backend),
		codec:     codec,
		processor: processor,
		index:     idx,
		lifecycle: lm,
		cache:     crypto.NewContentKeyCache(),
		logger:    logger,
		metrics:   metrics.New(""),
		registry:  make(map[string]*File),
	}, nil
}

// codecForTag resolves a compression_algorithm config tag to a codec
// when the caller leaves New's codec parameter nil. Only "gzip" has a
// shipped implementation; every other tag, including the documented
// but unshipped "brotli" slot, resolves to the identity codec rather
// than erroring, since compression is always an optimization, never a
// correctness requirement.
func codecForTag(tag string) content.Codec {
	switch tag {
	case "gzip":
		return content.NewGzipCodec()
	default:
		return content.NoopCodec{}
	}
}

// CreateFile runs the Content Processor and the full seven-step
// Encryption Engine write path, wraps the result in a signed wire
// container, stores it, and indexes it if searchable encryption is
// enabled.
func (s *Service) CreateFile(ctx context.Context, plaintext []byte, userID string, platformKeyMaterial, userKeyMaterial []byte, metadata Metadata, skipContentAddress bool) (*File, string, error) {
	if len(platformKeyMaterial) == 0 || len(userKeyMaterial) == 0 {
		return nil, "", newError(ErrInvalidKeyLength, "platform and user key material must be non-empty")
	}
	if s.cfg.MaxFileSize > 0 && int64(len(plaintext)) > s.cfg.MaxFileSize {
		return nil, "", newError(ErrInvalidInput, "plaintext exceeds maxFileSize")
	}

	start := time.Now()
	processed, err := s.processor.Process(plaintext)
	if err != nil {
		return nil, "", wrapError(ErrInvalidInput, err)
	}
	s.metrics.RecordChunkProcessDuration(time.Since(start))

	contentKey, err := crypto.GenerateAEADKey()
	if err != nil {
		s.metrics.EncryptionFailures.Inc()
		return nil, "", wrapError(ErrEncryptionFailed, err)
	}

	kemKP, err := crypto.GenerateMLKEMKeyPair()
	if err != nil {
		s.metrics.EncryptionFailures.Inc()
		return nil, "", wrapError(ErrEncryptionFailed, err)
	}

	encapCT, sharedSecret, err := crypto.MLKEMEncapsulate(kemKP.PublicKeyBytes())
	if err != nil {
		s.metrics.EncryptionFailures.Inc()
		return nil, "", wrapError(ErrEncryptionFailed, err)
	}

	platformKeyEff := crypto.DerivePlatformKey(sharedSecret, platformKeyMaterial)
	userKeyEff := crypto.DeriveUserKey(sharedSecret, userKeyMaterial)

	privWrapKey := crypto.Blake3DeriveKey(privateKeyWrapContext, userKeyMaterial, crypto.AEADKeySize)
	wrappedPriv, err := crypto.WrapKEMSecretKey(privWrapKey, kemKP.PrivateKeyBytes())
	if err != nil {
		s.metrics.EncryptionFailures.Inc()
		return nil, "", wrapError(ErrEncryptionFailed, err)
	}

	if metadata.CreatedAt.IsZero() {
		metadata.CreatedAt = time.Now().UTC()
	}

	fileIDBytes := crypto.Blake3HashSize(append(crypto.Blake3Hash(plaintext), []byte(userID)...), 16)
	var fileIDArr [16]byte
	copy(fileIDArr[:], fileIDBytes)
	fileIDHex := hex.EncodeToString(fileIDBytes)

	platformCipher, err := crypto.NewAEADCipher(platformKeyEff)
	if err != nil {
		return nil, "", wrapError(ErrInvalidKeyLength, err)
	}
	layer1Bytes, err := json.Marshal(layer1Payload{Metadata: metadata, SearchableText: searchableText(metadata)})
	if err != nil {
		return nil, "", wrapError(ErrInvalidInput, err)
	}
	platformCT, err := platformCipher.Encrypt(layer1Bytes, fileIDBytes)
	if err != nil {
		s.metrics.EncryptionFailures.Inc()
		return nil, "", wrapError(ErrEncryptionFailed, err)
	}

	userCipher, err := crypto.NewAEADCipher(userKeyEff)
	if err != nil {
		return nil, "", wrapError(ErrInvalidKeyLength, err)
	}
	layer2Bytes, err := json.Marshal(layer2Payload{
		FileID:        fileIDHex,
		ContentKeyB64: base64.StdEncoding.EncodeToString(contentKey),
		Metadata:      metadata,
	})
	if err != nil {
		return nil, "", wrapError(ErrInvalidInput, err)
	}
	userCT, err := userCipher.Encrypt(layer2Bytes, fileIDBytes)
	if err != nil {
		s.metrics.EncryptionFailures.Inc()
		return nil, "", wrapError(ErrEncryptionFailed, err)
	}

	contentCipher, err := crypto.NewAEADCipher(contentKey)
	if err != nil {
		return nil, "", wrapError(ErrInvalidKeyLength, err)
	}

	encryptedChunks := make([]wire.EncryptedChunk, len(processed.Chunks))
	for i, c := range processed.Chunks {
		nonce, err := crypto.GenerateNonce()
		if err != nil {
			s.metrics.EncryptionFailures.Inc()
			return nil, "", wrapError(ErrEncryptionFailed, err)
		}
		ct, err := contentCipher.EncryptWithNonce(nonce, c.Plaintext, chunkAAD(fileIDBytes, c.Index))
		if err != nil {
			s.metrics.EncryptionFailures.Inc()
			return nil, "", wrapError(ErrEncryptionFailed, err)
		}

		var nonceArr [wire.NonceSize]byte
		copy(nonceArr[:], nonce)
		var hashArr [wire.IntegrityHashSize]byte
		copy(hashArr[:], c.IntegrityHash)

		encryptedChunks[i] = wire.EncryptedChunk{
			ChunkIndex:     c.Index,
			ChunkSize:      uint32(c.PlaintextSize),
			CompressedSize: uint32(len(c.Plaintext)),
			Nonce:          nonceArr,
			EncryptedData:  ct,
			IntegrityHash:  hashArr,
		}
	}

	header := wire.Header{
		FileID:          fileIDArr,
		UserID:          []byte(userID),
		PlatformKeyID:   crypto.Blake3HashSize(platformKeyMaterial, 16),
		TotalSize:       uint64(len(plaintext)),
		CompressedSize:  uint64(processed.CompressedSize),
		ChunkCount:      uint32(len(encryptedChunks)),
		CreatedAt:       metadata.CreatedAt.Unix(),
		CompressionType: byte(processed.CompressionType),
		EncryptionType:  wire.EncryptionXChaCha20Poly1305,
		HashType:        wire.HashBlake3_256,
		SignatureType:   wire.SignatureMLDSA65,
	}

	container := &wire.Container{
		Version:    wire.Version,
		Header:     header,
		MetadataCT: packBlobs(platformCT, userCT),
		KEMCT:      packBlobs(encapCT, wrappedPriv),
		Chunks:     encryptedChunks,
	}

	headerBytes, err := wire.EncodeHeader(&header)
	if err != nil {
		return nil, "", mapWireError(err)
	}

	platformSigKP, err := deriveSigningKeyPair(sharedSecret, platformKeyMaterial, sigPlatformContext)
	if err != nil {
		return nil, "", wrapError(ErrSignatureFailed, err)
	}
	platformSig, err := crypto.MLDSASign(platformSigKP.PrivateKey, append(append([]byte{}, headerBytes...), container.MetadataCT...), sigPlatformContext)
	if err != nil {
		return nil, "", wrapError(ErrSignatureFailed, err)
	}
	copy(container.PlatformSig[:], platformSig)

	userSigKP, err := deriveSigningKeyPair(sharedSecret, userKeyMaterial, sigUserContext)
	if err != nil {
		return nil, "", wrapError(ErrSignatureFailed, err)
	}
	userSig, err := crypto.MLDSASign(userSigKP.PrivateKey, userCT, sigUserContext)
	if err != nil {
		return nil, "", wrapError(ErrSignatureFailed, err)
	}
	copy(container.UserSig[:], userSig)

	contentSigKP, err := deriveSigningKeyPair(sharedSecret, contentKey, sigContentContext)
	if err != nil {
		return nil, "", wrapError(ErrSignatureFailed, err)
	}
	contentSig, err := crypto.MLDSASign(contentSigKP.PrivateKey, concatenateChunkCiphertexts(encryptedChunks), sigContentContext)
	if err != nil {
		return nil, "", wrapError(ErrSignatureFailed, err)
	}
	copy(container.ContentSig[:], contentSig)

	containerBytes, err := wire.Encode(container)
	if err != nil {
		return nil, "", mapWireError(err)
	}

	objectID := fileIDHex
	if skipContentAddress {
		objectID = hex.EncodeToString(crypto.Blake3Hash(containerBytes))
	}

	if err := s.backend.Put(ctx, objectID, containerBytes); err != nil {
		return nil, "", wrapError(ErrStorageUnavailable, err)
	}

	s.cache.Put(fileIDHex, contentKey)

	file := &File{ID: fileIDHex, ObjectID: objectID, OwnerID: userID, Metadata: metadata, Container: container}

	s.mu.Lock()
	s.registry[fileIDHex] = file
	s.mu.Unlock()

	if s.cfg.EnableSearchableEncryption {
		access := toSearchAccess(metadata.AccessControl)
		if err := s.index.IndexFile(fileIDHex, userID, access, search.FileMetadataView{
			FileName:     metadata.FileName,
			MimeType:     metadata.MimeType,
			Tags:         metadata.Tags,
			CustomFields: metadata.CustomFields,
			Body:         searchableText(metadata),
		}); err != nil {
			return nil, "", wrapError(ErrEncryptionFailed, err)
		}
	}

	s.metrics.RecordFileCreated(int64(len(plaintext)))
	s.logger.WithFile(fileIDHex).WithUser(userID).WithObject(objectID).Info().Msg("file created")

	return file, objectID, nil
}

// GetFile fetches and decodes a container by objectID, attaching any
// plaintext metadata this Service instance has previously learned for
// the file (from CreateFile, DecryptFile, or UpdateMetadata).
func (s *Service) GetFile(ctx context.Context, objectID string) Result[*File] {
	data, err := s.backend.Get(ctx, objectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failResult[*File](newError(ErrFileNotFound, "no object with id "+objectID))
		}
		return failResult[*File](wrapError(ErrStorageUnavailable, err))
	}

	container, err := wire.Decode(data)
	if err != nil {
		return failResult[*File](mapWireError(err))
	}

	fileIDHex := hex.EncodeToString(container.Header.FileID[:])

	s.mu.Lock()
	known, ok := s.registry[fileIDHex]
	s.mu.Unlock()

	file := &File{ID: fileIDHex, ObjectID: objectID, OwnerID: string(container.Header.UserID), Container: container}
	if ok {
		file.Metadata = known.Metadata
	}

	return okResult(file)
}

// DecryptFile runs the four-step Encryption Engine read path that does
// not require platform key material: unwrap the KEM secret key,
// decapsulate, open layer 2 for the content key, open every chunk, and
// reassemble.
func (s *Service) DecryptFile(ctx context.Context, file *File, userID string, userKeyMaterial []byte) ([]byte, error) {
	if file == nil || file.Container == nil {
		return nil, newError(ErrInvalidInput, "file container is required")
	}
	c := file.Container
	fileIDBytes := append([]byte{}, c.Header.FileID[:]...)
	fileIDHex := hex.EncodeToString(fileIDBytes)

	encapCT, wrappedPriv, err := unpackBlobs(c.KEMCT)
	if err != nil {
		return nil, wrapError(ErrTruncated, err)
	}

	privWrapKey := crypto.Blake3DeriveKey(privateKeyWrapContext, userKeyMaterial, crypto.AEADKeySize)
	kemPrivBytes, err := crypto.UnwrapKEMSecretKey(privWrapKey, wrappedPriv)
	if err != nil {
		s.metrics.DecryptionFailures.Inc()
		return nil, wrapError(ErrDecryptionFailed, err)
	}

	sharedSecret, err := crypto.MLKEMDecapsulateFromBytes(kemPrivBytes, encapCT)
	if err != nil {
		s.metrics.DecryptionFailures.Inc()
		return nil, wrapError(ErrDecryptionFailed, err)
	}

	userKeyEff := crypto.DeriveUserKey(sharedSecret, userKeyMaterial)

	_, userCT, err := unpackBlobs(c.MetadataCT)
	if err != nil {
		return nil, wrapError(ErrTruncated, err)
	}

	userCipher, err := crypto.NewAEADCipher(userKeyEff)
	if err != nil {
		return nil, wrapError(ErrInvalidKeyLength, err)
	}
	layer2Plain, err := userCipher.Decrypt(userCT, fileIDBytes)
	if err != nil {
		s.metrics.DecryptionFailures.Inc()
		return nil, wrapError(ErrDecryptionFailed, err)
	}

	var layer2 layer2Payload
	if err := json.Unmarshal(layer2Plain, &layer2); err != nil {
		return nil, wrapError(ErrInvalidInput, err)
	}
	contentKey, err := base64.StdEncoding.DecodeString(layer2.ContentKeyB64)
	if err != nil {
		return nil, wrapError(ErrInvalidInput, err)
	}

	contentCipher, err := crypto.NewAEADCipher(contentKey)
	if err != nil {
		return nil, wrapError(ErrInvalidKeyLength, err)
	}

	ordered := append([]wire.EncryptedChunk{}, c.Chunks...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ChunkIndex < ordered[j].ChunkIndex })

	chunks := make([]content.Chunk, len(ordered))
	for i, ec := range ordered {
		pt, err := contentCipher.DecryptWithNonce(ec.Nonce[:], ec.EncryptedData, chunkAAD(fileIDBytes, ec.ChunkIndex))
		if err != nil {
			s.metrics.DecryptionFailures.Inc()
			return nil, wrapError(ErrDecryptionFailed, err)
		}
		chunks[i] = content.Chunk{
			Index:         ec.ChunkIndex,
			Plaintext:     pt,
			PlaintextSize: int(ec.ChunkSize),
			IntegrityHash: append([]byte{}, ec.IntegrityHash[:]...),
		}
	}

	plaintext, err := s.processor.Reassemble(content.CompressionType(c.Header.CompressionType), chunks)
	if err != nil {
		if errors.Is(err, content.ErrIntegrityMismatch) {
			return nil, wrapError(ErrIntegrityFailed, err)
		}
		return nil, wrapError(ErrDecompressionFailed, err)
	}
	if uint64(len(plaintext)) != c.Header.TotalSize {
		return nil, newError(ErrIntegrityFailed, "reassembled size does not match totalSize")
	}

	s.cache.Put(fileIDHex, contentKey)
	s.metrics.FilesDecrypted.Inc()
	s.logger.WithFile(fileIDHex).WithUser(userID).Info().Msg("file decrypted")

	return plaintext, nil
}

// UpdateMetadata applies patch to file's in-memory metadata view and
// re-indexes it. Because the container's encrypted layers are sealed
// at creation time, the update is visible to future GetFile/SearchFiles
// calls against this Service instance; it is not re-encrypted into the
// stored container.
func (s *Service) UpdateMetadata(ctx context.Context, file *File, userID string, patch MetadataPatch) (*File, error) {
	if file == nil {
		return nil, newError(ErrInvalidInput, "file is required")
	}

	updated := file.Metadata.apply(patch)
	out := &File{ID: file.ID, ObjectID: file.ObjectID, OwnerID: file.OwnerID, Metadata: updated, Container: file.Container}

	s.mu.Lock()
	s.registry[file.ID] = out
	s.mu.Unlock()

	if s.cfg.EnableSearchableEncryption {
		access := toSearchAccess(updated.AccessControl)
		if err := s.index.IndexFile(file.ID, userID, access, search.FileMetadataView{
			FileName:     updated.FileName,
			MimeType:     updated.MimeType,
			Tags:         updated.Tags,
			CustomFields: updated.CustomFields,
			Body:         searchableText(updated),
		}); err != nil {
			return nil, wrapError(ErrEncryptionFailed, err)
		}
	}

	s.logger.WithFile(file.ID).WithUser(userID).Info().Msg("metadata updated")
	return out, nil
}

// DownloadFile composes GetFile and DecryptFile into the envelope form
// spec.md §6 calls for. platformKeyMaterial is accepted for API
// symmetry with createFile but unused: spec.md §4.2's decrypt sequence
// never opens layer 1, so nothing here depends on it.
func (s *Service) DownloadFile(ctx context.Context, objectID, userID string, platformKeyMaterial, userKeyMaterial []byte) Result[[]byte] {
	got := s.GetFile(ctx, objectID)
	if !got.Success {
		return failResult[[]byte](got.Err)
	}

	plaintext, err := s.DecryptFile(ctx, got.Data, userID, userKeyMaterial)
	if err != nil {
		ze, ok := asZKIMError(err)
		if !ok {
			ze = wrapError(ErrDecryptionFailed, err)
		}
		return failResult[[]byte](ze)
	}
	return okResult(plaintext)
}

// SearchFiles evaluates query's trapdoor against the index, filters by
// access, and optionally pads the result list to a public bucket size.
func (s *Service) SearchFiles(ctx context.Context, query, userID string, limit int) Result[[]search.Result] {
	if !s.cfg.EnableSearchableEncryption {
		return failResult[[]search.Result](newError(ErrSearchableEncryptionDisabled, "searchable encryption is disabled for this service"))
	}

	epoch := currentEpoch(s.cfg.EpochDuration)
	results, err := s.index.Search(query, userID, epoch, limit)
	if err != nil {
		if errors.Is(err, search.ErrRateLimitExceeded) {
			s.metrics.SearchRateLimited.Inc()
			return failResult[[]search.Result](newError(ErrRateLimitExceeded, "query quota exhausted for this epoch"))
		}
		return failResult[[]search.Result](wrapError(ErrInvalidInput, err))
	}

	if s.cfg.EnableResultPadding {
		sizes := s.cfg.BucketSizes
		if len(sizes) == 0 {
			sizes = bucket.ContentSizes
		}
		results = search.PadResults(sizes, results)
	}

	s.metrics.RecordSearchQuery(len(results))
	return okResult(results)
}

// ValidateIntegrity re-checks a decoded container's structural
// invariants, and — when the content key for this file happens to be
// cached in this Service instance (it was created or decrypted here
// already) — AEAD-opens every chunk to detect ciphertext tampering.
// Without a cached key it reports ValidationLevel "structural" rather
// than fabricating a cryptographic verdict it cannot actually compute.
func (s *Service) ValidateIntegrity(ctx context.Context, file *File) IntegrityReport {
	if !s.cfg.EnableIntegrityValidation {
		return IntegrityReport{IsValid: true, ValidationLevel: "none"}
	}
	if file == nil || file.Container == nil {
		return IntegrityReport{ValidationLevel: "none", Errors: []string{"file container is required"}}
	}

	c := file.Container
	report := IntegrityReport{IsValid: true, ValidationLevel: "structural"}

	seen := make(map[uint32]bool, len(c.Chunks))
	var sum uint64
	for _, chunk := range c.Chunks {
		if seen[chunk.ChunkIndex] {
			report.IsValid = false
			report.Errors = append(report.Errors, fmt.Sprintf("duplicate chunkIndex %d", chunk.ChunkIndex))
		}
		seen[chunk.ChunkIndex] = true
		sum += uint64(chunk.ChunkSize)
	}
	if sum != c.Header.CompressedSize {
		report.IsValid = false
		report.Errors = append(report.Errors, "declared chunk sizes do not sum to the compressed payload size")
	}

	fileIDHex := hex.EncodeToString(c.Header.FileID[:])
	contentKey, ok := s.cache.Get(fileIDHex)
	if !ok {
		report.Warnings = append(report.Warnings, "content key not cached in this service instance; only structural checks ran")
		return report
	}

	cipher, err := crypto.NewAEADCipher(contentKey)
	if err != nil {
		report.Warnings = append(report.Warnings, "cached content key is malformed; only structural checks ran")
		return report
	}

	report.ValidationLevel = "full"
	for _, chunk := range c.Chunks {
		pt, err := cipher.DecryptWithNonce(chunk.Nonce[:], chunk.EncryptedData, chunkAAD(c.Header.FileID[:], chunk.ChunkIndex))
		if err != nil {
			report.IsValid = false
			report.Errors = append(report.Errors, fmt.Sprintf("chunk %d failed AEAD verification", chunk.ChunkIndex))
			continue
		}
		if !bytes.Equal(crypto.Blake3Hash(pt), chunk.IntegrityHash[:]) {
			report.IsValid = false
			report.Errors = append(report.Errors, fmt.Sprintf("chunk %d integrity hash mismatch", chunk.ChunkIndex))
		}
	}

	return report
}

// RotateKeys re-encrypts file under a freshly generated content key and
// KEM key pair: it decrypts under the caller's current key material,
// runs the same seven-step write path CreateFile uses against the
// recovered plaintext, and retires the old stored object and cached
// content key. The returned File carries a new fileId, since the
// content key and KEM key pair it is bound to are themselves new.
func (s *Service) RotateKeys(ctx context.Context, file *File, userID string, platformKeyMaterial, userKeyMaterial []byte) (*File, string, error) {
	if !s.cfg.EnableKeyRotation {
		return nil, "", newError(ErrKeyRotationDisabled, "key rotation is disabled for this service")
	}
	if file == nil || file.Container == nil {
		return nil, "", newError(ErrInvalidInput, "file is required")
	}

	plaintext, err := s.DecryptFile(ctx, file, userID, userKeyMaterial)
	if err != nil {
		return nil, "", err
	}

	skipContentAddress := file.ObjectID != file.ID
	rotated, newObjectID, err := s.CreateFile(ctx, plaintext, userID, platformKeyMaterial, userKeyMaterial, file.Metadata, skipContentAddress)
	if err != nil {
		return nil, "", err
	}

	if file.ObjectID != newObjectID {
		if err := s.backend.Delete(ctx, file.ObjectID); err != nil {
			s.logger.WithFile(file.ID).WithObject(file.ObjectID).Warn().Err(err).Msg("failed to delete pre-rotation object")
		}
	}
	s.cache.Evict(file.ID)

	s.metrics.KeysRotated.Inc()
	s.logger.WithFile(rotated.ID).WithUser(userID).Info().Msg("keys rotated")

	return rotated, newObjectID, nil
}

// CheckKeyCompromise re-derives the three per-file signing identities
// from the shared secret recovered via the caller's key material and
// verifies them against the signatures already on the container. A
// mismatch means the signatures were produced under a different shared
// secret than the one this key material now derives — the signal this
// format exposes for "these keys no longer agree with this file",
// whether because of tampering or because the key material itself has
// since been compromised and replaced. This is not a guarantee of
// compromise, only an agreement check; absence of a mismatch does not
// prove the key material was never exposed.
func (s *Service) CheckKeyCompromise(ctx context.Context, file *File, userID string, platformKeyMaterial, userKeyMaterial []byte) (KeyCompromiseReport, error) {
	if !s.cfg.EnableCompromiseDetection {
		return KeyCompromiseReport{Checked: false}, nil
	}
	if file == nil || file.Container == nil {
		return KeyCompromiseReport{}, newError(ErrInvalidInput, "file is required")
	}
	c := file.Container

	encapCT, wrappedPriv, err := unpackBlobs(c.KEMCT)
	if err != nil {
		return KeyCompromiseReport{}, wrapError(ErrTruncated, err)
	}

	privWrapKey := crypto.Blake3DeriveKey(privateKeyWrapContext, userKeyMaterial, crypto.AEADKeySize)
	kemPrivBytes, err := crypto.UnwrapKEMSecretKey(privWrapKey, wrappedPriv)
	if err != nil {
		s.metrics.CompromiseChecks.Inc()
		s.metrics.CompromiseDetections.Inc()
		return KeyCompromiseReport{Checked: true, Compromised: true, Reasons: []string{"KEM secret key does not unwrap under this user key material"}}, nil
	}

	sharedSecret, err := crypto.MLKEMDecapsulateFromBytes(kemPrivBytes, encapCT)
	if err != nil {
		s.metrics.CompromiseChecks.Inc()
		s.metrics.CompromiseDetections.Inc()
		return KeyCompromiseReport{Checked: true, Compromised: true, Reasons: []string{"KEM ciphertext does not decapsulate under the unwrapped secret key"}}, nil
	}

	headerBytes, err := wire.EncodeHeader(&c.Header)
	if err != nil {
		return KeyCompromiseReport{}, mapWireError(err)
	}
	_, userCT, err := unpackBlobs(c.MetadataCT)
	if err != nil {
		return KeyCompromiseReport{}, wrapError(ErrTruncated, err)
	}

	var reasons []string

	if len(platformKeyMaterial) > 0 {
		platformSigKP, err := deriveSigningKeyPair(sharedSecret, platformKeyMaterial, sigPlatformContext)
		if err != nil {
			return KeyCompromiseReport{}, wrapError(ErrSignatureFailed, err)
		}
		if err := crypto.MLDSAVerify(platformSigKP.PublicKey, append(append([]byte{}, headerBytes...), c.MetadataCT...), sigPlatformContext, c.PlatformSig[:]); err != nil {
			reasons = append(reasons, "platform signature does not verify under the re-derived identity")
		}
	}

	userSigKP, err := deriveSigningKeyPair(sharedSecret, userKeyMaterial, sigUserContext)
	if err != nil {
		return KeyCompromiseReport{}, wrapError(ErrSignatureFailed, err)
	}
	if err := crypto.MLDSAVerify(userSigKP.PublicKey, userCT, sigUserContext, c.UserSig[:]); err != nil {
		reasons = append(reasons, "user signature does not verify under the re-derived identity")
	}

	s.metrics.CompromiseChecks.Inc()
	report := KeyCompromiseReport{Checked: true, Compromised: len(reasons) > 0, Reasons: reasons}
	if report.Compromised {
		s.metrics.CompromiseDetections.Inc()
		s.logger.WithFile(file.ID).WithUser(userID).Warn().Strs("reasons", reasons).Msg("key compromise indicators detected")
	}
	return report, nil
}

// RecoverFromCorruption delegates to the Recovery Engine and records
// the outcome in metrics and logs.
func (s *Service) RecoverFromCorruption(ctx context.Context, raw []byte, fileID string, opts recovery.Options) recovery.Result {
	result := recovery.Recover(raw, opts)
	s.metrics.RecordRecoveryAttempt(result.Success)
	s.logger.WithFile(fileID).Info().Bool("success", result.Success).Msg("recovery attempt")
	return result
}

// CreateTrapdoor delegates to the lifecycle manager.
func (s *Service) CreateTrapdoor(userID, query string, maxUsage uint64) (*lifecycle.Trapdoor, error) {
	t, err := s.lifecycle.Create(userID, query, maxUsage)
	if err != nil {
		return nil, mapLifecycleError(err)
	}
	s.metrics.TrapdoorsCreated.Inc()
	s.metrics.ActiveTrapdoors.Inc()
	return t, nil
}

// RotateTrapdoor delegates to the lifecycle manager.
func (s *Service) RotateTrapdoor(id string) (*lifecycle.Trapdoor, error) {
	t, err := s.lifecycle.Rotate(id)
	if err != nil {
		return nil, mapLifecycleError(err)
	}
	s.metrics.TrapdoorsRotated.Inc()
	return t, nil
}

// RevokeTrapdoor delegates to the lifecycle manager.
func (s *Service) RevokeTrapdoor(id, reason string) error {
	if err := s.lifecycle.Revoke(id, reason); err != nil {
		return mapLifecycleError(err)
	}
	s.metrics.TrapdoorsRevoked.Inc()
	s.metrics.ActiveTrapdoors.Dec()
	return nil
}

// UpdateTrapdoorUsage delegates to the lifecycle manager.
func (s *Service) UpdateTrapdoorUsage(id string) (lifecycle.UsageResult, error) {
	res, err := s.lifecycle.UpdateUsage(id)
	if err != nil {
		return lifecycle.UsageResult{}, mapLifecycleError(err)
	}
	return res, nil
}

// GetTrapdoorInfo delegates to the lifecycle manager.
func (s *Service) GetTrapdoorInfo(id string) (*lifecycle.Trapdoor, error) {
	t, err := s.lifecycle.Get(id)
	if err != nil {
		return nil, mapLifecycleError(err)
	}
	return t, nil
}

// GetUserTrapdoors delegates to the lifecycle manager.
func (s *Service) GetUserTrapdoors(userID string) []*lifecycle.Trapdoor {
	return s.lifecycle.ForUser(userID)
}

// GetRotationEvents delegates to the lifecycle manager.
func (s *Service) GetRotationEvents() []lifecycle.AuditEvent {
	return s.lifecycle.GetRotationEvents()
}

// GetUsageStats delegates to the lifecycle manager's anomaly detector.
func (s *Service) GetUsageStats(userID string) (lifecycle.UsagePattern, bool) {
	return s.lifecycle.GetUsageStats(userID)
}

// Close zeroizes the content-key cache. Idempotent: a second call is a
// no-op. Cleanup failures are logged, never returned, so callers cannot
// use a failed Close to justify skipping resource release elsewhere.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	s.cache.Clear()

	select {
	case <-cctx.Done():
		s.logger.Warn().Msg("cleanup deadline exceeded")
	default:
	}

	s.logger.Info().Msg("service closed")
	return nil
}

// packBlobs concatenates two length-prefixed blobs into one. It is how
// the service layer fits two ciphertexts (layer-1 platform + layer-2
// user, or KEM ciphertext + wrapped KEM secret key) into the wire
// format's single opaque MetadataCT/KEMCT TLV payloads without changing
// the TLV byte layout itself.
func packBlobs(a, b []byte) []byte {
	buf := make([]byte, 0, 4+len(a)+4+len(b))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(a)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, a...)
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(b)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, b...)
	return buf
}

func unpackBlobs(data []byte) (a, b []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("packed blob header truncated")
	}
	n := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n+4 {
		return nil, nil, fmt.Errorf("packed blob first segment truncated")
	}
	a = data[:n]
	data = data[n:]

	m := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < m {
		return nil, nil, fmt.Errorf("packed blob second segment truncated")
	}
	b = data[:m]
	return a, b, nil
}

// chunkAAD binds a chunk's ciphertext to its file and index so chunks
// cannot be reordered or transplanted between files without detection.
func chunkAAD(fileID []byte, index uint32) []byte {
	aad := make([]byte, len(fileID)+4)
	copy(aad, fileID)
	binary.LittleEndian.PutUint32(aad[len(fileID):], index)
	return aad
}

// concatenateChunkCiphertexts joins every chunk's encryptedData in
// ChunkIndex order, the message the content signature is computed over.
func concatenateChunkCiphertexts(chunks []wire.EncryptedChunk) []byte {
	ordered := append([]wire.EncryptedChunk{}, chunks...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ChunkIndex < ordered[j].ChunkIndex })

	var buf bytes.Buffer
	for _, c := range ordered {
		buf.Write(c.EncryptedData)
	}
	return buf.Bytes()
}

// deriveSigningKeyPair derives a domain-separated, reproducible ML-DSA
// identity from the per-file shared secret and the layer-specific key
// material, the same way platformKey_eff/userKey_eff are derived from
// the same shared secret under a different context.
func deriveSigningKeyPair(sharedSecret, material []byte, ctx string) (*crypto.MLDSAKeyPair, error) {
	seed := crypto.Blake3DeriveKey(ctx, append(append([]byte{}, sharedSecret...), material...), 32)
	return crypto.DeterministicMLDSAKeyPair(seed)
}

// searchableText derives the free-text search surface from metadata
// that is certain to be text (file name and tags); the file's raw
// plaintext body is never tokenized here, since it may be binary and
// the core has no MIME sniffing of its own.
func searchableText(m Metadata) string {
	var buf bytes.Buffer
	buf.WriteString(m.FileName)
	for _, tag := range m.Tags {
		buf.WriteString(" ")
		buf.WriteString(tag)
	}
	for _, v := range m.CustomFields {
		buf.WriteString(" ")
		buf.WriteString(v)
	}
	return buf.String()
}

func toSearchAccess(ac *AccessControl) *search.AccessControl {
	if ac == nil {
		return nil
	}
	return &search.AccessControl{
		ReadAccess:   ac.ReadAccess,
		WriteAccess:  ac.WriteAccess,
		DeleteAccess: ac.DeleteAccess,
	}
}

// currentEpoch floors the current time to an integer epoch window,
// matching lifecycle.Manager's own epoch computation for trapdoors.
func currentEpoch(d time.Duration) int64 {
	if d <= 0 {
		d = time.Hour
	}
	return time.Now().Unix() / int64(d.Seconds())
}

func mapWireError(err error) *Error {
	switch {
	case errors.Is(err, wire.ErrInvalidMagic):
		return wrapError(ErrInvalidMagic, err)
	case errors.Is(err, wire.ErrUnsupportedVersion):
		return wrapError(ErrUnsupportedVersion, err)
	case errors.Is(err, wire.ErrInvalidEnum):
		return wrapError(ErrInvalidEnum, err)
	case errors.Is(err, wire.ErrUnsupportedAlgorithm):
		return wrapError(ErrUnsupportedAlgorithm, err)
	case errors.Is(err, wire.ErrTruncated):
		return wrapError(ErrTruncated, err)
	case errors.Is(err, wire.ErrDuplicateFrame):
		return wrapError(ErrDuplicateFrame, err)
	default:
		return wrapError(ErrInvalidInput, err)
	}
}

func mapLifecycleError(err error) *Error {
	switch {
	case errors.Is(err, lifecycle.ErrTrapdoorNotFound):
		return wrapError(ErrTrapdoorNotFound, err)
	case errors.Is(err, lifecycle.ErrTrapdoorRevoked):
		return wrapError(ErrTrapdoorRevoked, err)
	case errors.Is(err, lifecycle.ErrMaxTrapdoorsExceeded):
		return wrapError(ErrMaxTrapdoorsExceeded, err)
	default:
		return wrapError(ErrInvalidInput, err)
	}
}
