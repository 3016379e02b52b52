package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/secondbrain/core"
)

// Key prefixes for different data types. Every prefix ends with ':' so that
// no prefix is a prefix of another.
const (
	documentPrefix       = "docrec:"
	documentDatePrefix   = "docdate:"
	documentSourcePrefix = "docsrc:"
	documentTagPrefix    = "doctag:"
	documentIDSeq        = "docrecseq"
	chunkPrefix          = "chkrec:"
	chunkDocumentPrefix  = "chkdoc:"
	chunkIDSeq           = "chkrecseq"
	tagPrefix            = "tagrec:"
	checkpointPrefix     = "chkpt:"
)

// signBit flips negative timestamps below positive ones in unsigned order.
const signBit = uint64(1) << 63

// makeKey joins a prefix and a sequence of big-endian uint64 parts.
// Writing in BigEndian order keeps lexicographic and numeric order aligned.
func makeKey(prefix string, parts ...uint64) []byte {
	buf := make([]byte, len(prefix)+8*len(parts))
	offset := copy(buf, prefix)
	for _, p := range parts {
		binary.BigEndian.PutUint64(buf[offset:], p)
		offset += 8
	}
	return buf
}

func timeKeyPart(t time.Time) uint64 {
	return uint64(t.UnixMicro()) ^ signBit
}

func timeFromKeyPart(v uint64) time.Time {
	return time.UnixMicro(int64(v ^ signBit)).UTC()
}

// keyPart decodes the i-th uint64 following prefix in key.
func keyPart(key []byte, prefix string, i int) uint64 {
	offset := len(prefix) + 8*i
	if len(key) < offset+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[offset:])
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return makeKey(documentPrefix, uint64(id))
}

// makeDocumentDateKey generates a composite key for the creation date index.
// Format: prefix:timestamp:id
func makeDocumentDateKey(createdAt time.Time, id core.ID) []byte {
	return makeKey(documentDatePrefix, timeKeyPart(createdAt), uint64(id))
}

// makePartialDocumentDateKey generates a partial key for date range queries.
func makePartialDocumentDateKey(t time.Time) []byte {
	return makeKey(documentDatePrefix, timeKeyPart(t))
}

// makeDocumentSourceKey generates a composite key for the source type index.
// Format: prefix:sourceType:id
func makeDocumentSourceKey(sourceType core.SourceType, id core.ID) []byte {
	return makeKey(documentSourcePrefix, uint64(sourceType), uint64(id))
}

// makePartialDocumentSourceKey generates a partial key for source type queries.
func makePartialDocumentSourceKey(sourceType core.SourceType) []byte {
	return makeKey(documentSourcePrefix, uint64(sourceType))
}

// makeDocumentTagKey generates a composite key for the tag index.
// Format: prefix:tagID:documentID
func makeDocumentTagKey(tagID, documentID core.ID) []byte {
	return makeKey(documentTagPrefix, uint64(tagID), uint64(documentID))
}

// makePartialDocumentTagKey generates a partial key for tag queries.
func makePartialDocumentTagKey(tagID core.ID) []byte {
	return makeKey(documentTagPrefix, uint64(tagID))
}

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return makeKey(chunkPrefix, uint64(id))
}

// makeChunkDocumentKey generates a composite key for a document's chunks in order.
// Format: prefix:documentID:index:chunkID
func makeChunkDocumentKey(documentID core.ID, index int, chunkID core.ID) []byte {
	return makeKey(chunkDocumentPrefix, uint64(documentID), uint64(index), uint64(chunkID))
}

// makePartialChunkDocumentKey generates a partial key for a document's chunks.
func makePartialChunkDocumentKey(documentID core.ID) []byte {
	return makeKey(chunkDocumentPrefix, uint64(documentID))
}

// makeTagKey generates a key for a tag by ID.
func makeTagKey(id core.ID) []byte {
	return makeKey(tagPrefix, uint64(id))
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(checkpointPrefix + processorType)
}
