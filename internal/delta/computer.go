package delta

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// chunkSize is the fixed window size used by FixedSizeChunker. The
// original chunker this one replaces used content-defined boundaries;
// fixed windows are simpler and sufficient for the local, single-writer
// deltas this package produces, at the cost of losing a match when an
// edit shifts everything after it by a few bytes.
const chunkSize = 4096

// FixedSizeChunker splits a stream into fixed-size windows. It stands
// in for a content-defined chunker (no implementation of one shipped
// with the code this package is adapted from): boundaries are simply
// every chunkSize bytes, so insertions mid-file will defeat matching
// for the remainder of the chunk stream. Correctness of diff/patch does
// not depend on chunk alignment; only the resulting delta size does.
type FixedSizeChunker struct{}

// NewFixedSizeChunker returns the default chunker used by diff/patch.
func NewFixedSizeChunker() *FixedSizeChunker {
	return &FixedSizeChunker{}
}

// ChunkAll implements Chunker.
func (c *FixedSizeChunker) ChunkAll(ctx context.Context, r io.Reader) ([]Chunk, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("delta: reading stream to chunk: %w", err)
	}

	var chunks []Chunk
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		window := data[offset:end]
		sum := sha256.Sum256(window)
		chunks = append(chunks, Chunk{
			Hash:   hex.EncodeToString(sum[:]),
			Offset: int64(offset),
			Size:   int64(len(window)),
			Data:   window,
		})
	}
	return chunks, nil
}

// MemoryIndex is an in-memory ChunkIndex.
type MemoryIndex struct {
	chunks map[string]*Chunk
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{chunks: make(map[string]*Chunk)}
}

// Add implements ChunkIndex.
func (m *MemoryIndex) Add(c Chunk) {
	if _, exists := m.chunks[c.Hash]; !exists {
		m.chunks[c.Hash] = &c
	}
}

// AddAll implements ChunkIndex.
func (m *MemoryIndex) AddAll(cs []Chunk) {
	for _, c := range cs {
		m.Add(c)
	}
}

// Lookup implements ChunkIndex.
func (m *MemoryIndex) Lookup(hash string) *Chunk {
	return m.chunks[hash]
}

// Size implements ChunkIndex.
func (m *MemoryIndex) Size() int {
	return len(m.chunks)
}

// BinaryComputer computes a Delta by matching a target's chunks against
// a chunked source and emitting copy/insert instructions.
type BinaryComputer struct {
	chunker Chunker
}

// NewComputer returns a Computer backed by chunker.
func NewComputer(chunker Chunker) *BinaryComputer {
	return &BinaryComputer{chunker: chunker}
}

// Compute implements Computer.
func (c *BinaryComputer) Compute(ctx context.Context, source, target io.Reader) (*Delta, error) {
	sourceChunks, err := c.chunker.ChunkAll(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("delta: chunking source: %w", err)
	}
	targetChunks, err := c.chunker.ChunkAll(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("delta: chunking target: %w", err)
	}

	index := NewMemoryIndex()
	index.AddAll(sourceChunks)

	var instructions []Instruction
	var insertData bytes.Buffer
	var totalSize int64
	insertOffset := int64(0)
	targetOffset := int64(0)

	for _, tc := range targetChunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if sc := index.Lookup(tc.Hash); sc != nil {
			instructions = append(instructions, Instruction{
				Type:         InstructionCopy,
				SourceOffset: sc.Offset,
				TargetOffset: targetOffset,
				Length:       tc.Size,
			})
		} else {
			instructions = append(instructions, Instruction{
				Type:         InstructionInsert,
				SourceOffset: insertOffset,
				TargetOffset: targetOffset,
				Length:       tc.Size,
			})
			insertData.Write(tc.Data)
			insertOffset += tc.Size
		}

		targetOffset += tc.Size
		totalSize += tc.Size
	}

	return &Delta{
		Instructions: instructions,
		TotalSize:    totalSize,
		InsertData:   insertData.Bytes(),
	}, nil
}

// BinaryApplier reconstructs a target stream from a source plus Delta.
type BinaryApplier struct{}

// NewApplier returns the default Applier.
func NewApplier() *BinaryApplier {
	return &BinaryApplier{}
}

// Apply implements Applier.
func (a *BinaryApplier) Apply(ctx context.Context, source io.ReadSeeker, d *Delta) ([]byte, error) {
	result := make([]byte, d.TotalSize)

	for _, inst := range d.Instructions {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch inst.Type {
		case InstructionCopy:
			if _, err := source.Seek(inst.SourceOffset, io.SeekStart); err != nil {
				return nil, fmt.Errorf("delta: seeking source: %w", err)
			}
			if _, err := io.ReadFull(source, result[inst.TargetOffset:inst.TargetOffset+inst.Length]); err != nil {
				return nil, fmt.Errorf("delta: reading source span: %w", err)
			}
		case InstructionInsert:
			end := inst.SourceOffset + inst.Length
			if end > int64(len(d.InsertData)) {
				return nil, fmt.Errorf("delta: insert data exhausted")
			}
			copy(result[inst.TargetOffset:], d.InsertData[inst.SourceOffset:end])
		default:
			return nil, fmt.Errorf("delta: unknown instruction type %v", inst.Type)
		}
	}

	return result, nil
}

var (
	_ Chunker  = (*FixedSizeChunker)(nil)
	_ Computer = (*BinaryComputer)(nil)
	_ Applier  = (*BinaryApplier)(nil)
	_ ChunkIndex = (*MemoryIndex)(nil)
)
