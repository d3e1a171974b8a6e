package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Entry is a directory entry. RunLength 0 marks a leaf directory pointer,
// otherwise the entry covers RunLength consecutive tile codes with the same
// data.
type Entry struct {
	TileCode  uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// SerializeDirectory encodes entries sorted by TileCode as columns of
// varints: delta tile codes, run lengths, lengths and offsets.
func SerializeDirectory(entries []Entry) []byte {
	buffer := binary.AppendUvarint(nil, uint64(len(entries)))

	lastCode := uint64(0)
	for _, entry := range entries {
		buffer = binary.AppendUvarint(buffer, entry.TileCode-lastCode)
		lastCode = entry.TileCode
	}
	for _, entry := range entries {
		buffer = binary.AppendUvarint(buffer, uint64(entry.RunLength))
	}
	for _, entry := range entries {
		buffer = binary.AppendUvarint(buffer, uint64(entry.Length))
	}

	// 0 means "right after the previous entry"
	nextOffset := uint64(0)
	for i, entry := range entries {
		if i > 0 && entry.Offset == nextOffset {
			buffer = binary.AppendUvarint(buffer, 0)
		} else {
			buffer = binary.AppendUvarint(buffer, entry.Offset+1)
		}
		nextOffset = entry.Offset + uint64(entry.Length)
	}

	return buffer
}

func DeserializeDirectory(data []byte) ([]Entry, error) {
	reader := bytes.NewReader(data)

	var err error
	next := func() uint64 {
		if err != nil {
			return 0
		}
		var value uint64
		value, err = binary.ReadUvarint(reader)
		return value
	}

	count := next()
	if err != nil {
		return nil, err
	}
	// every entry takes at least four bytes
	if count > uint64(len(data))/4 {
		return nil, fmt.Errorf("mapprep: directory declares %d entries in %d bytes", count, len(data))
	}
	entries := make([]Entry, count)

	lastCode := uint64(0)
	for i := range entries {
		lastCode += next()
		entries[i].TileCode = lastCode
	}
	for i := range entries {
		entries[i].RunLength = uint32(next())
	}
	for i := range entries {
		entries[i].Length = uint32(next())
	}
	for i := range entries {
		value := next()
		if value == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = value - 1
		}
	}

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CompactEntries merges runs of consecutive tile codes pointing to the same
// data. Entries must be sorted by TileCode.
func CompactEntries(entries []Entry) []Entry {
	if len(entries) == 0 {
		return entries
	}
	wi := 0
	for ri := 1; ri < len(entries); ri++ {
		if entries[ri].Offset == entries[wi].Offset &&
			entries[ri].TileCode == entries[wi].TileCode+uint64(entries[wi].RunLength) {
			entries[wi].RunLength++
		} else {
			wi++
			entries[wi] = entries[ri]
		}
	}
	return entries[:wi+1]
}

// FindEntry returns the entry covering tileCode, or the leaf directory
// pointer that may contain it.
func FindEntry(entries []Entry, tileCode uint64) (Entry, bool) {
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].TileCode > tileCode
	})
	if idx == 0 {
		return Entry{}, false
	}

	entry := entries[idx-1]
	if entry.RunLength == 0 || tileCode < entry.TileCode+uint64(entry.RunLength) {
		return entry, true
	}
	return Entry{}, false
}

// SerializeAll encodes sorted entries into a root directory fitting into
// RootDirMaxLength, moving entries into leaf directories when needed.
func SerializeAll(entries []Entry, compression Compression) (root, leaves []byte, err error) {
	root, err = Compress(SerializeDirectory(entries), compression)
	if err != nil {
		return nil, nil, err
	}
	if len(root) <= RootDirMaxLength {
		return root, nil, nil
	}

	entriesCount := float64(len(entries))
	entrySize := float64(len(root)) / entriesCount
	maxRootEntries := float64(RootDirMaxLength) * 0.9 / entrySize
	leafSize := max(entriesCount/maxRootEntries, 4096, math.Sqrt(entriesCount))

	for len(root) > RootDirMaxLength {
		var rootEntries []Entry
		leaves = leaves[:0]

		for chunk := range slices.Chunk(entries, int(leafSize)) {
			leaf, err := Compress(SerializeDirectory(chunk), compression)
			if err != nil {
				return nil, nil, err
			}
			rootEntries = append(rootEntries, Entry{
				TileCode:  chunk[0].TileCode,
				Offset:    uint64(len(leaves)),
				Length:    uint32(len(leaf)),
				RunLength: 0,
			})
			leaves = append(leaves, leaf...)
		}

		root, err = Compress(SerializeDirectory(rootEntries), compression)
		if err != nil {
			return nil, nil, err
		}
		leafSize *= 1.1
	}

	return root, leaves, nil
}
