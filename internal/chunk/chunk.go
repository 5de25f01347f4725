package chunk

import "encoding/binary"

// The replication core treats chunk storage as an external collaborator: it
// needs stable identifiers, raw payload bytes, and a version that bumps on
// every authoritative edit. MemoryStore is the in-process implementation.

const (
	Size   = 16 // blocks per horizontal side
	Height = 64 // blocks vertically
)

// ID identifies one chunk column on the wrapping surface.
type ID struct {
	X, Z int32
}

// Source is what the streaming layer consumes.
type Source interface {
	// Version returns the chunk's current edit version. Versions start at 1
	// and bump on every authoritative change.
	Version(id ID) uint32
	// Load returns the chunk's raw payload bytes and version.
	Load(id ID) ([]byte, uint32, bool)
}

type column struct {
	blocks  []uint16
	version uint32
}

// MemoryStore holds chunk columns in memory, generating terrain lazily and
// deterministically from a seed. Owned by the tick loop goroutine.
type MemoryStore struct {
	seed    int64
	columns map[ID]*column
}

func NewMemoryStore(seed int64) *MemoryStore {
	return &MemoryStore{
		seed:    seed,
		columns: make(map[ID]*column),
	}
}

func (s *MemoryStore) get(id ID) *column {
	c, ok := s.columns[id]
	if !ok {
		c = &column{blocks: generate(s.seed, id), version: 1}
		s.columns[id] = c
	}
	return c
}

func (s *MemoryStore) Version(id ID) uint32 {
	return s.get(id).version
}

func (s *MemoryStore) Load(id ID) ([]byte, uint32, bool) {
	c := s.get(id)
	raw := make([]byte, len(c.blocks)*2)
	for i, b := range c.blocks {
		binary.LittleEndian.PutUint16(raw[i*2:], b)
	}
	return raw, c.version, true
}

// SetBlock applies one authoritative edit and returns the new version.
// Out-of-range local coordinates are rejected.
func (s *MemoryStore) SetBlock(id ID, lx, ly, lz uint8, block uint16) (uint32, bool) {
	if int(lx) >= Size || int(ly) >= Height || int(lz) >= Size {
		return 0, false
	}
	c := s.get(id)
	idx := (int(ly)*Size+int(lz))*Size + int(lx)
	if c.blocks[idx] == block {
		return c.version, false // no-op edit, version unchanged
	}
	c.blocks[idx] = block
	c.version++
	return c.version, true
}

// generate fills a column from the seed: a rolling surface over stone with
// air above. Deterministic so every run produces identical terrain.
func generate(seed int64, id ID) []uint16 {
	blocks := make([]uint16, Size*Size*Height)
	for lz := 0; lz < Size; lz++ {
		for lx := 0; lx < Size; lx++ {
			wx := int64(id.X)*Size + int64(lx)
			wz := int64(id.Z)*Size + int64(lz)
			h := surfaceHeight(seed, wx, wz)
			for ly := 0; ly < Height; ly++ {
				var b uint16
				switch {
				case ly < h-3:
					b = 1 // stone
				case ly < h:
					b = 2 // dirt
				case ly == h:
					b = 3 // grass
				default:
					b = 0 // air
				}
				blocks[(ly*Size+lz)*Size+lx] = b
			}
		}
	}
	return blocks
}

// surfaceHeight hashes world coordinates into a height in [8, 24).
func surfaceHeight(seed, wx, wz int64) int {
	h := uint64(seed) ^ uint64(wx)*0x9E3779B97F4A7C15 ^ uint64(wz)*0xC2B2AE3D27D4EB4F
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33
	return 8 + int(h%16)
}
