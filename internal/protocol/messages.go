package protocol

// Wire opcodes. One byte at the head of every frame.
const (
	// client → server
	OpJoin      byte = 1
	OpIntent    byte = 2
	OpPing      byte = 3
	OpPong      byte = 4 // also server → client (reply to server probes)
	OpBlockEdit byte = 5
	OpChat      byte = 6
	OpLeave     byte = 7

	// server → client
	OpJoinAck    byte = 32
	OpSpawn      byte = 33
	OpUpdate     byte = 34
	OpDespawn    byte = 35
	OpOwnState   byte = 36
	OpChunkData  byte = 37
	OpEditNotify byte = 38
	OpChatRelay  byte = 39
)

// Component is one replicated property of one entity: a type tag plus the
// encoded payload. The payload encoding is owned by the component registry.
type Component struct {
	Tag  uint8  `codec:"t"`
	Data []byte `codec:"d"`
}

// Ping is a clock-sync probe. SendTime is the sender's local wall clock in
// unix nanoseconds; it is never interpreted by the receiver, only used to
// pair the eventual Pong with its probe.
type Ping struct {
	SendTime int64  `codec:"t"`
	Sequence uint32 `codec:"q"`
}

// Pong answers a Ping with the responder's current tick.
type Pong struct {
	Sequence uint32 `codec:"q"`
	Tick     uint64 `codec:"k"`
}

// Join requests entry into the world.
type Join struct {
	Name string `codec:"n"`
}

// JoinAck confirms entry and carries everything the client needs to start
// its local tick loop.
type JoinAck struct {
	SessionID   uint64 `codec:"s"`
	NetworkID   uint64 `codec:"e"`
	Tick        uint64 `codec:"k"`
	TickMillis  uint32 `codec:"i"`
	WorldExtent int64  `codec:"w"` // milliunits per wrapping axis
}

// Intent is a tick-tagged request to affect authoritative state. The payload
// is opaque to the transport; the simulation decodes it.
type Intent struct {
	Tick    uint64 `codec:"k"`
	Payload []byte `codec:"p"`
}

// OwnState is the authoritative result for the receiving client's own entity.
// It drives reconciliation and is never subject to bandwidth deferral.
type OwnState struct {
	Tick uint64  `codec:"k"`
	X    int64   `codec:"x"`
	Y    int64   `codec:"y"`
	Z    int64   `codec:"z"`
	VX   float64 `codec:"u"`
	VY   float64 `codec:"v"`
	VZ   float64 `codec:"w"`
}

// Spawn carries an entity's full component state on interest entry.
type Spawn struct {
	NetworkID  uint64      `codec:"e"`
	Components []Component `codec:"c"`
}

// Update carries only the components that changed since the client's shadow.
type Update struct {
	NetworkID uint64      `codec:"e"`
	Tick      uint64      `codec:"k"`
	Changed   []Component `codec:"c"`
}

// Despawn removes an entity from the client's view.
type Despawn struct {
	NetworkID uint64 `codec:"e"`
}

// ChunkData delivers one compressed terrain chunk.
type ChunkData struct {
	ChunkX     int32  `codec:"x"`
	ChunkZ     int32  `codec:"z"`
	Version    uint32 `codec:"v"`
	Compressed []byte `codec:"b"`
	RawSize    int32  `codec:"r"`
}

// BlockEdit mutates one block. Client → server it is a request; server →
// client (OpEditNotify) it is the authoritative result.
type BlockEdit struct {
	ChunkX int32  `codec:"x"`
	ChunkZ int32  `codec:"z"`
	LocalX uint8  `codec:"a"`
	LocalY uint8  `codec:"b"`
	LocalZ uint8  `codec:"c"`
	Block  uint16 `codec:"v"`
}

// Chat carries a text message. From is filled by the server on relay.
type Chat struct {
	From string `codec:"f"`
	Text string `codec:"m"`
}

// Leave announces a voluntary disconnect.
type Leave struct{}
