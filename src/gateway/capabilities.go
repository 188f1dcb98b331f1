package gateway

// Capabilities is the identify capability bitfield.
type Capabilities uint32

const (
	CapLazyUserNotes Capabilities = 1 << iota
	CapNoAffineUserIDs
	CapVersionedReadStates
	CapVersionedUserGuildSettings
	CapDedupeUserObjects
	CapPrioritizedReadyPayload
)

// DefaultCapabilities is 61.
const DefaultCapabilities = CapLazyUserNotes |
	CapVersionedReadStates |
	CapVersionedUserGuildSettings |
	CapDedupeUserObjects |
	CapPrioritizedReadyPayload

func (c Capabilities) Has(flag Capabilities) bool { return c&flag == flag }

func (c Capabilities) With(flag Capabilities) Capabilities { return c | flag }

func (c Capabilities) Without(flag Capabilities) Capabilities { return c &^ flag }
