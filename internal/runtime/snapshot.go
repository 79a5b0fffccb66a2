package runtime

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding, so identical sessions produce identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("runtime: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// BlockSnapshot is one outstanding raw allocation inside a snapshot.
type BlockSnapshot struct {
	Address   uint64 `cbor:"1,keyasint"`
	Size      uint64 `cbor:"2,keyasint"`
	AgeMillis int64  `cbor:"3,keyasint"`
}

// AnalyzerSnapshot is the encodable state of one analyzer session.
type AnalyzerSnapshot struct {
	SessionID    string          `cbor:"1,keyasint"`
	TakenAtNanos int64           `cbor:"2,keyasint"`
	UptimeMillis int64           `cbor:"3,keyasint"`
	Stats        AnalyzerStats   `cbor:"4,keyasint"`
	LiveBlocks   []BlockSnapshot `cbor:"5,keyasint,omitempty"`
}

// MarshalSnapshot serializes a snapshot to CBOR bytes.
func MarshalSnapshot(s *AnalyzerSnapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*AnalyzerSnapshot, error) {
	var s AnalyzerSnapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("runtime: unmarshal snapshot: %w", err)
	}

	return &s, nil
}
