package sampler

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Provenance locates the log a sample was taken at.
type Provenance struct {
	BlockNumber     uint64      `json:"blockNumber"`
	EventName       string      `json:"eventName"`
	TransactionHash common.Hash `json:"transactionHash"`
	LogIndex        uint        `json:"logIndex"`
}

var provenanceFields = []string{"blockNumber", "eventName", "transactionHash", "logIndex"}

// Key is the block number, the join key of samples taken from one stream.
func (p Provenance) Key() uint64 { return p.BlockNumber }

// Before orders provenances by (block, log index).
func (p Provenance) Before(o Provenance) bool {
	if p.BlockNumber != o.BlockNumber {
		return p.BlockNumber < o.BlockNumber
	}
	return p.LogIndex < o.LogIndex
}

// Sample is one payload read at the block of its provenance.
// It is encoded as a single flat JSON object holding the provenance and payload fields,
// so a payload may not use the provenance field names.
type Sample[T any] struct {
	Provenance
	Data T
}

func (s Sample[T]) MarshalJSON() ([]byte, error) {
	prov, err := json.Marshal(s.Provenance)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(s.Data)
	if err != nil {
		return nil, err
	}
	if len(data) < 2 || data[0] != '{' {
		return nil, fmt.Errorf("sample payload %T must encode as a JSON object", s.Data)
	}
	if string(data) == "{}" {
		return prov, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, name := range provenanceFields {
		if _, ok := fields[name]; ok {
			return nil, fmt.Errorf("sample payload %T redefines provenance field %q", s.Data, name)
		}
	}
	out := make([]byte, 0, len(prov)+len(data))
	out = append(out, prov[:len(prov)-1]...)
	out = append(out, ',')
	out = append(out, data[1:]...)
	return out, nil
}

func (s *Sample[T]) UnmarshalJSON(raw []byte) error {
	if err := json.Unmarshal(raw, &s.Provenance); err != nil {
		return err
	}
	return json.Unmarshal(raw, &s.Data)
}
