package types

import (
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// The binary stream format is the storage tree (type wrapper + user kept),
// JSON-encoded and zstd-compressed. Decoding goes back through the strict
// parser, so a document cannot enter by this path with invariants unchecked.

func EncodeLRONConfig(c LRONConfig) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(c.ToTree(StorageView))
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(b, nil), nil
}

func DecodeLRONConfig(data []byte) (LRONConfig, error) {
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return LRONConfig{}, Err(ErrInvalidDocument, err, "corrupt lron_config stream")
	}
	var tree Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return LRONConfig{}, Err(ErrInvalidDocument, err, "corrupt lron_config stream")
	}
	return ParseLRONConfig(tree)
}

func EncodeSMPolicy(p SMPolicy) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(p.ToTree(StorageView))
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(b, nil), nil
}

func DecodeSMPolicy(data []byte) (SMPolicy, error) {
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return SMPolicy{}, Err(ErrInvalidDocument, err, "corrupt sm_policy stream")
	}
	var tree Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return SMPolicy{}, Err(ErrInvalidDocument, err, "corrupt sm_policy stream")
	}
	return ParseSMPolicy(tree)
}
