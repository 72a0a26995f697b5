package cache

import (
	"errors"
	"fmt"

	U "recommendation/util"
)

type Key struct {
	DatasetID string
	// Prefix - Helps better grouping and searching
	// i.e result kind + version
	Prefix string
	// Suffix - optional
	Suffix string
}

const PrefixItemsets = "itemsets"

var (
	ErrorInvalidDataset = errors.New("invalid key dataset")
	ErrorInvalidPrefix  = errors.New("invalid key prefix")
	ErrorInvalidKey     = errors.New("invalid redis cache key")
	ErrorInvalidValue   = errors.New("empty cache key value")
)

func NewKey(datasetID, prefix, suffix string) (*Key, error) {
	if datasetID == "" {
		return nil, ErrorInvalidDataset
	}

	if prefix == "" {
		return nil, ErrorInvalidPrefix
	}
	return &Key{DatasetID: datasetID, Prefix: prefix, Suffix: suffix}, nil
}

// NewItemsetsKey scopes a mined result by the support threshold, the way the
// transactions were parsed and the digest of the file they were parsed from.
func NewItemsetsKey(datasetID string, minSupport float64, format, itemsPath string, digest uint64) (*Key, error) {
	suffix := fmt.Sprintf("ms:%s:f:%s:p:%s:h:%x", U.FormatSupport(minSupport), format, itemsPath, digest)
	return NewKey(datasetID, PrefixItemsets, suffix)
}

func (key *Key) Key() (string, error) {
	if key.DatasetID == "" {
		return "", ErrorInvalidDataset
	}

	if key.Prefix == "" {
		return "", ErrorInvalidPrefix
	}

	// key: i.e, itemsets:did:retail:ms:0.4200:f:jsonl:p:items:h:9f3c...
	return fmt.Sprintf("%s:did:%s:%s", key.Prefix, key.DatasetID, key.Suffix), nil
}
