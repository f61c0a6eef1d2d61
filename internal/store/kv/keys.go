package kv

import (
	"fmt"
	"strconv"
)

// Key layout, for an entity stored under prefix "rock:":
//
//	rock:<id>                        record
//	rock:idx:<name>:<value>          unique index, value is the record id
//	rock:idx:<name>:<value>:<id>     multi index, empty value
//
// Integer ids are zero padded so that key order is numeric order.

const idxMarker = "idx:"

func recordKey(prefix, id string) []byte {
	return []byte(prefix + id)
}

func uniqueIndexKey(prefix, index, value string) []byte {
	return []byte(prefix + idxMarker + index + ":" + value)
}

func multiIndexPrefix(prefix, index, value string) []byte {
	return []byte(prefix + idxMarker + index + ":" + value + ":")
}

func multiIndexKey(prefix, index, value, id string) []byte {
	return append(multiIndexPrefix(prefix, index, value), id...)
}

// FormatID renders a sequence id as a fixed width key segment.
func FormatID(id int64) string {
	return fmt.Sprintf("%020d", id)
}

// ParseID reverses FormatID.
func ParseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
