package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewCellID combines a millisecond timestamp with a random component so that
// ids minted in rapid succession never collide and sort roughly by creation
// time. Cell ids are never reused after deletion.
func NewCellID() string {
	bytes := make([]byte, 6)
	_, _ = rand.Read(bytes)
	return "cell_" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "_" + hex.EncodeToString(bytes)
}
