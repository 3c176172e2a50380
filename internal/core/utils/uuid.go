package utils

import (
	"crypto/rand"
	"errors"
)

// NodeIDLength is the byte length of node ids.
const NodeIDLength = 16

func NewUUIDRaw(length int) ([]byte, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return bytes, errors.New("failed to generate UUID: " + err.Error())
	}
	return bytes, nil
}
