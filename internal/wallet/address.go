package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// AddressPrefix is the leading byte of every mainnet TRON address.
const AddressPrefix = 0x41

var ErrInvalidAddress = errors.New("invalid TRON address")

// checksum по стандарту TRON (double SHA256, первые 4 байта)
func checksum(raw []byte) []byte {
	first := sha256.Sum256(raw)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// EncodeAddress turns a 21-byte address (0x41 + 20 bytes) into its base58check form.
func EncodeAddress(raw []byte) (string, error) {
	if len(raw) != 21 || raw[0] != AddressPrefix {
		return "", fmt.Errorf("%w: expected 21 bytes with 0x41 prefix, got %d bytes", ErrInvalidAddress, len(raw))
	}
	full := make([]byte, 0, 25)
	full = append(full, raw...)
	full = append(full, checksum(raw)...)
	return base58.Encode(full), nil
}

// DecodeAddress returns the 21 raw bytes of a base58check address after checking its checksum.
func DecodeAddress(address string) ([]byte, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(decoded) != 25 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidAddress, len(decoded))
	}
	raw, sum := decoded[:21], decoded[21:]
	if raw[0] != AddressPrefix {
		return nil, fmt.Errorf("%w: bad prefix 0x%x", ErrInvalidAddress, raw[0])
	}
	if !bytes.Equal(sum, checksum(raw)) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return raw, nil
}

// HexToBase58 accepts the chain's hex form with or without the 41 prefix (and an optional 0x).
func HexToBase58(hexAddr string) (string, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(hexAddr), "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) == 20 {
		raw = append([]byte{AddressPrefix}, raw...)
	}
	return EncodeAddress(raw)
}

func Base58ToHex(address string) (string, error) {
	raw, err := DecodeAddress(address)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
