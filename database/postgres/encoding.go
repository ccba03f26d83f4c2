package pg

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

// EncodeType identifies how a binary value is stored in a text column.
type EncodeType string

const (
	Base58 EncodeType = "b58"
	Base64 EncodeType = "b64"
	Hex    EncodeType = "hex"
)

var (
	ErrMalformedValue      = errors.New("encoded value is missing its encoding prefix")
	ErrUnsupportedEncoding = errors.New("unsupported encoding type")
)

// OwnerKey encodes the identifier of the account or app install that owns a
// row in a per-user table.
func OwnerKey(owner []byte) string {
	return Encode(owner, Base58)
}

// Encode encodes value and prefixes it with its encoding type, so Decode does
// not need to be told how it was written.
func Encode(value []byte, encodeType EncodeType) string {
	var encoded string
	switch encodeType {
	case Base58:
		encoded = base58.Encode(value)
	case Hex:
		encoded = hex.EncodeToString(value)
	default:
		encodeType = Base64
		encoded = base64.StdEncoding.EncodeToString(value)
	}

	return string(encodeType) + ":" + encoded
}

func Decode(value string) ([]byte, error) {
	prefix, encoded, ok := strings.Cut(value, ":")
	if !ok {
		return nil, ErrMalformedValue
	}

	switch EncodeType(prefix) {
	case Base58:
		return base58.Decode(encoded)
	case Base64:
		return base64.StdEncoding.DecodeString(encoded)
	case Hex:
		return hex.DecodeString(encoded)
	default:
		return nil, ErrUnsupportedEncoding
	}
}
