/******************************************************************************
 *
 *  Description :
 *
 *    Generator of unique session ids: snowflake-generated uint64 weakly
 *    encrypted with XTEA so the ids are random-looking, then base64-encoded.
 *
 *****************************************************************************/

package main

import (
	"encoding/base64"
	"encoding/binary"

	sf "github.com/tinode/snowflake"
	"golang.org/x/crypto/xtea"
)

// Unpadded base64 length of an 8-byte value.
const sidBase64Unpadded = 11

type uidGenerator struct {
	seq    *sf.SnowFlake
	cipher *xtea.Cipher
}

// Init initialises the generator. The key must be 16 bytes long.
func (ug *uidGenerator) Init(workerID uint, key []byte) error {
	var err error

	if ug.seq == nil {
		ug.seq, err = sf.NewSnowFlake(uint32(workerID))
		if err != nil {
			return err
		}
	}
	if ug.cipher == nil {
		ug.cipher, err = xtea.NewCipher(key)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetStr generates a unique id and returns it as an unpadded base64 string.
func (ug *uidGenerator) GetStr() string {
	id, err := ug.seq.Next()
	if err != nil {
		return ""
	}

	src := make([]byte, 8)
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(src, id)
	ug.cipher.Encrypt(dst, src)

	return base64.URLEncoding.EncodeToString(dst)[:sidBase64Unpadded]
}
