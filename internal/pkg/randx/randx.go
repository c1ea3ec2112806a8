/*
Package randx provides cryptographically secure random identifiers.

The reference backend tags websocket connections with it; the command line client picks
a display nickname with it for accounts created without one.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// NicknamePrefix is prepended to generated nicknames.
	NicknamePrefix = "Baller_"

	// nicknameRandomLength is the number of Base62 characters after the prefix.
	nicknameRandomLength = 6
)

// ConnectionID returns a UUID v4 identifying one websocket connection.
func ConnectionID() string {
	return uuid.New().String()
}

// UserNickname generates a nickname with NicknamePrefix followed by 6 random Base62 characters.
func UserNickname() (string, error) {
	result := make([]byte, nicknameRandomLength)

	for i := range nicknameRandomLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for nickname: %v", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return NicknamePrefix + string(result), nil
}
