package codegen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Display-safe alphabet: uppercase letters and digits without 0/O/1/I, so a
// code printed under a QR symbol can be read back over the phone.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	randomLen    = 10
	maxCodeLen   = 32
	maxPrefixLen = 8
)

// Generator produces ticket codes that combine an issuance timestamp with a
// random suffix. The timestamp keeps codes roughly sortable while the random
// part makes the next code unguessable from the previous one.
type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// NewCode returns a code of the form [PREFIX-]TTTTTTT-RRRRRRRRRR, always
// within 32 characters. Prefixes are normalized to the code alphabet and
// truncated; an empty prefix is fine.
func (g *Generator) NewCode(prefix string) (string, error) {
	suffix, err := randomString(randomLen)
	if err != nil {
		return "", fmt.Errorf("failed to generate code entropy: %w", err)
	}

	ts := strings.ToUpper(big.NewInt(time.Now().Unix()).Text(32))

	var sb strings.Builder
	if p := normalizePrefix(prefix); p != "" {
		sb.WriteString(p)
		sb.WriteByte('-')
	}
	sb.WriteString(ts)
	sb.WriteByte('-')
	sb.WriteString(suffix)

	code := sb.String()
	if len(code) > maxCodeLen {
		code = code[:maxCodeLen]
	}
	return code, nil
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.ToUpper(prefix)
	var sb strings.Builder
	for _, r := range prefix {
		if sb.Len() >= maxPrefixLen {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
