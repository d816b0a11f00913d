package registration

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"
)

const (
	DefaultIDPrefix = "RWT"
	suffixAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLen       = 4
)

// Generator issues registration IDs of the form PREFIX-CODE-YYMMDD-XXXX.
// Uniqueness is enforced by the store, not here.
type Generator struct {
	prefix string
	now    func() time.Time
	rand   io.Reader
}

// NewGenerator returns a generator using crypto/rand and the local clock.
func NewGenerator(prefix string) *Generator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return &Generator{prefix: prefix, now: time.Now, rand: rand.Reader}
}

// Next returns a fresh ID for kind, dated with the local date.
func (g *Generator) Next(kind Kind) (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", fmt.Errorf("generate id suffix: %w", err)
	}
	date := g.now().Local().Format("060102")
	return fmt.Sprintf("%s-%s-%s-%s", g.prefix, kind.Code(), date, suffix), nil
}

func (g *Generator) suffix() (string, error) {
	base := big.NewInt(int64(len(suffixAlphabet)))
	var b strings.Builder
	for i := 0; i < suffixLen; i++ {
		n, err := rand.Int(g.rand, base)
		if err != nil {
			return "", err
		}
		b.WriteByte(suffixAlphabet[n.Int64()])
	}
	return b.String(), nil
}
