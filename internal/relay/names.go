package relay

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
)

// deviceNames is the default display-name pool. Once every name is taken,
// new sessions fall back to numbered names.
var deviceNames = []string{
	"Indigo Fox", "Ruby Eagle", "Jade Turtle", "Gold Lion", "Opal Bear", "Sapphire Wolf",
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		slog.Error("random index failed, using first entry", "error", err)
		return 0
	}
	return int(n.Int64())
}

// pickName chooses an unused pool name at random, or User<N> with N starting
// at size+1 and moving up until the name is free.
func pickName(pool []string, inUse map[string]bool, size int) string {
	available := make([]string, 0, len(pool))
	for _, name := range pool {
		if !inUse[name] {
			available = append(available, name)
		}
	}
	if len(available) > 0 {
		return available[randomIndex(len(available))]
	}

	for n := size + 1; ; n++ {
		name := fmt.Sprintf("User%d", n)
		if !inUse[name] {
			return name
		}
	}
}
