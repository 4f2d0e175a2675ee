package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptConsent asks whether to accept a batch. Anything but "n" or "no"
// accepts; end of input declines.
func PromptConsent(in *bufio.Reader, out io.Writer, peer string) bool {
	fmt.Fprintf(out, "\n%s Receive these files from %s? [Y/n] ", IconQuestion, BoldStyle.Render(peer))
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "n", "no":
		return false
	}
	return true
}
