package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForSource asks for a file path or URL on out and reads the answer
// from in. An empty answer returns "".
func PromptForSource(in io.Reader, out io.Writer) string {
	fmt.Fprint(out, "File path or URL: ")

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		log.Warn().Err(err).Msg("Failed to read input")
		return ""
	}

	return strings.TrimSpace(input)
}
