package peripheral

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
)

type consoleMicrophone struct {
	reader *bufio.Reader
}

// NewConsoleMicrophone creates a Microphone that reads utterances line by
// line from the given reader, typically stdin
func NewConsoleMicrophone(r io.Reader) interfaces.Microphone {
	return &consoleMicrophone{reader: bufio.NewReader(r)}
}

// ReadText returns the next line of input with surrounding whitespace
// trimmed. A trailing line without a newline is still returned; once the
// stream is exhausted it reports io.EOF.
func (m *consoleMicrophone) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	line, err := m.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}

	return strings.TrimSpace(line), nil
}
