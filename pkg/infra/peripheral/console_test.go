package peripheral_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/commis-ai/commis/pkg/infra/peripheral"
)

func TestConsoleMicrophone_ReadsTrimmedLines(t *testing.T) {
	mic := peripheral.NewConsoleMicrophone(strings.NewReader("  hello there \nsecond\n"))
	ctx := context.Background()

	line, err := mic.ReadText(ctx)
	gt.NoError(t, err)
	gt.Value(t, line).Equal("hello there")

	line, err = mic.ReadText(ctx)
	gt.NoError(t, err)
	gt.Value(t, line).Equal("second")
}

func TestConsoleMicrophone_TrailingLineWithoutNewline(t *testing.T) {
	mic := peripheral.NewConsoleMicrophone(strings.NewReader("last words"))
	ctx := context.Background()

	line, err := mic.ReadText(ctx)
	gt.NoError(t, err)
	gt.Value(t, line).Equal("last words")

	// The stream is now exhausted
	_, err = mic.ReadText(ctx)
	gt.Value(t, err).Equal(io.EOF)
}

func TestConsoleMicrophone_EmptyInputReportsEOF(t *testing.T) {
	mic := peripheral.NewConsoleMicrophone(strings.NewReader(""))

	_, err := mic.ReadText(context.Background())
	gt.Value(t, err).Equal(io.EOF)
}

func TestConsoleMicrophone_CancelledContext(t *testing.T) {
	mic := peripheral.NewConsoleMicrophone(strings.NewReader("unread\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mic.ReadText(ctx)
	gt.Error(t, err)
}
