package ui

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/kodescruxx/kx-cli/internal/api"
)

func TestRenderStream_BasicTokens(t *testing.T) {
	ch := make(chan api.StreamDelta, 4)
	ch <- api.StreamDelta{Token: "hello"}
	ch <- api.StreamDelta{Token: " world"}
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "hello world" {
		t.Errorf("expected 'hello world', got %q", result)
	}
	// Output should start with the prefix.
	if !strings.HasPrefix(buf.String(), "  hello") {
		t.Errorf("expected output to start with prefix, got %q", buf.String())
	}
}

func TestRenderStream_EmptyPrefix(t *testing.T) {
	ch := make(chan api.StreamDelta, 3)
	ch <- api.StreamDelta{Token: "test"}
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "test" {
		t.Errorf("expected 'test', got %q", result)
	}
	if strings.HasPrefix(buf.String(), " ") {
		t.Error("empty prefix should not add leading space")
	}
}

func TestRenderStream_SkipsEmptyTokens(t *testing.T) {
	ch := make(chan api.StreamDelta, 5)
	ch <- api.StreamDelta{Token: ""}
	ch <- api.StreamDelta{Token: "hello"}
	ch <- api.StreamDelta{Token: ""}
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "hello" {
		t.Errorf("expected 'hello', got %q", result)
	}
}

func TestRenderStream_Error(t *testing.T) {
	ch := make(chan api.StreamDelta, 3)
	ch <- api.StreamDelta{Token: "partial"}
	ch <- api.StreamDelta{Err: fmt.Errorf("stream broke")}
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if result != "partial" {
		t.Errorf("expected partial 'partial', got %q", result)
	}
	if !strings.Contains(err.Error(), "stream broke") {
		t.Errorf("expected 'stream broke', got: %v", err)
	}
}

func TestRenderStream_EmptyStream(t *testing.T) {
	ch := make(chan api.StreamDelta, 1)
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, ">> ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty result, got %q", result)
	}
}

func TestRenderStream_ClosedChannel(t *testing.T) {
	ch := make(chan api.StreamDelta)
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty result, got %q", result)
	}
}

func TestRenderStream_AddsTrailingNewline(t *testing.T) {
	ch := make(chan api.StreamDelta, 2)
	ch <- api.StreamDelta{Token: "no newline at end"}
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	_, err := RenderStream(&buf, ch, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("output should end with newline")
	}
}

func TestRenderStream_PreservesExistingNewline(t *testing.T) {
	ch := make(chan api.StreamDelta, 2)
	ch <- api.StreamDelta{Token: "ends with newline\n"}
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	_, err := RenderStream(&buf, ch, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Should not double-newline.
	output := buf.String()
	if strings.HasSuffix(output, "\n\n\n") {
		t.Errorf("should not triple-newline, got %q", output)
	}
}

func TestRenderStream_MultipleTokensConcatenate(t *testing.T) {
	ch := make(chan api.StreamDelta, 6)
	ch <- api.StreamDelta{Token: "a"}
	ch <- api.StreamDelta{Token: "b"}
	ch <- api.StreamDelta{Token: "c"}
	ch <- api.StreamDelta{Token: "d"}
	ch <- api.StreamDelta{Token: "e"}
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "abcde" {
		t.Errorf("expected 'abcde', got %q", result)
	}
}

func TestRenderStream_IndentsFollowingLines(t *testing.T) {
	ch := make(chan api.StreamDelta, 4)
	ch <- api.StreamDelta{Token: "line one\n"}
	ch <- api.StreamDelta{Token: "line two\n\nline"}
	ch <- api.StreamDelta{Token: " three"}
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "  line one\n  line two\n\n  line three\n\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
	if result != "line one\nline two\n\nline three" {
		t.Errorf("result should not contain the prefix, got %q", result)
	}
}

func TestRenderStream_NoDataNotice(t *testing.T) {
	ch := make(chan api.StreamDelta, 2)
	ch <- api.StreamDelta{Token: api.NoDataNotice}
	ch <- api.StreamDelta{Done: true}
	close(ch)

	var buf bytes.Buffer
	result, err := RenderStream(&buf, ch, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "No response received") {
		t.Errorf("expected notice in result, got %q", result)
	}
}

func TestRenderText_MatchesStreamedOutput(t *testing.T) {
	answer := "line one\nline two\n\nline three\n"

	ch := make(chan api.StreamDelta, 2)
	ch <- api.StreamDelta{Token: answer}
	ch <- api.StreamDelta{Done: true}
	close(ch)
	var streamed bytes.Buffer
	if _, err := RenderStream(&streamed, ch, "  "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	RenderText(&buf, answer, "  ")
	if buf.String() != streamed.String() {
		t.Errorf("expected %q, got %q", streamed.String(), buf.String())
	}
}
