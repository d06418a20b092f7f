package channel

import (
	"strings"
	"testing"
)

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("hello", 10)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("chunks = %q", chunks)
	}
	if len(splitMessage("", 10)) != 0 {
		t.Fatal("empty text should yield no chunks")
	}
}

func TestSplitMessage_PrefersNewlines(t *testing.T) {
	text := "aaaaaaa\nbbbbbbbbbbbb"
	chunks := splitMessage(text, 10)
	if chunks[0] != "aaaaaaa" {
		t.Fatalf("first chunk = %q", chunks[0])
	}
	if strings.Join(chunks, "") != text {
		t.Fatalf("chunks lose text: %q", chunks)
	}
	for _, c := range chunks {
		if len(c) > 10 {
			t.Fatalf("chunk too long: %q", c)
		}
	}
}

func TestSplitMessage_HardCutWithoutNewline(t *testing.T) {
	chunks := splitMessage(strings.Repeat("x", 25), 10)
	if len(chunks) != 3 || len(chunks[0]) != 10 || len(chunks[2]) != 5 {
		t.Fatalf("chunks = %q", chunks)
	}
}

func TestNewTelegram_Defaults(t *testing.T) {
	tg := NewTelegram(TelegramConfig{Token: "t"})
	if tg.parseMode != "Markdown" || !tg.allowed("123") || tg.Name() != "telegram" {
		t.Fatalf("unexpected defaults: %+v", tg)
	}
	tg = NewTelegram(TelegramConfig{Allowed: func(id string) bool { return id == "1" }})
	if tg.allowed("2") {
		t.Fatal("allow list ignored")
	}
}
