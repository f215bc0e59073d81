package upload

import (
	"errors"
	"strings"
	"testing"
)

func TestGatekeeperAccepts(t *testing.T) {
	g := NewGatekeeper(0)
	content := []byte("email,first_name\na@x.com,Ann\n")

	if err := g.Check("recipients.csv", int64(len(content)), content); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	// extension check is case-insensitive
	if err := g.Check("RECIPIENTS.CSV", int64(len(content)), content); err != nil {
		t.Fatalf("Check failed for uppercase extension: %v", err)
	}
	// tab-separated passes the sniff too
	tsv := []byte("email\tfirst_name\na@x.com\tAnn\n")
	if err := g.Check("recipients.csv", int64(len(tsv)), tsv); err != nil {
		t.Fatalf("Check failed for TSV content: %v", err)
	}
}

func TestGatekeeperRejects(t *testing.T) {
	g := NewGatekeeper(100)
	valid := []byte("email,first_name\na@x.com,Ann\n")

	tests := []struct {
		name     string
		filename string
		size     int64
		content  []byte
		wantErr  error
	}{
		{"wrong extension", "recipients.txt", 10, valid, ErrBadExtension},
		{"no extension", "recipients", 10, valid, ErrBadExtension},
		{"too large", "recipients.csv", 101, valid, ErrTooLarge},
		{"not utf8", "recipients.csv", 4, []byte{0xff, 0xfe, 0x00, 0x41}, ErrNotUTF8},
		{"empty", "recipients.csv", 3, []byte("  \n"), ErrEmpty},
		{"no delimiter", "recipients.csv", 5, []byte("email"), ErrNotCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.filename, tt.size, tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGatekeeperSizeInMessage(t *testing.T) {
	g := NewGatekeeper(50)
	content := []byte(strings.Repeat("a,b\n", 20))

	err := g.Check("big.csv", int64(len(content)), content)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Check() = %v, want ErrTooLarge", err)
	}
	if !strings.Contains(err.Error(), "max 50 bytes") {
		t.Errorf("error %q does not state the limit", err)
	}
}

func TestGatekeeperDefaultMaxSize(t *testing.T) {
	g := NewGatekeeper(-1)
	if g.MaxSize() != DefaultMaxSize {
		t.Errorf("MaxSize() = %d, want %d", g.MaxSize(), DefaultMaxSize)
	}
}
