package codec

import (
	"bytes"
	"testing"
)

func TestCodePageFromDWG(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{30, "ANSI_1252"},
		{28, "ANSI_1250"},
		{29, "ANSI_1251"},
		{39, "ANSI_936"},
		{999, DefaultCodePage},
	}
	for _, tt := range tests {
		if got := CodePageFromDWG(tt.n); got != tt.want {
			t.Errorf("CodePageFromDWG(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	if c := New("ansi_1250"); c.Name() != "ANSI_1250" {
		t.Errorf("Name = %q, want ANSI_1250", c.Name())
	}
	if c := New("bogus"); c.Name() != DefaultCodePage {
		t.Errorf("Name = %q, want %q", c.Name(), DefaultCodePage)
	}
	if c := New("utf8"); !c.UTF8() || c.Name() != "UTF-8" {
		t.Errorf("New(utf8) = %q utf8=%v, want UTF-8 passthrough", c.Name(), c.UTF8())
	}
}

func TestDecode(t *testing.T) {
	// Hungarian "ő" is 0xF5 in Windows-1250
	c := New("ANSI_1250")
	if got := c.Decode([]byte{'t', 0xF5}); got != "tő" {
		t.Errorf("Decode = %q, want %q", got, "tő")
	}

	c = New("ANSI_1252")
	if got := c.Decode([]byte(`A\U+0151B`)); got != "AőB" {
		t.Errorf("Decode escape = %q, want %q", got, "AőB")
	}
	if got := c.Decode([]byte(`bad\U+ZZZZ`)); got != `bad\U+ZZZZ` {
		t.Errorf("Decode bad escape = %q, want unchanged", got)
	}
}

func TestEncode(t *testing.T) {
	c := New("ANSI_1252")
	got := c.Encode("é–ő")
	want := []byte{0xE9, 0x96}
	want = append(want, `\U+0151`...)
	if !bytes.Equal(got, want) {
		t.Errorf("Encode = % x, want % x", got, want)
	}
	if back := c.Decode(got); back != "é–ő" {
		t.Errorf("Decode(Encode) = %q, want %q", back, "é–ő")
	}
}

func TestUTF16(t *testing.T) {
	c := New("UTF-8")
	b := EncodeUTF16LE("Réteg")
	b = append(b, 0, 0, 'x', 0)
	if got := c.DecodeUTF16LE(b); got != "Réteg" {
		t.Errorf("DecodeUTF16LE = %q, want %q", got, "Réteg")
	}
}
