// Package codec converts between drawing code pages and UTF-8.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCodePage is used for unknown code page names.
const DefaultCodePage = "ANSI_1252"

var codePages = map[string]encoding.Encoding{
	"ANSI_874":   charmap.Windows874,
	"ANSI_932":   japanese.ShiftJIS,
	"ANSI_936":   simplifiedchinese.GBK,
	"ANSI_949":   korean.EUCKR,
	"ANSI_950":   traditionalchinese.Big5,
	"ANSI_1250":  charmap.Windows1250,
	"ANSI_1251":  charmap.Windows1251,
	"ANSI_1252":  charmap.Windows1252,
	"ANSI_1253":  charmap.Windows1253,
	"ANSI_1254":  charmap.Windows1254,
	"ANSI_1255":  charmap.Windows1255,
	"ANSI_1256":  charmap.Windows1256,
	"ANSI_1257":  charmap.Windows1257,
	"ANSI_1258":  charmap.Windows1258,
	"DOS437":     charmap.CodePage437,
	"DOS850":     charmap.CodePage850,
	"DOS852":     charmap.CodePage852,
	"DOS855":     charmap.CodePage855,
	"DOS860":     charmap.CodePage860,
	"DOS863":     charmap.CodePage863,
	"DOS865":     charmap.CodePage865,
	"DOS866":     charmap.CodePage866,
	"ISO8859-1":  charmap.ISO8859_1,
	"ISO8859-2":  charmap.ISO8859_2,
	"ISO8859-3":  charmap.ISO8859_3,
	"ISO8859-4":  charmap.ISO8859_4,
	"ISO8859-5":  charmap.ISO8859_5,
	"ISO8859-6":  charmap.ISO8859_6,
	"ISO8859-7":  charmap.ISO8859_7,
	"ISO8859-8":  charmap.ISO8859_8,
	"ISO8859-9":  charmap.ISO8859_9,
	"MACINTOSH":  charmap.Macintosh,
	"GB2312":     simplifiedchinese.HZGB2312,
	"BIG5":       traditionalchinese.Big5,
	"UTF-8":      nil,
	"UTF8":       nil,
	"ANSI_65001": nil,
}

// dwgCodePages maps the code page number stored in DWG file headers to a
// code page name.
var dwgCodePages = map[int]string{
	0:  "UTF-8",
	1:  "ANSI_1252",
	2:  "ISO8859-1",
	3:  "ISO8859-2",
	4:  "ISO8859-3",
	5:  "ISO8859-4",
	6:  "ISO8859-5",
	7:  "ISO8859-6",
	8:  "ISO8859-7",
	9:  "ISO8859-8",
	10: "ISO8859-9",
	11: "DOS437",
	12: "DOS850",
	13: "DOS852",
	14: "DOS855",
	16: "DOS860",
	18: "DOS863",
	20: "DOS865",
	22: "ANSI_932",
	23: "MACINTOSH",
	24: "BIG5",
	25: "ANSI_949",
	27: "DOS866",
	28: "ANSI_1250",
	29: "ANSI_1251",
	30: "ANSI_1252",
	31: "GB2312",
	32: "ANSI_1253",
	33: "ANSI_1254",
	34: "ANSI_1255",
	35: "ANSI_1256",
	36: "ANSI_1257",
	37: "ANSI_874",
	38: "ANSI_932",
	39: "ANSI_936",
	40: "ANSI_949",
	41: "ANSI_950",
	44: "ANSI_1258",
}

// CodePageFromDWG returns the code page name for a DWG header code page
// number, falling back to DefaultCodePage.
func CodePageFromDWG(n int) string {
	if name, ok := dwgCodePages[n]; ok {
		return name
	}
	return DefaultCodePage
}

// Codec converts text of one code page.
type Codec struct {
	name string
	enc  encoding.Encoding // nil for UTF-8
}

// New returns a codec for the named code page. Names are matched case
// insensitively; unknown names select DefaultCodePage.
func New(name string) *Codec {
	key := strings.ToUpper(strings.TrimSpace(name))
	enc, ok := codePages[key]
	if !ok {
		key = DefaultCodePage
		enc = codePages[key]
	}
	if key == "UTF8" || key == "ANSI_65001" {
		key = "UTF-8"
	}
	return &Codec{name: key, enc: enc}
}

// Name returns the canonical code page name.
func (c *Codec) Name() string { return c.name }

// UTF8 reports whether the codec passes bytes through unchanged.
func (c *Codec) UTF8() bool { return c.enc == nil }

// Decode converts code page bytes to a string and expands \U+XXXX escapes.
func (c *Codec) Decode(b []byte) string {
	var s string
	if c.enc == nil {
		s = strings.ToValidUTF8(string(b), "�")
	} else {
		out, err := c.enc.NewDecoder().Bytes(b)
		if err != nil {
			s = strings.ToValidUTF8(string(b), "�")
		} else {
			s = string(out)
		}
	}
	return expandEscapes(s)
}

// Encode converts s to the code page. Runes the code page cannot represent
// are written as \U+XXXX escapes.
func (c *Codec) Encode(s string) []byte {
	if c.enc == nil {
		return []byte(s)
	}
	result := make([]byte, 0, len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			result = append(result, byte(r))
			continue
		}
		// a fresh encoder per rune keeps a failure from poisoning the rest
		b, err := c.enc.NewEncoder().Bytes([]byte(string(r)))
		if err != nil || len(b) == 0 {
			result = append(result, escape(r)...)
			continue
		}
		result = append(result, b...)
	}
	return result
}

// DecodeUTF16LE converts little endian UTF-16 to a string, stopping at the
// first NUL.
func (c *Codec) DecodeUTF16LE(b []byte) string {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return ""
	}
	return string(out)
}

// EncodeUTF16LE converts s to little endian UTF-16 without a BOM.
func EncodeUTF16LE(s string) []byte {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return out
}

func escape(r rune) string {
	if r > 0xFFFF {
		return "?"
	}
	return fmt.Sprintf("\\U+%04X", r)
}

// expandEscapes replaces \U+XXXX sequences (four hex digits) by the rune
// they name.
func expandEscapes(s string) string {
	if !strings.Contains(s, `\U+`) {
		return s
	}
	var sb strings.Builder
	for {
		i := strings.Index(s, `\U+`)
		if i < 0 || len(s) < i+7 {
			sb.WriteString(s)
			return sb.String()
		}
		v, err := strconv.ParseUint(s[i+3:i+7], 16, 32)
		if err != nil {
			sb.WriteString(s[:i+3])
			s = s[i+3:]
			continue
		}
		sb.WriteString(s[:i])
		sb.WriteRune(rune(v))
		s = s[i+7:]
	}
}
