package usecase

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// answerFieldExtractor pulls the decoded value of the "answer" field out of
// a partially received JSON object. Each call re-scans the accumulated raw
// buffer and returns only the text not yet handed out, so callers can emit
// deltas whose concatenation equals the final answer string.
type answerFieldExtractor struct {
	emitted int // bytes of decoded text already returned
}

func (e *answerFieldExtractor) next(raw string) string {
	decoded := decodeAnswerField(raw)

	// Hold back a trailing incomplete rune until more bytes arrive.
	end := len(decoded)
	for end > e.emitted {
		r, size := utf8.DecodeLastRuneInString(decoded[:end])
		if r != utf8.RuneError || size != 1 {
			break
		}
		end--
	}

	if end <= e.emitted {
		return ""
	}
	delta := decoded[e.emitted:end]
	e.emitted = end
	return delta
}

// decodeAnswerField locates the "answer" string value and decodes as much
// of it as the buffer currently holds. Incomplete escape sequences at the
// buffer edge are left undecoded; a later re-scan picks them up.
func decodeAnswerField(raw string) string {
	key := strings.Index(raw, `"answer"`)
	if key < 0 {
		return ""
	}
	rest := raw[key+len(`"answer"`):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = rest[colon+1:]
	open := strings.Index(rest, `"`)
	if open < 0 {
		return ""
	}
	body := rest[open+1:]

	var b strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		if c == '"' {
			break
		}
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(body) {
			break
		}
		switch body[i+1] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'u':
			if i+6 > len(body) {
				return b.String()
			}
			v, err := strconv.ParseUint(body[i+2:i+6], 16, 32)
			if err != nil {
				return b.String()
			}
			r := rune(v)
			i += 6
			if utf16.IsSurrogate(r) {
				if i+6 > len(body) || body[i] != '\\' || body[i+1] != 'u' {
					return b.String()
				}
				v2, err := strconv.ParseUint(body[i+2:i+6], 16, 32)
				if err != nil {
					return b.String()
				}
				r = utf16.DecodeRune(r, rune(v2))
				i += 6
			}
			b.WriteRune(r)
			continue
		default:
			b.WriteByte(body[i+1])
		}
		i += 2
	}
	return b.String()
}
