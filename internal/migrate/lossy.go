// ABOUTME: Lossy UTF-8 decoding of child diagnostic output
// ABOUTME: Invalid byte sequences become U+FFFD and decoding never fails

package migrate

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
)

func decodeLossy(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}
