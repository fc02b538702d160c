package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTaka renders an integer fare with thousand separators ("Tk 1,275").
// PDF core fonts have no taka glyph, so the ASCII abbreviation is used.
func FormatTaka(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%sTk %s", sign, formatThousand(amount))
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
