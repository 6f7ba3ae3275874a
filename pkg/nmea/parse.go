package nmea

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// atoi reads an optionally negative run of leading digits, anything after it is ignored
func atoi(term []byte) int32 {
	neg := len(term) > 0 && term[0] == '-'
	if neg {
		term = term[1:]
	}

	var v int32
	for _, c := range term {
		if !isDigit(c) {
			break
		}
		v = v*10 + int32(c-'0')
	}

	if neg {
		return -v
	}
	return v
}

// hexNibble accepts upper and lower case digits
func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func parseChecksum(term []byte) (byte, bool) {
	if len(term) < 2 {
		return 0, false
	}

	hi, ok := hexNibble(term[0])
	if !ok {
		return 0, false
	}
	lo, ok := hexNibble(term[1])
	if !ok {
		return 0, false
	}

	return hi<<4 | lo, true
}

// parseDecimal returns hundredths. Only the first two fractional digits are
// taken, the rest is truncated, not rounded.
func parseDecimal(term []byte) int32 {
	neg := len(term) > 0 && term[0] == '-'
	if neg {
		term = term[1:]
	}

	ret := 100 * atoi(term)

	i := 0
	for i < len(term) && isDigit(term[i]) {
		i++
	}

	if i < len(term) && term[i] == '.' {
		if i+1 < len(term) && isDigit(term[i+1]) {
			ret += 10 * int32(term[i+1]-'0')
			if i+2 < len(term) && isDigit(term[i+2]) {
				ret += int32(term[i+2] - '0')
			}
		}
	}

	if neg {
		return -ret
	}
	return ret
}

// parseDegrees converts ddmm.mmmm into millionths of a degree
func parseDegrees(term []byte) int32 {
	left := uint32(atoi(term))
	hundredThousandthsOfMinute := (left % 100) * 100000

	i := 0
	for i < len(term) && isDigit(term[i]) {
		i++
	}

	if i < len(term) && term[i] == '.' {
		mult := uint32(10000)
		for i++; i < len(term) && isDigit(term[i]); i++ {
			hundredThousandthsOfMinute += mult * uint32(term[i]-'0')
			mult /= 10
		}
	}

	return int32((left/100)*1000000 + (hundredThousandthsOfMinute+3)/6)
}

// FixedPointDecimal parses "037.14" into 3714, truncating after the second fractional digit
func FixedPointDecimal(s string) int32 {
	return parseDecimal([]byte(s))
}

// DegreesMinutes parses "4807.038" into 48117300 millionths of a degree
func DegreesMinutes(s string) int32 {
	return parseDegrees([]byte(s))
}
