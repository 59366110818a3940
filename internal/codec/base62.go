package codec

// Base-62 positional encoding of sequence values into short codes.
//
// The alphabet is fixed: digits first, then upper case, then lower case.
// Changing it would silently remap every code ever issued, so treat it as
// frozen.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = int64(len(alphabet))

// Encode converts a positive sequence value into its short code. The mapping
// is injective: distinct inputs always produce distinct codes, which is what
// makes generated codes collision-free without any lookup.
//
// The sequence counter starts at 1, so n == 0 never occurs in practice;
// Encode(0) returns "0" anyway to stay total over non-negative inputs.
func Encode(n int64) string {
	if n == 0 {
		return "0"
	}

	// int64 never needs more than 11 base-62 digits.
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}
