package room

import "crypto/rand"

// urlSafeAlphabet avoids characters that are awkward in URLs or easily
// confused when read aloud, mirroring the room-code alphabet idiom.
const urlSafeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

// randomToken returns a random string of length n drawn from alphabet using
// crypto/rand, the same code-generation idiom the registry uses for room
// codes.
func randomToken(n int, alphabet string) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}
