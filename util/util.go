package util

import (
	"math/rand"
	"strconv"
	"time"
)

func RandomLowerAphaNumString(n int) string {
	rand.Seed(time.Now().UnixNano())

	var letter = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

	b := make([]rune, n)
	for i := range b {
		b[i] = letter[rand.Intn(len(letter))]
	}
	return string(b)
}

// FormatSupport formats a support fraction with fixed precision
// so that equal thresholds always produce equal strings.
func FormatSupport(support float64) string {
	return strconv.FormatFloat(support, 'f', SupportPrecision, 64)
}
