// Package tally turns a poll into a vote distribution. Simulate produces a
// reproducible distribution derived only from the poll identity, used while
// the poll is not backed by an on-chain voting contract. FromCounts builds
// the same result shape from real on-chain counters.
package tally

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	minTotalVotes  = 20
	totalVoteRange = 280
	minShare       = 0.10
	maxShare       = 0.60
	maxInt32       = math.MaxInt32
)

// Result is the vote distribution of a poll. Percentages sum to exactly 100
// whenever there is at least one option.
type Result struct {
	TotalVotes  uint64   `json:"totalVotes"`
	Votes       []uint64 `json:"votes"`
	Percentages []int    `json:"percentages"`
}

// Simulate returns the deterministic distribution of a poll. The same id and
// title always produce the same numbers. TotalVotes is in [20, 300).
func Simulate(id, title string, optionCount int) *Result {
	if optionCount <= 0 {
		return &Result{Votes: []uint64{}, Percentages: []int{}}
	}
	r := randomChain(title+id, optionCount+1)
	total := int64(math.Floor(minTotalVotes + r[0]*totalVoteRange))

	votes := make([]uint64, optionCount)
	remaining := total
	for i := 0; i < optionCount-1; i++ {
		lo := math.Floor(float64(remaining) * minShare)
		hi := math.Floor(float64(remaining) * maxShare)
		v := int64(math.Floor(lo + r[i+1]*(hi-lo)))
		votes[i] = uint64(v)
		remaining -= v
	}
	votes[optionCount-1] = uint64(max(remaining, 0))

	return &Result{
		TotalVotes:  uint64(total),
		Votes:       votes,
		Percentages: percentages(votes, uint64(total)),
	}
}

// FromCounts builds a result from per-option vote counters, as returned by
// the voting contract.
func FromCounts(counts []*big.Int) *Result {
	res := &Result{Votes: make([]uint64, len(counts)), Percentages: []int{}}
	for i, c := range counts {
		if c == nil {
			continue
		}
		res.Votes[i] = c.Uint64()
		res.TotalVotes += res.Votes[i]
	}
	if len(counts) == 0 {
		return res
	}
	if res.TotalVotes == 0 {
		res.Percentages = evenSplit(len(counts))
		return res
	}
	res.Percentages = percentages(res.Votes, res.TotalVotes)
	return res
}

// randomChain returns n values in [0,1). Each value is the normalized hash of
// the running seed, and the running seed is then extended with that value, so
// the sequence only depends on the initial seed.
func randomChain(seed string, n int) []float64 {
	values := make([]float64, n)
	running := seed
	for i := range values {
		values[i] = seededRandom(running)
		running += numberString(values[i])
	}
	return values
}

// numberString formats v with the shortest digits that round trip, in fixed
// notation for 1e-6 <= |v| < 1e21 and in exponent notation otherwise
// (1.5e-7, 2e+21), the way ECMAScript Number to string conversion does.
func numberString(v float64) string {
	if v == 0 {
		return "0"
	}
	if a := math.Abs(v); a >= 1e-6 && a < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(v, 'e', -1, 64), "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// seededRandom hashes the UTF-16 code units of s with the classic 31
// multiplier, truncating the accumulator to a signed 32-bit integer on every
// step, and normalizes the absolute value by 2^31-1.
func seededRandom(s string) float64 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}
	v := math.Abs(float64(h)) / maxInt32
	if v >= 1 {
		// |math.MinInt32| is the only value above 2^31-1
		v = math.Nextafter(1, 0)
	}
	return v
}

// percentages rounds each share to an integer percentage and fixes the
// result so that it sums to exactly 100.
func percentages(votes []uint64, total uint64) []int {
	n := len(votes)
	pct := make([]int, n)
	if n == 0 {
		return pct
	}
	if total == 0 {
		return evenSplit(n)
	}
	sum := 0
	for i, v := range votes {
		pct[i] = int(math.Round(float64(v) / float64(total) * 100))
		sum += pct[i]
	}
	if sum == 100 {
		return pct
	}

	// first try: move the surplus or deficit to the largest share
	largest := 0
	for i := range pct {
		if pct[i] > pct[largest] {
			largest = i
		}
	}
	pct[largest] += 100 - sum
	if pct[largest] >= 0 {
		return pct
	}

	// fallback: greedy allocation left to right, the last option takes the rest
	remaining := 100
	for i := 0; i < n-1; i++ {
		p := int(math.Round(float64(votes[i]) / float64(total) * 100))
		p = min(max(p, 1), max(remaining-(n-1-i), 0))
		pct[i] = p
		remaining -= p
	}
	pct[n-1] = remaining
	return pct
}

// evenSplit spreads 100 across n options, earlier options take the remainder.
func evenSplit(n int) []int {
	pct := make([]int, n)
	for i := range pct {
		pct[i] = 100 / n
		if i < 100%n {
			pct[i]++
		}
	}
	return pct
}
