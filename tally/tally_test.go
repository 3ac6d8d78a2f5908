package tally

import (
	"fmt"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func sumInts(values []int) int {
	s := 0
	for _, v := range values {
		s += v
	}
	return s
}

func sumUints(values []uint64) uint64 {
	var s uint64
	for _, v := range values {
		s += v
	}
	return s
}

func TestSimulateInvariants(t *testing.T) {
	c := qt.New(t)

	for n := 1; n <= 12; n++ {
		for i := 0; i < 50; i++ {
			id := fmt.Sprintf("poll-%d-%d", n, i)
			title := fmt.Sprintf("Should we adopt proposal #%d?", i)
			res := Simulate(id, title, n)
			c.Assert(res.Votes, qt.HasLen, n)
			c.Assert(res.Percentages, qt.HasLen, n)
			c.Assert(res.TotalVotes >= 20 && res.TotalVotes < 300, qt.IsTrue,
				qt.Commentf("total votes %d out of range", res.TotalVotes))
			c.Assert(sumUints(res.Votes), qt.Equals, res.TotalVotes)
			c.Assert(sumInts(res.Percentages), qt.Equals, 100, qt.Commentf("%v", res.Percentages))
		}
	}
}

func TestSimulateDeterministic(t *testing.T) {
	c := qt.New(t)

	first := Simulate("8f14e45f-ceea-467f-a0e6-8e1c1e0d7a7b", "Community budget", 4)
	for i := 0; i < 10; i++ {
		c.Assert(Simulate("8f14e45f-ceea-467f-a0e6-8e1c1e0d7a7b", "Community budget", 4), qt.DeepEquals, first)
	}
	other := Simulate("8f14e45f-ceea-467f-a0e6-8e1c1e0d7a7c", "Community budget", 4)
	c.Assert(other, qt.Not(qt.DeepEquals), first)
}

func TestSimulateNoOptions(t *testing.T) {
	c := qt.New(t)

	res := Simulate("id", "title", 0)
	c.Assert(res.TotalVotes, qt.Equals, uint64(0))
	c.Assert(res.Votes, qt.HasLen, 0)
	c.Assert(res.Percentages, qt.HasLen, 0)
}

func TestSimulateManyOptions(t *testing.T) {
	c := qt.New(t)

	// more options than percentage points
	res := Simulate("id", "title", 150)
	c.Assert(sumUints(res.Votes), qt.Equals, res.TotalVotes)
	c.Assert(sumInts(res.Percentages), qt.Equals, 100)
	for _, p := range res.Percentages {
		c.Assert(p >= 0, qt.IsTrue)
	}
}

func TestSeededRandom(t *testing.T) {
	c := qt.New(t)

	c.Assert(seededRandom(""), qt.Equals, 0.0)
	// "a" -> 97
	c.Assert(seededRandom("a"), qt.Equals, 97.0/2147483647.0)
	// "ab" -> 97*31+98
	c.Assert(seededRandom("ab"), qt.Equals, 3105.0/2147483647.0)
	for _, s := range []string{"x", "hello world", "a much longer seed string that overflows int32"} {
		v := seededRandom(s)
		c.Assert(v >= 0 && v < 1, qt.IsTrue)
	}
}

func TestPercentagesFix(t *testing.T) {
	c := qt.New(t)

	// 1/3 each rounds to 33+33+33 = 99
	c.Assert(percentages([]uint64{1, 1, 1}, 3), qt.DeepEquals, []int{34, 33, 33})
	// 50.5 + 49.5 rounds to 51+50 = 101
	c.Assert(sumInts(percentages([]uint64{101, 99}, 200)), qt.Equals, 100)
	c.Assert(percentages([]uint64{0, 0}, 0), qt.DeepEquals, []int{50, 50})
}

func TestFromCounts(t *testing.T) {
	c := qt.New(t)

	res := FromCounts([]*big.Int{big.NewInt(3), big.NewInt(1), nil})
	c.Assert(res.TotalVotes, qt.Equals, uint64(4))
	c.Assert(res.Votes, qt.DeepEquals, []uint64{3, 1, 0})
	c.Assert(res.Percentages, qt.DeepEquals, []int{75, 25, 0})

	empty := FromCounts([]*big.Int{big.NewInt(0), big.NewInt(0), big.NewInt(0)})
	c.Assert(sumInts(empty.Percentages), qt.Equals, 100)

	none := FromCounts(nil)
	c.Assert(none.Votes, qt.HasLen, 0)
	c.Assert(none.Percentages, qt.HasLen, 0)
}

func TestSeededRandomCodeUnits(t *testing.T) {
	c := qt.New(t)

	// U+1F600 is the surrogate pair 0xD83D 0xDE00: 55357*31 + 56832
	c.Assert(seededRandom("😀"), qt.Equals, 1772899.0/2147483647.0)
	// BMP characters hash as a single unit
	c.Assert(seededRandom("é"), qt.Equals, 233.0/2147483647.0)

	r := randomChain("😀", 2)
	c.Assert(r[0], qt.Equals, 0.0008255704309910398)
	c.Assert(r[1], qt.Equals, 0.8657102458484984)
}

func TestNumberString(t *testing.T) {
	c := qt.New(t)

	for v, want := range map[float64]string{
		0:                     "0",
		0.5:                   "0.5",
		5.98e-05:              "0.0000598",
		0.000001:              "0.000001",
		1e-7:                  "1e-7",
		4.516884e-8:           "4.516884e-8",
		0.0008255704309910398: "0.0008255704309910398",
		123456789:             "123456789",
		1e21:                  "1e+21",
	} {
		c.Assert(numberString(v), qt.Equals, want, qt.Commentf("%v", v))
	}
}
