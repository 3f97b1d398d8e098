// Package mission holds the static mission catalog and per-match assignment.
package mission

import (
	"math/rand/v2"
)

// PerMatch is how many missions a match gets.
const PerMatch = 3

type Mission struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

var catalog = []Mission{
	{ID: "M01", Title: "Share your favorite spot on campus"},
	{ID: "M02", Title: "Swap your go-to study playlist"},
	{ID: "M03", Title: "Grab coffee between classes"},
	{ID: "M04", Title: "Trade your best exam survival tip"},
	{ID: "M05", Title: "Recommend a canteen meal"},
	{ID: "M06", Title: "Tell each other your org or club"},
	{ID: "M07", Title: "Share a photo of today's view"},
	{ID: "M08", Title: "Pick a movie to watch this weekend"},
	{ID: "M09", Title: "Walk around the campus together"},
	{ID: "M10", Title: "Share your dream after graduation"},
	{ID: "M11", Title: "Attend a campus event together"},
	{ID: "M12", Title: "Write each other a short compliment"},
}

var byID = func() map[string]Mission {
	m := make(map[string]Mission, len(catalog))
	for _, ms := range catalog {
		m[ms.ID] = ms
	}
	return m
}()

// Catalog returns a copy of every mission.
func Catalog() []Mission {
	return append([]Mission(nil), catalog...)
}

// Lookup returns the mission with id.
func Lookup(id string) (Mission, bool) {
	m, ok := byID[id]
	return m, ok
}

// Assign draws PerMatch distinct mission ids without replacement.
// A nil rng uses the global source.
func Assign(rng *rand.Rand) [PerMatch]string {
	var perm []int
	if rng != nil {
		perm = rng.Perm(len(catalog))
	} else {
		perm = rand.Perm(len(catalog))
	}

	var out [PerMatch]string
	for i := range out {
		out[i] = catalog[perm[i]].ID
	}
	return out
}
