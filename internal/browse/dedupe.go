package browse

// Entity is one catalog item as shown in a result list.
type Entity struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"imageUrl"`
	Score    float64 `json:"score"`
}

// ResultPage is the applied result of one query. It is replaced as a whole, never merged.
type ResultPage struct {
	Items       []Entity `json:"items"`
	Page        int      `json:"page"`
	HasNextPage bool     `json:"hasNextPage"`
}

// Dedupe drops entities whose id already appeared earlier in the same response,
// keeping first-occurrence order. It never looks across responses.
func Dedupe(entities []Entity) []Entity {
	seen := make(map[int]struct{}, len(entities))
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
