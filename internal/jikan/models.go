package jikan

// ListResponse is the envelope of every paged Jikan list endpoint.
type ListResponse struct {
	Pagination *Pagination `json:"pagination"`
	Data       []Anime     `json:"data"`
}

// Pagination is the paging metadata attached to list responses.
type Pagination struct {
	LastVisiblePage int             `json:"last_visible_page"`
	HasNextPage     bool            `json:"has_next_page"`
	CurrentPage     int             `json:"current_page"`
	Items           PaginationItems `json:"items"`
}

// PaginationItems holds item counts for the current query.
type PaginationItems struct {
	Count   int `json:"count"`
	Total   int `json:"total"`
	PerPage int `json:"per_page"`
}

// Anime is a single anime entry as returned by Jikan.
type Anime struct {
	MalID         int      `json:"mal_id"`
	URL           string   `json:"url"`
	Images        Images   `json:"images"`
	Title         string   `json:"title"`
	TitleEnglish  string   `json:"title_english"`
	TitleJapanese string   `json:"title_japanese"`
	Type          string   `json:"type"`
	Episodes      int      `json:"episodes"`
	Status        string   `json:"status"`
	Score         float64  `json:"score"`
	ScoredBy      int      `json:"scored_by"`
	Rank          int      `json:"rank"`
	Synopsis      string   `json:"synopsis"`
	Season        string   `json:"season"`
	Year          int      `json:"year"`
	Genres        []Entry  `json:"genres"`
	Studios       []Entry  `json:"studios"`
	Themes        []Entry  `json:"themes"`
	Demographics  []Entry  `json:"demographics"`
	Trailer       *Trailer `json:"trailer,omitempty"`
}

// Images holds image URLs per format.
type Images struct {
	JPG  ImageSet `json:"jpg"`
	WebP ImageSet `json:"webp"`
}

// ImageSet holds image URLs in different sizes.
type ImageSet struct {
	ImageURL      string `json:"image_url"`
	SmallImageURL string `json:"small_image_url"`
	LargeImageURL string `json:"large_image_url"`
}

// Entry is a MAL resource reference (genre, studio, theme).
type Entry struct {
	MalID int    `json:"mal_id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// Trailer is an embedded trailer reference.
type Trailer struct {
	YoutubeID string `json:"youtube_id"`
	URL       string `json:"url"`
}

// GenreResponse is the /genres/anime response.
type GenreResponse struct {
	Data []GenreEntry `json:"data"`
}

// GenreEntry is a single taxonomy entry.
type GenreEntry struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// AnimeResponse is the /anime/{id} response.
type AnimeResponse struct {
	Data *Anime `json:"data"`
}

// NormalizedAnime is the list-card view of an anime.
type NormalizedAnime struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"imageUrl"`
	Score    float64 `json:"score"`
}

// NormalizedPage is one page of normalized list results.
type NormalizedPage struct {
	Items       []NormalizedAnime `json:"items"`
	Page        int               `json:"page"`
	HasNextPage bool              `json:"hasNextPage"`
	Total       int               `json:"total"`
}

// NormalizedGenre is a genre usable as a filter value.
type NormalizedGenre struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NormalizedAnimeDetail is the detail view of an anime.
type NormalizedAnimeDetail struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	TitleEnglish  string   `json:"titleEnglish,omitempty"`
	TitleJapanese string   `json:"titleJapanese,omitempty"`
	ImageURL      string   `json:"imageUrl"`
	Score         float64  `json:"score"`
	Rank          int      `json:"rank,omitempty"`
	Type          string   `json:"type,omitempty"`
	Status        string   `json:"status,omitempty"`
	Episodes      int      `json:"episodes,omitempty"`
	Season        string   `json:"season,omitempty"`
	Year          int      `json:"year,omitempty"`
	Synopsis      string   `json:"synopsis,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Studios       []string `json:"studios,omitempty"`
	TrailerURL    string   `json:"trailerUrl,omitempty"`
}

// Resource is a reference to a character or person with its images.
type Resource struct {
	MalID  int    `json:"mal_id"`
	URL    string `json:"url"`
	Images Images `json:"images"`
	Name   string `json:"name"`
}

// AnimeRef is a reference to an anime embedded in character and person responses.
type AnimeRef struct {
	MalID  int    `json:"mal_id"`
	URL    string `json:"url"`
	Images Images `json:"images"`
	Title  string `json:"title"`
}

// VoiceActor is a person voicing a character in one language.
type VoiceActor struct {
	Person   Resource `json:"person"`
	Language string   `json:"language"`
}

// CastEntry is one element of the /anime/{id}/characters response.
type CastEntry struct {
	Character   Resource     `json:"character"`
	Role        string       `json:"role"`
	Favorites   int          `json:"favorites"`
	VoiceActors []VoiceActor `json:"voice_actors"`
}

// CastResponse is the /anime/{id}/characters response.
type CastResponse struct {
	Data []CastEntry `json:"data"`
}

// Appearance is an anime a character appears in, with the character's role there.
type Appearance struct {
	Role  string   `json:"role"`
	Anime AnimeRef `json:"anime"`
}

// Character is the /characters/{id}/full payload.
type Character struct {
	MalID     int          `json:"mal_id"`
	URL       string       `json:"url"`
	Images    Images       `json:"images"`
	Name      string       `json:"name"`
	NameKanji string       `json:"name_kanji"`
	Nicknames []string     `json:"nicknames"`
	Favorites int          `json:"favorites"`
	About     string       `json:"about"`
	Anime     []Appearance `json:"anime"`
	Voices    []VoiceActor `json:"voices"`
}

// CharacterResponse is the /characters/{id}/full response.
type CharacterResponse struct {
	Data *Character `json:"data"`
}

// VoiceRole is one element of the /people/{id}/voices response.
type VoiceRole struct {
	Role      string   `json:"role"`
	Anime     AnimeRef `json:"anime"`
	Character Resource `json:"character"`
}

// VoicesResponse is the /people/{id}/voices response.
type VoicesResponse struct {
	Data []VoiceRole `json:"data"`
}

// NormalizedRef is a linkable entity (anime, character or person) with its picture.
type NormalizedRef struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// NormalizedVoice is a voice actor credit.
type NormalizedVoice struct {
	Person   NormalizedRef `json:"person"`
	Language string        `json:"language"`
}

// NormalizedCastMember is a character in an anime's cast.
type NormalizedCastMember struct {
	Character   NormalizedRef     `json:"character"`
	Role        string            `json:"role"`
	VoiceActors []NormalizedVoice `json:"voiceActors,omitempty"`
}

// NormalizedAppearance is an anime a character appears in.
type NormalizedAppearance struct {
	Anime NormalizedRef `json:"anime"`
	Role  string        `json:"role"`
}

// NormalizedCharacter is the detail view of a character.
type NormalizedCharacter struct {
	ID        int                    `json:"id"`
	Name      string                 `json:"name"`
	NameKanji string                 `json:"nameKanji,omitempty"`
	ImageURL  string                 `json:"imageUrl"`
	About     string                 `json:"about,omitempty"`
	Nicknames []string               `json:"nicknames,omitempty"`
	Favorites int                    `json:"favorites"`
	Anime     []NormalizedAppearance `json:"anime"`
	Voices    []NormalizedVoice      `json:"voices"`
}

// NormalizedVoiceRole is a character a person voiced.
type NormalizedVoiceRole struct {
	Anime     NormalizedRef `json:"anime"`
	Character NormalizedRef `json:"character"`
	Role      string        `json:"role"`
}
