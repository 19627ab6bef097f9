package browse

// Pagination tracks whether the latest applied response has a following page.
// The page number itself lives in FilterState.
type Pagination struct {
	hasNextPage bool
}

// Update records the page metadata of an applied result.
func (p *Pagination) Update(result ResultPage) {
	p.hasNextPage = result.HasNextPage
}

func (p *Pagination) HasNextPage() bool {
	return p.hasNextPage
}

// Next returns the following page, or false when there is none or a request is pending.
func (p *Pagination) Next(page int, pending bool) (int, bool) {
	if !p.hasNextPage || pending {
		return page, false
	}
	return page + 1, true
}

// Previous returns the preceding page, or false on the first page or while a request is pending.
func (p *Pagination) Previous(page int, pending bool) (int, bool) {
	if page <= 1 || pending {
		return page, false
	}
	return page - 1, true
}
