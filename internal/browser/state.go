package browser

import "github.com/sydlexius/artbrowser/internal/remoteimage"

// State is the filter and paging state of a browse session.
type State struct {
	ImageType           remoteimage.ImageType `json:"image_type"`
	Provider            string                `json:"provider"`
	IncludeAllLanguages bool                  `json:"include_all_languages"`
	StartIndex          int                   `json:"start_index"`
	PageSize            int                   `json:"page_size"`
	// Total is the record count of the last applied page.
	Total int `json:"total"`
}

// Change mutates a State in response to one UI event. It reports whether a
// re-fetch is needed.
type Change func(st *State) bool

// SetImageType switches the type filter. Providers depend on the type, so
// the provider filter is cleared.
func SetImageType(t remoteimage.ImageType) Change {
	return func(st *State) bool {
		st.ImageType = t
		st.Provider = ""
		st.resetPaging()
		return true
	}
}

// SetProvider filters by provider name; "" means all providers.
func SetProvider(name string) Change {
	return func(st *State) bool {
		st.Provider = name
		st.resetPaging()
		return true
	}
}

// SetIncludeAllLanguages toggles the language filter.
func SetIncludeAllLanguages(include bool) Change {
	return func(st *State) bool {
		st.IncludeAllLanguages = include
		st.resetPaging()
		return true
	}
}

// NextPage advances one page. It is a no-op on the last page.
func NextPage() Change {
	return func(st *State) bool {
		if st.StartIndex+st.PageSize >= st.Total {
			return false
		}
		st.StartIndex += st.PageSize
		return true
	}
}

// PreviousPage goes back one page. It is a no-op on the first page.
func PreviousPage() Change {
	return func(st *State) bool {
		if st.StartIndex == 0 {
			return false
		}
		st.StartIndex = max(st.StartIndex-st.PageSize, 0)
		return true
	}
}

// resetPaging returns to the first page of a new result set. The old total
// no longer describes it, so Next stays disabled until a page lands.
func (st *State) resetPaging() {
	st.StartIndex = 0
	st.Total = 0
}

// applyTotal records the total of a fetched page and pulls StartIndex back
// onto the last page when the result set shrank under it. It reports
// whether StartIndex moved and the page must be fetched again.
func (st *State) applyTotal(total int) bool {
	st.Total = total
	if st.StartIndex < total || st.StartIndex == 0 {
		return false
	}
	if total == 0 || st.PageSize <= 0 {
		st.StartIndex = 0
		return false
	}
	st.StartIndex = (total - 1) / st.PageSize * st.PageSize
	return true
}

func (st State) query(itemID string) remoteimage.Query {
	return remoteimage.Query{
		ItemID:              itemID,
		Type:                st.ImageType,
		ProviderName:        st.Provider,
		IncludeAllLanguages: st.IncludeAllLanguages,
		StartIndex:          st.StartIndex,
		Limit:               st.PageSize,
	}
}
