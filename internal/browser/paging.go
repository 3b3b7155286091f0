package browser

// Paging describes the paging controls for one rendered page.
type Paging struct {
	StartIndex       int  `json:"start_index"`
	PageSize         int  `json:"page_size"`
	Total            int  `json:"total"`
	StartDisplay     int  `json:"start_display"`
	RecordsEnd       int  `json:"records_end"`
	ShowControls     bool `json:"show_controls"`
	PreviousDisabled bool `json:"previous_disabled"`
	NextDisabled     bool `json:"next_disabled"`
}

// ComputePaging derives the paging controls for a page starting at
// startIndex. Controls are only shown when more than one page exists.
func ComputePaging(startIndex, pageSize, total int) Paging {
	p := Paging{
		StartIndex:       startIndex,
		PageSize:         pageSize,
		Total:            total,
		RecordsEnd:       min(startIndex+pageSize, total),
		ShowControls:     total > pageSize,
		PreviousDisabled: startIndex == 0,
		NextDisabled:     startIndex+pageSize >= total,
	}
	if total > 0 {
		p.StartDisplay = startIndex + 1
	}
	return p
}
