package audit

import "time"

// TimelineFilters narrows the audit trail.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one recorded RBAC mutation.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	Actor    string         `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo carries keyset-free paging metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

// WindowParams is the query handed to a Repository. Zero times and empty
// strings disable the matching filter; a zero Limit returns every row.
type WindowParams struct {
	From   time.Time
	To     time.Time
	Actor  string
	Entity string
	Action string
	Offset int
	Limit  int
}

func (p WindowParams) matches(row TimelineRow) bool {
	if !p.From.IsZero() && row.At.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && !row.At.Before(p.To) {
		return false
	}
	if p.Actor != "" && row.Actor != p.Actor {
		return false
	}
	if p.Entity != "" && row.Entity != p.Entity {
		return false
	}
	if p.Action != "" && row.Action != p.Action {
		return false
	}
	return true
}
