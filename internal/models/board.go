package models

// Ticket is a card on the external case board.
type Ticket struct {
	ID       string   `json:"id"`
	ListID   string   `json:"idList,omitempty"`
	Name     string   `json:"name"`
	Desc     string   `json:"desc,omitempty"`
	URL      string   `json:"url,omitempty"`
	LabelIDs []string `json:"idLabels,omitempty"`
}

// BoardList is a column of the case board.
type BoardList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BoardLabel is a label defined on the case board.
type BoardLabel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CardRequest describes a ticket to create.
type CardRequest struct {
	ListID      string
	Title       string
	Description string
	LabelIDs    []string
}
