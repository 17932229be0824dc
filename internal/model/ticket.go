package model

// TicketRequest is the payload sent to the ticketing backend.
type TicketRequest struct {
	Subject        string   `json:"subject"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	Classification string   `json:"classification"`
	ContactRef     string   `json:"contact_ref"`
	DepartmentRef  string   `json:"department_ref"`

	// Origin fields carried for incident registration after delivery.
	MessageID  string `json:"message_id"`
	ContextKey string `json:"context_key"`
	Sender     string `json:"sender"`
}

// Department is a backend routing target.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
