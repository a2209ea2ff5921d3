package glpi

// Ticket holds the ticket fields the summarizer needs, as returned by GLPI.
type Ticket struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Status  int    `json:"status"`
	Date    string `json:"date"`
}

// SourceType identifies tickets in retrieval chunks and report sources.
const SourceType = "glpi_ticket"
