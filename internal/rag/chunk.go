package rag

import "github.com/mohammad-safakhou/glpisum/internal/glpi"

// Chunk is one retrievable piece of ticket content.
type Chunk struct {
	Text       string `json:"text"`
	SourceID   int    `json:"source_id"`
	SourceType string `json:"source_type"`
}

// ChunkTickets partitions each ticket's content, tagging every element with
// the ticket it came from.
func ChunkTickets(tickets []glpi.Ticket) []Chunk {
	var chunks []Chunk
	for _, t := range tickets {
		for _, text := range Partition(t.Content) {
			chunks = append(chunks, Chunk{Text: text, SourceID: t.ID, SourceType: glpi.SourceType})
		}
	}
	return chunks
}
