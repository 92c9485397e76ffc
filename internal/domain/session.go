package domain

import "time"

// Roles válidos para un mensaje de chat.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession es una conversación perteneciente a un equipo.
// Los mensajes se conservan en orden de inserción.
type ChatSession struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	TeamID    string     `json:"team_id"`
	CreatedAt time.Time  `json:"created_at"`
	Messages  []*Message `json:"messages"`
}

// LastMessage devuelve el último mensaje de la sesión, o nil si está vacía.
func (s *ChatSession) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// Message es un turno individual dentro de una sesión. Mientras un stream
// está abierto el contenido del último mensaje assistant se reemplaza
// completo con cada incremento; al cerrar el stream queda congelado.
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Citation atribuye parte de una respuesta a un documento fuente.
// Vive únicamente dentro de su Message.
type Citation struct {
	FileName       string  `json:"file_name"`
	Page           int     `json:"page"`
	ChunkID        string  `json:"chunk_id,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}
