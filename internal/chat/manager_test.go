package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nexus-rag/internal/domain"
	"nexus-rag/internal/query"
	"nexus-rag/internal/stream"
)

type mockStore struct {
	saved   [][]*domain.ChatSession
	initial []*domain.ChatSession
	loadErr error
}

func (m *mockStore) Load() ([]*domain.ChatSession, error) {
	return m.initial, m.loadErr
}

func (m *mockStore) Save(sessions []*domain.ChatSession) error {
	snapshot := make([]*domain.ChatSession, len(sessions))
	copy(snapshot, sessions)
	m.saved = append(m.saved, snapshot)
	return nil
}

func TestManagerSendEndToEnd(t *testing.T) {
	ctx := context.Background()
	client := &query.MockClient{
		Fragments: []string{
			"Revenue is $5M " + stream.StartMarker[:7],
			stream.StartMarker[7:] + `{"provenance":[{"file_name":"q3.pdf","page":4}]}` + stream.EndMarker,
		},
	}
	st := &mockStore{}
	manager, err := NewManager(client, st, "team-a", nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	msg, err := manager.Send(ctx, "what is our revenue?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	sessions := manager.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d", len(sessions))
	}
	session := sessions[0]
	if session.Title != "what is our revenue?" {
		t.Fatalf("title = %q", session.Title)
	}
	if session.TeamID != "team-a" {
		t.Fatalf("team = %q", session.TeamID)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("messages = %d", len(session.Messages))
	}
	if session.Messages[0].Role != domain.RoleUser || session.Messages[0].Content != "what is our revenue?" {
		t.Fatalf("user message = %+v", session.Messages[0])
	}

	if msg.Role != domain.RoleAssistant || msg.Content != "Revenue is $5M " {
		t.Fatalf("assistant message = %+v", msg)
	}
	if len(msg.Citations) != 1 {
		t.Fatalf("citations = %d", len(msg.Citations))
	}
	if msg.Citations[0].FileName != "q3.pdf" || msg.Citations[0].Page != 4 {
		t.Fatalf("citation = %+v", msg.Citations[0])
	}

	if len(st.saved) == 0 {
		t.Fatalf("sessions must be persisted on mutation")
	}
}

func TestManagerSendValidation(t *testing.T) {
	manager, _ := NewManager(&query.MockClient{}, &mockStore{}, "team-a", nil)

	t.Run("empty text rejected", func(t *testing.T) {
		if _, err := manager.Send(context.Background(), "   \n"); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("no session created on rejection", func(t *testing.T) {
		if len(manager.Sessions()) != 0 {
			t.Fatalf("sessions = %d", len(manager.Sessions()))
		}
	})
}

func TestManagerSendTransportFault(t *testing.T) {
	client := &query.MockClient{StreamErr: errors.New("connection refused")}
	manager, _ := NewManager(client, &mockStore{}, "team-a", nil)

	_, err := manager.Send(context.Background(), "hello?")
	if err == nil {
		t.Fatalf("expected transport error")
	}

	// El placeholder nunca queda vacío: se reemplaza con texto visible.
	session := manager.Sessions()[0]
	last := session.LastMessage()
	if last.Role != domain.RoleAssistant || last.Content == "" {
		t.Fatalf("placeholder = %+v", last)
	}
	if !strings.Contains(last.Content, "try again") {
		t.Fatalf("placeholder content = %q", last.Content)
	}
}

func TestManagerSendRecoversInFlight(t *testing.T) {
	client := &query.MockClient{Fragments: []string{"ok"}}
	manager, _ := NewManager(client, &mockStore{}, "team-a", nil)

	if _, err := manager.Send(context.Background(), "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	// La bandera in-flight debe liberarse al completar.
	if _, err := manager.Send(context.Background(), "second"); err != nil {
		t.Fatalf("second send: %v", err)
	}
}

func TestManagerTitleTruncation(t *testing.T) {
	client := &query.MockClient{Fragments: []string{"ok"}}
	manager, _ := NewManager(client, &mockStore{}, "team-a", nil)

	long := strings.Repeat("pregunta ", 10)
	if _, err := manager.Send(context.Background(), long); err != nil {
		t.Fatalf("send: %v", err)
	}
	title := manager.Sessions()[0].Title
	if got := len([]rune(title)); got != 30 {
		t.Fatalf("title runes = %d (%q)", got, title)
	}
}

func TestManagerLocalMutations(t *testing.T) {
	client := &query.MockClient{Fragments: []string{"ok"}}
	manager, _ := NewManager(client, &mockStore{}, "team-a", nil)
	ctx := context.Background()

	first := manager.NewChat()
	second := manager.NewChat()

	t.Run("new chat activates", func(t *testing.T) {
		if active := manager.Active(); active == nil || active.ID != second.ID {
			t.Fatalf("active = %+v", active)
		}
	})

	t.Run("select switches", func(t *testing.T) {
		if err := manager.SelectChat(first.ID); err != nil {
			t.Fatalf("select: %v", err)
		}
		if manager.Active().ID != first.ID {
			t.Fatalf("active = %s", manager.Active().ID)
		}
	})

	t.Run("select unknown", func(t *testing.T) {
		if err := manager.SelectChat("nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("rename", func(t *testing.T) {
		if err := manager.RenameChat(first.ID, "presupuesto"); err != nil {
			t.Fatalf("rename: %v", err)
		}
		if manager.Active().Title != "presupuesto" {
			t.Fatalf("title = %q", manager.Active().Title)
		}
	})

	t.Run("delete is local and notifies", func(t *testing.T) {
		if err := manager.DeleteChat(ctx, first.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if len(manager.Sessions()) != 1 {
			t.Fatalf("sessions = %d", len(manager.Sessions()))
		}
		if manager.Active() != nil {
			t.Fatalf("active session must clear on delete")
		}
		if len(client.ClearedSessions) != 1 || client.ClearedSessions[0] != first.ID {
			t.Fatalf("cleared = %v", client.ClearedSessions)
		}
	})

	t.Run("delete survives notify failure", func(t *testing.T) {
		client.ClearErr = errors.New("boom")
		if err := manager.DeleteChat(ctx, second.ID); err != nil {
			t.Fatalf("delete must not roll back on notify failure: %v", err)
		}
		if len(manager.Sessions()) != 0 {
			t.Fatalf("sessions = %d", len(manager.Sessions()))
		}
	})
}

func TestManagerOnUpdateObservesIncrements(t *testing.T) {
	client := &query.MockClient{Fragments: []string{"Hola ", "mundo"}}
	manager, _ := NewManager(client, &mockStore{}, "team-a", nil)

	var seen []string
	manager.OnUpdate = func(session *domain.ChatSession) {
		seen = append(seen, session.LastMessage().Content)
	}

	if _, err := manager.Send(context.Background(), "saluda"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(seen) < 2 {
		t.Fatalf("updates = %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if !strings.HasPrefix(seen[i], seen[i-1]) {
			t.Fatalf("increments not cumulative: %v", seen)
		}
	}
	if seen[len(seen)-1] != "Hola mundo" {
		t.Fatalf("final = %q", seen[len(seen)-1])
	}
}
