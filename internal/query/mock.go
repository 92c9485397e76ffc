package query

import (
	"context"
	"io"
	"strings"
)

// MockClient permite tests y desarrollo sin un pipeline de consulta real.
// Los fragmentos se entregan uno por lectura, simulando el troceo
// arbitrario del transporte.
type MockClient struct {
	Fragments []string
	StreamErr error
	ClearErr  error

	ClearedSessions []string
}

func (m *MockClient) StreamQuery(ctx context.Context, question, teamID, sessionID string) (io.ReadCloser, error) {
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	return &fragmentReader{fragments: m.Fragments}, nil
}

func (m *MockClient) ClearSession(ctx context.Context, sessionID string) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.ClearedSessions = append(m.ClearedSessions, sessionID)
	return nil
}

type fragmentReader struct {
	fragments []string
	pending   strings.Reader
	idx       int
}

func (r *fragmentReader) Read(p []byte) (int, error) {
	for r.pending.Len() == 0 {
		if r.idx >= len(r.fragments) {
			return 0, io.EOF
		}
		r.pending.Reset(r.fragments[r.idx])
		r.idx++
	}
	return r.pending.Read(p)
}

func (r *fragmentReader) Close() error { return nil }
