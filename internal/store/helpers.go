package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
)

// marshalSession serializes a session to its JSON row representation.
func marshalSession(session models.Session) ([]byte, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}
	return payload, nil
}

// scanSessionRow scans a session JSON blob from a single sql.Row.
func scanSessionRow(row *sql.Row) (*models.Session, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session row: %w", err)
	}
	return &session, nil
}
