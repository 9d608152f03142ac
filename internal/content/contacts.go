package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Contact is the contact card; the file wraps it as {"contact": {...}}.
type Contact struct {
	Data   json.RawMessage
	Commit *string
}

type contactFile struct {
	Contact json.RawMessage `json:"contact"`
}

func (s *Service) GetContacts(ctx context.Context) (Contact, error) {
	f, found, err := s.Files.Get(ctx, ref(s.Paths.Contacts))
	if err != nil {
		return Contact{}, err
	}
	if !found || len(bytes.TrimSpace(f.Content)) == 0 {
		return Contact{Data: json.RawMessage(`{}`)}, nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(f.Content, &top); err != nil {
		return Contact{}, fmt.Errorf("decode contacts file: %w", err)
	}
	data := json.RawMessage(bytes.TrimSpace(f.Content))
	if inner, ok := top["contact"]; ok {
		data = inner
	}
	return Contact{Data: data, Commit: optional(shortSHA(f.Revision))}, nil
}

func (s *Service) SaveContacts(ctx context.Context, actor string, contact json.RawMessage, message string) (string, error) {
	if !isObject(contact) {
		return "", invalid("contact must be a JSON object")
	}
	body, err := json.MarshalIndent(contactFile{Contact: contact}, "", "  ")
	if err != nil {
		return "", invalid("contact is not valid JSON: %v", err)
	}
	res, err := s.put(ctx, ref(s.Paths.Contacts), body, messageOr(message))
	if err != nil {
		return "", err
	}
	s.record(actor, "contacts_updated", "contacts", nil, nil)
	return shortSHA(res.Commit), nil
}
