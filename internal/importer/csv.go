package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/Hashira10/render/internal/models"
)

// columnAliases maps recipient fields to the header names accepted for
// them. Matching is case-insensitive after trimming.
var columnAliases = map[string][]string{
	"first_name": {"first_name", "firstname", "first name", "first"},
	"last_name":  {"last_name", "lastname", "last name", "last"},
	"email":      {"email", "e-mail", "email_address", "email address"},
	"position":   {"position", "title", "job_title", "job title", "role"},
}

// ParseRecipients reads a recipient roster from CSV. The first row must
// be a header naming at least an email column; rows missing an email
// are skipped. Each parsed recipient gets a fresh ID.
func ParseRecipients(r io.Reader) ([]models.Recipient, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := resolveColumns(header)
	if _, ok := cols["email"]; !ok {
		return nil, fmt.Errorf("no email column in header %v", header)
	}

	var recipients []models.Recipient
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		email := strings.TrimSpace(field(row, cols, "email"))
		if email == "" {
			continue
		}
		recipients = append(recipients, models.Recipient{
			ID:        uuid.NewString(),
			Email:     email,
			FirstName: strings.TrimSpace(field(row, cols, "first_name")),
			LastName:  strings.TrimSpace(field(row, cols, "last_name")),
			Position:  strings.TrimSpace(field(row, cols, "position")),
		})
	}
	return recipients, nil
}

func resolveColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for name, aliases := range columnAliases {
			if _, taken := cols[name]; taken {
				continue
			}
			for _, alias := range aliases {
				if h == alias {
					cols[name] = i
					break
				}
			}
		}
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
