package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecipients(t *testing.T) {
	csv := strings.Join([]string{
		"first_name,last_name,email,position",
		"Ann,Lee,ann@corp.example,CFO",
		"Bo,Ek,bo@corp.example,",
	}, "\n")

	recipients, err := ParseRecipients(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, "Ann", recipients[0].FirstName)
	assert.Equal(t, "Lee", recipients[0].LastName)
	assert.Equal(t, "ann@corp.example", recipients[0].Email)
	assert.Equal(t, "CFO", recipients[0].Position)
	assert.NotEmpty(t, recipients[0].ID)
	assert.NotEqual(t, recipients[0].ID, recipients[1].ID)
}

func TestParseRecipientsHeaderAliases(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"canonical", "first_name,last_name,email,position"},
		{"spaced", "First Name,Last Name,E-Mail,Title"},
		{"compact", "FirstName,LastName,Email,Role"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			csv := tc.header + "\nAnn,Lee,ann@corp.example,CFO\n"
			recipients, err := ParseRecipients(strings.NewReader(csv))
			require.NoError(t, err)
			require.Len(t, recipients, 1)
			assert.Equal(t, "Ann", recipients[0].FirstName)
			assert.Equal(t, "CFO", recipients[0].Position)
		})
	}
}

func TestParseRecipientsSkipsRowsWithoutEmail(t *testing.T) {
	csv := "email,first_name\nann@corp.example,Ann\n,Ghost\n  ,Blank\n"

	recipients, err := ParseRecipients(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, recipients, 1)
}

func TestParseRecipientsRequiresEmailColumn(t *testing.T) {
	_, err := ParseRecipients(strings.NewReader("first_name,last_name\nAnn,Lee\n"))
	assert.Error(t, err)
}

func TestParseRecipientsEmptyFile(t *testing.T) {
	_, err := ParseRecipients(strings.NewReader(""))
	assert.Error(t, err)
}
