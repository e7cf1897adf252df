package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentification(t *testing.T) {
	tests := []struct {
		description string
		input       string
		expected    Identification
	}{
		{
			description: "padded fields",
			input:       "Agilent Technologies, N5182A, US51990230, A.01.86",
			expected: Identification{
				Company:  "Agilent Technologies",
				Model:    "N5182A",
				Serial:   "US51990230",
				Firmware: "A.01.86",
			},
		},
		{
			description: "compact fields with terminator",
			input:       "Agilent Technologies,N9020A,MY52091380,A.13.50_R0010\n",
			expected: Identification{
				Company:  "Agilent Technologies",
				Model:    "N9020A",
				Serial:   "MY52091380",
				Firmware: "A.13.50_R0010",
			},
		},
		{
			description: "extra fields are ignored",
			input:       "Keysight Technologies,N5172B,MY1234, B.01.01 ,opt-UNT",
			expected: Identification{
				Company:  "Keysight Technologies",
				Model:    "N5172B",
				Serial:   "MY1234",
				Firmware: "B.01.01",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			id, err := ParseIdentification(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestParseIdentification_TooFewFields(t *testing.T) {
	for _, input := range []string{"", "Agilent Technologies", "Agilent Technologies,N5182A,US51990230"} {
		_, err := ParseIdentification(input)
		require.Error(t, err, input)
		assert.ErrorIs(t, err, ErrParse)
	}
}

func TestIdentification_String(t *testing.T) {
	var id Identification
	assert.True(t, id.IsZero())

	id = Identification{Company: "Agilent Technologies", Model: "N5182A", Serial: "US51990230", Firmware: "A.01.86"}
	assert.False(t, id.IsZero())
	assert.Equal(t, "Agilent Technologies,N5182A,US51990230,A.01.86", id.String())
}
